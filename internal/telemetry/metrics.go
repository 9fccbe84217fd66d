package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter     metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	TokensUsed         metric.Int64Counter
	ResolutionsTotal   metric.Int64Counter
	IngestionDuration  metric.Float64Histogram
	EscalationsFired   metric.Int64Counter
	DatabaseOperations metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("helpninja")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	resolutionsTotal, err := meter.Int64Counter(
		"resolver.resolutions.total",
		metric.WithDescription("Total answer resolutions by source"),
	)
	if err != nil {
		return nil, err
	}

	ingestionDuration, err := meter.Float64Histogram(
		"ingestion.duration",
		metric.WithDescription("Document ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	escalationsFired, err := meter.Int64Counter(
		"escalations.fired.total",
		metric.WithDescription("Total escalations triggered by rules"),
	)
	if err != nil {
		return nil, err
	}

	databaseOperations, err := meter.Int64Counter(
		"database.operations.total",
		metric.WithDescription("Total database operations"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:     requestCounter,
		RequestDuration:    requestDuration,
		TokensUsed:         tokensUsed,
		ResolutionsTotal:   resolutionsTotal,
		IngestionDuration:  ingestionDuration,
		EscalationsFired:   escalationsFired,
		DatabaseOperations: databaseOperations,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	attrs := []attribute.KeyValue{
		attribute.String("gemini.model", model),
		attribute.String("service", "gemini"),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}

// RecordResolution records one answer resolution and its source
// (curated, rag or fallback).
func (m *Metrics) RecordResolution(source string) {
	attrs := []attribute.KeyValue{
		attribute.String("resolver.source", source),
	}

	m.ResolutionsTotal.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordIngestion records document ingestion metrics
func (m *Metrics) RecordIngestion(duration float64, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("ingestion.status", status),
	}

	m.IngestionDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordEscalation records a fired escalation and its destination type
func (m *Metrics) RecordEscalation(destination string) {
	attrs := []attribute.KeyValue{
		attribute.String("escalation.destination", destination),
	}

	m.EscalationsFired.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordDatabaseOperation records database operation metrics
func (m *Metrics) RecordDatabaseOperation(operation, collection string, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", operation),
		attribute.String("db.collection", collection),
		attribute.Bool("db.success", success),
	}

	m.DatabaseOperations.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
