package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/wize-works/helpNINJA-sub004/internal/logger"
)

const (
	TaskIngestDocument     = "ingest:document"
	TaskCrawlSite          = "crawl:site"
	TaskDispatchEscalation = "escalation:dispatch"
)

type IngestDocumentPayload struct {
	TenantID   string `json:"tenant_id"`
	DocumentID string `json:"document_id"`
}

type CrawlSitePayload struct {
	TenantID string `json:"tenant_id"`
	SiteID   string `json:"site_id"`
	JobID    string `json:"job_id"`
	RootURL  string `json:"root_url"`
}

type DispatchEscalationPayload struct {
	TenantID     string `json:"tenant_id"`
	EscalationID string `json:"escalation_id"`
}

// Task creators
func NewIngestDocumentTask(tenantID, documentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestDocumentPayload{
		TenantID:   tenantID,
		DocumentID: documentID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("ingest"),
	), nil
}

func NewCrawlSiteTask(tenantID, siteID, jobID, rootURL string) (*asynq.Task, error) {
	payload, err := json.Marshal(CrawlSitePayload{
		TenantID: tenantID,
		SiteID:   siteID,
		JobID:    jobID,
		RootURL:  rootURL,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskCrawlSite,
		payload,
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
		asynq.Queue("ingest"),
	), nil
}

func NewDispatchEscalationTask(tenantID, escalationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DispatchEscalationPayload{
		TenantID:     tenantID,
		EscalationID: escalationID,
	})
	if err != nil {
		return nil, err
	}

	// Escalations are time-sensitive: short timeout, aggressive retry
	return asynq.NewTask(
		TaskDispatchEscalation,
		payload,
		asynq.MaxRetry(5),
		asynq.Timeout(1*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// Client wraps the asynq client with typed enqueue helpers.
type Client struct {
	inner *asynq.Client
}

func NewClient(redisAddr, redisPassword string, redisDB int) *Client {
	return &Client{
		inner: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     redisAddr,
			Password: redisPassword,
			DB:       redisDB,
		}),
	}
}

func (c *Client) EnqueueIngestDocument(tenantID, documentID string) error {
	task, err := NewIngestDocumentTask(tenantID, documentID)
	if err != nil {
		return err
	}
	_, err = c.inner.Enqueue(task)
	return err
}

func (c *Client) EnqueueCrawlSite(tenantID, siteID, jobID, rootURL string) error {
	task, err := NewCrawlSiteTask(tenantID, siteID, jobID, rootURL)
	if err != nil {
		return err
	}
	_, err = c.inner.Enqueue(task)
	return err
}

func (c *Client) EnqueueEscalationDispatch(tenantID, escalationID string) error {
	task, err := NewDispatchEscalationTask(tenantID, escalationID)
	if err != nil {
		return err
	}
	_, err = c.inner.Enqueue(task)
	return err
}

func (c *Client) Close() error {
	return c.inner.Close()
}

// Handler interfaces are satisfied by the ingestion, crawler and
// escalation services. The processor owns decoding and retry policy
// only.
type IngestHandler interface {
	IngestDocument(ctx context.Context, tenantID, documentID string) error
}

type CrawlHandler interface {
	CrawlSite(ctx context.Context, tenantID, siteID, jobID, rootURL string) error
}

type DispatchHandler interface {
	DispatchEscalation(ctx context.Context, tenantID, escalationID string) error
}

type TaskProcessor struct {
	ingest   IngestHandler
	crawl    CrawlHandler
	dispatch DispatchHandler
}

func NewTaskProcessor(ingest IngestHandler, crawl CrawlHandler, dispatch DispatchHandler) *TaskProcessor {
	return &TaskProcessor{
		ingest:   ingest,
		crawl:    crawl,
		dispatch: dispatch,
	}
}

// Register wires the processor's handlers into an asynq mux.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskIngestDocument, p.HandleIngestDocument)
	mux.HandleFunc(TaskCrawlSite, p.HandleCrawlSite)
	mux.HandleFunc(TaskDispatchEscalation, p.HandleDispatchEscalation)
}

func (p *TaskProcessor) HandleIngestDocument(ctx context.Context, t *asynq.Task) error {
	var payload IngestDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Ingesting document", "tenant_id", payload.TenantID, "document_id", payload.DocumentID)

	if err := p.ingest.IngestDocument(ctx, payload.TenantID, payload.DocumentID); err != nil {
		logger.Error("Document ingestion failed", "document_id", payload.DocumentID, "error", err)
		return err
	}

	logger.Info("Document ingested", "document_id", payload.DocumentID)
	return nil
}

func (p *TaskProcessor) HandleCrawlSite(ctx context.Context, t *asynq.Task) error {
	var payload CrawlSitePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Crawling site", "tenant_id", payload.TenantID, "site_id", payload.SiteID, "root_url", payload.RootURL)

	if err := p.crawl.CrawlSite(ctx, payload.TenantID, payload.SiteID, payload.JobID, payload.RootURL); err != nil {
		logger.Error("Site crawl failed", "site_id", payload.SiteID, "error", err)
		return err
	}

	return nil
}

func (p *TaskProcessor) HandleDispatchEscalation(ctx context.Context, t *asynq.Task) error {
	var payload DispatchEscalationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Dispatching escalation", "tenant_id", payload.TenantID, "escalation_id", payload.EscalationID)

	if err := p.dispatch.DispatchEscalation(ctx, payload.TenantID, payload.EscalationID); err != nil {
		logger.Error("Escalation dispatch failed", "escalation_id", payload.EscalationID, "error", err)
		return err
	}

	return nil
}
