package services

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wize-works/helpNINJA-sub004/internal/logger"
	"github.com/wize-works/helpNINJA-sub004/internal/rules"
	"github.com/wize-works/helpNINJA-sub004/models"
)

// RuleRepo is the slice of rule storage escalation needs.
type RuleRepo interface {
	FindEnabled(ctx context.Context, tenantID primitive.ObjectID, siteID string) ([]models.EscalationRule, error)
	RecordEscalation(ctx context.Context, escalation *models.Escalation) error
	GetEscalation(ctx context.Context, escalationID primitive.ObjectID) (*models.Escalation, error)
	MarkEscalationDispatched(ctx context.Context, escalationID primitive.ObjectID, dispatchErr error) error
}

// TenantReader loads tenants for dispatch addressing.
type TenantReader interface {
	Get(ctx context.Context, tenantID primitive.ObjectID) (*models.Tenant, error)
}

// ConversationMarker flags a conversation as escalated.
type ConversationMarker interface {
	MarkEscalated(ctx context.Context, conversationID primitive.ObjectID) error
}

// DispatchEnqueuer queues recorded escalations for delivery.
type DispatchEnqueuer interface {
	EnqueueEscalationDispatch(tenantID, escalationID string) error
}

// EscalationService evaluates every answered widget message against the
// tenant's enabled rules and hands matches to the dispatch queue.
type EscalationService struct {
	rules         RuleRepo
	tenants       TenantReader
	conversations ConversationMarker
	enqueuer      DispatchEnqueuer
	email         EmailSender
	webhook       *WebhookSender
}

func NewEscalationService(ruleRepo RuleRepo, tenants TenantReader, conversations ConversationMarker, enqueuer DispatchEnqueuer, email EmailSender, webhook *WebhookSender) *EscalationService {
	return &EscalationService{
		rules:         ruleRepo,
		tenants:       tenants,
		conversations: conversations,
		enqueuer:      enqueuer,
		email:         email,
		webhook:       webhook,
	}
}

// MessageContext carries everything rule conditions can see about one
// answered message.
type MessageContext struct {
	Message            *models.Message
	Conversation       *models.Conversation
	Confidence         float64
	SessionDurationSec int
}

// EvaluateMessage runs every enabled rule for the tenant against the
// message. Each matching rule records an escalation with its trace and
// queues it for dispatch; rules that fail to decode are skipped, never
// fatal. The first match also flags the conversation.
func (s *EscalationService) EvaluateMessage(ctx context.Context, mc MessageContext) error {
	tracer := otel.Tracer("escalation")
	ctx, span := tracer.Start(ctx, "escalation.evaluate")
	defer span.End()

	msg := mc.Message
	enabledRules, err := s.rules.FindEnabled(ctx, msg.TenantID, msg.SiteID)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	span.SetAttributes(attribute.Int("escalation.rules", len(enabledRules)))

	if len(enabledRules) == 0 {
		return nil
	}

	evalCtx := rules.Context{
		Message:            msg.Message,
		Confidence:         mc.Confidence,
		Keywords:           extractMessageKeywords(msg.Message),
		UserEmail:          msg.UserEmail,
		Timestamp:          msg.Timestamp,
		SiteID:             msg.SiteID,
		SessionDuration:    mc.SessionDurationSec,
		ConversationLength: conversationLength(mc.Conversation),
	}

	matched := 0
	for _, rule := range enabledRules {
		node := rules.Decode(rule.Predicate)
		result := rules.Evaluate(node, evalCtx)
		if !result.Matched {
			continue
		}
		matched++

		escalation := &models.Escalation{
			TenantID:       msg.TenantID,
			RuleID:         rule.ID,
			RuleName:       rule.Name,
			SiteID:         msg.SiteID,
			ConversationID: msg.ConversationID,
			MessageID:      msg.ID,
			UserMessage:    msg.Message,
			UserEmail:      msg.UserEmail,
			Confidence:     mc.Confidence,
			Destinations:   rule.Destinations,
			Trace:          toEscalationSteps(result.Trace),
			Status:         models.EscalationStatusPending,
		}
		if err := s.rules.RecordEscalation(ctx, escalation); err != nil {
			logger.Error("Failed to record escalation", "rule", rule.Name, "error", err)
			continue
		}

		if mc.Conversation != nil && !mc.Conversation.Escalated {
			if err := s.conversations.MarkEscalated(ctx, mc.Conversation.ID); err != nil {
				logger.Warn("Failed to flag conversation escalated", "conversation_id", msg.ConversationID, "error", err)
			}
		}

		if err := s.enqueuer.EnqueueEscalationDispatch(msg.TenantID.Hex(), escalation.ID.Hex()); err != nil {
			logger.Error("Failed to enqueue escalation dispatch", "escalation_id", escalation.ID.Hex(), "error", err)
		}

		logger.Info("Escalation rule fired",
			"rule", rule.Name,
			"tenant_id", msg.TenantID.Hex(),
			"conversation_id", msg.ConversationID,
		)
	}

	span.SetAttributes(attribute.Int("escalation.matched", matched))
	return nil
}

// DispatchEscalation delivers a recorded escalation to every snapshotted
// destination. Partial failures mark the escalation failed with the
// collected errors; asynq retries the whole task.
func (s *EscalationService) DispatchEscalation(ctx context.Context, tenantID, escalationID string) error {
	tenantOID, err := primitive.ObjectIDFromHex(tenantID)
	if err != nil {
		return fmt.Errorf("invalid tenant id: %w", err)
	}
	escalationOID, err := primitive.ObjectIDFromHex(escalationID)
	if err != nil {
		return fmt.Errorf("invalid escalation id: %w", err)
	}

	escalation, err := s.rules.GetEscalation(ctx, escalationOID)
	if err != nil {
		return fmt.Errorf("load escalation: %w", err)
	}
	if escalation.Status == models.EscalationStatusDispatched {
		return nil
	}

	tenant, err := s.tenants.Get(ctx, tenantOID)
	if err != nil {
		return fmt.Errorf("load tenant: %w", err)
	}

	destinations := escalation.Destinations
	if len(destinations) == 0 && len(tenant.EscalationEmails) > 0 {
		// Rules without explicit destinations fall back to the
		// tenant's operator emails
		destinations = []models.RuleDestination{{
			Type:   models.DestinationEmail,
			Target: strings.Join(tenant.EscalationEmails, ","),
		}}
	}

	var dispatchErrs []string
	for _, dest := range destinations {
		switch dest.Type {
		case models.DestinationEmail:
			recipients := splitRecipients(dest.Target)
			if err := s.email.SendEscalation(recipients, tenant, escalation); err != nil {
				dispatchErrs = append(dispatchErrs, fmt.Sprintf("email %s: %v", dest.Target, err))
			}
		case models.DestinationWebhook:
			if err := s.webhook.Send(ctx, dest.Target, dest.Secret, escalation); err != nil {
				dispatchErrs = append(dispatchErrs, fmt.Sprintf("webhook %s: %v", dest.Target, err))
			}
		default:
			dispatchErrs = append(dispatchErrs, fmt.Sprintf("unknown destination type %q", dest.Type))
		}
	}

	if len(dispatchErrs) > 0 {
		combined := fmt.Errorf("%s", strings.Join(dispatchErrs, "; "))
		if markErr := s.rules.MarkEscalationDispatched(ctx, escalationOID, combined); markErr != nil {
			logger.Error("Failed to mark escalation failed", "escalation_id", escalationID, "error", markErr)
		}
		return combined
	}

	return s.rules.MarkEscalationDispatched(ctx, escalationOID, nil)
}

func toEscalationSteps(trace []rules.Step) []models.EscalationStep {
	steps := make([]models.EscalationStep, len(trace))
	for i, step := range trace {
		steps[i] = models.EscalationStep{
			Description: step.Description,
			Matched:     step.Matched,
		}
	}
	return steps
}

func conversationLength(conv *models.Conversation) int {
	if conv == nil {
		return 1
	}
	return conv.MessageCount
}

func splitRecipients(target string) []string {
	parts := strings.Split(target, ",")
	recipients := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			recipients = append(recipients, trimmed)
		}
	}
	return recipients
}

// extractMessageKeywords lowercases and splits a message into tokens
// for keyword conditions.
func extractMessageKeywords(message string) []string {
	fields := strings.Fields(strings.ToLower(message))
	keywords := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?()[]{}\"'")
		if len(f) > 1 {
			keywords = append(keywords, f)
		}
	}
	return keywords
}
