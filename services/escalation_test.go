package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wize-works/helpNINJA-sub004/models"
)

type fakeRuleRepo struct {
	rules       []models.EscalationRule
	findErr     error
	recorded    []*models.Escalation
	stored      map[primitive.ObjectID]*models.Escalation
	markedErrs  map[primitive.ObjectID]string
	markedCalls int
}

func (f *fakeRuleRepo) FindEnabled(_ context.Context, tenantID primitive.ObjectID, siteID string) ([]models.EscalationRule, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.rules, nil
}

func (f *fakeRuleRepo) RecordEscalation(_ context.Context, escalation *models.Escalation) error {
	escalation.ID = primitive.NewObjectID()
	escalation.CreatedAt = time.Now()
	f.recorded = append(f.recorded, escalation)
	if f.stored == nil {
		f.stored = make(map[primitive.ObjectID]*models.Escalation)
	}
	f.stored[escalation.ID] = escalation
	return nil
}

func (f *fakeRuleRepo) GetEscalation(_ context.Context, escalationID primitive.ObjectID) (*models.Escalation, error) {
	esc, ok := f.stored[escalationID]
	if !ok {
		return nil, errors.New("not found")
	}
	return esc, nil
}

func (f *fakeRuleRepo) MarkEscalationDispatched(_ context.Context, escalationID primitive.ObjectID, dispatchErr error) error {
	f.markedCalls++
	if f.markedErrs == nil {
		f.markedErrs = make(map[primitive.ObjectID]string)
	}
	if dispatchErr != nil {
		f.markedErrs[escalationID] = dispatchErr.Error()
	} else {
		f.markedErrs[escalationID] = ""
	}
	return nil
}

type fakeTenantReader struct {
	tenant *models.Tenant
}

func (f *fakeTenantReader) Get(_ context.Context, _ primitive.ObjectID) (*models.Tenant, error) {
	if f.tenant == nil {
		return nil, errors.New("tenant not found")
	}
	return f.tenant, nil
}

type fakeConversationMarker struct {
	marked []primitive.ObjectID
}

func (f *fakeConversationMarker) MarkEscalated(_ context.Context, conversationID primitive.ObjectID) error {
	f.marked = append(f.marked, conversationID)
	return nil
}

type fakeDispatchEnqueuer struct {
	enqueued []string
}

func (f *fakeDispatchEnqueuer) EnqueueEscalationDispatch(tenantID, escalationID string) error {
	f.enqueued = append(f.enqueued, escalationID)
	return nil
}

type fakeEmailSender struct {
	escalations [][]string
	alerts      []string
	err         error
}

func (f *fakeEmailSender) SendEscalation(recipients []string, _ *models.Tenant, _ *models.Escalation) error {
	if f.err != nil {
		return f.err
	}
	f.escalations = append(f.escalations, recipients)
	return nil
}

func (f *fakeEmailSender) SendTokenAlert(_ *models.Tenant, alertLevel string, _ TokenAlertData) error {
	if f.err != nil {
		return f.err
	}
	f.alerts = append(f.alerts, alertLevel)
	return nil
}

func lowConfidenceRule(tenantID primitive.ObjectID, threshold float64) models.EscalationRule {
	return models.EscalationRule{
		ID:       primitive.NewObjectID(),
		TenantID: tenantID,
		Name:     "low confidence",
		Enabled:  true,
		Predicate: models.RuleNodeDoc{
			Type:     "confidence",
			Operator: "lt",
			Value:    threshold,
		},
		Destinations: []models.RuleDestination{
			{Type: models.DestinationEmail, Target: "ops@example.com"},
		},
	}
}

func TestEvaluateMessageRecordsMatch(t *testing.T) {
	tenantID := primitive.NewObjectID()
	repo := &fakeRuleRepo{rules: []models.EscalationRule{lowConfidenceRule(tenantID, 0.5)}}
	conversations := &fakeConversationMarker{}
	enqueuer := &fakeDispatchEnqueuer{}
	svc := NewEscalationService(repo, &fakeTenantReader{}, conversations, enqueuer, &fakeEmailSender{}, NewWebhookSender(time.Second))

	conv := &models.Conversation{ID: primitive.NewObjectID(), TenantID: tenantID, MessageCount: 3}
	msg := &models.Message{
		ID:             primitive.NewObjectID(),
		TenantID:       tenantID,
		ConversationID: conv.ID.Hex(),
		Message:        "I want a refund immediately",
		Timestamp:      time.Now(),
	}

	err := svc.EvaluateMessage(context.Background(), MessageContext{
		Message:      msg,
		Conversation: conv,
		Confidence:   0.3,
	})
	require.NoError(t, err)

	require.Len(t, repo.recorded, 1)
	esc := repo.recorded[0]
	assert.Equal(t, "low confidence", esc.RuleName)
	assert.Equal(t, models.EscalationStatusPending, esc.Status)
	assert.Equal(t, 0.3, esc.Confidence)
	assert.NotEmpty(t, esc.Trace, "matched rule must carry its evaluation trace")
	assert.Equal(t, esc.Destinations, []models.RuleDestination{{Type: models.DestinationEmail, Target: "ops@example.com"}})

	assert.Equal(t, []primitive.ObjectID{conv.ID}, conversations.marked)
	assert.Equal(t, []string{esc.ID.Hex()}, enqueuer.enqueued)
}

func TestEvaluateMessageNoMatch(t *testing.T) {
	tenantID := primitive.NewObjectID()
	repo := &fakeRuleRepo{rules: []models.EscalationRule{lowConfidenceRule(tenantID, 0.5)}}
	conversations := &fakeConversationMarker{}
	enqueuer := &fakeDispatchEnqueuer{}
	svc := NewEscalationService(repo, &fakeTenantReader{}, conversations, enqueuer, &fakeEmailSender{}, NewWebhookSender(time.Second))

	msg := &models.Message{TenantID: tenantID, Message: "thanks, that helped", Timestamp: time.Now()}
	err := svc.EvaluateMessage(context.Background(), MessageContext{Message: msg, Confidence: 0.95})
	require.NoError(t, err)

	assert.Empty(t, repo.recorded)
	assert.Empty(t, conversations.marked)
	assert.Empty(t, enqueuer.enqueued)
}

func TestEvaluateMessageRuleLoadError(t *testing.T) {
	repo := &fakeRuleRepo{findErr: errors.New("db down")}
	svc := NewEscalationService(repo, &fakeTenantReader{}, &fakeConversationMarker{}, &fakeDispatchEnqueuer{}, &fakeEmailSender{}, NewWebhookSender(time.Second))

	msg := &models.Message{TenantID: primitive.NewObjectID(), Message: "hello", Timestamp: time.Now()}
	err := svc.EvaluateMessage(context.Background(), MessageContext{Message: msg, Confidence: 0.1})
	assert.Error(t, err)
}

func TestDispatchEscalationEmail(t *testing.T) {
	tenantID := primitive.NewObjectID()
	repo := &fakeRuleRepo{}
	email := &fakeEmailSender{}
	svc := NewEscalationService(repo, &fakeTenantReader{tenant: &models.Tenant{ID: tenantID, Name: "Acme"}}, &fakeConversationMarker{}, &fakeDispatchEnqueuer{}, email, NewWebhookSender(time.Second))

	esc := &models.Escalation{
		TenantID: tenantID,
		RuleName: "low confidence",
		Status:   models.EscalationStatusPending,
		Destinations: []models.RuleDestination{
			{Type: models.DestinationEmail, Target: "a@example.com, b@example.com"},
		},
	}
	require.NoError(t, repo.RecordEscalation(context.Background(), esc))

	err := svc.DispatchEscalation(context.Background(), tenantID.Hex(), esc.ID.Hex())
	require.NoError(t, err)

	require.Len(t, email.escalations, 1)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, email.escalations[0])
	assert.Equal(t, "", repo.markedErrs[esc.ID])
}

func TestDispatchEscalationFallsBackToTenantEmails(t *testing.T) {
	tenantID := primitive.NewObjectID()
	repo := &fakeRuleRepo{}
	email := &fakeEmailSender{}
	tenant := &models.Tenant{ID: tenantID, Name: "Acme", EscalationEmails: []string{"support@acme.test"}}
	svc := NewEscalationService(repo, &fakeTenantReader{tenant: tenant}, &fakeConversationMarker{}, &fakeDispatchEnqueuer{}, email, NewWebhookSender(time.Second))

	esc := &models.Escalation{TenantID: tenantID, Status: models.EscalationStatusPending}
	require.NoError(t, repo.RecordEscalation(context.Background(), esc))

	err := svc.DispatchEscalation(context.Background(), tenantID.Hex(), esc.ID.Hex())
	require.NoError(t, err)

	require.Len(t, email.escalations, 1)
	assert.Equal(t, []string{"support@acme.test"}, email.escalations[0])
}

func TestDispatchEscalationAlreadyDispatched(t *testing.T) {
	tenantID := primitive.NewObjectID()
	repo := &fakeRuleRepo{}
	email := &fakeEmailSender{}
	svc := NewEscalationService(repo, &fakeTenantReader{tenant: &models.Tenant{ID: tenantID}}, &fakeConversationMarker{}, &fakeDispatchEnqueuer{}, email, NewWebhookSender(time.Second))

	esc := &models.Escalation{TenantID: tenantID, Status: models.EscalationStatusPending}
	require.NoError(t, repo.RecordEscalation(context.Background(), esc))
	esc.Status = models.EscalationStatusDispatched

	err := svc.DispatchEscalation(context.Background(), tenantID.Hex(), esc.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, email.escalations)
	assert.Zero(t, repo.markedCalls)
}

func TestDispatchEscalationEmailFailure(t *testing.T) {
	tenantID := primitive.NewObjectID()
	repo := &fakeRuleRepo{}
	email := &fakeEmailSender{err: errors.New("smtp refused")}
	svc := NewEscalationService(repo, &fakeTenantReader{tenant: &models.Tenant{ID: tenantID}}, &fakeConversationMarker{}, &fakeDispatchEnqueuer{}, email, NewWebhookSender(time.Second))

	esc := &models.Escalation{
		TenantID:     tenantID,
		Status:       models.EscalationStatusPending,
		Destinations: []models.RuleDestination{{Type: models.DestinationEmail, Target: "ops@example.com"}},
	}
	require.NoError(t, repo.RecordEscalation(context.Background(), esc))

	err := svc.DispatchEscalation(context.Background(), tenantID.Hex(), esc.ID.Hex())
	require.Error(t, err)
	assert.Contains(t, repo.markedErrs[esc.ID], "smtp refused")
}

func TestExtractMessageKeywords(t *testing.T) {
	keywords := extractMessageKeywords("I want a REFUND, now!")
	assert.Equal(t, []string{"want", "refund", "now"}, keywords)
}

func TestSplitRecipients(t *testing.T) {
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, splitRecipients(" a@x.com ,, b@x.com "))
}
