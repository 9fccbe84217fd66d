package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RuleNodeDoc is the stored/wire form of one node in an escalation rule's
// condition tree. A node with a non-empty Type is a leaf condition; any
// other node is a branch whose Operator is "and" or "or". The dashboard
// authors these trees, so the shape is validated only loosely here; the
// evaluator degrades malformed leaves instead of rejecting the rule.
type RuleNodeDoc struct {
	Type       string        `bson:"type,omitempty" json:"type,omitempty"`
	Operator   string        `bson:"operator,omitempty" json:"operator,omitempty"`
	Value      interface{}   `bson:"value,omitempty" json:"value,omitempty"`
	Field      string        `bson:"field,omitempty" json:"field,omitempty"`
	Conditions []RuleNodeDoc `bson:"conditions,omitempty" json:"conditions,omitempty"`
}

const (
	DestinationEmail   = "email"
	DestinationWebhook = "webhook"
)

// RuleDestination says where a fired rule hands the conversation off.
type RuleDestination struct {
	Type   string `bson:"type" json:"type"` // email, webhook
	Target string `bson:"target" json:"target"`
	Secret string `bson:"secret,omitempty" json:"-"`
}

// EscalationRule is an operator-authored trigger evaluated on every
// answered widget message.
type EscalationRule struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID     primitive.ObjectID `bson:"tenant_id" json:"tenant_id"`
	SiteID       string             `bson:"site_id,omitempty" json:"site_id,omitempty"`
	Name         string             `bson:"name" json:"name" binding:"required,min=2,max=100"`
	Enabled      bool               `bson:"enabled" json:"enabled"`
	Predicate    RuleNodeDoc        `bson:"predicate" json:"predicate"`
	Destinations []RuleDestination  `bson:"destinations,omitempty" json:"destinations,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// EscalationStep is one trace entry persisted with a fired escalation.
type EscalationStep struct {
	Description string `bson:"description" json:"description"`
	Matched     bool   `bson:"matched" json:"matched"`
}

const (
	EscalationStatusPending   = "pending"
	EscalationStatusDispatched = "dispatched"
	EscalationStatusFailed    = "failed"
)

// Escalation records one rule firing and its dispatch outcome. The
// destinations and context are snapshotted so dispatch still works if
// the rule is edited or deleted before the worker picks it up.
type Escalation struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID       primitive.ObjectID `bson:"tenant_id" json:"tenant_id"`
	RuleID         primitive.ObjectID `bson:"rule_id" json:"rule_id"`
	RuleName       string             `bson:"rule_name" json:"rule_name"`
	SiteID         string             `bson:"site_id,omitempty" json:"site_id,omitempty"`
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`
	MessageID      primitive.ObjectID `bson:"message_id,omitempty" json:"message_id,omitempty"`
	UserMessage    string             `bson:"user_message,omitempty" json:"user_message,omitempty"`
	UserEmail      string             `bson:"user_email,omitempty" json:"user_email,omitempty"`
	Confidence     float64            `bson:"confidence" json:"confidence"`
	Destinations   []RuleDestination  `bson:"destinations,omitempty" json:"destinations,omitempty"`
	Trace          []EscalationStep   `bson:"trace,omitempty" json:"trace,omitempty"`
	Status         string             `bson:"status" json:"status"`
	DispatchError  string             `bson:"dispatch_error,omitempty" json:"dispatch_error,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	DispatchedAt   *time.Time         `bson:"dispatched_at,omitempty" json:"dispatched_at,omitempty"`
}

type CreateRuleRequest struct {
	Name         string            `json:"name" binding:"required,min=2,max=100"`
	SiteID       string            `json:"site_id,omitempty"`
	Enabled      *bool             `json:"enabled,omitempty"`
	Predicate    RuleNodeDoc       `json:"predicate" binding:"required"`
	Destinations []RuleDestination `json:"destinations,omitempty"`
}

type UpdateRuleRequest struct {
	Name         *string            `json:"name,omitempty" binding:"omitempty,min=2,max=100"`
	SiteID       *string            `json:"site_id,omitempty"`
	Enabled      *bool              `json:"enabled,omitempty"`
	Predicate    *RuleNodeDoc       `json:"predicate,omitempty"`
	Destinations *[]RuleDestination `json:"destinations,omitempty"`
}

// TestRuleRequest dry-runs a predicate against an operator-supplied
// context without touching stored rules.
type TestRuleRequest struct {
	Predicate          RuleNodeDoc       `json:"predicate" binding:"required"`
	Message            string            `json:"message"`
	Confidence         float64           `json:"confidence"`
	Keywords           []string          `json:"keywords,omitempty"`
	UserEmail          string            `json:"user_email,omitempty"`
	Timestamp          *time.Time        `json:"timestamp,omitempty"`
	SiteID             string            `json:"site_id,omitempty"`
	SessionDuration    int               `json:"session_duration,omitempty"`
	IsOffHours         *bool             `json:"is_off_hours,omitempty"`
	ConversationLength int               `json:"conversation_length,omitempty"`
	Custom             map[string]string `json:"custom,omitempty"`
}
