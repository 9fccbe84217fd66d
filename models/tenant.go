package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Tenant struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name" binding:"required,min=2,max=100"`
	Status          string             `bson:"status,omitempty" json:"status,omitempty"` // active, inactive, suspended
	Plan            string             `bson:"plan,omitempty" json:"plan,omitempty"`     // starter, pro, agency
	Branding        Branding           `bson:"branding" json:"branding"`
	Sites           []Site             `bson:"sites,omitempty" json:"sites,omitempty"`
	TokenLimit      int                `bson:"token_limit" json:"token_limit"`
	TokenUsed       int                `bson:"token_used" json:"token_used"`
	EmbedSecret     string             `bson:"embed_secret" json:"embed_secret"`
	EmbeddingModel  string             `bson:"embedding_model,omitempty" json:"embedding_model,omitempty"`
	EscalationEmails []string          `bson:"escalation_emails,omitempty" json:"escalation_emails,omitempty"`
	ContactEmail    string             `bson:"contact_email,omitempty" json:"contact_email,omitempty"`
	AlertLevelSent  string             `bson:"alert_level_sent,omitempty" json:"alert_level_sent,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

// Site is a registered property of a tenant. Curated answers, document
// chunks and escalation rules may be scoped to a single site; an empty
// site scope means tenant-wide.
type Site struct {
	ID        string    `bson:"id" json:"id"`
	Domain    string    `bson:"domain" json:"domain" binding:"required"`
	Name      string    `bson:"name,omitempty" json:"name,omitempty"`
	Verified  bool      `bson:"verified" json:"verified"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type Branding struct {
	LogoURL        string   `bson:"logo_url" json:"logo_url"`
	ThemeColor     string   `bson:"theme_color" json:"theme_color"`
	WelcomeMessage string   `bson:"welcome_message" json:"welcome_message"`
	PreQuestions   []string `bson:"pre_questions" json:"pre_questions" binding:"max=5"`
	AllowEmbedding bool     `bson:"allow_embedding" json:"allow_embedding"`
	ShowPoweredBy  bool     `bson:"show_powered_by,omitempty" json:"show_powered_by,omitempty"`
	WidgetPosition string   `bson:"widget_position,omitempty" json:"widget_position,omitempty"`
}

type CreateTenantRequest struct {
	Name         string   `json:"name" binding:"required,min=2,max=100"`
	Plan         string   `json:"plan,omitempty"`
	TokenLimit   int      `json:"token_limit" binding:"required,min=1000"`
	Branding     Branding `json:"branding"`
	ContactEmail string   `json:"contact_email,omitempty"`

	// Optional: create the first operator login for this tenant
	InitialUser *InitialUser `json:"initial_user,omitempty"`
}

type InitialUser struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=8,max=128"`
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Email    string `json:"email,omitempty"`
}

type UpdateTenantRequest struct {
	Name             *string   `json:"name,omitempty" binding:"omitempty,min=2,max=100"`
	Plan             *string   `json:"plan,omitempty"`
	TokenLimit       *int      `json:"token_limit,omitempty" binding:"omitempty,min=1000"`
	Branding         *Branding `json:"branding,omitempty"`
	Status           *string   `json:"status,omitempty"`
	ContactEmail     *string   `json:"contact_email,omitempty"`
	EscalationEmails *[]string `json:"escalation_emails,omitempty"`
}

type TenantUsageStats struct {
	Tenant          Tenant    `json:"tenant"`
	UsagePercentage float64   `json:"usage_percentage"`
	LastActivity    time.Time `json:"last_activity"`
	TotalMessages   int       `json:"total_messages"`
	TotalEscalations int      `json:"total_escalations"`
}
