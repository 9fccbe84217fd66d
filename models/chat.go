package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AnswerSourceCurated  = "curated"
	AnswerSourceRAG      = "rag"
	AnswerSourceFallback = "fallback"
)

// Message is one user turn and its reply inside a conversation.
type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID       primitive.ObjectID `bson:"tenant_id" json:"tenant_id"`
	SiteID         string             `bson:"site_id,omitempty" json:"site_id,omitempty"`
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`
	Message        string             `bson:"message" json:"message"`
	Reply          string             `bson:"reply" json:"reply"`
	AnswerSource   string             `bson:"answer_source" json:"answer_source"` // curated, rag, fallback
	Confidence     float64            `bson:"confidence" json:"confidence"`
	Citations      []Citation         `bson:"citations,omitempty" json:"citations,omitempty"`
	TokenCost      int                `bson:"token_cost" json:"token_cost"`
	UserEmail      string             `bson:"user_email,omitempty" json:"user_email,omitempty"`
	UserName       string             `bson:"user_name,omitempty" json:"user_name,omitempty"`
	UserIP         string             `bson:"user_ip,omitempty" json:"user_ip,omitempty"`
	UserAgent      string             `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
	IsWidget       bool               `bson:"is_widget" json:"is_widget"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`
}

// Citation points a reply back at the source passage it was grounded on.
type Citation struct {
	DocumentID primitive.ObjectID `bson:"document_id" json:"document_id"`
	Title      string             `bson:"title" json:"title"`
	URL        string             `bson:"url,omitempty" json:"url,omitempty"`
	Score      float64            `bson:"score" json:"score"`
}

// Conversation tracks one widget or playground session.
type Conversation struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID     primitive.ObjectID `bson:"tenant_id" json:"tenant_id"`
	SiteID       string             `bson:"site_id,omitempty" json:"site_id,omitempty"`
	SessionKey   string             `bson:"session_key" json:"session_key"`
	UserEmail    string             `bson:"user_email,omitempty" json:"user_email,omitempty"`
	UserName     string             `bson:"user_name,omitempty" json:"user_name,omitempty"`
	MessageCount int                `bson:"message_count" json:"message_count"`
	Escalated    bool               `bson:"escalated" json:"escalated"`
	StartedAt    time.Time          `bson:"started_at" json:"started_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

type ChatRequest struct {
	Message        string `json:"message" binding:"required,min=1,max=2000"`
	ConversationID string `json:"conversation_id,omitempty"`
	SiteID         string `json:"site_id,omitempty"`
	UserEmail      string `json:"user_email,omitempty" binding:"omitempty,email"`
	UserName       string `json:"user_name,omitempty"`
}

type ChatResponse struct {
	Reply          string     `json:"reply"`
	AnswerSource   string     `json:"answer_source"`
	Confidence     float64    `json:"confidence"`
	Citations      []Citation `json:"citations,omitempty"`
	ConversationID string     `json:"conversation_id"`
	TokensUsed     int        `json:"tokens_used"`
	Timestamp      time.Time  `json:"timestamp"`
}

type ConversationHistory struct {
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
	TotalTokens    int       `json:"total_tokens"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
