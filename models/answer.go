package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AnswerStatusActive   = "active"
	AnswerStatusInactive = "inactive"
)

// CuratedAnswer is a human-authored question/answer pair. Only active
// answers participate in resolution; scoping is tenant-wide unless a
// site id is set.
type CuratedAnswer struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  primitive.ObjectID `bson:"tenant_id" json:"tenant_id"`
	SiteID    string             `bson:"site_id,omitempty" json:"site_id,omitempty"`
	Question  string             `bson:"question" json:"question" binding:"required,min=3,max=500"`
	Answer    string             `bson:"answer" json:"answer" binding:"required,min=1,max=5000"`
	Priority  int                `bson:"priority" json:"priority"`
	Keywords  []string           `bson:"keywords,omitempty" json:"keywords,omitempty"`
	Tags      []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	Status    string             `bson:"status" json:"status"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

type CreateAnswerRequest struct {
	Question string   `json:"question" binding:"required,min=3,max=500"`
	Answer   string   `json:"answer" binding:"required,min=1,max=5000"`
	Priority int      `json:"priority"`
	Keywords []string `json:"keywords,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	SiteID   string   `json:"site_id,omitempty"`
	Status   string   `json:"status,omitempty" binding:"omitempty,oneof=active inactive"`
}

type UpdateAnswerRequest struct {
	Question *string   `json:"question,omitempty" binding:"omitempty,min=3,max=500"`
	Answer   *string   `json:"answer,omitempty" binding:"omitempty,min=1,max=5000"`
	Priority *int      `json:"priority,omitempty"`
	Keywords *[]string `json:"keywords,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	SiteID   *string   `json:"site_id,omitempty"`
	Status   *string   `json:"status,omitempty" binding:"omitempty,oneof=active inactive"`
}
