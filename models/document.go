package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DocumentSourceUpload = "upload"
	DocumentSourceCrawl  = "crawl"

	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

// Document is one ingested knowledge source (an uploaded file or a
// crawled page set). Its text lives in the chunks collection; the
// document row tracks provenance and ingestion state.
type Document struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID    primitive.ObjectID `bson:"tenant_id" json:"tenant_id"`
	SiteID      string             `bson:"site_id,omitempty" json:"site_id,omitempty"`
	Source      string             `bson:"source" json:"source"`
	URL         string             `bson:"url,omitempty" json:"url,omitempty"`
	Title       string             `bson:"title" json:"title"`
	Filename    string             `bson:"filename,omitempty" json:"filename,omitempty"`
	Content     string             `bson:"content,omitempty" json:"-"`
	ContentHash string             `bson:"content_hash,omitempty" json:"content_hash,omitempty"`
	Status      string             `bson:"status" json:"status"`
	ChunkCount  int                `bson:"chunk_count" json:"chunk_count"`
	TotalTokens int                `bson:"total_tokens,omitempty" json:"total_tokens,omitempty"`
	Error       string             `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// DocumentChunk is a denormalized slice of a document with its
// precomputed embedding. Kept in its own collection so similarity
// queries can filter on tenant/site/model/dimensions server-side.
//
// EmbeddingModel and Dimensions are persisted per chunk: a query vector
// is only ever compared against chunks whose recorded model and
// dimensionality match it, so vectors from different models can never
// meet in one scoring pass.
type DocumentChunk struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID       primitive.ObjectID `bson:"tenant_id" json:"tenant_id"`
	SiteID         string             `bson:"site_id,omitempty" json:"site_id,omitempty"`
	DocumentID     primitive.ObjectID `bson:"document_id" json:"document_id"`
	Order          int                `bson:"order" json:"order"`
	Text           string             `bson:"text" json:"text"`
	TokenEstimate  int                `bson:"token_estimate" json:"token_estimate"`
	Embedding      []float32          `bson:"embedding,omitempty" json:"-"`
	EmbeddingModel string             `bson:"embedding_model" json:"embedding_model"`
	Dimensions     int                `bson:"dimensions" json:"dimensions"`
	SourceURL      string             `bson:"source_url,omitempty" json:"source_url,omitempty"`
	SourceTitle    string             `bson:"source_title,omitempty" json:"source_title,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// CrawledPage is a single page captured during a site crawl.
type CrawledPage struct {
	URL        string    `bson:"url" json:"url"`
	Title      string    `bson:"title" json:"title"`
	Content    string    `bson:"content" json:"content"`
	CrawledAt  time.Time `bson:"crawled_at" json:"crawled_at"`
	StatusCode int       `bson:"status_code" json:"status_code"`
	WordCount  int       `bson:"word_count,omitempty" json:"word_count,omitempty"`
}

// FAQEntry is a question/answer pair lifted from a crawled page, used
// to suggest curated answers.
type FAQEntry struct {
	Question  string `bson:"question" json:"question"`
	Answer    string `bson:"answer" json:"answer"`
	SourceURL string `bson:"source_url,omitempty" json:"source_url,omitempty"`
}

// CrawlJob tracks one crawl of a tenant site.
type CrawlJob struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID     primitive.ObjectID `bson:"tenant_id" json:"tenant_id"`
	SiteID       string             `bson:"site_id,omitempty" json:"site_id,omitempty"`
	URL          string             `bson:"url" json:"url"`
	Status       string             `bson:"status" json:"status"` // pending, crawling, completed, failed
	PagesFound   int                `bson:"pages_found" json:"pages_found"`
	PagesCrawled int                `bson:"pages_crawled" json:"pages_crawled"`
	MaxPages     int                `bson:"max_pages,omitempty" json:"max_pages,omitempty"`
	FollowLinks  bool               `bson:"follow_links" json:"follow_links"`
	RenderJS     bool               `bson:"render_js,omitempty" json:"render_js,omitempty"`
	Error        string             `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
	CompletedAt  *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}
