package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wize-works/helpNINJA-sub004/internal/crawler"
	"github.com/wize-works/helpNINJA-sub004/internal/logger"
	"github.com/wize-works/helpNINJA-sub004/models"
)

// CrawlDocumentRepo upserts crawled pages as documents.
type CrawlDocumentRepo interface {
	UpsertCrawled(ctx context.Context, tenantID primitive.ObjectID, siteID string, page models.CrawledPage, contentHash string) (*models.Document, bool, error)
}

// CrawlJobRepo tracks crawl job progress.
type CrawlJobRepo interface {
	StartJob(ctx context.Context, jobID primitive.ObjectID) error
	FinishJob(ctx context.Context, jobID primitive.ObjectID, status string, pagesFound, pagesCrawled int, errMsg string) error
}

// SuggestedAnswerRepo stores FAQ pairs found during a crawl as inactive
// curated answers for the tenant to review.
type SuggestedAnswerRepo interface {
	InsertSuggestions(ctx context.Context, tenantID primitive.ObjectID, siteID string, faqs []models.FAQEntry) (int, error)
}

// IngestEnqueuer queues freshly crawled documents for embedding.
type IngestEnqueuer interface {
	EnqueueIngestDocument(tenantID, documentID string) error
}

// CrawlOptions carries crawler tuning from config.
type CrawlOptions struct {
	MaxPages  int
	MaxDepth  int
	UserAgent string
	RenderJS  bool
}

// CrawlService runs site crawls and feeds the results into ingestion.
type CrawlService struct {
	documents CrawlDocumentRepo
	jobs      CrawlJobRepo
	answers   SuggestedAnswerRepo
	enqueuer  IngestEnqueuer
	opts      CrawlOptions
}

func NewCrawlService(documents CrawlDocumentRepo, jobs CrawlJobRepo, answers SuggestedAnswerRepo, enqueuer IngestEnqueuer, opts CrawlOptions) *CrawlService {
	return &CrawlService{
		documents: documents,
		jobs:      jobs,
		answers:   answers,
		enqueuer:  enqueuer,
		opts:      opts,
	}
}

// CrawlSite crawls rootURL, upserts each content page as a document and
// queues changed documents for re-ingestion. Unchanged pages are left
// alone, so a scheduled re-crawl only embeds what actually moved.
func (s *CrawlService) CrawlSite(ctx context.Context, tenantID, siteID, jobID, rootURL string) error {
	tenantOID, err := primitive.ObjectIDFromHex(tenantID)
	if err != nil {
		return fmt.Errorf("invalid tenant id: %w", err)
	}
	jobOID, err := primitive.ObjectIDFromHex(jobID)
	if err != nil {
		return fmt.Errorf("invalid job id: %w", err)
	}

	if err := s.jobs.StartJob(ctx, jobOID); err != nil {
		return fmt.Errorf("mark job crawling: %w", err)
	}

	result, err := crawler.CrawlURL(crawler.CrawlConfig{
		URL:         rootURL,
		MaxPages:    s.opts.MaxPages,
		MaxDepth:    s.opts.MaxDepth,
		UserAgent:   s.opts.UserAgent,
		FollowLinks: true,
		RenderJS:    s.opts.RenderJS,
		Timeout:     60 * time.Second,
	})
	if err != nil {
		if finishErr := s.jobs.FinishJob(ctx, jobOID, "failed", 0, 0, err.Error()); finishErr != nil {
			logger.Error("Failed to mark crawl job failed", "job_id", jobID, "error", finishErr)
		}
		return fmt.Errorf("crawl %s: %w", rootURL, err)
	}

	queued := 0
	for _, page := range result.Pages {
		doc, changed, err := s.documents.UpsertCrawled(ctx, tenantOID, siteID, page, ContentHash(page.Content))
		if err != nil {
			logger.Error("Failed to store crawled page", "url", page.URL, "error", err)
			continue
		}
		if !changed {
			continue
		}
		if err := s.enqueuer.EnqueueIngestDocument(tenantID, doc.ID.Hex()); err != nil {
			logger.Error("Failed to enqueue ingestion", "document_id", doc.ID.Hex(), "error", err)
			continue
		}
		queued++
	}

	if len(result.FAQs) > 0 {
		inserted, err := s.answers.InsertSuggestions(ctx, tenantOID, siteID, result.FAQs)
		if err != nil {
			logger.Warn("Failed to store FAQ suggestions", "error", err)
		} else if inserted > 0 {
			logger.Info("Stored FAQ suggestions from crawl", "count", inserted, "site_id", siteID)
		}
	}

	if err := s.jobs.FinishJob(ctx, jobOID, "completed", result.PagesFound, result.PagesCrawled, ""); err != nil {
		return fmt.Errorf("mark job completed: %w", err)
	}

	logger.Info("Crawl finished",
		"url", rootURL,
		"pages_crawled", result.PagesCrawled,
		"documents_queued", queued,
	)
	return nil
}
