package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wize-works/helpNINJA-sub004/internal/config"
	"github.com/wize-works/helpNINJA-sub004/internal/crawler"
	"github.com/wize-works/helpNINJA-sub004/internal/logger"
	"github.com/wize-works/helpNINJA-sub004/models"
)

// TenantScanner streams tenants for periodic scans and records which
// token alert level has already been mailed.
type TenantScanner interface {
	EachTenant(ctx context.Context, fn func(models.Tenant) error) error
	SetAlertLevel(ctx context.Context, tenantID primitive.ObjectID, level string) error
}

// CrawlJobInserter creates crawl job records for scheduled re-crawls.
type CrawlJobInserter interface {
	Insert(ctx context.Context, job *models.CrawlJob) error
}

// CrawlEnqueuer hands crawl jobs to the background worker.
type CrawlEnqueuer interface {
	EnqueueCrawlSite(tenantID, siteID, jobID, rootURL string) error
}

// CronService owns the recurring jobs: token usage alerts and nightly
// site re-crawls. It runs inside the worker process, not the API.
type CronService struct {
	cfg       *config.Config
	tenants   TenantScanner
	jobs      CrawlJobInserter
	enqueuer  CrawlEnqueuer
	email     EmailSender
	scheduler *crawler.Scheduler
}

func NewCronService(cfg *config.Config, tenants TenantScanner, jobs CrawlJobInserter, enqueuer CrawlEnqueuer, email EmailSender) *CronService {
	return &CronService{
		cfg:       cfg,
		tenants:   tenants,
		jobs:      jobs,
		enqueuer:  enqueuer,
		email:     email,
		scheduler: crawler.NewScheduler(),
	}
}

// Start registers the recurring jobs and begins running them in the
// scheduler's own goroutine. Call Stop to shut down.
func (c *CronService) Start() error {
	if err := c.scheduler.ScheduleJob("token-alerts", c.cfg.TokenAlertCron, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		return c.ScanTokenUsage(ctx)
	}); err != nil {
		return fmt.Errorf("schedule token alert scan: %w", err)
	}

	if err := c.scheduler.ScheduleJob("recrawl", c.cfg.RecrawlCron, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		return c.ScheduleRecrawls(ctx)
	}); err != nil {
		return fmt.Errorf("schedule re-crawl: %w", err)
	}

	c.scheduler.Start()
	logger.Info("Cron service started",
		"token_alert_cron", c.cfg.TokenAlertCron,
		"recrawl_cron", c.cfg.RecrawlCron,
	)
	return nil
}

func (c *CronService) Stop() {
	c.scheduler.Stop()
}

// ScanTokenUsage walks every tenant and mails an alert when usage has
// crossed a threshold it has not been warned about yet. Alerts only
// escalate; the marker is cleared once usage drops back under the warn
// line, so the next crossing alerts again.
func (c *CronService) ScanTokenUsage(ctx context.Context) error {
	return c.tenants.EachTenant(ctx, func(tenant models.Tenant) error {
		if tenant.Status == "inactive" || tenant.Status == "suspended" || tenant.TokenLimit == 0 {
			return nil
		}

		percentUsed := float64(tenant.TokenUsed) / float64(tenant.TokenLimit) * 100

		level := c.alertLevelFor(percentUsed)
		if level == "" {
			if tenant.AlertLevelSent != "" {
				if err := c.tenants.SetAlertLevel(ctx, tenant.ID, ""); err != nil {
					logger.Error("Failed to reset alert level", "tenant_id", tenant.ID.Hex(), "error", err)
				}
			}
			return nil
		}

		if alertRank(level) <= alertRank(tenant.AlertLevelSent) {
			return nil
		}

		data := TokenAlertData{
			TenantName:      tenant.Name,
			UsedTokens:      tenant.TokenUsed,
			TotalTokens:     tenant.TokenLimit,
			RemainingTokens: tenant.TokenLimit - tenant.TokenUsed,
			PercentUsed:     percentUsed,
		}
		if err := c.email.SendTokenAlert(&tenant, level, data); err != nil {
			logger.Error("Failed to send token alert",
				"tenant_id", tenant.ID.Hex(),
				"level", level,
				"error", err,
			)
			return nil
		}

		if err := c.tenants.SetAlertLevel(ctx, tenant.ID, level); err != nil {
			logger.Error("Failed to record alert level", "tenant_id", tenant.ID.Hex(), "error", err)
		}
		logger.Info("Sent token alert", "tenant", tenant.Name, "level", level, "percent_used", percentUsed)
		return nil
	})
}

func (c *CronService) alertLevelFor(percentUsed float64) string {
	switch {
	case percentUsed >= float64(c.cfg.TokenExhaustedPercent):
		return "exhausted"
	case percentUsed >= float64(c.cfg.TokenCriticalPercent):
		return "critical"
	case percentUsed >= float64(c.cfg.TokenWarnPercent):
		return "warning"
	default:
		return ""
	}
}

func alertRank(level string) int {
	switch level {
	case "warning":
		return 1
	case "critical":
		return 2
	case "exhausted":
		return 3
	default:
		return 0
	}
}

// ScheduleRecrawls creates a crawl job for every verified tenant site
// and hands it to the worker. Unchanged pages cost nothing downstream
// because ingestion skips documents whose content hash is stable.
func (c *CronService) ScheduleRecrawls(ctx context.Context) error {
	scheduled := 0
	err := c.tenants.EachTenant(ctx, func(tenant models.Tenant) error {
		if tenant.Status == "inactive" || tenant.Status == "suspended" {
			return nil
		}
		for _, site := range tenant.Sites {
			if !site.Verified {
				continue
			}
			rootURL := "https://" + site.Domain
			job := &models.CrawlJob{
				TenantID:    tenant.ID,
				SiteID:      site.ID,
				URL:         rootURL,
				Status:      "pending",
				FollowLinks: true,
				MaxPages:    c.cfg.CrawlMaxPages,
			}
			if err := c.jobs.Insert(ctx, job); err != nil {
				logger.Error("Failed to create re-crawl job", "tenant_id", tenant.ID.Hex(), "site_id", site.ID, "error", err)
				continue
			}
			if err := c.enqueuer.EnqueueCrawlSite(tenant.ID.Hex(), site.ID, job.ID.Hex(), rootURL); err != nil {
				logger.Error("Failed to enqueue re-crawl", "job_id", job.ID.Hex(), "error", err)
				continue
			}
			scheduled++
		}
		return nil
	})
	if scheduled > 0 {
		logger.Info("Scheduled re-crawls", "count", scheduled)
	}
	return err
}
