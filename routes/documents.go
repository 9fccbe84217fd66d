package routes

import (
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wize-works/helpNINJA-sub004/internal/config"
	"github.com/wize-works/helpNINJA-sub004/internal/database"
	"github.com/wize-works/helpNINJA-sub004/internal/logger"
	"github.com/wize-works/helpNINJA-sub004/internal/queue"
	"github.com/wize-works/helpNINJA-sub004/middleware"
	"github.com/wize-works/helpNINJA-sub004/models"
	"github.com/wize-works/helpNINJA-sub004/services"
	"github.com/wize-works/helpNINJA-sub004/utils"
)

// DocumentDeps bundles the stores and queue client the document
// handlers need.
type DocumentDeps struct {
	Config    *config.Config
	Documents *database.DocumentStore
	CrawlJobs *database.CrawlJobStore
	Extractor *services.Extractor
	Queue     *queue.Client
}

func SetupDocumentRoutes(router *gin.Engine, deps DocumentDeps, rdb *redis.Client) {
	authMW := middleware.NewAuthMiddleware(deps.Config, rdb)
	roles := middleware.NewRoleMiddleware()

	group := router.Group("/documents")
	group.Use(authMW.RequireAuth(), roles.OperatorGuard())

	// Multipart upload. The extracted text is stored on the document
	// row; chunking and embedding happen in the worker.
	group.POST("", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "File is required", nil)
			return
		}
		if fileHeader.Size > deps.Config.MaxFileSize {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge, "file_too_large",
				"File exceeds the maximum allowed size", gin.H{"max_bytes": deps.Config.MaxFileSize})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read upload", nil)
			return
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to read upload", nil)
			return
		}

		extraction, err := deps.Extractor.Extract(fileHeader.Filename, fileHeader.Header.Get("Content-Type"), content)
		if err != nil {
			utils.RespondWithError(c, http.StatusUnprocessableEntity, "extraction_failed",
				"Could not extract text from the file", gin.H{"error": err.Error()})
			return
		}

		title := c.PostForm("title")
		if title == "" {
			title = extraction.Title
		}
		if title == "" {
			title = fileHeader.Filename
		}

		doc := &models.Document{
			TenantID:    tenantID,
			SiteID:      c.PostForm("site_id"),
			Source:      models.DocumentSourceUpload,
			Title:       title,
			Filename:    fileHeader.Filename,
			Content:     extraction.Text,
			ContentHash: services.ContentHash(extraction.Text),
			Status:      models.DocumentStatusPending,
		}
		if err := deps.Documents.Insert(c.Request.Context(), doc); err != nil {
			utils.RespondWithInternalError(c, "Failed to store document", nil)
			return
		}

		if err := deps.Queue.EnqueueIngestDocument(tenantID.Hex(), doc.ID.Hex()); err != nil {
			logger.Error("Failed to enqueue ingestion", "document_id", doc.ID.Hex(), "error", err)
			utils.RespondWithInternalError(c, "Document stored but ingestion could not be queued", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"document":   doc,
			"word_count": extraction.WordCount,
			"message":    "Document queued for ingestion",
		})
	})

	// Crawl jobs live under their own prefix so the document ID routes
	// keep a clean wildcard.
	crawlGroup := router.Group("/crawl")
	crawlGroup.Use(authMW.RequireAuth(), roles.OperatorGuard())

	// Start a site crawl.
	crawlGroup.POST("", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}

		var req struct {
			URL         string `json:"url" binding:"required,url"`
			SiteID      string `json:"site_id,omitempty"`
			MaxPages    int    `json:"max_pages,omitempty"`
			FollowLinks *bool  `json:"follow_links,omitempty"`
			RenderJS    bool   `json:"render_js,omitempty"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}
		if parsed, err := url.Parse(req.URL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			utils.RespondWithBadRequest(c, "URL must be http or https", nil)
			return
		}

		followLinks := true
		if req.FollowLinks != nil {
			followLinks = *req.FollowLinks
		}
		maxPages := req.MaxPages
		if maxPages <= 0 || maxPages > deps.Config.CrawlMaxPages {
			maxPages = deps.Config.CrawlMaxPages
		}

		job := &models.CrawlJob{
			TenantID:    tenantID,
			SiteID:      req.SiteID,
			URL:         req.URL,
			MaxPages:    maxPages,
			FollowLinks: followLinks,
			RenderJS:    req.RenderJS,
		}
		if err := deps.CrawlJobs.Insert(c.Request.Context(), job); err != nil {
			utils.RespondWithInternalError(c, "Failed to create crawl job", nil)
			return
		}

		if err := deps.Queue.EnqueueCrawlSite(tenantID.Hex(), req.SiteID, job.ID.Hex(), req.URL); err != nil {
			logger.Error("Failed to enqueue crawl", "job_id", job.ID.Hex(), "error", err)
			utils.RespondWithInternalError(c, "Crawl job stored but could not be queued", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"job": job, "message": "Crawl queued"})
	})

	crawlGroup.GET("/:id", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}
		jobID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid job ID", nil)
			return
		}

		job, err := deps.CrawlJobs.Get(c.Request.Context(), tenantID, jobID)
		if err != nil {
			utils.RespondWithNotFound(c, "Crawl job not found")
			return
		}
		c.JSON(http.StatusOK, job)
	})

	crawlGroup.GET("", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}

		jobs, err := deps.CrawlJobs.List(c.Request.Context(), tenantID, 50)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list crawl jobs", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
	})

	group.GET("", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}

		documents, err := deps.Documents.List(c.Request.Context(), tenantID)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to list documents", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": documents, "count": len(documents)})
	})

	group.GET("/:id", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}
		docID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid document ID", nil)
			return
		}

		doc, err := deps.Documents.Get(c.Request.Context(), tenantID, docID)
		if err != nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		c.JSON(http.StatusOK, doc)
	})

	// Re-run chunking and embedding from the stored text. Used after an
	// embedding model change or a failed ingestion.
	group.POST("/:id/reingest", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}
		docID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid document ID", nil)
			return
		}

		doc, err := deps.Documents.Get(c.Request.Context(), tenantID, docID)
		if err != nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		if doc.Content == "" {
			utils.RespondWithError(c, http.StatusConflict, "no_content",
				"Document has no stored text to re-ingest", nil)
			return
		}

		if err := deps.Documents.SetStatus(c.Request.Context(), docID, models.DocumentStatusPending, ""); err != nil {
			utils.RespondWithInternalError(c, "Failed to reset document status", nil)
			return
		}
		if err := deps.Queue.EnqueueIngestDocument(tenantID.Hex(), docID.Hex()); err != nil {
			logger.Error("Failed to enqueue re-ingestion", "document_id", docID.Hex(), "error", err)
			utils.RespondWithInternalError(c, "Failed to queue re-ingestion", nil)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "Document queued for re-ingestion"})
	})

	// Delete removes the document and its chunks.
	group.DELETE("/:id", func(c *gin.Context) {
		tenantID, ok := requestTenantID(c)
		if !ok {
			return
		}
		docID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.RespondWithBadRequest(c, "Invalid document ID", nil)
			return
		}

		if err := deps.Documents.Delete(c.Request.Context(), tenantID, docID); err != nil {
			utils.RespondWithNotFound(c, "Document not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
	})
}
