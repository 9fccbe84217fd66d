package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/chromedp/chromedp"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"

	"github.com/wize-works/helpNINJA-sub004/internal/logger"
	"github.com/wize-works/helpNINJA-sub004/models"
)

var httpTransport = &http.Transport{
	DisableCompression: false, // enables gzip decompression
}

const defaultUserAgent = "helpNINJA-crawler/1.0"

// CrawlConfig holds configuration for one crawl job.
type CrawlConfig struct {
	URL            string
	MaxPages       int
	MaxDepth       int
	AllowedDomains []string
	AllowedPaths   []string
	FollowLinks    bool
	UserAgent      string
	Timeout        time.Duration
	// Optional JS rendering for the initial page
	RenderJS         bool
	RenderTimeout    time.Duration
	WaitSelector     string
	NetworkIdleAfter time.Duration
}

// CrawlResult holds the outcome of a crawl.
type CrawlResult struct {
	URL          string
	Title        string
	Pages        []models.CrawledPage
	FAQs         []models.FAQEntry
	Error        error
	PagesFound   int
	PagesCrawled int
}

// normalizeURL normalizes a URL to a canonical form for duplicate detection.
func normalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	parsed.Fragment = ""

	path := parsed.Path
	if path == "" {
		path = "/"
	} else if path != "/" {
		path = strings.TrimSuffix(path, "/")
		if path == "" {
			path = "/"
		}
	}
	parsed.Path = path

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	// Remove default ports
	if parsed.Port() == "80" && parsed.Scheme == "http" {
		host, _, _ := strings.Cut(parsed.Host, ":")
		parsed.Host = host
	}
	if parsed.Port() == "443" && parsed.Scheme == "https" {
		host, _, _ := strings.Cut(parsed.Host, ":")
		parsed.Host = host
	}

	return parsed.String(), nil
}

// CrawlURL crawls a help site starting at cfg.URL and returns the pages
// whose text content is worth ingesting.
func CrawlURL(cfg CrawlConfig) (*CrawlResult, error) {
	result := &CrawlResult{
		URL:   cfg.URL,
		Pages: []models.CrawledPage{},
	}

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if parsedURL.Scheme == "" {
		parsedURL.Scheme = "https"
		cfg.URL = parsedURL.String()
	}

	// Normalize before visiting anything so duplicate detection is
	// consistent between the queue and colly's internal cache.
	normalizedStartURL, err := normalizeURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL format: %w", err)
	}

	allowedDomains := cfg.AllowedDomains
	if len(allowedDomains) == 0 {
		hostname := parsedURL.Hostname()
		if hostname != "" {
			hostnameClean := strings.TrimPrefix(strings.ToLower(hostname), "www.")
			allowedDomains = []string{hostnameClean, "www." + hostnameClean}
		}
	}

	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}

	options := []colly.CollectorOption{
		colly.Async(true),
		colly.MaxDepth(maxDepth),
	}
	if len(allowedDomains) > 0 {
		options = append(options, colly.AllowedDomains(allowedDomains...))
	}

	// Fresh collector per crawl: colly caches visited URLs per
	// collector, and a shared one would skip re-crawled pages.
	c := colly.NewCollector(options...)
	c.WithTransport(httpTransport)

	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	} else {
		c.SetRequestTimeout(60 * time.Second)
	}

	c.UserAgent = cfg.UserAgent
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}

	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 2,
		Delay:       1 * time.Second,
		RandomDelay: 500 * time.Millisecond,
	})

	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 200
	}

	var (
		pagesMu sync.Mutex
		pages   []models.CrawledPage
	)

	processed := sync.Map{}
	queued := sync.Map{}

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br")
	})

	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml+xml") {
			return
		}

		// Go's transport decompresses gzip, but not brotli
		contentEncoding := r.Headers.Get("Content-Encoding")
		var bodyReader io.Reader = bytes.NewReader(r.Body)
		if strings.Contains(contentEncoding, "br") {
			brReader := brotli.NewReader(bodyReader)
			decompressed, err := io.ReadAll(brReader)
			if err == nil {
				r.Body = decompressed
				bodyReader = bytes.NewReader(decompressed)
			}
		}

		// Decode charset to UTF-8
		if len(r.Body) > 0 {
			utf8Reader, err := charset.NewReader(bodyReader, contentType)
			if err == nil {
				decodedBody, readErr := io.ReadAll(utf8Reader)
				if readErr == nil && len(decodedBody) > 0 {
					r.Body = decodedBody
				}
			}
		}

		result.PagesFound++
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		pagesMu.Lock()
		defer pagesMu.Unlock()

		if len(pages) >= maxPages {
			return
		}

		normalizedURL, err := normalizeURL(e.Request.URL.String())
		if err != nil {
			return
		}

		if _, exists := processed.LoadOrStore(normalizedURL, true); exists {
			return
		}

		doc := e.DOM
		title := strings.TrimSpace(doc.Find("title").Text())
		content := ExtractMainContent(doc)

		if len(content) < 50 {
			content = strings.TrimSpace(doc.Find("body").Text())
		}

		wordCount := len(strings.Fields(content))
		if wordCount < 10 {
			// Navigation-only and stub pages are not worth a chunk
			return
		}

		page := models.CrawledPage{
			URL:        normalizedURL,
			Title:      title,
			Content:    content,
			CrawledAt:  time.Now(),
			StatusCode: e.Response.StatusCode,
			WordCount:  wordCount,
		}

		pages = append(pages, page)

		if len(pages) == 1 {
			result.Title = title
		}

		// FAQ markup on help pages becomes suggested curated answers
		if len(e.DOM.Nodes) > 0 {
			if faqDoc := goquery.NewDocumentFromNode(e.DOM.Nodes[0]); faqDoc != nil {
				result.FAQs = append(result.FAQs, ExtractFAQs(faqDoc, normalizedURL)...)
			}
		}

		if cfg.FollowLinks && len(pages) < maxPages {
			linkCount := 0
			doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
				if len(pages) >= maxPages || linkCount >= 30 {
					return
				}

				href, exists := s.Attr("href")
				if !exists || href == "" {
					return
				}

				hrefLower := strings.ToLower(href)
				if strings.HasPrefix(href, "#") ||
					strings.HasPrefix(hrefLower, "javascript:") ||
					strings.HasPrefix(hrefLower, "mailto:") ||
					strings.HasPrefix(hrefLower, "tel:") {
					return
				}

				absoluteURL := e.Request.AbsoluteURL(href)
				if absoluteURL == "" {
					return
				}

				normalized, err := normalizeURL(absoluteURL)
				if err != nil {
					return
				}

				if _, queuedExists := queued.LoadOrStore(normalized, true); queuedExists {
					return
				}
				if _, processedExists := processed.Load(normalized); processedExists {
					return
				}

				if isURLAllowed(normalized, cfg, allowedDomains) {
					linkCount++
					c.Visit(normalized)
				}
			})
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		errMsg := err.Error()
		normalizedErrURL, _ := normalizeURL(r.Request.URL.String())
		statusCode := r.StatusCode

		// "already visited" is colly's duplicate detection, not a failure
		if strings.Contains(errMsg, "already visited") {
			return
		}

		logger.Warn("Crawl request failed", "url", r.Request.URL.String(), "status", statusCode, "error", errMsg)

		// Only the start URL failing is fatal; broken inner links are
		// recorded and skipped.
		if normalizedErrURL != normalizedStartURL {
			return
		}

		pagesMu.Lock()
		hasPages := len(pages) > 0
		pagesMu.Unlock()
		if hasPages || result.Error != nil {
			return
		}

		switch {
		case statusCode == 403:
			result.Error = fmt.Errorf("access forbidden (403): the site blocked the crawler")
		case statusCode == 429:
			result.Error = fmt.Errorf("rate limited (429): too many requests, try again later")
		case statusCode >= 500:
			result.Error = fmt.Errorf("server error (%d) from the target site", statusCode)
		case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "no such host"):
			result.Error = fmt.Errorf("network error: %v", err)
		default:
			result.Error = fmt.Errorf("failed to crawl %s: %w", normalizedStartURL, err)
		}
	})

	queued.Store(normalizedStartURL, true)

	// Optionally prerender the initial page for JS-heavy help centers
	if cfg.RenderJS {
		renderTimeout := cfg.RenderTimeout
		if renderTimeout <= 0 {
			renderTimeout = 45 * time.Second
		}
		networkIdle := cfg.NetworkIdleAfter
		if networkIdle <= 0 {
			networkIdle = 1200 * time.Millisecond
		}
		html, renderErr := renderPageHTML(normalizedStartURL, renderTimeout, cfg.WaitSelector, networkIdle)
		if renderErr == nil && html != "" {
			doc, parseErr := goquery.NewDocumentFromReader(strings.NewReader(html))
			if parseErr == nil {
				title := strings.TrimSpace(doc.Find("title").Text())
				content := ExtractMainContent(doc.Selection)
				wordCount := len(strings.Fields(content))
				if wordCount >= 10 {
					page := models.CrawledPage{
						URL:        normalizedStartURL,
						Title:      title,
						Content:    content,
						CrawledAt:  time.Now(),
						StatusCode: 200,
						WordCount:  wordCount,
					}
					pagesMu.Lock()
					pages = append(pages, page)
					pagesMu.Unlock()
					result.Title = title
					processed.Store(normalizedStartURL, true)
				}
			}
		} else if renderErr != nil {
			logger.Warn("JS render failed, falling back to plain fetch", "url", normalizedStartURL, "error", renderErr)
		}
	}

	logger.Info("Starting crawl", "url", normalizedStartURL, "max_pages", maxPages, "max_depth", maxDepth)
	if err := c.Visit(normalizedStartURL); err != nil && !strings.Contains(err.Error(), "already visited") {
		return nil, fmt.Errorf("failed to start crawl: %w", err)
	}

	c.Wait()

	pagesMu.Lock()
	result.Pages = pages
	result.PagesCrawled = len(pages)
	pagesMu.Unlock()

	if result.PagesCrawled == 0 {
		if result.Error != nil {
			return nil, result.Error
		}
		return nil, fmt.Errorf("no crawlable content found at %s", normalizedStartURL)
	}

	result.Error = nil
	return result, nil
}

// renderPageHTML launches a headless browser, waits for readiness and
// network idle, then returns the rendered HTML.
func renderPageHTML(urlStr string, timeout time.Duration, waitSelector string, networkIdleAfter time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(defaultUserAgent),
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var html string

	if err := chromedp.Run(browserCtx, chromedp.Navigate(urlStr)); err != nil {
		return "", err
	}

	// Ready check and selector wait soft-fail: a partial render still
	// beats no render.
	{
		stepCtx, cancelStep := context.WithTimeout(browserCtx, 10*time.Second)
		defer cancelStep()
		_ = chromedp.Run(stepCtx, chromedp.WaitReady("body", chromedp.ByQuery))
	}

	if waitSelector != "" {
		stepCtx, cancelStep := context.WithTimeout(browserCtx, 15*time.Second)
		defer cancelStep()
		_ = chromedp.Run(stepCtx, chromedp.WaitVisible(waitSelector, chromedp.ByQuery))
	}

	if networkIdleAfter > 0 {
		idleCap := networkIdleAfter
		if idleCap > 5*time.Second {
			idleCap = 5 * time.Second
		}
		stepCtx, cancelStep := context.WithTimeout(browserCtx, idleCap+1*time.Second)
		defer cancelStep()
		_ = chromedp.Run(stepCtx, waitForNetworkIdle(idleCap))
	}

	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// waitForNetworkIdle waits until no network requests have fired for the
// given duration.
func waitForNetworkIdle(d time.Duration) chromedp.ActionFunc {
	js := `(function(waitMs){
      return new Promise((resolve)=>{
        if (!('PerformanceObserver' in window)) {
          setTimeout(resolve, waitMs);
          return;
        }
        let last = Date.now();
        const obs = new PerformanceObserver(()=>{ last = Date.now(); });
        try { obs.observe({entryTypes:['resource','navigation']}); } catch(e) {}
        const tick = () => {
          if (Date.now()-last >= waitMs) { try { obs.disconnect(); } catch(e){} resolve(); return; }
          setTimeout(tick, 100);
        };
        tick();
      });
    })(%d);`
	return func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(js, int(d.Milliseconds())), nil))
	}
}

// isURLAllowed checks whether a discovered link should be followed.
func isURLAllowed(urlStr string, cfg CrawlConfig, allowedDomains []string) bool {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	if len(allowedDomains) > 0 {
		hostname := strings.ToLower(parsed.Hostname())
		domainAllowed := false
		for _, allowedDomain := range allowedDomains {
			allowedDomain = strings.ToLower(strings.TrimPrefix(allowedDomain, "www."))
			hostnameClean := strings.TrimPrefix(hostname, "www.")
			if hostnameClean == allowedDomain || strings.HasSuffix(hostnameClean, "."+allowedDomain) {
				domainAllowed = true
				break
			}
		}
		if !domainAllowed {
			return false
		}
	}

	if len(cfg.AllowedPaths) > 0 {
		pathAllowed := false
		for _, allowedPath := range cfg.AllowedPaths {
			if strings.HasPrefix(parsed.Path, allowedPath) {
				pathAllowed = true
				break
			}
		}
		if !pathAllowed {
			return false
		}
	}

	// Skip assets, feeds and admin pages
	excludedPatterns := []string{
		"/wp-json/",
		"/api/",
		"/ajax/",
		".pdf",
		".jpg",
		".jpeg",
		".png",
		".gif",
		".svg",
		".css",
		".js",
		".xml",
		"/feed/",
		"/rss/",
		"/atom/",
		"/search?",
		"/?s=",
		"/wp-admin/",
		"/wp-includes/",
	}

	pathLower := strings.ToLower(parsed.Path)
	queryLower := strings.ToLower(parsed.RawQuery)

	for _, pattern := range excludedPatterns {
		if strings.Contains(pathLower, pattern) || strings.Contains(queryLower, pattern) {
			return false
		}
	}

	return true
}
