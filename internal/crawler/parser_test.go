package crawler

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func TestNormalizeURL(t *testing.T) {
	cases := map[string]string{
		"https://Example.com/Help/":        "https://example.com/Help",
		"https://example.com:443/pricing":  "https://example.com/pricing",
		"http://example.com:80/":           "http://example.com/",
		"https://example.com/docs#install": "https://example.com/docs",
	}

	for in, want := range cases {
		got, err := normalizeURL(in)
		if err != nil {
			t.Fatalf("normalizeURL(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("normalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsURLAllowedFiltersAssetsAndForeignDomains(t *testing.T) {
	cfg := CrawlConfig{}
	domains := []string{"example.com"}

	if !isURLAllowed("https://example.com/help/billing", cfg, domains) {
		t.Error("expected help page on allowed domain to pass")
	}
	if !isURLAllowed("https://www.example.com/faq", cfg, domains) {
		t.Error("expected www subdomain to pass")
	}
	if isURLAllowed("https://other.com/help", cfg, domains) {
		t.Error("expected foreign domain to be rejected")
	}
	if isURLAllowed("https://example.com/logo.png", cfg, domains) {
		t.Error("expected image asset to be rejected")
	}
	if isURLAllowed("https://example.com/wp-admin/options.php", cfg, domains) {
		t.Error("expected admin path to be rejected")
	}
}

func TestExtractFAQsFromJSONLD(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
	{"@type":"FAQPage","mainEntity":[
		{"@type":"Question","name":"How do I reset my password?",
		 "acceptedAnswer":{"@type":"Answer","text":"Use the forgot password link on the login page."}},
		{"@type":"Question","name":"Do you offer refunds?",
		 "acceptedAnswer":{"@type":"Answer","text":"Yes, within 30 days of purchase."}}
	]}</script></head><body></body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}

	faqs := ExtractFAQs(doc, "https://example.com/faq")
	if len(faqs) != 2 {
		t.Fatalf("expected 2 FAQ entries, got %d", len(faqs))
	}
	if faqs[0].Question != "How do I reset my password?" {
		t.Errorf("unexpected first question: %q", faqs[0].Question)
	}
	if faqs[1].Answer != "Yes, within 30 days of purchase." {
		t.Errorf("unexpected second answer: %q", faqs[1].Answer)
	}
	if faqs[0].SourceURL != "https://example.com/faq" {
		t.Errorf("source URL not recorded: %q", faqs[0].SourceURL)
	}
}

func TestExtractFAQsFromDefinitionList(t *testing.T) {
	html := `<html><body><dl>
		<dt>What browsers are supported?</dt><dd>All evergreen browsers.</dd>
		<dt>Is there an API?</dt><dd>Yes, REST with token auth.</dd>
	</dl></body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}

	faqs := ExtractFAQs(doc, "https://example.com/help")
	if len(faqs) != 2 {
		t.Fatalf("expected 2 FAQ entries, got %d", len(faqs))
	}
	if faqs[1].Question != "Is there an API?" {
		t.Errorf("unexpected question: %q", faqs[1].Question)
	}
}

func TestExtractFAQsDeduplicates(t *testing.T) {
	html := `<html><body>
		<dl><dt>Do you offer refunds?</dt><dd>Yes.</dd></dl>
		<details><summary>Do you offer refunds?</summary><p>Within 30 days.</p></details>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}

	faqs := ExtractFAQs(doc, "")
	if len(faqs) != 1 {
		t.Fatalf("expected duplicate question to be dropped, got %d entries", len(faqs))
	}
}

func TestExtractMainContentStripsChrome(t *testing.T) {
	html := `<html><body>
		<nav>Home About Pricing Contact Blog Careers</nav>
		<main>` + strings.Repeat("Billing works on a monthly cycle. ", 10) + `</main>
		<footer>Copyright</footer>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}

	content := ExtractMainContent(doc.Selection)
	if !strings.Contains(content, "Billing works on a monthly cycle.") {
		t.Error("expected main content to be kept")
	}
	if strings.Contains(content, "Careers") {
		t.Error("expected nav content to be stripped")
	}
}
