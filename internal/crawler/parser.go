package crawler

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wize-works/helpNINJA-sub004/models"
)

// ExtractMainContent pulls the article body out of a page, stripping
// navigation chrome first.
func ExtractMainContent(selection *goquery.Selection) string {
	doc := selection.Clone()

	doc.Find("script, style, nav, footer, header, aside, .nav, .navbar, .footer, .header, .sidebar, .advertisement, .ads, .skip-link").Remove()

	// Semantic containers first, body as last resort
	contentSelectors := []string{
		"main",
		"article",
		"[role='main']",
		".main-content",
		".content",
		"#content",
		".post",
		".entry",
		"body",
	}

	var content strings.Builder
	contentFound := false

	for _, selector := range contentSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) > 100 {
				content.WriteString(text)
				content.WriteString("\n\n")
				contentFound = true
			}
		})

		if contentFound {
			break
		}
	}

	if !contentFound {
		content.WriteString(doc.Find("body").Text())
	}

	return collapseWhitespace(content.String())
}

// ExtractFAQs finds question/answer pairs on a page: JSON-LD FAQPage
// markup first, then definition lists and details/summary blocks.
// These become suggested curated answers for the tenant to review.
func ExtractFAQs(doc *goquery.Document, pageURL string) []models.FAQEntry {
	var faqs []models.FAQEntry
	seen := map[string]bool{}

	add := func(question, answer string) {
		question = strings.TrimSpace(question)
		answer = collapseWhitespace(answer)
		if question == "" || answer == "" {
			return
		}
		key := strings.ToLower(question)
		if seen[key] {
			return
		}
		seen[key] = true
		faqs = append(faqs, models.FAQEntry{
			Question:  question,
			Answer:    answer,
			SourceURL: pageURL,
		})
	}

	// JSON-LD FAQPage schema
	doc.Find("script[type='application/ld+json']").Each(func(_ int, s *goquery.Selection) {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return
		}
		if t, _ := data["@type"].(string); !strings.EqualFold(t, "FAQPage") {
			return
		}
		entities, _ := data["mainEntity"].([]interface{})
		for _, raw := range entities {
			entity, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			question, _ := entity["name"].(string)
			answer := ""
			if accepted, ok := entity["acceptedAnswer"].(map[string]interface{}); ok {
				answer, _ = accepted["text"].(string)
			}
			add(question, answer)
		}
	})

	// <dt>/<dd> definition lists
	doc.Find("dl").Each(func(_ int, dl *goquery.Selection) {
		terms := dl.Find("dt")
		defs := dl.Find("dd")
		if terms.Length() == 0 || terms.Length() != defs.Length() {
			return
		}
		terms.Each(func(i int, dt *goquery.Selection) {
			add(dt.Text(), defs.Eq(i).Text())
		})
	})

	// <details><summary> accordions, common on help centers
	doc.Find("details").Each(func(_ int, details *goquery.Selection) {
		summary := details.Find("summary").First()
		if summary.Length() == 0 {
			return
		}
		question := summary.Text()
		body := details.Clone()
		body.Find("summary").Remove()
		add(question, body.Text())
	})

	return faqs
}

func collapseWhitespace(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
