package services

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/wize-works/helpNINJA-sub004/internal/crawler"
)

// Extractor turns uploaded files into plain text ready for chunking.
// Format is picked by MIME type first, file extension second.
type Extractor struct {
	maxBytes int64
}

func NewExtractor(maxBytes int64) *Extractor {
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}
	return &Extractor{maxBytes: maxBytes}
}

// ExtractionResult is the plain-text outcome of one file.
type ExtractionResult struct {
	Text         string
	Title        string
	Pages        int
	WordCount    int
	QualityScore float64
}

// Extract dispatches on the detected format and returns plain text.
func (e *Extractor) Extract(filename, mimeType string, content []byte) (*ExtractionResult, error) {
	if int64(len(content)) > e.maxBytes {
		return nil, fmt.Errorf("file exceeds size limit of %d bytes", e.maxBytes)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	var result *ExtractionResult
	var err error

	switch detectFormat(filename, mimeType) {
	case "pdf":
		result, err = e.extractPDF(content)
	case "xlsx":
		result, err = e.extractXLSX(content)
	case "html":
		result, err = e.extractHTML(content)
	case "text":
		result, err = e.extractPlainText(content)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", mimeType)
	}
	if err != nil {
		return nil, err
	}

	result.WordCount = len(strings.Fields(result.Text))
	result.QualityScore = evaluateTextQuality(result.Text)
	if result.QualityScore < 0.2 {
		return nil, fmt.Errorf("extracted text looks corrupted (quality %.2f)", result.QualityScore)
	}
	if result.Title == "" {
		result.Title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	return result, nil
}

func detectFormat(filename, mimeType string) string {
	switch {
	case strings.Contains(mimeType, "pdf"):
		return "pdf"
	case strings.Contains(mimeType, "spreadsheetml"), strings.Contains(mimeType, "ms-excel"):
		return "xlsx"
	case strings.Contains(mimeType, "html"):
		return "html"
	case strings.HasPrefix(mimeType, "text/"):
		return "text"
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "pdf"
	case ".xlsx", ".xlsm":
		return "xlsx"
	case ".html", ".htm":
		return "html"
	case ".txt", ".md", ".markdown":
		return "text"
	}
	return ""
}

func (e *Extractor) extractPDF(content []byte) (*ExtractionResult, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var textBuilder strings.Builder
	pages := reader.NumPage()

	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			// A single unreadable page doesn't sink the document
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n\n")
	}

	extracted := strings.TrimSpace(textBuilder.String())
	if extracted == "" {
		return nil, fmt.Errorf("no text extracted from PDF")
	}

	return &ExtractionResult{Text: extracted, Pages: pages}, nil
}

func (e *Extractor) extractXLSX(content []byte) (*ExtractionResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	var textBuilder strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		textBuilder.WriteString(sheet)
		textBuilder.WriteString("\n")
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " | "))
			if line != "" {
				textBuilder.WriteString(line)
				textBuilder.WriteString("\n")
			}
		}
		textBuilder.WriteString("\n")
	}

	extracted := strings.TrimSpace(textBuilder.String())
	if extracted == "" {
		return nil, fmt.Errorf("no cell content found in spreadsheet")
	}

	return &ExtractionResult{Text: extracted}, nil
}

func (e *Extractor) extractHTML(content []byte) (*ExtractionResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").Text())
	text := crawler.ExtractMainContent(doc.Selection)
	if text == "" {
		return nil, fmt.Errorf("no readable content in HTML")
	}

	return &ExtractionResult{Text: text, Title: title}, nil
}

func (e *Extractor) extractPlainText(content []byte) (*ExtractionResult, error) {
	text := strings.TrimSpace(string(content))
	if text == "" {
		return nil, fmt.Errorf("empty text file")
	}
	return &ExtractionResult{Text: text}, nil
}

// evaluateTextQuality scores extracted text by the share of readable
// characters. Garbled PDF extractions score near zero.
func evaluateTextQuality(text string) float64 {
	text = strings.TrimSpace(text)
	if len(text) < 10 {
		return 0.1
	}

	var alphanumeric, printable, corrupted int
	for _, r := range text {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			alphanumeric++
			printable++
		case r == ' ' || r == '\n' || r == '\t':
			printable++
		case r == '�':
			corrupted++
		case r >= 32 && r <= 126:
			printable++
		case r > 127:
			printable++
		}
	}

	total := len([]rune(text))
	alphanumericRatio := float64(alphanumeric) / float64(total)
	printableRatio := float64(printable) / float64(total)
	corruptedRatio := float64(corrupted) / float64(total)

	score := printableRatio*0.5 + alphanumericRatio*0.5 - corruptedRatio*2.0
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}
