package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		filename string
		mimeType string
		want     string
	}{
		{"handbook.pdf", "application/pdf", "pdf"},
		{"handbook.pdf", "", "pdf"},
		{"prices.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"},
		{"prices.xlsm", "", "xlsx"},
		{"faq.html", "text/html; charset=utf-8", "html"},
		{"faq.htm", "", "html"},
		{"notes.md", "text/markdown", "text"},
		{"notes.txt", "", "text"},
		{"upload.bin", "application/octet-stream", ""},
		{"upload", "", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, detectFormat(tc.filename, tc.mimeType), "%s / %s", tc.filename, tc.mimeType)
	}
}

func TestExtractPlainText(t *testing.T) {
	e := NewExtractor(1 << 20)
	content := []byte("Our refund policy allows returns within 30 days of purchase.\nContact support for details.")

	result, err := e.Extract("policy.txt", "text/plain", content)
	require.NoError(t, err)
	assert.Equal(t, "policy", result.Title, "title falls back to the filename stem")
	assert.Equal(t, 14, result.WordCount)
	assert.Greater(t, result.QualityScore, 0.5)
}

func TestExtractHTMLUsesDocumentTitle(t *testing.T) {
	e := NewExtractor(1 << 20)
	html := `<html><head><title>Shipping FAQ</title></head><body>
		<nav>Home | Products</nav>
		<main><p>Standard shipping takes three to five business days within the continental US.</p></main>
		</body></html>`

	result, err := e.Extract("faq.html", "text/html", []byte(html))
	require.NoError(t, err)
	assert.Equal(t, "Shipping FAQ", result.Title)
	assert.Contains(t, result.Text, "Standard shipping")
	assert.NotContains(t, result.Text, "Home | Products", "navigation chrome is stripped")
}

func TestExtractRejectsOversizedFile(t *testing.T) {
	e := NewExtractor(16)
	_, err := e.Extract("big.txt", "text/plain", []byte(strings.Repeat("a", 64)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "size limit")
}

func TestExtractRejectsEmptyAndUnsupported(t *testing.T) {
	e := NewExtractor(1 << 20)

	_, err := e.Extract("empty.txt", "text/plain", nil)
	assert.Error(t, err)

	_, err = e.Extract("image.png", "image/png", []byte{0x89, 0x50, 0x4e, 0x47})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestEvaluateTextQuality(t *testing.T) {
	clean := "The quick brown fox jumps over the lazy dog near the riverbank."
	assert.Greater(t, evaluateTextQuality(clean), 0.8)

	garbled := strings.Repeat("�", 40)
	assert.Less(t, evaluateTextQuality(garbled), 0.2)

	assert.Equal(t, 0.1, evaluateTextQuality("hi"))
}
