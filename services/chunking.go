package services

import (
	"regexp"
	"strings"
)

// Chunker splits extracted document text into embedding-sized pieces.
// Splitting is deterministic: the same text always yields the same
// chunks, so re-ingesting unchanged content produces identical rows.
type Chunker struct {
	maxChunkSize   int
	overlap        int
	minChunkSize   int
	sentenceRegex  *regexp.Regexp
	paragraphRegex *regexp.Regexp
}

func NewChunker(maxChunkSize, overlap int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = 900
	}
	if overlap < 0 || overlap >= maxChunkSize {
		overlap = maxChunkSize / 6
	}
	return &Chunker{
		maxChunkSize:   maxChunkSize,
		overlap:        overlap,
		minChunkSize:   maxChunkSize / 4,
		sentenceRegex:  regexp.MustCompile(`[.!?]+[\s]+`),
		paragraphRegex: regexp.MustCompile(`\n\n+`),
	}
}

// ChunkPiece is one split of a document before embedding.
type ChunkPiece struct {
	Order         int
	Text          string
	TokenEstimate int
}

// Split chunks text along paragraph boundaries, carrying a sentence
// overlap between consecutive chunks so answers spanning a boundary
// stay retrievable.
func (c *Chunker) Split(text string) []ChunkPiece {
	paragraphs := nonEmpty(c.paragraphRegex.Split(text, -1))
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []ChunkPiece
	current := new(strings.Builder)
	currentSize := 0

	flush := func() {
		if current.Len() == 0 {
			return
		}
		body := strings.TrimSpace(current.String())
		chunks = append(chunks, ChunkPiece{
			Order:         len(chunks),
			Text:          body,
			TokenEstimate: estimateTokens(body),
		})
		current = new(strings.Builder)
		currentSize = 0
	}

	for _, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		// Oversized single paragraphs are split on sentence boundaries
		if len(paragraph) > c.maxChunkSize {
			flush()
			for _, piece := range c.splitLongParagraph(paragraph) {
				chunks = append(chunks, ChunkPiece{
					Order:         len(chunks),
					Text:          piece,
					TokenEstimate: estimateTokens(piece),
				})
			}
			continue
		}

		if currentSize+len(paragraph) > c.maxChunkSize && currentSize >= c.minChunkSize {
			overlapText := ""
			if c.overlap > 0 {
				overlapText = c.tailSentences(current.String(), c.overlap)
			}
			flush()
			if overlapText != "" {
				current.WriteString(overlapText)
				currentSize = len(overlapText)
			}
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
			currentSize += 2
		}
		current.WriteString(paragraph)
		currentSize += len(paragraph)
	}

	flush()
	return chunks
}

// splitLongParagraph breaks a paragraph that exceeds the chunk size on
// sentence boundaries, hard-splitting only as a last resort.
func (c *Chunker) splitLongParagraph(paragraph string) []string {
	sentences := nonEmpty(c.sentenceRegex.Split(paragraph, -1))
	if len(sentences) <= 1 {
		return hardSplit(paragraph, c.maxChunkSize)
	}

	var pieces []string
	current := new(strings.Builder)
	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+len(sentence) > c.maxChunkSize {
			pieces = append(pieces, strings.TrimSpace(current.String()))
			current = new(strings.Builder)
		}
		if current.Len() > 0 {
			current.WriteString(". ")
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		pieces = append(pieces, strings.TrimSpace(current.String()))
	}
	return pieces
}

// tailSentences returns the last sentences of text, up to roughly
// maxLen characters.
func (c *Chunker) tailSentences(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxLen {
		return text
	}

	sentences := nonEmpty(c.sentenceRegex.Split(text, -1))
	if len(sentences) == 0 {
		return text[len(text)-maxLen:]
	}

	var tail []string
	size := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		s := strings.TrimSpace(sentences[i])
		if size+len(s) > maxLen && len(tail) > 0 {
			break
		}
		tail = append([]string{s}, tail...)
		size += len(s) + 2
	}
	return strings.Join(tail, ". ")
}

func hardSplit(text string, size int) []string {
	var pieces []string
	for len(text) > size {
		pieces = append(pieces, text[:size])
		text = text[size:]
	}
	if len(text) > 0 {
		pieces = append(pieces, text)
	}
	return pieces
}

// estimateTokens uses the ~4 characters per token heuristic.
func estimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

func nonEmpty(slice []string) []string {
	result := make([]string, 0, len(slice))
	for _, s := range slice {
		if strings.TrimSpace(s) != "" {
			result = append(result, s)
		}
	}
	return result
}
