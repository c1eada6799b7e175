// Package textutil prepares article text before it is sent to the analysis service.
package textutil

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// MaxEntityChars bounds text submitted for entity extraction.
	MaxEntityChars = 1500
	// MaxEmbeddingChars bounds text submitted for embeddings.
	MaxEmbeddingChars = 2000
)

var markupTag = regexp.MustCompile(`<[A-Za-z!/][^<>]*>`)

// Plain strips markup and collapses whitespace. Text without a tag-shaped
// sequence is left as is, so a stray '<' survives.
func Plain(text string) string {
	if markupTag.MatchString(text) {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

// Truncate cuts text to at most max characters without splitting a rune.
func Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	count := 0
	for i := range text {
		if count == max {
			return text[:i]
		}
		count++
	}
	return text
}

// Prepare normalises text and truncates it for submission.
func Prepare(text string, max int) string {
	return Truncate(Plain(text), max)
}
