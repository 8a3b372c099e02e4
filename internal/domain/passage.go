package domain

import (
	"fmt"
	"strings"
)

// Passage is one indexed unit of a document: the searchable text plus the
// denormalized attributes used for filtering.
type Passage struct {
	ID      string
	DocID   string
	Title   string
	Heading string
	Text    string

	// ParentText is the surrounding context of the passage, when the chunker
	// stored one. Empty means the passage is its own context.
	ParentText string
	Year       int
	Category   string
	Embedding  []float32
}

// ContextText returns the surrounding-context text, falling back to the
// searchable text when no parent text was stored.
func (p *Passage) ContextText() string {
	if p.ParentText != "" {
		return p.ParentText
	}
	return p.Text
}

// RerankText combines title, heading and body into the text scored by the
// pairwise relevance model.
func (p *Passage) RerankText() string {
	return strings.TrimSpace(fmt.Sprintf("%s\n\n%s\n\n%s", p.Title, p.Heading, p.Text))
}
