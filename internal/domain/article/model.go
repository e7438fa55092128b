// Package article defines the article entity kind: a post with a summary
// and a single text body.
package article

import (
	"fmt"
	"unicode/utf8"

	"github.com/perforate-org/arche/internal/domain/post"
)

// Kind is the table and authorship name of articles.
const Kind = "articles"

// MaxSummaryLength is the longest accepted summary, in characters.
const MaxSummaryLength = 1000

// Article is a blog-style post.
type Article struct {
	post.Header
	Summary string `json:"summary"`
	Content string `json:"content"`
	post.Metadata
}

// NewDraft returns an unsaved article. The post service fills in the header.
func NewDraft(title, summary, content string, meta post.Metadata) *Article {
	return &Article{
		Header:   post.Header{Title: post.Title(title)},
		Summary:  summary,
		Content:  content,
		Metadata: meta,
	}
}

// Validate checks the summary length and metadata.
func (a *Article) Validate() error {
	if n := utf8.RuneCountInString(a.Summary); n > MaxSummaryLength {
		return fmt.Errorf("%w: summary has %d characters, max %d", post.ErrInvalidInput, n, MaxSummaryLength)
	}
	return a.Metadata.Validate()
}
