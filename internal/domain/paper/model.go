// Package paper defines the paper entity kind: a post with an abstract and
// structured content.
package paper

import (
	"fmt"
	"strings"

	"github.com/perforate-org/arche/internal/domain/post"
)

// Kind is the table and authorship name of papers.
const Kind = "papers"

// Format is the markup of the paper body.
type Format string

const (
	FormatText     Format = "text"
	FormatTex      Format = "tex"
	FormatLatex    Format = "latex"
	FormatTypst    Format = "typst"
	FormatSatysfi  Format = "satysfi"
	FormatPDF      Format = "pdf"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

func (f Format) valid() bool {
	switch f {
	case FormatText, FormatTex, FormatLatex, FormatTypst, FormatSatysfi, FormatPDF, FormatMarkdown, FormatHTML:
		return true
	}
	return false
}

// SourceKind says where the body lives.
type SourceKind string

const (
	SourceRaw     SourceKind = "raw"
	SourceHTTP    SourceKind = "http"
	SourceArweave SourceKind = "arweave"
	SourceIPFS    SourceKind = "ipfs"
)

// Source is either inline bytes or a location on an external store.
type Source struct {
	Kind     SourceKind `json:"kind"`
	Raw      []byte     `json:"raw,omitempty"`
	Location string     `json:"location,omitempty"`
}

// Content is the body of a paper.
type Content struct {
	Format Format `json:"format"`
	Source Source `json:"source"`
}

// Validate checks the format and that the source carries a payload of the right shape.
func (c Content) Validate() error {
	if !c.Format.valid() {
		return fmt.Errorf("%w: unknown format %q", post.ErrInvalidInput, c.Format)
	}
	switch c.Source.Kind {
	case SourceRaw:
		if c.Source.Location != "" {
			return fmt.Errorf("%w: raw source cannot have a location", post.ErrInvalidInput)
		}
	case SourceHTTP, SourceArweave, SourceIPFS:
		if strings.TrimSpace(c.Source.Location) == "" {
			return fmt.Errorf("%w: %s source needs a location", post.ErrInvalidInput, c.Source.Kind)
		}
		if len(c.Source.Raw) > 0 {
			return fmt.Errorf("%w: %s source cannot carry raw bytes", post.ErrInvalidInput, c.Source.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown source %q", post.ErrInvalidInput, c.Source.Kind)
	}
	return nil
}

// Paper is a research-style post.
type Paper struct {
	post.Header
	Abstract string  `json:"abstract"`
	Content  Content `json:"content"`
	post.Metadata
}

// NewDraft returns an unsaved paper. The post service fills in the header.
func NewDraft(title, abstract string, content Content, meta post.Metadata) *Paper {
	return &Paper{
		Header:   post.Header{Title: post.Title(title)},
		Abstract: abstract,
		Content:  content,
		Metadata: meta,
	}
}

// Validate checks content and metadata.
func (p *Paper) Validate() error {
	if err := p.Content.Validate(); err != nil {
		return err
	}
	return p.Metadata.Validate()
}
