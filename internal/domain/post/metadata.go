package post

import (
	"fmt"
	"strings"

	"github.com/perforate-org/arche/internal/domain/entityid"
)

// Category classifies an entity. Values outside the known set are kept as-is.
type Category string

const (
	CategoryProgramming     Category = "programming"
	CategorySystemDesign    Category = "system_design"
	CategoryDevOps          Category = "devops"
	CategorySecurity        Category = "security"
	CategoryMachineLearning Category = "machine_learning"
	CategoryBlockchain      Category = "blockchain"
)

// Known reports whether c is one of the predefined categories.
func (c Category) Known() bool {
	switch c {
	case CategoryProgramming, CategorySystemDesign, CategoryDevOps,
		CategorySecurity, CategoryMachineLearning, CategoryBlockchain:
		return true
	}
	return false
}

// CitationKind says what a Citation points at.
type CitationKind string

const (
	CitationEntity CitationKind = "entity"
	CitationURL    CitationKind = "url"
	CitationOther  CitationKind = "other"
)

// Citation is a reference to another entity of the same kind, a URL or free text.
type Citation struct {
	Kind   CitationKind `json:"kind"`
	Target string       `json:"target"`
}

// Validate checks the target matches the kind.
func (c Citation) Validate() error {
	switch c.Kind {
	case CitationEntity:
		if _, err := entityid.Parse(c.Target); err != nil {
			return fmt.Errorf("%w: citation: %w", ErrInvalidInput, err)
		}
	case CitationURL, CitationOther:
		if strings.TrimSpace(c.Target) == "" {
			return fmt.Errorf("%w: empty citation", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown citation kind %q", ErrInvalidInput, c.Kind)
	}
	return nil
}

// Metadata holds the classification and cross-reference fields both kinds carry.
type Metadata struct {
	Categories []Category `json:"categories,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	CoverImage *string    `json:"cover_image,omitempty"`
	References []Citation `json:"references,omitempty"`
	Citations  []Citation `json:"citations,omitempty"`
}

// Validate checks every citation and reference.
func (m *Metadata) Validate() error {
	for _, c := range m.References {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, c := range m.Citations {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, t := range m.Tags {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: empty tag", ErrInvalidInput)
		}
	}
	return nil
}
