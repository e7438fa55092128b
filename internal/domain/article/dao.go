package article

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/post"
	"github.com/perforate-org/arche/internal/domain/user"
)

type daoV1 struct {
	LeadAuthor user.PrimaryKey   `json:"lead_author"`
	CoAuthors  []user.PrimaryKey `json:"co_authors"`
	Title      post.Title        `json:"title"`
	Summary    string            `json:"summary"`
	Content    string            `json:"content"`
	Categories []post.Category   `json:"categories"`
	Tags       []string          `json:"tags"`
	Status     post.Status       `json:"status"`
	CreatedAt  int64             `json:"created_at"`
	UpdatedAt  int64             `json:"updated_at"`
	CoverImage *string           `json:"cover_image,omitempty"`
	References []post.Citation   `json:"references"`
	Citations  []post.Citation   `json:"citations"`
}

type dao struct {
	V1 *daoV1 `json:"v1,omitempty"`
}

var errUnknownVersion = errors.New("article record has no known version")

// Encode serializes a as the current stored version.
func Encode(a *Article) ([]byte, error) {
	return json.Marshal(dao{V1: &daoV1{
		LeadAuthor: a.LeadAuthor,
		CoAuthors:  a.CoAuthors,
		Title:      a.Title,
		Summary:    a.Summary,
		Content:    a.Content,
		Categories: a.Categories,
		Tags:       a.Tags,
		Status:     a.Status,
		CreatedAt:  a.CreatedAt.UnixNano(),
		UpdatedAt:  a.UpdatedAt.UnixNano(),
		CoverImage: a.CoverImage,
		References: a.References,
		Citations:  a.Citations,
	}})
}

// Decode reads any stored version of the article keyed by id.
func Decode(id entityid.ID, data []byte) (*Article, error) {
	var d dao
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode article %s: %w", id, err)
	}
	if d.V1 == nil {
		return nil, fmt.Errorf("decode article %s: %w", id, errUnknownVersion)
	}
	v := d.V1
	return &Article{
		Header: post.Header{
			ID:         id,
			LeadAuthor: v.LeadAuthor,
			CoAuthors:  v.CoAuthors,
			Title:      v.Title,
			Status:     v.Status,
			CreatedAt:  time.Unix(0, v.CreatedAt).UTC(),
			UpdatedAt:  time.Unix(0, v.UpdatedAt).UTC(),
		},
		Summary: v.Summary,
		Content: v.Content,
		Metadata: post.Metadata{
			Categories: v.Categories,
			Tags:       v.Tags,
			CoverImage: v.CoverImage,
			References: v.References,
			Citations:  v.Citations,
		},
	}, nil
}
