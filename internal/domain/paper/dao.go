package paper

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/post"
	"github.com/perforate-org/arche/internal/domain/user"
)

// daoV1 is the first stored shape of a paper. Timestamps are nanoseconds
// since the Unix epoch. The id is the table key and is not repeated here.
type daoV1 struct {
	LeadAuthor user.PrimaryKey   `json:"lead_author"`
	CoAuthors  []user.PrimaryKey `json:"co_authors"`
	Title      post.Title        `json:"title"`
	Abstract   string            `json:"ab"`
	Content    Content           `json:"content"`
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

var errUnknownVersion = errors.New("paper record has no known version")

// Encode serializes p as the current stored version.
func Encode(p *Paper) ([]byte, error) {
	return json.Marshal(dao{V1: &daoV1{
		LeadAuthor: p.LeadAuthor,
		CoAuthors:  p.CoAuthors,
		Title:      p.Title,
		Abstract:   p.Abstract,
		Content:    p.Content,
		Categories: p.Categories,
		Tags:       p.Tags,
		Status:     p.Status,
		CreatedAt:  p.CreatedAt.UnixNano(),
		UpdatedAt:  p.UpdatedAt.UnixNano(),
		CoverImage: p.CoverImage,
		References: p.References,
		Citations:  p.Citations,
	}})
}

// Decode reads any stored version of the paper keyed by id.
func Decode(id entityid.ID, data []byte) (*Paper, error) {
	var d dao
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode paper %s: %w", id, err)
	}
	if d.V1 == nil {
		return nil, fmt.Errorf("decode paper %s: %w", id, errUnknownVersion)
	}
	v := d.V1
	return &Paper{
		Header: post.Header{
			ID:         id,
			LeadAuthor: v.LeadAuthor,
			CoAuthors:  v.CoAuthors,
			Title:      v.Title,
			Status:     v.Status,
			CreatedAt:  time.Unix(0, v.CreatedAt).UTC(),
			UpdatedAt:  time.Unix(0, v.UpdatedAt).UTC(),
		},
		Abstract: v.Abstract,
		Content:  v.Content,
		Metadata: post.Metadata{
			Categories: v.Categories,
			Tags:       v.Tags,
			CoverImage: v.CoverImage,
			References: v.References,
			Citations:  v.Citations,
		},
	}, nil
}
