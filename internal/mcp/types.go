package mcp

import (
	"time"

	"github.com/perforate-org/arche/internal/domain/article"
	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/paper"
	"github.com/perforate-org/arche/internal/domain/post"
	"github.com/perforate-org/arche/internal/domain/user"
)

type RegisterUserParams struct {
	ID   *string `json:"id,omitempty"`
	Name string  `json:"name"`
}

// GetUserParams takes an external id or "p_<owner key>". Empty means the caller.
type GetUserParams struct {
	Ref string `json:"ref,omitempty"`
}

type UpdateProfileParams struct {
	Name    *string `json:"name,omitempty"`
	ID      *string `json:"id,omitempty"`
	ClearID bool    `json:"clear_id,omitempty"`
}

type CheckUserIDParams struct {
	ID string `json:"id"`
}

type PostIDParams struct {
	ID string `json:"id"`
}

type AddCoAuthorParams struct {
	ID       string `json:"id"`
	CoAuthor string `json:"co_author"`
}

type ListPostsParams struct {
	LeadAuthor  string `json:"lead_author,omitempty"`
	NewestFirst bool   `json:"newest_first,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

type SearchPostsParams struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// MetadataParams carries the classification fields shared by papers and articles.
type MetadataParams struct {
	Categories []string        `json:"categories,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	CoverImage *string         `json:"cover_image,omitempty"`
	References []post.Citation `json:"references,omitempty"`
	Citations  []post.Citation `json:"citations,omitempty"`
}

func (m MetadataParams) metadata() post.Metadata {
	meta := post.Metadata{
		Tags:       m.Tags,
		CoverImage: m.CoverImage,
		References: m.References,
		Citations:  m.Citations,
	}
	for _, c := range m.Categories {
		meta.Categories = append(meta.Categories, post.Category(c))
	}
	return meta
}

// ContentParams is a paper body. Raw is plain text for the raw source kind.
type ContentParams struct {
	Format   string `json:"format"`
	Source   string `json:"source"`
	Raw      string `json:"raw,omitempty"`
	Location string `json:"location,omitempty"`
}

func (c ContentParams) content() paper.Content {
	out := paper.Content{
		Format: paper.Format(c.Format),
		Source: paper.Source{Kind: paper.SourceKind(c.Source), Location: c.Location},
	}
	if c.Raw != "" {
		out.Source.Raw = []byte(c.Raw)
	}
	return out
}

type CreatePaperParams struct {
	Title    string        `json:"title"`
	Abstract string        `json:"abstract,omitempty"`
	Content  ContentParams `json:"content"`
	MetadataParams
}

// UpdatePaperParams replaces the fields that are present.
type UpdatePaperParams struct {
	ID         string           `json:"id"`
	Title      *string          `json:"title,omitempty"`
	Abstract   *string          `json:"abstract,omitempty"`
	Content    *ContentParams   `json:"content,omitempty"`
	Categories *[]string        `json:"categories,omitempty"`
	Tags       *[]string        `json:"tags,omitempty"`
	CoverImage *string          `json:"cover_image,omitempty"`
	References *[]post.Citation `json:"references,omitempty"`
	Citations  *[]post.Citation `json:"citations,omitempty"`
}

type CreateArticleParams struct {
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
	Content string `json:"content,omitempty"`
	MetadataParams
}

type UpdateArticleParams struct {
	ID         string           `json:"id"`
	Title      *string          `json:"title,omitempty"`
	Summary    *string          `json:"summary,omitempty"`
	Content    *string          `json:"content,omitempty"`
	Categories *[]string        `json:"categories,omitempty"`
	Tags       *[]string        `json:"tags,omitempty"`
	CoverImage *string          `json:"cover_image,omitempty"`
	References *[]post.Citation `json:"references,omitempty"`
	Citations  *[]post.Citation `json:"citations,omitempty"`
}

// UserResponse is the public view of a profile.
type UserResponse struct {
	Ref        string              `json:"ref"`
	ID         string              `json:"id,omitempty"`
	Name       string              `json:"name"`
	LeadAuthor map[string][]string `json:"lead_authored,omitempty"`
	CoAuthor   map[string][]string `json:"co_authored,omitempty"`
}

func userResponse(key user.PrimaryKey, u *user.User) UserResponse {
	resp := UserResponse{Ref: key.Reference(), Name: u.Name.String()}
	if u.ID != nil {
		resp.ID = u.ID.String()
	}
	for _, kind := range []string{paper.Kind, article.Kind} {
		if ids := u.LeadAuthored(kind); len(ids) > 0 {
			if resp.LeadAuthor == nil {
				resp.LeadAuthor = make(map[string][]string)
			}
			resp.LeadAuthor[kind] = idStrings(ids)
		}
		if ids := u.CoAuthored(kind); len(ids) > 0 {
			if resp.CoAuthor == nil {
				resp.CoAuthor = make(map[string][]string)
			}
			resp.CoAuthor[kind] = idStrings(ids)
		}
	}
	return resp
}

// HeaderResponse is the shared part of every post response.
type HeaderResponse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	LeadAuthor string    `json:"lead_author"`
	CoAuthors  []string  `json:"co_authors,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func headerResponse(h *post.Header) HeaderResponse {
	resp := HeaderResponse{
		ID:         h.ID.String(),
		Title:      h.Title.String(),
		Status:     string(h.Status),
		LeadAuthor: h.LeadAuthor.Reference(),
		CreatedAt:  h.CreatedAt,
		UpdatedAt:  h.UpdatedAt,
	}
	for _, k := range h.CoAuthors {
		resp.CoAuthors = append(resp.CoAuthors, k.Reference())
	}
	return resp
}

type PaperResponse struct {
	HeaderResponse
	Abstract string        `json:"abstract,omitempty"`
	Content  ContentParams `json:"content"`
	post.Metadata
}

func paperResponse(p *paper.Paper) PaperResponse {
	return PaperResponse{
		HeaderResponse: headerResponse(&p.Header),
		Abstract:       p.Abstract,
		Content: ContentParams{
			Format:   string(p.Content.Format),
			Source:   string(p.Content.Source.Kind),
			Raw:      string(p.Content.Source.Raw),
			Location: p.Content.Source.Location,
		},
		Metadata: p.Metadata,
	}
}

type ArticleResponse struct {
	HeaderResponse
	Summary string `json:"summary,omitempty"`
	Content string `json:"content,omitempty"`
	post.Metadata
}

func articleResponse(a *article.Article) ArticleResponse {
	return ArticleResponse{
		HeaderResponse: headerResponse(&a.Header),
		Summary:        a.Summary,
		Content:        a.Content,
		Metadata:       a.Metadata,
	}
}

type ListingResponse struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	LeadAuthor     string `json:"lead_author"`
	LeadAuthorID   string `json:"lead_author_id,omitempty"`
	LeadAuthorName string `json:"lead_author_name,omitempty"`
}

type ListResponse struct {
	Items []ListingResponse `json:"items"`
}

func listResponse(listings []post.Listing) ListResponse {
	items := make([]ListingResponse, 0, len(listings))
	for _, l := range listings {
		items = append(items, ListingResponse{
			ID:             l.ID.String(),
			Title:          l.Title.String(),
			LeadAuthor:     l.LeadAuthor.Reference(),
			LeadAuthorID:   l.LeadAuthorID,
			LeadAuthorName: l.LeadAuthorName,
		})
	}
	return ListResponse{Items: items}
}

func idStrings(ids []entityid.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type CheckUserIDResponse struct {
	ID     string `json:"id"`
	Exists bool   `json:"exists"`
}
