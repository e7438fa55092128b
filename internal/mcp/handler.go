package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/perforate-org/arche/internal/domain/article"
	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/paper"
	"github.com/perforate-org/arche/internal/domain/post"
	"github.com/perforate-org/arche/internal/domain/user"
	"github.com/perforate-org/arche/internal/store"
)

// UserService defines profile operations needed by MCP.
type UserService interface {
	Register(ctx context.Context, key user.PrimaryKey, req user.RegisterRequest) (*user.User, error)
	Get(ctx context.Context, key user.PrimaryKey) (*user.User, error)
	Resolve(ref string) (user.PrimaryKey, error)
	Lookup(ctx context.Context, ref string) (user.PrimaryKey, *user.User, error)
	UpdateProfile(ctx context.Context, key user.PrimaryKey, req user.UpdateRequest) (*user.User, error)
	IDExists(id string) bool
}

// PostService defines the use-cases of one entity kind needed by MCP.
type PostService[E post.Document] interface {
	CreateDraft(ctx context.Context, caller user.PrimaryKey, draft E) (E, error)
	Get(ctx context.Context, caller user.PrimaryKey, id entityid.ID) (E, error)
	Update(ctx context.Context, caller user.PrimaryKey, id entityid.ID, apply func(E) error) (E, error)
	Publish(ctx context.Context, caller user.PrimaryKey, id entityid.ID) (E, error)
	Unpublish(ctx context.Context, caller user.PrimaryKey, id entityid.ID) (E, error)
	AddCoAuthor(ctx context.Context, caller user.PrimaryKey, id entityid.ID, coAuthor user.PrimaryKey) (E, error)
	Delete(ctx context.Context, caller user.PrimaryKey, id entityid.ID) error
	List(ctx context.Context, opts post.ListOptions) ([]post.Listing, error)
	Search(ctx context.Context, query string, opts post.SearchOptions) ([]post.Listing, error)
}

// StatsSource reports index sizes.
type StatsSource interface {
	Stats() store.Stats
}

// Services contains all domain services needed by MCP.
type Services struct {
	Users    UserService
	Papers   PostService[*paper.Paper]
	Articles PostService[*article.Article]
	Stats    StatsSource
}

// Handler dispatches MCP commands.
type Handler struct {
	users    UserService
	papers   PostService[*paper.Paper]
	articles PostService[*article.Article]
	stats    StatsSource
}

// NewHandler creates a new MCP handler.
func NewHandler(svc Services) *Handler {
	return &Handler{
		users:    svc.Users,
		papers:   svc.Papers,
		articles: svc.Articles,
		stats:    svc.Stats,
	}
}

// Kind-independent post actions, keyed by tool name.
var (
	paperActions = map[string]string{
		"get_paper":           "get",
		"publish_paper":       "publish",
		"unpublish_paper":     "unpublish",
		"delete_paper":        "delete",
		"add_paper_co_author": "add_co_author",
		"list_papers":         "list",
		"search_papers":       "search",
	}
	articleActions = map[string]string{
		"get_article":           "get",
		"publish_article":       "publish",
		"unpublish_article":     "unpublish",
		"delete_article":        "delete",
		"add_article_co_author": "add_co_author",
		"list_articles":         "list",
		"search_articles":       "search",
	}
)

// Handle dispatches MCP requests to domain services on behalf of caller.
func (h *Handler) Handle(ctx context.Context, caller user.PrimaryKey, method string, params json.RawMessage) (any, error) {
	if caller.IsZero() {
		return nil, &APIError{Code: CodeUnauthorized, Message: ErrNoCaller.Error()}
	}
	if action, ok := paperActions[method]; ok {
		return dispatchPost(ctx, h.users, h.papers, caller, action, params, paperResponse)
	}
	if action, ok := articleActions[method]; ok {
		return dispatchPost(ctx, h.users, h.articles, caller, action, params, articleResponse)
	}

	switch method {
	case "whoami":
		u, err := h.users.Get(ctx, caller)
		if err != nil {
			return nil, mapError(err)
		}
		return userResponse(caller, u), nil
	case "register_user":
		var req RegisterUserParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		u, err := h.users.Register(ctx, caller, user.RegisterRequest{ID: req.ID, Name: req.Name})
		if err != nil {
			return nil, mapError(err)
		}
		return userResponse(caller, u), nil
	case "get_user":
		var req GetUserParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.Ref == "" {
			req.Ref = caller.Reference()
		}
		key, u, err := h.users.Lookup(ctx, req.Ref)
		if err != nil {
			return nil, mapError(err)
		}
		return userResponse(key, u), nil
	case "update_profile":
		var req UpdateProfileParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		u, err := h.users.UpdateProfile(ctx, caller, user.UpdateRequest{Name: req.Name, ID: req.ID, ClearID: req.ClearID})
		if err != nil {
			return nil, mapError(err)
		}
		return userResponse(caller, u), nil
	case "check_user_id":
		var req CheckUserIDParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		return CheckUserIDResponse{ID: req.ID, Exists: h.users.IDExists(req.ID)}, nil

	case "create_paper":
		var req CreatePaperParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		draft := paper.NewDraft(req.Title, req.Abstract, req.Content.content(), req.metadata())
		p, err := h.papers.CreateDraft(ctx, caller, draft)
		if err != nil {
			return nil, mapError(err)
		}
		return paperResponse(p), nil
	case "update_paper":
		var req UpdatePaperParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		id, err := parseID(req.ID)
		if err != nil {
			return nil, err
		}
		p, err := h.papers.Update(ctx, caller, id, func(p *paper.Paper) error {
			if req.Title != nil {
				p.Title = post.Title(*req.Title)
			}
			if req.Abstract != nil {
				p.Abstract = *req.Abstract
			}
			if req.Content != nil {
				p.Content = req.Content.content()
			}
			patchMetadata(&p.Metadata, req.Categories, req.Tags, req.CoverImage, req.References, req.Citations)
			return nil
		})
		if err != nil {
			return nil, mapError(err)
		}
		return paperResponse(p), nil

	case "create_article":
		var req CreateArticleParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		draft := article.NewDraft(req.Title, req.Summary, req.Content, req.metadata())
		a, err := h.articles.CreateDraft(ctx, caller, draft)
		if err != nil {
			return nil, mapError(err)
		}
		return articleResponse(a), nil
	case "update_article":
		var req UpdateArticleParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		id, err := parseID(req.ID)
		if err != nil {
			return nil, err
		}
		a, err := h.articles.Update(ctx, caller, id, func(a *article.Article) error {
			if req.Title != nil {
				a.Title = post.Title(*req.Title)
			}
			if req.Summary != nil {
				a.Summary = *req.Summary
			}
			if req.Content != nil {
				a.Content = *req.Content
			}
			patchMetadata(&a.Metadata, req.Categories, req.Tags, req.CoverImage, req.References, req.Citations)
			return nil
		})
		if err != nil {
			return nil, mapError(err)
		}
		return articleResponse(a), nil

	case "index_stats":
		if h.stats == nil {
			return nil, &APIError{Code: CodeInternal, Message: "index stats unavailable"}
		}
		return h.stats.Stats(), nil
	default:
		return nil, fmt.Errorf("unknown method: %s", method)
	}
}

// dispatchPost runs the use-cases whose shape does not depend on the kind.
func dispatchPost[E post.Document, R any](ctx context.Context, users UserService, svc PostService[E], caller user.PrimaryKey, action string, params json.RawMessage, view func(E) R) (any, error) {
	switch action {
	case "get", "publish", "unpublish", "delete":
		var req PostIDParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		id, err := parseID(req.ID)
		if err != nil {
			return nil, err
		}
		var e E
		switch action {
		case "get":
			e, err = svc.Get(ctx, caller, id)
		case "publish":
			e, err = svc.Publish(ctx, caller, id)
		case "unpublish":
			e, err = svc.Unpublish(ctx, caller, id)
		default:
			if err := svc.Delete(ctx, caller, id); err != nil {
				return nil, mapError(err)
			}
			return DeleteResponse{ID: id.String(), Deleted: true}, nil
		}
		if err != nil {
			return nil, mapError(err)
		}
		return view(e), nil
	case "add_co_author":
		var req AddCoAuthorParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		id, err := parseID(req.ID)
		if err != nil {
			return nil, err
		}
		coAuthor, err := users.Resolve(req.CoAuthor)
		if err != nil {
			return nil, mapError(err)
		}
		e, err := svc.AddCoAuthor(ctx, caller, id, coAuthor)
		if err != nil {
			return nil, mapError(err)
		}
		return view(e), nil
	case "list":
		var req ListPostsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		opts := post.ListOptions{NewestFirst: req.NewestFirst, Limit: req.Limit, Offset: req.Offset}
		if req.LeadAuthor != "" {
			key, err := users.Resolve(req.LeadAuthor)
			if err != nil {
				return nil, mapError(err)
			}
			opts.LeadAuthor = &key
		}
		listings, err := svc.List(ctx, opts)
		if err != nil {
			return nil, mapError(err)
		}
		return listResponse(listings), nil
	case "search":
		var req SearchPostsParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if strings.TrimSpace(req.Query) == "" {
			return nil, invalidInput("query is required")
		}
		listings, err := svc.Search(ctx, req.Query, post.SearchOptions{Limit: req.Limit, Offset: req.Offset})
		if err != nil {
			return nil, mapError(err)
		}
		return listResponse(listings), nil
	default:
		return nil, fmt.Errorf("unknown action: %s", action)
	}
}

func patchMetadata(meta *post.Metadata, categories, tags *[]string, cover *string, refs, cites *[]post.Citation) {
	if categories != nil {
		meta.Categories = nil
		for _, c := range *categories {
			meta.Categories = append(meta.Categories, post.Category(c))
		}
	}
	if tags != nil {
		meta.Tags = *tags
	}
	if cover != nil {
		// An empty string clears the cover.
		if *cover == "" {
			meta.CoverImage = nil
		} else {
			meta.CoverImage = cover
		}
	}
	if refs != nil {
		meta.References = *refs
	}
	if cites != nil {
		meta.Citations = *cites
	}
}

func parseID(s string) (entityid.ID, error) {
	if s == "" {
		return entityid.ID{}, invalidInput("id is required")
	}
	id, err := entityid.Parse(s)
	if err != nil {
		return entityid.ID{}, mapError(err)
	}
	return id, nil
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return invalidInput("malformed arguments: %v", err)
	}
	return nil
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
