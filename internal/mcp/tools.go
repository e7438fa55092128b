package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolDefinition describes a callable tool.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func stringArrayProp(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": description,
		"items":       map[string]any{"type": "string"},
	}
}

func citationArrayProp(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": description,
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"kind": map[string]any{
					"type": "string",
					"enum": []string{"entity", "url", "other"},
				},
				"target": map[string]any{
					"type":        "string",
					"description": "Entity id (YYYY-MM-NNNN), URL or free text",
				},
			},
			"required": []string{"kind", "target"},
		},
	}
}

// metadataProps are accepted by every create and update tool.
func metadataProps(props map[string]any) map[string]any {
	props["categories"] = map[string]any{
		"type":        "array",
		"description": "Categories; unknown values are kept as given",
		"items": map[string]any{
			"type":     "string",
			"examples": []string{"programming", "system_design", "devops", "security", "machine_learning", "blockchain"},
		},
	}
	props["tags"] = stringArrayProp("Free-form tags")
	props["cover_image"] = stringProp("Cover image URL (empty string clears it on update)")
	props["references"] = citationArrayProp("Works this post references")
	props["citations"] = citationArrayProp("Works citing this post")
	return props
}

func paperContentProp() map[string]any {
	return map[string]any{
		"type":        "object",
		"description": "Paper body",
		"properties": map[string]any{
			"format": map[string]any{
				"type": "string",
				"enum": []string{"text", "tex", "latex", "typst", "satysfi", "pdf", "markdown", "html"},
			},
			"source": map[string]any{
				"type":        "string",
				"description": "Where the body lives",
				"enum":        []string{"raw", "http", "arweave", "ipfs"},
			},
			"raw":      stringProp("Inline body, only with source=raw"),
			"location": stringProp("External location, required unless source=raw"),
		},
		"required": []string{"format", "source"},
	}
}

func idProp(kind string) map[string]any {
	return stringProp(kind + " id, e.g. 2025-04-0001")
}

func listProps() map[string]any {
	return map[string]any{
		"lead_author":  stringProp("Only posts led by this user (external id or p_<key>)"),
		"newest_first": map[string]any{"type": "boolean", "description": "Descending id order"},
		"limit":        map[string]any{"type": "integer", "description": "Maximum number of results"},
		"offset":       map[string]any{"type": "integer", "description": "Offset for pagination"},
	}
}

func searchProps() map[string]any {
	return map[string]any{
		"query":  stringProp("Case-insensitive title substring"),
		"limit":  map[string]any{"type": "integer", "description": "Maximum number of results"},
		"offset": map[string]any{"type": "integer", "description": "Offset for pagination"},
	}
}

// kindTools returns the tools every entity kind shares.
func kindTools(singular, plural string) []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "get_" + singular,
			Description: "Get a " + singular + ". Drafts are only visible to their authors",
			InputSchema: objectSchema(map[string]any{"id": idProp(singular)}, "id"),
		},
		{
			Name:        "publish_" + singular,
			Description: "Publish a draft " + singular + " (lead author only)",
			InputSchema: objectSchema(map[string]any{"id": idProp(singular)}, "id"),
		},
		{
			Name:        "unpublish_" + singular,
			Description: "Move a published " + singular + " back to draft (lead author only)",
			InputSchema: objectSchema(map[string]any{"id": idProp(singular)}, "id"),
		},
		{
			Name:        "add_" + singular + "_co_author",
			Description: "Add a registered user as co-author of a " + singular + " (lead author only)",
			InputSchema: objectSchema(map[string]any{
				"id":        idProp(singular),
				"co_author": stringProp("External id or p_<key> of the co-author"),
			}, "id", "co_author"),
		},
		{
			Name:        "delete_" + singular,
			Description: "Delete a " + singular + " and unlink it from every author (lead author only)",
			InputSchema: objectSchema(map[string]any{"id": idProp(singular)}, "id"),
		},
		{
			Name:        "list_" + plural,
			Description: "List " + plural + " in id order with title and lead author",
			InputSchema: objectSchema(listProps()),
		},
		{
			Name:        "search_" + plural,
			Description: "Find " + plural + " whose title contains the query",
			InputSchema: objectSchema(searchProps(), "query"),
		},
	}
}

// buildToolCatalog returns all available MCP tools
func buildToolCatalog() []ToolDefinition {
	tools := []ToolDefinition{
		// Users
		{
			Name:        "whoami",
			Description: "Get the profile of the calling user",
			InputSchema: objectSchema(map[string]any{}),
		},
		{
			Name:        "register_user",
			Description: "Create the profile of the calling user",
			InputSchema: objectSchema(map[string]any{
				"id":   stringProp("External id: 1-21 chars of a-z, 0-9, _ and -, starting with a letter or digit"),
				"name": stringProp("Display name, 1-50 characters"),
			}, "name"),
		},
		{
			Name:        "get_user",
			Description: "Look up a user by external id or p_<key> (omit for the caller)",
			InputSchema: objectSchema(map[string]any{
				"ref": stringProp("External id or p_<key>"),
			}),
		},
		{
			Name:        "update_profile",
			Description: "Change the display name or external id of the calling user",
			InputSchema: objectSchema(map[string]any{
				"name":     stringProp("New display name"),
				"id":       stringProp("New external id"),
				"clear_id": map[string]any{"type": "boolean", "description": "Remove the external id"},
			}),
		},
		{
			Name:        "check_user_id",
			Description: "Report whether an external id is taken",
			InputSchema: objectSchema(map[string]any{"id": stringProp("External id")}, "id"),
		},

		// Papers
		{
			Name:        "create_paper",
			Description: "Create a draft paper led by the caller",
			InputSchema: objectSchema(metadataProps(map[string]any{
				"title":    stringProp("Title, 1-2000 characters"),
				"abstract": stringProp("Abstract"),
				"content":  paperContentProp(),
			}), "title", "content"),
		},
		{
			Name:        "update_paper",
			Description: "Change fields of a paper (any author). Omitted fields are kept",
			InputSchema: objectSchema(metadataProps(map[string]any{
				"id":       idProp("paper"),
				"title":    stringProp("Title, 1-2000 characters"),
				"abstract": stringProp("Abstract"),
				"content":  paperContentProp(),
			}), "id"),
		},
	}
	tools = append(tools, kindTools("paper", "papers")...)
	tools = append(tools,
		// Articles
		ToolDefinition{
			Name:        "create_article",
			Description: "Create a draft article led by the caller",
			InputSchema: objectSchema(metadataProps(map[string]any{
				"title":   stringProp("Title, 1-2000 characters"),
				"summary": stringProp("Summary, up to 1000 characters"),
				"content": stringProp("Article body"),
			}), "title"),
		},
		ToolDefinition{
			Name:        "update_article",
			Description: "Change fields of an article (any author). Omitted fields are kept",
			InputSchema: objectSchema(metadataProps(map[string]any{
				"id":      idProp("article"),
				"title":   stringProp("Title, 1-2000 characters"),
				"summary": stringProp("Summary, up to 1000 characters"),
				"content": stringProp("Article body"),
			}), "id"),
		},
	)
	tools = append(tools, kindTools("article", "articles")...)
	tools = append(tools, ToolDefinition{
		Name:        "index_stats",
		Description: "Report the size of every in-memory index",
		InputSchema: objectSchema(map[string]any{}),
	})
	return tools
}

// registerTools exposes every catalog entry through h.
func registerTools(server *sdkmcp.Server, h *Handler, logger *slog.Logger) {
	for _, def := range buildToolCatalog() {
		name := def.Name
		server.AddTool(&sdkmcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
			caller, _ := CallerFromContext(ctx)
			var args json.RawMessage
			if req.Params != nil {
				args = req.Params.Arguments
			}
			result, err := h.Handle(ctx, caller, name, args)
			if err != nil {
				return errorResult(logger, name, err), nil
			}
			return textResult(result)
		})
	}
}

func textResult(v any) (*sdkmcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil
}

func errorResult(logger *slog.Logger, tool string, err error) *sdkmcp.CallToolResult {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if logger != nil {
			logger.Error("tool failed", "tool", tool, "error", err)
		}
		apiErr = &APIError{Code: CodeInternal, Message: err.Error()}
	}
	data, _ := json.Marshal(apiErr)
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
		IsError: true,
	}
}
