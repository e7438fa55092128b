package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `arche stores papers and articles written by registered users.

Core concepts:
- User: a profile keyed by the caller identity (p_<key>), with a display name and an optional external id.
- Post: a paper or an article. Each has an id like 2025-04-0001 (year, month, sequence within the month).
- Status: posts start as draft. Only the lead author publishes or unpublishes.
- Authors: one lead author plus co-authors. Any author may edit; only the lead author deletes or adds co-authors.

Default workflow:
1) whoami; if it reports NOT_FOUND, call register_user.
2) create_paper / create_article to start a draft.
3) update_* while drafting; publish_* when ready.
4) list_* and search_* browse titles without loading bodies.

Docs:
- arche://docs/index
- arche://docs/ids
- arche://docs/errors
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "arche://docs/index",
		Name:        "docs_index",
		Title:       "arche docs index",
		Description: "Entry point for agent-facing docs.",
		Content: `# arche: Agent Docs Index

## Tools

- Users: whoami, register_user, get_user, update_profile, check_user_id
- Papers: create_paper, get_paper, update_paper, publish_paper, unpublish_paper,
  add_paper_co_author, delete_paper, list_papers, search_papers
- Articles: the same set with the article suffix
- index_stats reports the size of every in-memory index

## Visibility

Published posts are visible to everyone. Drafts are visible to their authors only;
anyone else gets NOT_FOUND.

## More

- arche://docs/ids for the id format
- arche://docs/errors for error codes and what to do about them
`,
	},
	{
		URI:         "arche://docs/ids",
		Name:        "docs_ids",
		Title:       "Identifiers",
		Description: "Post ids, user references and external ids.",
		Content: `# Identifiers

## Post ids

` + "`YYYY-MM-NNNN`" + ` with an optional ` + "`-vN`" + ` suffix. The sequence restarts every month
and is zero-padded to at least four digits. Ids are assigned by the server and never reused.

## User references

Tools that take a user accept either the external id (` + "`alice`" + `) or the owner key
prefixed with ` + "`p_`" + ` (` + "`p_1b4e28ba-2fa1-11d2-883f-0016d3cca427`" + `).

## External ids

1 to 21 characters of a-z, 0-9, underscore and dash, starting with a letter or digit.
Use check_user_id before update_profile to see whether one is free.
`,
	},
	{
		URI:         "arche://docs/errors",
		Name:        "docs_errors",
		Title:       "Error codes",
		Description: "Stable error codes returned by tools.",
		Content: `# Error codes

- NOT_FOUND: the post or user does not exist, or the post is a draft you do not author.
- UNAUTHORIZED: you are not an author, or the action needs the lead author.
- CONFLICT: the profile already exists, or the external id is taken.
- INVALID_INPUT: a field failed validation (title, name, id, content, citation).
- INVALID_TRANSITION: publish on a non-draft, or unpublish on a non-published post.
- INCONSISTENT: the server found its indices out of sync. An operator should run ` + "`arche rebuild`" + `.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		doc := doc

		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
