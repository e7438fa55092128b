package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// maxLoggedPayload caps how much of a request or result body reaches the log.
const maxLoggedPayload = 2048

// exchange is what the traffic log records about one method call.
type exchange struct {
	direction string
	method    string
	session   string
	caller    string
	tool      string
	target    string
}

func (e exchange) attrs() []any {
	attrs := []any{"direction", e.direction, "method", e.method, "session_id", e.session, "caller", e.caller}
	if e.tool != "" {
		attrs = append(attrs, "tool", e.tool)
	}
	if e.target != "" {
		attrs = append(attrs, "target", e.target)
	}
	return attrs
}

// trafficLoggingMiddleware logs every exchange at debug level, naming the
// caller and, for tool calls, the entity or user the call is aimed at.
func trafficLoggingMiddleware(logger *slog.Logger, direction string) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if logger == nil || !logger.Enabled(ctx, slog.LevelDebug) {
				return next(ctx, method, req)
			}

			ex := exchange{direction: direction, method: method, session: sessionID(req), caller: callerRef(ctx)}
			params := requestParams(req)
			if call, ok := params.(*sdkmcp.CallToolParamsRaw); ok && call != nil {
				ex.tool = call.Name
				ex.target = toolTarget(call.Arguments)
			}
			logger.Debug("mcp request", append(ex.attrs(), "params", clip(params))...)

			start := time.Now()
			result, err := next(ctx, method, req)
			if strings.HasPrefix(method, "notifications/") {
				return result, err
			}

			attrs := append(ex.attrs(), "duration", time.Since(start))
			if err != nil {
				attrs = append(attrs, "error", err)
			} else if code := toolErrorCode(result); code != "" {
				attrs = append(attrs, "error_code", code)
			}
			logger.Debug("mcp response", append(attrs, "result", clip(result))...)
			return result, err
		}
	}
}

func callerRef(ctx context.Context) string {
	if key, ok := CallerFromContext(ctx); ok {
		return key.Reference()
	}
	return ""
}

// toolTarget picks the entity id or user reference out of tool arguments.
func toolTarget(args json.RawMessage) string {
	var target struct {
		ID       string `json:"id"`
		Ref      string `json:"ref"`
		CoAuthor string `json:"co_author"`
	}
	if len(args) == 0 || json.Unmarshal(args, &target) != nil {
		return ""
	}
	switch {
	case target.ID != "" && target.CoAuthor != "":
		return target.ID + " <- " + target.CoAuthor
	case target.ID != "":
		return target.ID
	default:
		return target.Ref
	}
}

// toolErrorCode returns the APIError code carried by a failed tool result.
func toolErrorCode(result sdkmcp.Result) string {
	res, ok := result.(*sdkmcp.CallToolResult)
	if !ok || res == nil || !res.IsError || len(res.Content) == 0 {
		return ""
	}
	text, ok := res.Content[0].(*sdkmcp.TextContent)
	if !ok {
		return ""
	}
	var apiErr APIError
	if json.Unmarshal([]byte(text.Text), &apiErr) != nil {
		return ""
	}
	return apiErr.Code
}

// sessionID and requestParams tolerate requests whose session or params
// are typed nil pointers.
func sessionID(req sdkmcp.Request) (id string) {
	if req == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()
	if session := req.GetSession(); session != nil {
		return session.ID()
	}
	return ""
}

func requestParams(req sdkmcp.Request) (params sdkmcp.Params) {
	if req == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			params = nil
		}
	}()
	return req.GetParams()
}

func clip(payload any) string {
	if payload == nil {
		return "<nil>"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%T", payload)
	}
	if len(data) > maxLoggedPayload {
		return fmt.Sprintf("%s... (%d bytes)", data[:maxLoggedPayload], len(data))
	}
	return string(data)
}
