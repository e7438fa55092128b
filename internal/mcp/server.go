package mcp

import (
	"log/slog"
	"net/http"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/perforate-org/arche/internal/domain/user"
)

// Version is reported to clients during initialization.
const Version = "0.1.0"

// Config contains server configuration.
type Config struct {
	Services      Services
	Resolver      CallerResolver
	AuthEnabled   bool
	TransportMode string // "stdio" or "http"
	DefaultCaller user.PrimaryKey
	Logger        *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "arche",
		Version: Version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	// Stdio is single-user: every call runs as the default caller.
	callerMW := fixedCallerMiddleware(cfg.DefaultCaller)
	if cfg.TransportMode == "http" && cfg.AuthEnabled {
		callerMW = authMiddleware(cfg.Resolver)
	}
	server.AddReceivingMiddleware(callerMW, trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, NewHandler(cfg.Services), cfg.Logger)

	return server
}

// NewHTTPHandler serves server over the streamable HTTP transport.
func NewHTTPHandler(server *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return server
	}, &sdkmcp.StreamableHTTPOptions{
		SessionTimeout: 30 * time.Minute,
	})
}
