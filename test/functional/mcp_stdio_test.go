package functional_test

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

func newStdioSession(t *testing.T, extraEnv ...string) *sdkmcp.ClientSession {
	t.Helper()

	binaryPath := "./bin/arche"
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		binaryPath = "../../bin/arche"
		if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
			t.Skip("Server binary not found. Run 'go build -o bin/arche ./cmd/arche' first.")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	cmd := exec.CommandContext(ctx, binaryPath, "serve")
	cmd.Env = append(os.Environ(),
		"ARCHE_TRANSPORT=stdio",
		"ARCHE_STORAGE_BACKEND=memory",
	)
	cmd.Env = append(cmd.Env, extraEnv...)

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &sdkmcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		cancel()
		t.Fatalf("Failed to connect: %v", err)
	}

	t.Cleanup(func() {
		session.Close()
		cancel()
	})
	return session
}

func TestStdioFunctional_AnonymousWorkflow(t *testing.T) {
	s := newStdioSession(t)

	me := callTool(t, s, "whoami", nil)
	require.Contains(t, string(me), `"id":"anonymous"`)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(callTool(t, s, "create_article", map[string]any{
		"title":   "Hello from stdio",
		"content": "body",
	}), &created))
	require.NotEmpty(t, created.ID)

	callTool(t, s, "publish_article", map[string]any{"id": created.ID})
	list := callTool(t, s, "list_articles", nil)
	require.Contains(t, string(list), created.ID)
	require.Contains(t, string(list), "Anonymous User")
}

func TestStdioFunctional_LogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "arche.log")
	s := newStdioSession(t,
		"ARCHE_LOG_PATH="+logPath,
		"ARCHE_LOG_LEVEL=debug",
	)

	_ = callTool(t, s, "list_papers", nil)

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(logPath)
		if err != nil {
			return false
		}
		text := string(data)
		return strings.Contains(text, `msg="mcp traffic"`) &&
			strings.Contains(text, "stage=request") &&
			strings.Contains(text, "stage=response")
	}, 5*time.Second, 100*time.Millisecond)
}
