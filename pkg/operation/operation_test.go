package operation

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func TestToolOrdering(t *testing.T) {
	tool := &Tool{}
	tool.RegisterRead(server.ServerTool{Tool: mcp.NewTool("r1")})
	tool.RegisterWrite(server.ServerTool{Tool: mcp.NewTool("w1")})
	tool.RegisterRead(server.ServerTool{Tool: mcp.NewTool("r2")})

	got := tool.Tools()
	want := []string{"w1", "r1", "r2"}
	if len(got) != len(want) {
		t.Fatalf("Tools() returned %d tools, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Tool.Name != name {
			t.Errorf("Tools()[%d] = %q, want %q", i, got[i].Tool.Name, name)
		}
	}
}

func TestRegisterSpotifyTool(t *testing.T) {
	s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
	RegisterSpotifyTool(s)

	tools := s.ListTools()
	for _, name := range []string{"authorize_url", "exchange_code", "refresh_token", "token_status", "list_scopes"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %q not registered", name)
		}
	}
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestToolHandlerMiddlewareRecordsStatus(t *testing.T) {
	tests := []struct {
		name       string
		next       server.ToolHandlerFunc
		wantStatus string
		wantError  string
	}{
		{
			name: "ok",
			next: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultText("fine"), nil
			},
			wantStatus: "mcp.status=ok",
		},
		{
			name: "tool error",
			next: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return mcp.NewToolResultError("state mismatch"), nil
			},
			wantStatus: "mcp.status=error",
			wantError:  "state mismatch",
		},
		{
			name: "handler error",
			next: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return nil, errors.New("missing store")
			},
			wantStatus: "mcp.status=error",
			wantError:  "missing store",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)

			req := mcp.CallToolRequest{}
			req.Params.Name = "exchange_code"
			req.Params.Arguments = map[string]any{"code": "secret-code", "state": "st"}

			_, _ = ToolHandlerMiddleware()(tt.next)(context.Background(), req)

			out := buf.String()
			if !strings.Contains(out, "mcp.tool=exchange_code") {
				t.Errorf("missing tool name in %q", out)
			}
			if !strings.Contains(out, "mcp.arguments=code,state") {
				t.Errorf("missing argument names in %q", out)
			}
			if strings.Contains(out, "secret-code") {
				t.Errorf("argument value leaked into logs: %q", out)
			}
			if !strings.Contains(out, tt.wantStatus) {
				t.Errorf("missing %q in %q", tt.wantStatus, out)
			}
			if tt.wantError != "" && !strings.Contains(out, tt.wantError) {
				t.Errorf("missing error %q in %q", tt.wantError, out)
			}
		})
	}
}
