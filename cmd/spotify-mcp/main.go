// Command spotify-mcp exposes the Spotify authorization flow as MCP tools
// over stdio or streamable HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-training/spotify-oauth/pkg/auth"
	"github.com/go-training/spotify-oauth/pkg/config"
	"github.com/go-training/spotify-oauth/pkg/core"
	"github.com/go-training/spotify-oauth/pkg/logger"
	"github.com/go-training/spotify-oauth/pkg/operation"
	"github.com/go-training/spotify-oauth/pkg/operation/spotify"
	"github.com/go-training/spotify-oauth/pkg/store"

	"github.com/appleboy/graceful"
	sloggin "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer wraps the underlying MCP server instance together with the
// dependencies its tools read from the context.
type MCPServer struct {
	server  *server.MCPServer
	client  *auth.Client
	pending core.Store
}

// NewMCPServer creates and configures a new MCPServer instance with the
// Spotify tools registered.
func NewMCPServer(client *auth.Client, pending core.Store) *MCPServer {
	mcpServer := server.NewMCPServer(
		"spotify-oauth",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithLogging(),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(operation.ToolHandlerMiddleware()),
	)

	operation.RegisterSpotifyTool(mcpServer)

	return &MCPServer{
		server:  mcpServer,
		client:  client,
		pending: pending,
	}
}

// withDependencies prepares the context of every tool call.
func (s *MCPServer) withDependencies(ctx context.Context) context.Context {
	ctx = spotify.WithClient(ctx, s.client)
	ctx = core.WithStore(ctx, s.pending)
	return core.WithRequestID(ctx)
}

// ServeHTTP returns a streamable HTTP server.
func (s *MCPServer) ServeHTTP() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(s.server,
		server.WithHeartbeatInterval(30*time.Second),
		server.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return s.withDependencies(ctx)
		}),
	)
}

// ServeStdio starts the MCP server using stdio transport.
func (s *MCPServer) ServeStdio() error {
	return server.ServeStdio(s.server, server.WithStdioContextFunc(s.withDependencies))
}

// Router mounts the streamable HTTP handler on /mcp.
func (s *MCPServer) Router() *gin.Engine {
	router := gin.New()
	router.Use(sloggin.SetLogger(), gin.Recovery())

	handler := gin.WrapH(s.ServeHTTP())
	for _, method := range []string{http.MethodPost, http.MethodGet, http.MethodDelete} {
		router.Handle(method, "/mcp", handler)
	}
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func main() {
	cfg := config.RegisterFlags(flag.CommandLine)
	var addr string
	var transport string
	flag.StringVar(&addr, "addr", ":8080", "address to listen on")
	flag.StringVar(&transport, "t", "stdio", "Transport type (stdio or http)")
	flag.StringVar(&transport, "transport", "stdio", "Transport type (stdio or http)")
	flag.Parse()

	logger.NewWithLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	client, err := cfg.NewClient()
	if err != nil {
		slog.Error("Failed to create Spotify client", "error", err)
		os.Exit(1)
	}
	storeCfg, err := cfg.StoreConfig()
	if err != nil {
		slog.Error("Invalid store configuration", "error", err)
		os.Exit(1)
	}
	pending, err := store.NewStore(storeCfg)
	if err != nil {
		slog.Error("Failed to create store", "type", storeCfg.Type, "error", err)
		os.Exit(1)
	}
	defer store.Close(pending)

	mcpServer := NewMCPServer(client, pending)

	switch transport {
	case "stdio":
		if err := mcpServer.ServeStdio(); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	case "http":
		serveHTTP(addr, mcpServer)
	default:
		slog.Error("Invalid transport type", "transport", transport)
		os.Exit(1)
	}
}

// serveHTTP runs the HTTP transport until SIGINT or SIGTERM.
func serveHTTP(addr string, mcpServer *MCPServer) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      mcpServer.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	m := graceful.NewManager()
	m.AddRunningJob(func(ctx context.Context) error {
		slog.Info("MCP HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	m.AddShutdownJob(func() error {
		slog.Info("Shutdown signal received, shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})

	<-m.Done()
	slog.Info("Server shutdown gracefully")
}
