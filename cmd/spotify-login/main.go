// Command spotify-login runs the authorization code flow against Spotify
// from a terminal: it serves the redirect URI locally, opens the consent
// page and prints the resulting token as JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-training/spotify-oauth/pkg/auth"
	"github.com/go-training/spotify-oauth/pkg/config"
	"github.com/go-training/spotify-oauth/pkg/core"
	"github.com/go-training/spotify-oauth/pkg/logger"
	"github.com/go-training/spotify-oauth/pkg/scope"
	"github.com/go-training/spotify-oauth/pkg/store"
)

func main() {
	cfg := config.RegisterFlags(flag.CommandLine)
	var timeout time.Duration
	var noBrowser bool
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for the callback")
	flag.BoolVar(&noBrowser, "no-browser", false, "print the authorization URL instead of opening a browser")
	flag.Parse()

	logger.NewWithLevel(cfg.LogLevel)

	if err := run(cfg, timeout, !noBrowser); err != nil {
		slog.Error("Login failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Spotify, timeout time.Duration, browser bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	scopes, err := cfg.ParsedScopes()
	if err != nil {
		return err
	}
	client, err := cfg.NewClient()
	if err != nil {
		return err
	}
	redirect, err := url.Parse(client.RedirectURI())
	if err != nil {
		return err
	}

	storeCfg, err := cfg.StoreConfig()
	if err != nil {
		return err
	}
	pending, err := store.NewStore(storeCfg)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer store.Close(pending)
	slog.Info("Using pending authorization store", "type", storeCfg.Type)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := startAuthorization(ctx, client, pending, scopes, cfg.ShowDialog, timeout)
	if err != nil {
		return err
	}

	results := make(chan result, 1)
	srv := &http.Server{
		Addr:              listenAddr(redirect),
		Handler:           newRouter(callbackPath(redirect), &callbackHandler{client: client, pending: pending, results: results}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on redirect address %s: %w", srv.Addr, err)
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Callback server error", "err", err)
		}
	}()
	defer shutdown(srv)

	slog.Info("Waiting for authorization callback...", "listen", srv.Addr, "timeout", timeout)
	if browser {
		if err := openBrowser(req.URL()); err != nil {
			slog.Warn("Failed to open browser", "err", err)
			browser = false
		}
	}
	if !browser {
		fmt.Fprintln(os.Stderr, "Open this URL in your browser:")
		fmt.Fprintln(os.Stderr, req.URL())
	}

	select {
	case r := <-results:
		if r.err != nil {
			return r.err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r.token)
	case <-ctx.Done():
		_ = pending.DeletePending(context.Background(), req.State())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("no callback received within %s", timeout)
		}
		return ctx.Err()
	}
}

// startAuthorization builds the request and records its state so the
// callback handler can recognise it.
func startAuthorization(
	ctx context.Context,
	client *auth.Client,
	pending core.Store,
	scopes []scope.Scope,
	showDialog bool,
	ttl time.Duration,
) (*auth.AuthorizationRequest, error) {
	var opts []auth.RequestOption
	if showDialog {
		opts = append(opts, auth.WithShowDialog(true))
	}
	req, err := client.NewAuthorizationRequest(scopes, opts...)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := pending.SavePending(ctx, &core.PendingAuthorization{
		State:       req.State(),
		ClientID:    req.ClientID(),
		RedirectURI: req.RedirectURI(),
		Scopes:      scope.Strings(req.Scopes()),
		ShowDialog:  showDialog,
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(ttl).Unix(),
	}); err != nil {
		return nil, fmt.Errorf("failed to save pending authorization: %w", err)
	}
	return req, nil
}

// listenAddr is the host:port the redirect URI points at.
func listenAddr(redirect *url.URL) string {
	port := redirect.Port()
	if port == "" {
		port = "80"
		if redirect.Scheme == "https" {
			port = "443"
		}
	}
	return net.JoinHostPort(redirect.Hostname(), port)
}

func callbackPath(redirect *url.URL) string {
	if redirect.Path == "" {
		return "/"
	}
	return redirect.Path
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Callback server forced to shutdown", "err", err)
	}
}
