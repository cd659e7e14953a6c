package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/go-training/spotify-oauth/pkg/auth"
	"github.com/go-training/spotify-oauth/pkg/core"
	"github.com/go-training/spotify-oauth/pkg/store"

	sloggin "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"
)

// result is what a callback produced: a token or the reason there is none.
type result struct {
	token auth.Token
	err   error
}

// callbackHandler redeems the provider redirect. Only states saved in the
// store are accepted, and each only once.
type callbackHandler struct {
	client  *auth.Client
	pending core.Store
	results chan<- result
}

const (
	htmlContentType = "text/html; charset=utf-8"
	successPage     = `<html><body><h1>Authorization Successful</h1><p>You can now close this window and return to the terminal.</p><script>window.close();</script></body></html>`
	failurePage     = `<html><body><h1>Authorization Failed</h1><p>%s</p></body></html>`
)

func (h *callbackHandler) handle(c *gin.Context) {
	ctx := core.WithRequestID(c.Request.Context())
	logger := core.LoggerFromCtx(ctx)

	cb, err := auth.CallbackFromQuery(c.Request.URL.Query())
	if err != nil {
		logger.Warn("Ignoring malformed callback", "error", err)
		c.String(http.StatusBadRequest, "malformed callback: %v", err)
		return
	}

	p, err := h.pending.TakePending(ctx, cb.State)
	if err != nil {
		if errors.Is(err, store.ErrPendingNotFound) || errors.Is(err, store.ErrEmptyState) {
			// Not ours: a stale tab or a forged redirect. Keep waiting.
			logger.Warn("Callback with unknown state")
			c.String(http.StatusBadRequest, "unknown or expired state")
			return
		}
		logger.Error("Failed to load pending authorization", "error", err)
		c.String(http.StatusInternalServerError, "failed to load pending authorization")
		return
	}

	tok, err := h.client.ExchangeCallback(ctx, cb, p.State)
	h.deliver(ctx, result{token: tok, err: err})

	if err != nil {
		logger.Error("Authorization failed", "error", err)
		page := fmt.Sprintf(failurePage, html.EscapeString(errorSummary(err)))
		c.Data(http.StatusBadGateway, htmlContentType, []byte(page))
		return
	}
	logger.Info("Authorization successful", "scope", tok.Scope, "expires_at", tok.ExpiresAt)
	c.Data(http.StatusOK, htmlContentType, []byte(successPage))
}

func (h *callbackHandler) deliver(ctx context.Context, r result) {
	select {
	case h.results <- r:
	case <-ctx.Done():
	}
}

// errorSummary is the user facing part of an error. Provider bodies stay
// in the logs.
func errorSummary(err error) string {
	var perr *auth.ProviderError
	switch {
	case errors.As(err, &perr) && perr.Code != "":
		return "Spotify rejected the request: " + perr.Code
	case errors.Is(err, auth.ErrAuthorizationDenied):
		return "Access was not granted."
	case errors.Is(err, auth.ErrTransport):
		return "Could not reach Spotify."
	default:
		return "The token exchange failed."
	}
}

// newRouter serves the callback on path.
func newRouter(path string, h *callbackHandler) *gin.Engine {
	r := gin.New()
	r.Use(sloggin.SetLogger(), gin.Recovery())
	r.GET(path, h.handle)
	return r
}
