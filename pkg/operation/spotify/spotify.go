// Package spotify provides MCP tools that drive the Spotify authorization
// code flow: issuing the authorize URL, exchanging the callback code,
// refreshing tokens and checking token expiry.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-training/spotify-oauth/pkg/auth"
	"github.com/go-training/spotify-oauth/pkg/core"
	"github.com/go-training/spotify-oauth/pkg/scope"
	"github.com/go-training/spotify-oauth/pkg/store"

	"github.com/mark3labs/mcp-go/mcp"
)

// PendingTTL is how long an issued state stays redeemable.
const PendingTTL = 10 * time.Minute

// now is the clock used for pending deadlines and expiry checks.
var now = time.Now

// ClientKey is a custom context key type for storing the auth client in context.
type ClientKey struct{}

// WithClient returns a new context with the provided token exchange client set.
func WithClient(ctx context.Context, c *auth.Client) context.Context {
	return context.WithValue(ctx, ClientKey{}, c)
}

// ClientFromContext retrieves the token exchange client from the context.
func ClientFromContext(ctx context.Context) (*auth.Client, error) {
	c, ok := ctx.Value(ClientKey{}).(*auth.Client)
	if !ok || c == nil {
		return nil, fmt.Errorf("missing spotify client")
	}
	return c, nil
}

// AuthorizeURLTool defines the MCP tool that starts an authorization.
var AuthorizeURLTool = mcp.NewTool("authorize_url",
	mcp.WithDescription("Build a Spotify authorization URL for the user to open. The returned state must be passed to exchange_code."),
	mcp.WithString("scopes",
		mcp.Description("Space separated Spotify scopes, e.g. \"user-read-email user-top-read\""),
	),
	mcp.WithBoolean("show_dialog",
		mcp.Description("Force the consent dialog even if the user already approved the app"),
	),
)

// ExchangeCodeTool defines the MCP tool that redeems a callback.
var ExchangeCodeTool = mcp.NewTool("exchange_code",
	mcp.WithDescription("Exchange the code from the Spotify callback for an access token. Pass either callback_url or code and state."),
	mcp.WithString("callback_url",
		mcp.Description("The full URL the browser was redirected to"),
	),
	mcp.WithString("code",
		mcp.Description("The code query parameter of the callback"),
	),
	mcp.WithString("state",
		mcp.Description("The state query parameter of the callback"),
	),
)

// RefreshTokenTool defines the MCP tool that refreshes an access token.
var RefreshTokenTool = mcp.NewTool("refresh_token",
	mcp.WithDescription("Obtain a new access token using a refresh token"),
	mcp.WithString("refresh_token",
		mcp.Description("The refresh token returned by exchange_code or a previous refresh"),
		mcp.Required(),
	),
)

// TokenStatusTool defines the MCP tool that reports token expiry.
var TokenStatusTool = mcp.NewTool("token_status",
	mcp.WithDescription("Report whether a token returned by exchange_code or refresh_token has expired"),
	mcp.WithString("token",
		mcp.Description("The token JSON as returned by exchange_code or refresh_token"),
		mcp.Required(),
	),
)

// ListScopesTool defines the MCP tool that lists the known scopes.
var ListScopesTool = mcp.NewTool("list_scopes",
	mcp.WithDescription("List the Spotify scopes that can be requested"),
)

type authorizeResult struct {
	URL       string    `json:"url"`
	State     string    `json:"state"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HandleAuthorizeURLTool builds an authorization request and remembers its
// state until the callback arrives.
func HandleAuthorizeURLTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := core.LoggerFromCtx(ctx)
	logger.Info("Handling authorize_url tool")

	client, pending, err := dependencies(ctx)
	if err != nil {
		logger.Error("Missing dependency from context", "error", err)
		return nil, err
	}

	args := request.GetArguments()
	raw, _ := args["scopes"].(string)
	scopes, err := scope.Parse(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var opts []auth.RequestOption
	show, showSet := args["show_dialog"].(bool)
	if showSet {
		opts = append(opts, auth.WithShowDialog(show))
	}
	req, err := client.NewAuthorizationRequest(scopes, opts...)
	if err != nil {
		logger.Error("Failed to build authorization request", "error", err)
		return nil, err
	}

	issued := now()
	expires := issued.Add(PendingTTL)
	if err := pending.SavePending(ctx, &core.PendingAuthorization{
		State:       req.State(),
		ClientID:    req.ClientID(),
		RedirectURI: req.RedirectURI(),
		Scopes:      scope.Strings(req.Scopes()),
		ShowDialog:  show,
		CreatedAt:   issued.Unix(),
		ExpiresAt:   expires.Unix(),
	}); err != nil {
		logger.Error("Failed to save pending authorization", "error", err)
		return nil, err
	}

	return jsonResult(authorizeResult{
		URL:       req.URL(),
		State:     req.State(),
		ExpiresAt: time.Unix(expires.Unix(), 0).UTC(),
	})
}

// HandleExchangeCodeTool redeems a callback. The state must have been
// issued by authorize_url and not redeemed before.
func HandleExchangeCodeTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := core.LoggerFromCtx(ctx)
	logger.Info("Handling exchange_code tool")

	client, pending, err := dependencies(ctx)
	if err != nil {
		logger.Error("Missing dependency from context", "error", err)
		return nil, err
	}

	cb, err := callbackFromArguments(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p, err := pending.TakePending(ctx, cb.State)
	switch {
	case errors.Is(err, store.ErrPendingNotFound), errors.Is(err, store.ErrEmptyState):
		logger.Warn("Callback with unknown state")
		return mcp.NewToolResultError("unknown or expired state; call authorize_url again"), nil
	case err != nil:
		logger.Error("Failed to load pending authorization", "error", err)
		return nil, err
	}

	tok, err := client.ExchangeCallback(ctx, cb, p.State)
	if err != nil {
		logger.Warn("Code exchange failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tok)
}

func callbackFromArguments(args map[string]any) (auth.Callback, error) {
	if raw, _ := args["callback_url"].(string); raw != "" {
		return auth.ParseCallback(raw)
	}
	code, _ := args["code"].(string)
	state, _ := args["state"].(string)
	if code == "" || state == "" {
		return auth.Callback{}, fmt.Errorf("either callback_url or both code and state are required")
	}
	return auth.Callback{Code: code, State: state}, nil
}

// HandleRefreshTokenTool trades a refresh token for a new token.
func HandleRefreshTokenTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger := core.LoggerFromCtx(ctx)
	logger.Info("Handling refresh_token tool")

	client, err := ClientFromContext(ctx)
	if err != nil {
		logger.Error("Missing spotify client from context", "error", err)
		return nil, err
	}

	refreshToken, ok := request.GetArguments()["refresh_token"].(string)
	if !ok || refreshToken == "" {
		return mcp.NewToolResultError("refresh_token is required"), nil
	}

	tok, err := client.Refresh(ctx, refreshToken)
	if err != nil {
		logger.Warn("Refresh failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tok)
}

type statusResult struct {
	Expired          bool      `json:"expired"`
	ExpiresAt        time.Time `json:"expires_at"`
	ExpiresInSeconds int64     `json:"expires_in_seconds"`
	Scope            string    `json:"scope"`
	Refreshable      bool      `json:"refreshable"`
}

// HandleTokenStatusTool reports whether a token has expired.
func HandleTokenStatusTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	core.LoggerFromCtx(ctx).Info("Handling token_status tool")

	raw, ok := request.GetArguments()["token"].(string)
	if !ok || raw == "" {
		return mcp.NewToolResultError("token is required"), nil
	}
	var tok auth.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid token: %v", err)), nil
	}

	t := now()
	remaining := int64(tok.ExpiresAt.Sub(t) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return jsonResult(statusResult{
		Expired:          tok.IsExpired(t),
		ExpiresAt:        tok.ExpiresAt,
		ExpiresInSeconds: remaining,
		Scope:            tok.Scope,
		Refreshable:      tok.RefreshToken != "",
	})
}

// HandleListScopesTool returns every known scope.
func HandleListScopesTool(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(scope.Strings(scope.All()))
}

func dependencies(ctx context.Context) (*auth.Client, core.Store, error) {
	client, err := ClientFromContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	s, err := core.StoreFromContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	return client, s, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
