package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-training/spotify-oauth/pkg/core"
	"github.com/go-training/spotify-oauth/pkg/scope"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"

	defaultTimeout = 10 * time.Second
	// maxResponseBody caps how much of a token endpoint response is read.
	maxResponseBody = 1 << 20

	tracerName = "github.com/go-training/spotify-oauth/pkg/auth"
)

// HTTPClient sends a request and returns the response. *http.Client
// satisfies it; tests substitute stubs. Implementations must honor the
// request context or their own timeout rather than block forever.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RefreshPolicy decides what happens when a refresh response carries no
// refresh_token.
type RefreshPolicy int

const (
	// ReusePreviousRefreshToken keeps the refresh token the caller passed
	// in. Spotify omits refresh_token when it has not rotated it.
	ReusePreviousRefreshToken RefreshPolicy = iota
	// RequireRotatedRefreshToken treats a missing refresh_token as a
	// malformed response.
	RequireRotatedRefreshToken
)

func (p RefreshPolicy) String() string {
	switch p {
	case ReusePreviousRefreshToken:
		return "reuse-previous"
	case RequireRotatedRefreshToken:
		return "require-rotated"
	default:
		return fmt.Sprintf("RefreshPolicy(%d)", int(p))
	}
}

// Client performs the code-for-token and refresh-for-token exchanges
// against the token endpoint. It holds no mutable state and is safe for
// concurrent use.
type Client struct {
	clientID      string
	clientSecret  string
	redirectURI   string
	tokenURL      string
	httpClient    HTTPClient
	now           func() time.Time
	logger        *slog.Logger
	refreshPolicy RefreshPolicy
	tracer        trace.Tracer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the transport used for token requests.
func WithHTTPClient(c HTTPClient) ClientOption {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTokenURL overrides the token endpoint.
func WithTokenURL(tokenURL string) ClientOption {
	return func(cl *Client) {
		cl.tokenURL = tokenURL
	}
}

// WithNowFunc sets the clock used to stamp issued tokens (primarily for testing).
func WithNowFunc(now func() time.Time) ClientOption {
	return func(cl *Client) {
		cl.now = now
	}
}

// WithLogger sets the logger. Without it the request logger from the
// context is used.
func WithLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) {
		cl.logger = l
	}
}

// WithRefreshPolicy sets how a refresh response without refresh_token is handled.
func WithRefreshPolicy(p RefreshPolicy) ClientOption {
	return func(cl *Client) {
		cl.refreshPolicy = p
	}
}

// NewClient validates the application credentials and builds a Client.
func NewClient(clientID, clientSecret, redirectURI string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, invalidConfig("client id is required")
	}
	if clientSecret == "" {
		return nil, invalidConfig("client secret is required")
	}
	u, err := parseRedirectURI(redirectURI)
	if err != nil {
		return nil, err
	}

	c := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  u.String(),
		tokenURL:     TokenURL,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		now:          time.Now,
		tracer:       otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		return nil, invalidConfig("http client is required")
	}
	if c.now == nil {
		return nil, invalidConfig("now func is required")
	}
	if tu, err := url.Parse(c.tokenURL); err != nil || !tu.IsAbs() {
		return nil, invalidConfig("token url %q is not valid", c.tokenURL)
	}
	return c, nil
}

// ClientID returns the application's client id.
func (c *Client) ClientID() string { return c.clientID }

// RedirectURI returns the redirect URI sent with code exchanges.
func (c *Client) RedirectURI() string { return c.redirectURI }

// NewAuthorizationRequest builds an authorization request for this client.
func (c *Client) NewAuthorizationRequest(scopes []scope.Scope, opts ...RequestOption) (*AuthorizationRequest, error) {
	return NewAuthorizationRequest(c.clientID, c.redirectURI, scopes, opts...)
}

// ExchangeCode trades an authorization code for a token. expectedState is
// the state of the AuthorizationRequest; receivedState is the one the
// provider echoed. They must be identical or ErrStateMismatch is returned
// without contacting the provider.
func (c *Client) ExchangeCode(ctx context.Context, code, expectedState, receivedState string) (Token, error) {
	if expectedState != receivedState {
		c.log(ctx).Warn("state mismatch on code exchange, refusing to exchange")
		return Token{}, ErrStateMismatch
	}
	if code == "" {
		return Token{}, invalidConfig("authorization code is required")
	}

	form := url.Values{}
	form.Set("grant_type", grantAuthorizationCode)
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURI)

	resp, err := c.fetch(ctx, grantAuthorizationCode, form)
	if err != nil {
		return Token{}, err
	}
	if resp.body.RefreshToken == "" {
		return Token{}, &MalformedResponseError{Field: "refresh_token", Reason: "missing"}
	}
	return newToken(resp.body, resp.issuedAt), nil
}

// ExchangeCallback checks the callback's state, turns a provider error
// redirect into an AuthorizationDeniedError and exchanges the code. A
// callback carrying both error and code is treated as denied.
func (c *Client) ExchangeCallback(ctx context.Context, cb Callback, expectedState string) (Token, error) {
	if cb.State != expectedState {
		c.log(ctx).Warn("state mismatch on callback, refusing to exchange")
		return Token{}, ErrStateMismatch
	}
	if cb.Error != "" {
		return Token{}, &AuthorizationDeniedError{Reason: cb.Error}
	}
	return c.ExchangeCode(ctx, cb.Code, expectedState, cb.State)
}

// Refresh trades a refresh token for a new token. If the response omits
// refresh_token the client's RefreshPolicy applies.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	if refreshToken == "" {
		return Token{}, invalidConfig("refresh token is required")
	}

	form := url.Values{}
	form.Set("grant_type", grantRefreshToken)
	form.Set("refresh_token", refreshToken)

	resp, err := c.fetch(ctx, grantRefreshToken, form)
	if err != nil {
		return Token{}, err
	}
	if resp.body.RefreshToken == "" {
		if c.refreshPolicy == RequireRotatedRefreshToken {
			return Token{}, &MalformedResponseError{Field: "refresh_token", Reason: "missing"}
		}
		resp.body.RefreshToken = refreshToken
	}
	return newToken(resp.body, resp.issuedAt), nil
}

type fetchResult struct {
	body     tokenResponse
	issuedAt time.Time
}

// fetch posts the form to the token endpoint and decodes the answer.
func (c *Client) fetch(ctx context.Context, grant string, form url.Values) (fetchResult, error) {
	ctx, span := c.tracer.Start(ctx, "spotify.token."+grant,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("oauth.grant_type", grant)),
	)
	defer span.End()
	logger := c.log(ctx).With("grant_type", grant)

	res, err := c.roundTrip(ctx, form)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token request failed")
		logger.Debug("token request failed", "error", err)
		return fetchResult{}, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", res.status))

	if res.status != http.StatusOK {
		perr := newProviderError(res.status, res.body)
		span.SetStatus(codes.Error, "provider rejected token request")
		logger.Debug("token endpoint returned error", "status", res.status, "code", perr.Code)
		return fetchResult{}, perr
	}

	body, err := decodeTokenResponse(res.body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed token response")
		logger.Debug("token response rejected", "error", err)
		return fetchResult{}, err
	}
	logger.Debug("token issued", "expires_in", body.ExpiresIn, "scope", body.Scope)
	return fetchResult{body: body, issuedAt: res.receivedAt}, nil
}

type rawResponse struct {
	status     int
	body       []byte
	receivedAt time.Time
}

func (c *Client) roundTrip(ctx context.Context, form url.Values) (rawResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return rawResponse{}, &TransportError{Op: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Basic "+basicCredentials(c.clientID, c.clientSecret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return rawResponse{}, &TransportError{Op: "send request", Err: err}
	}
	defer resp.Body.Close()
	receivedAt := c.now()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return rawResponse{}, &TransportError{Op: "read response body", Err: err}
	}
	return rawResponse{status: resp.StatusCode, body: body, receivedAt: receivedAt}, nil
}

func (c *Client) log(ctx context.Context) *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return core.LoggerFromCtx(ctx)
}

// basicCredentials encodes client credentials for HTTP Basic auth.
func basicCredentials(clientID, clientSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
}
