package auth

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/go-training/spotify-oauth/pkg/scope"
)

const (
	// AuthURL is the Spotify authorization endpoint.
	AuthURL = "https://accounts.spotify.com/authorize"
	// TokenURL is the Spotify token endpoint.
	TokenURL = "https://accounts.spotify.com/api/token"

	// ResponseTypeCode is the only response type of the authorization code flow.
	ResponseTypeCode = "code"
)

// AuthorizationRequest holds everything needed to send a user to the
// provider's consent page. It is immutable once built.
type AuthorizationRequest struct {
	authURL     string
	clientID    string
	redirectURI *url.URL
	scopes      []scope.Scope
	state       string
	stateSet    bool
	showDialog  *bool
}

// RequestOption configures an AuthorizationRequest.
type RequestOption func(*AuthorizationRequest)

// WithState uses the given state instead of generating one.
func WithState(state string) RequestOption {
	return func(r *AuthorizationRequest) {
		r.state = state
		r.stateSet = true
	}
}

// WithShowDialog sets show_dialog. When this option is not given the
// parameter is left out of the URL.
func WithShowDialog(show bool) RequestOption {
	return func(r *AuthorizationRequest) {
		r.showDialog = &show
	}
}

// WithAuthURL overrides the authorization endpoint.
func WithAuthURL(authURL string) RequestOption {
	return func(r *AuthorizationRequest) {
		r.authURL = authURL
	}
}

// NewAuthorizationRequest validates the inputs and builds a request. A
// state is generated unless WithState is given.
func NewAuthorizationRequest(
	clientID, redirectURI string,
	scopes []scope.Scope,
	opts ...RequestOption,
) (*AuthorizationRequest, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, invalidConfig("client id is required")
	}
	u, err := parseRedirectURI(redirectURI)
	if err != nil {
		return nil, err
	}

	r := &AuthorizationRequest{
		authURL:     AuthURL,
		clientID:    clientID,
		redirectURI: u,
		scopes:      scope.Dedup(scopes),
	}
	for _, opt := range opts {
		opt(r)
	}
	if _, err := url.Parse(r.authURL); err != nil || r.authURL == "" {
		return nil, invalidConfig("authorize url %q is not valid", r.authURL)
	}

	switch {
	case r.stateSet && r.state == "":
		return nil, invalidConfig("state must not be empty")
	case !r.stateSet:
		if r.state, err = GenerateState(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func parseRedirectURI(redirectURI string) (*url.URL, error) {
	if redirectURI == "" {
		return nil, invalidConfig("redirect uri is required")
	}
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, invalidConfig("redirect uri: %v", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, invalidConfig("redirect uri %q must be absolute", redirectURI)
	}
	return u, nil
}

// ClientID returns the client id.
func (r *AuthorizationRequest) ClientID() string { return r.clientID }

// RedirectURI returns the redirect URI as given.
func (r *AuthorizationRequest) RedirectURI() string { return r.redirectURI.String() }

// Scopes returns a copy of the requested scopes.
func (r *AuthorizationRequest) Scopes() []scope.Scope {
	out := make([]scope.Scope, len(r.scopes))
	copy(out, r.scopes)
	return out
}

// State returns the anti-forgery state the provider will echo back.
func (r *AuthorizationRequest) State() string { return r.state }

// ShowDialog returns the show_dialog value and whether it was set.
func (r *AuthorizationRequest) ShowDialog() (show, set bool) {
	if r.showDialog == nil {
		return false, false
	}
	return *r.showDialog, true
}

// URL assembles the authorization URL. Parameters are always written in the
// order client_id, response_type, redirect_uri, scope, state, show_dialog.
func (r *AuthorizationRequest) URL() string {
	params := [][2]string{
		{"client_id", r.clientID},
		{"response_type", ResponseTypeCode},
		{"redirect_uri", r.redirectURI.String()},
		{"scope", scope.Render(r.scopes)},
		{"state", r.state},
	}
	if r.showDialog != nil {
		params = append(params, [2]string{"show_dialog", strconv.FormatBool(*r.showDialog)})
	}

	var b strings.Builder
	b.WriteString(r.authURL)
	if strings.Contains(r.authURL, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[1]))
	}
	return b.String()
}
