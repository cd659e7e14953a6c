package auth

import (
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// TokenTypeBearer is the token type issued by the provider.
const TokenTypeBearer = "Bearer"

// Token is the access/refresh token pair returned by the token endpoint.
// ExpiresAt is computed from the moment the response was received, never
// taken from the wire. Token is a value: a refresh produces a new Token.
type Token struct {
	AccessToken  string
	TokenType    string
	Scope        string
	ExpiresIn    int64
	RefreshToken string
	ExpiresAt    time.Time
}

// newToken stamps a decoded response with its expiry.
func newToken(resp tokenResponse, issuedAt time.Time) Token {
	return Token{
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		Scope:        resp.Scope,
		ExpiresIn:    resp.ExpiresIn,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    issuedAt.Add(time.Duration(resp.ExpiresIn) * time.Second),
	}
}

// IsExpired reports whether now is at or past ExpiresAt.
func (t Token) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ExpiresWithin reports whether the token is expired at now+d. Callers use
// it to refresh a little ahead of the deadline.
func (t Token) ExpiresWithin(now time.Time, d time.Duration) bool {
	return t.IsExpired(now.Add(d))
}

// AuthorizationHeader returns the value for the Authorization header of
// API requests.
func (t Token) AuthorizationHeader() string {
	typ := t.TokenType
	if typ == "" || strings.EqualFold(typ, TokenTypeBearer) {
		typ = TokenTypeBearer
	}
	return typ + " " + t.AccessToken
}

// Equal reports whether both tokens carry the same fields and expire at the
// same instant.
func (t Token) Equal(o Token) bool {
	return t.AccessToken == o.AccessToken &&
		t.TokenType == o.TokenType &&
		t.Scope == o.Scope &&
		t.ExpiresIn == o.ExpiresIn &&
		t.RefreshToken == o.RefreshToken &&
		t.ExpiresAt.Equal(o.ExpiresAt)
}

// Record is the persisted form of a Token. The fields are fixed; an
// empty refresh token is written as "".
type Record struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	Scope        string    `json:"scope"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
}

// Record converts the token into its serializable form.
func (t Token) Record() Record {
	return Record{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		Scope:        t.Scope,
		ExpiresIn:    t.ExpiresIn,
		ExpiresAt:    t.ExpiresAt,
		RefreshToken: t.RefreshToken,
	}
}

// FromRecord restores a token. ExpiresAt is taken as stored, not recomputed.
func FromRecord(r Record) (Token, error) {
	if r.AccessToken == "" {
		return Token{}, invalidConfig("record has no access_token")
	}
	if r.ExpiresIn < 0 {
		return Token{}, invalidConfig("record has negative expires_in %d", r.ExpiresIn)
	}
	if r.ExpiresAt.IsZero() {
		return Token{}, invalidConfig("record has no expires_at")
	}
	return Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		Scope:        r.Scope,
		ExpiresIn:    r.ExpiresIn,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
	}, nil
}

// MarshalJSON encodes the token as a Record.
func (t Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Record())
}

// UnmarshalJSON decodes a Record and validates it.
func (t *Token) UnmarshalJSON(data []byte) error {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	tok, err := FromRecord(r)
	if err != nil {
		return err
	}
	*t = tok
	return nil
}

// OAuth2Token converts the token for use with golang.org/x/oauth2, for
// example oauth2.NewClient. Scope and expires_in travel as extras.
func (t Token) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
	return tok.WithExtra(map[string]any{
		"scope":      t.Scope,
		"expires_in": t.ExpiresIn,
	})
}

// TokenFromOAuth2 converts an oauth2.Token back. When the token carries no
// expires_in extra it is derived from Expiry relative to now.
func TokenFromOAuth2(tok *oauth2.Token, now time.Time) (Token, error) {
	if tok == nil || tok.AccessToken == "" {
		return Token{}, invalidConfig("oauth2 token has no access token")
	}
	t := Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if s, ok := tok.Extra("scope").(string); ok {
		t.Scope = s
	}
	switch v := tok.Extra("expires_in").(type) {
	case int64:
		t.ExpiresIn = v
	case float64:
		t.ExpiresIn = int64(v)
	default:
		if d := tok.Expiry.Sub(now); d > 0 {
			t.ExpiresIn = int64(d / time.Second)
		}
	}
	return t, nil
}
