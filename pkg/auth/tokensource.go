package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// expiryDelta is how long before ExpiresAt a token is treated as expired by
// the token source, so a request started with it does not race the deadline.
const expiryDelta = 10 * time.Second

// TokenSource returns an oauth2.TokenSource that hands out tok until it is
// about to expire and then refreshes it through the client. The source is
// owned by the caller; nothing is shared between sources.
func (c *Client) TokenSource(ctx context.Context, tok Token) oauth2.TokenSource {
	return &refreshingSource{ctx: ctx, client: c, tok: tok}
}

type refreshingSource struct {
	ctx    context.Context
	client *Client

	mu  sync.Mutex
	tok Token
}

// Token implements oauth2.TokenSource.
func (s *refreshingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tok.ExpiresWithin(s.client.now(), expiryDelta) {
		return s.tok.OAuth2Token(), nil
	}
	if s.tok.RefreshToken == "" {
		return nil, invalidConfig("token expired and has no refresh token")
	}

	fresh, err := s.client.Refresh(s.ctx, s.tok.RefreshToken)
	if err != nil {
		return nil, err
	}
	s.tok = fresh
	return fresh.OAuth2Token(), nil
}
