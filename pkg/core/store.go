package core

import (
	"context"
	"time"
)

// PendingAuthorization is an authorization request that has been sent to
// the user but whose callback has not arrived yet. It is keyed by State.
type PendingAuthorization struct {
	State       string   `json:"state"`
	ClientID    string   `json:"client_id"`
	RedirectURI string   `json:"redirect_uri"`
	Scopes      []string `json:"scopes"`
	ShowDialog  bool     `json:"show_dialog,omitempty"`
	CreatedAt   int64    `json:"created_at"`
	ExpiresAt   int64    `json:"expires_at"`
}

// Expired reports whether the pending authorization is past its deadline.
func (p *PendingAuthorization) Expired(now time.Time) bool {
	return now.Unix() >= p.ExpiresAt
}

// Store keeps pending authorizations between issuing the authorize URL and
// receiving the callback.
type Store interface {
	// SavePending records p under p.State until p.ExpiresAt.
	SavePending(ctx context.Context, p *PendingAuthorization) error
	// TakePending returns the pending authorization for state and removes
	// it, so a state can be redeemed only once.
	TakePending(ctx context.Context, state string) (*PendingAuthorization, error)
	// DeletePending discards the pending authorization for state.
	DeletePending(ctx context.Context, state string) error
}
