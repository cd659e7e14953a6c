package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-training/spotify-oauth/pkg/core"

	"github.com/redis/rueidis"
)

// pendingPrefix namespaces pending authorization keys.
const pendingPrefix = "spotify_oauth:pending:"

// RedisStore implements the core.Store interface using Redis via rueidis.
// Entries expire through the key TTL; TakePending uses GETDEL so two
// callbacks racing on the same state cannot both win.
type RedisStore struct {
	client rueidis.Client
	now    func() time.Time
}

// NewRedisStore creates a new instance of RedisStore with the provided rueidis client.
func NewRedisStore(client rueidis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		now:    time.Now,
	}
}

// RedisOptions contains configuration for Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStoreFromOptions creates a new RedisStore with simplified options.
func NewRedisStoreFromOptions(opts RedisOptions) (*RedisStore, error) {
	return NewRedisStoreFromClientOption(rueidis.ClientOption{
		InitAddress: []string{opts.Addr},
		Password:    opts.Password,
		SelectDB:    opts.DB,
	})
}

// NewRedisStoreFromClientOption creates a new RedisStore with full rueidis client options.
func NewRedisStoreFromClientOption(opts rueidis.ClientOption) (*RedisStore, error) {
	client, err := rueidis.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	return NewRedisStore(client), nil
}

// Close closes the Redis client connection.
func (r *RedisStore) Close() {
	r.client.Close()
}

// SavePending stores a pending authorization with a TTL matching its
// remaining lifetime.
func (r *RedisStore) SavePending(ctx context.Context, p *core.PendingAuthorization) error {
	if p == nil {
		return ErrNilPending
	}
	if p.State == "" {
		return ErrEmptyState
	}

	ttl := time.Unix(p.ExpiresAt, 0).Sub(r.now())
	if ttl < time.Second {
		return ErrAlreadyExpired
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal pending authorization: %w", err)
	}

	cmd := r.client.B().Set().Key(pendingPrefix + p.State).Value(string(data)).ExSeconds(int64(ttl / time.Second)).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to save pending authorization to redis: %w", err)
	}
	return nil
}

// TakePending atomically reads and deletes the pending authorization for state.
func (r *RedisStore) TakePending(ctx context.Context, state string) (*core.PendingAuthorization, error) {
	if state == "" {
		return nil, ErrEmptyState
	}

	cmd := r.client.B().Getdel().Key(pendingPrefix + state).Build()
	result, err := r.client.Do(ctx, cmd).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrPendingNotFound
		}
		return nil, fmt.Errorf("failed to take pending authorization from redis: %w", err)
	}

	var p core.PendingAuthorization
	if err := json.Unmarshal([]byte(result), &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending authorization: %w", err)
	}

	// TTL has second granularity; the stored deadline is authoritative.
	if p.Expired(r.now()) {
		return nil, ErrPendingNotFound
	}
	return &p, nil
}

// DeletePending removes the pending authorization for state.
// It returns ErrPendingNotFound if none exists.
func (r *RedisStore) DeletePending(ctx context.Context, state string) error {
	if state == "" {
		return ErrEmptyState
	}

	cmd := r.client.B().Del().Key(pendingPrefix + state).Build()
	result, err := r.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return fmt.Errorf("failed to delete pending authorization from redis: %w", err)
	}
	if result == 0 {
		return ErrPendingNotFound
	}
	return nil
}
