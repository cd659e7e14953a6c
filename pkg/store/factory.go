package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-training/spotify-oauth/pkg/core"
)

// ErrUnknownStoreType is returned for a backend name other than memory or redis.
var ErrUnknownStoreType = errors.New("unknown store type")

// StoreType names a pending authorization backend.
type StoreType string

const (
	// StoreTypeMemory keeps pending states in the process.
	StoreTypeMemory StoreType = "memory"
	// StoreTypeRedis keeps pending states in Redis, shared between replicas.
	StoreTypeRedis StoreType = "redis"
)

// ParseStoreType normalises s. An empty value selects memory; anything
// else that is not a known backend is an error, never a silent fallback.
func ParseStoreType(s string) (StoreType, error) {
	t := StoreType(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return StoreTypeMemory, nil
	}
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q (want %s or %s)", ErrUnknownStoreType, s, StoreTypeMemory, StoreTypeRedis)
	}
	return t, nil
}

func (t StoreType) String() string {
	return string(t)
}

// IsValid reports whether t names a known backend.
func (t StoreType) IsValid() bool {
	return t == StoreTypeMemory || t == StoreTypeRedis
}

// Config selects and configures a backend.
type Config struct {
	Type  StoreType
	Redis RedisOptions // used when Type is StoreTypeRedis
}

// Validate checks the backend name and its required settings.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownStoreType, c.Type)
	}
	if c.Type == StoreTypeRedis && c.Redis.Addr == "" {
		return errors.New("redis store requires an address")
	}
	return nil
}

// NewStore opens the backend described by c.
func NewStore(c Config) (core.Store, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Type == StoreTypeRedis {
		return NewRedisStoreFromOptions(c.Redis)
	}
	return NewMemoryStore(), nil
}

// Closer is implemented by stores holding a connection.
type Closer interface {
	Close()
}

// Close releases s if it holds a connection.
func Close(s core.Store) {
	if c, ok := s.(Closer); ok {
		c.Close()
	}
}
