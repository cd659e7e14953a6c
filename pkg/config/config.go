package config

import (
	"errors"
	"flag"
	"os"

	"github.com/go-training/spotify-oauth/pkg/auth"
	"github.com/go-training/spotify-oauth/pkg/scope"
	"github.com/go-training/spotify-oauth/pkg/store"
)

const (
	clientIDEnvVar     = "SPOTIFY_CLIENT_ID"
	clientSecretEnvVar = "SPOTIFY_CLIENT_SECRET"
	redirectURIEnvVar  = "SPOTIFY_REDIRECT_URI"
	scopesEnvVar       = "SPOTIFY_SCOPES"

	// DefaultRedirectURI matches the redirect registered for local development.
	DefaultRedirectURI = "http://localhost:8888/callback"
)

var errMissingCredentials = errors.New("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must be set")

// GetEnv returns the value of envVar, or defaultValue when it is unset or empty.
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// Spotify holds the application credentials and request settings shared by
// the commands.
type Spotify struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       string
	ShowDialog   bool

	StoreType     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel string
}

// RegisterFlags binds the settings to fs. Defaults come from the environment
// so secrets do not have to appear on the command line.
func RegisterFlags(fs *flag.FlagSet) *Spotify {
	s := &Spotify{}
	fs.StringVar(&s.ClientID, "client-id", GetEnv(clientIDEnvVar, ""), "Spotify client ID (env "+clientIDEnvVar+")")
	fs.StringVar(&s.ClientSecret, "client-secret", GetEnv(clientSecretEnvVar, ""), "Spotify client secret (env "+clientSecretEnvVar+")")
	fs.StringVar(&s.RedirectURI, "redirect-uri", GetEnv(redirectURIEnvVar, DefaultRedirectURI), "registered redirect URI (env "+redirectURIEnvVar+")")
	fs.StringVar(&s.Scopes, "scopes", GetEnv(scopesEnvVar, ""), "space separated scopes to request")
	fs.BoolVar(&s.ShowDialog, "show-dialog", false, "force the consent dialog even if already approved")
	fs.StringVar(&s.StoreType, "store", "memory", "Store type: memory or redis")
	fs.StringVar(&s.RedisAddr, "redis-addr", "localhost:6379", "Redis address (only used when store=redis)")
	fs.StringVar(&s.RedisPassword, "redis-password", "", "Redis password (only used when store=redis)")
	fs.IntVar(&s.RedisDB, "redis-db", 0, "Redis database (only used when store=redis)")
	fs.StringVar(&s.LogLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR). Defaults to DEBUG in development, INFO in production")
	return s
}

// Validate checks that credentials are present, the scopes are known and
// the store backend exists.
func (s *Spotify) Validate() error {
	if s.ClientID == "" || s.ClientSecret == "" {
		return errMissingCredentials
	}
	if _, err := s.ParsedScopes(); err != nil {
		return err
	}
	_, err := s.StoreConfig()
	return err
}

// ParsedScopes returns the configured scopes.
func (s *Spotify) ParsedScopes() ([]scope.Scope, error) {
	return scope.Parse(s.Scopes)
}

// NewClient builds the token exchange client from the settings.
func (s *Spotify) NewClient(opts ...auth.ClientOption) (*auth.Client, error) {
	return auth.NewClient(s.ClientID, s.ClientSecret, s.RedirectURI, opts...)
}

// StoreConfig returns the pending authorization store configuration.
func (s *Spotify) StoreConfig() (store.Config, error) {
	t, err := store.ParseStoreType(s.StoreType)
	if err != nil {
		return store.Config{}, err
	}
	cfg := store.Config{
		Type: t,
		Redis: store.RedisOptions{
			Addr:     s.RedisAddr,
			Password: s.RedisPassword,
			DB:       s.RedisDB,
		},
	}
	return cfg, cfg.Validate()
}
