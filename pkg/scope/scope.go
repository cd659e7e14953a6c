// Package scope enumerates the permission scopes recognized by the Spotify
// accounts service and renders them for the authorization URL.
package scope

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownScope is returned by Parse for a token that is not a known scope.
var ErrUnknownScope = errors.New("unknown scope")

// Scope is a Spotify permission scope. The value of each constant is the
// exact string the provider expects.
type Scope string

// Listening history
const (
	UserReadRecentlyPlayed   Scope = "user-read-recently-played"
	UserTopRead              Scope = "user-top-read"
	UserReadPlaybackPosition Scope = "user-read-playback-position"
)

// Library
const (
	UserLibraryModify Scope = "user-library-modify"
	UserLibraryRead   Scope = "user-library-read"
)

// Playlists
const (
	PlaylistReadPrivate       Scope = "playlist-read-private"
	PlaylistModifyPublic      Scope = "playlist-modify-public"
	PlaylistModifyPrivate     Scope = "playlist-modify-private"
	PlaylistReadCollaborative Scope = "playlist-read-collaborative"
)

// Users
const (
	UserReadEmail     Scope = "user-read-email"
	UserReadBirthDate Scope = "user-read-birthdate"
	UserReadPrivate   Scope = "user-read-private"
)

// Spotify Connect
const (
	UserReadPlaybackState    Scope = "user-read-playback-state"
	UserModifyPlaybackState  Scope = "user-modify-playback-state"
	UserReadCurrentlyPlaying Scope = "user-read-currently-playing"
)

// Playback
const (
	AppRemoteControl Scope = "app-remote-control"
	Streaming        Scope = "streaming"
)

// Follow
const (
	UserFollowRead   Scope = "user-follow-read"
	UserFollowModify Scope = "user-follow-modify"
)

// Images
const (
	UGCImageUpload Scope = "ugc-image-upload"
)

var all = []Scope{
	UserReadRecentlyPlayed,
	UserTopRead,
	UserReadPlaybackPosition,
	UserLibraryModify,
	UserLibraryRead,
	PlaylistReadPrivate,
	PlaylistModifyPublic,
	PlaylistModifyPrivate,
	PlaylistReadCollaborative,
	UserReadEmail,
	UserReadBirthDate,
	UserReadPrivate,
	UserReadPlaybackState,
	UserModifyPlaybackState,
	UserReadCurrentlyPlaying,
	AppRemoteControl,
	Streaming,
	UserFollowRead,
	UserFollowModify,
	UGCImageUpload,
}

var known = func() map[Scope]struct{} {
	m := make(map[Scope]struct{}, len(all))
	for _, s := range all {
		m[s] = struct{}{}
	}
	return m
}()

// All returns every known scope in declaration order.
func All() []Scope {
	out := make([]Scope, len(all))
	copy(out, all)
	return out
}

// String returns the provider string of the scope.
func (s Scope) String() string {
	return string(s)
}

// Valid reports whether s is one of the known scopes.
func (s Scope) Valid() bool {
	_, ok := known[s]
	return ok
}

// Dedup returns scopes with duplicates removed, keeping the first occurrence
// of each scope in its original position.
func Dedup(scopes []Scope) []Scope {
	if len(scopes) == 0 {
		return nil
	}
	seen := make(map[Scope]struct{}, len(scopes))
	out := make([]Scope, 0, len(scopes))
	for _, s := range scopes {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Render joins the scopes with a single space in the order provided,
// dropping duplicates. Empty input yields an empty string.
func Render(scopes []Scope) string {
	return strings.Join(Strings(Dedup(scopes)), " ")
}

// Strings converts scopes to their provider strings.
func Strings(scopes []Scope) []string {
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		out = append(out, string(s))
	}
	return out
}

// Parse splits a whitespace-delimited scope string, as found in token
// responses, into scopes. Unknown tokens fail with ErrUnknownScope.
func Parse(s string) ([]Scope, error) {
	fields := strings.Fields(s)
	out := make([]Scope, 0, len(fields))
	for _, f := range fields {
		sc := Scope(f)
		if !sc.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownScope, f)
		}
		out = append(out, sc)
	}
	return Dedup(out), nil
}
