package auth

import (
	"fmt"
	"net/url"
)

// Callback is what the provider appended to the redirect URI: either a
// code or an error, plus the state it was given.
type Callback struct {
	Code  string
	Error string
	State string
}

// ParseCallback reads a callback from the full redirect URL the browser
// landed on.
func ParseCallback(rawURL string) (Callback, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Callback{}, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	return CallbackFromQuery(u.Query())
}

// CallbackFromQuery reads a callback from already parsed query values, as
// an HTTP handler receives them.
func CallbackFromQuery(q url.Values) (Callback, error) {
	hasState := q.Has("state")
	hasResponse := q.Has("code") || q.Has("error")

	switch {
	case !hasState && !hasResponse:
		return Callback{}, fmt.Errorf("%w: no state or response query parameters", ErrInvalidCallback)
	case !hasState:
		return Callback{}, fmt.Errorf("%w: no state query parameter", ErrInvalidCallback)
	case !hasResponse:
		return Callback{}, fmt.Errorf("%w: no code or error query parameter", ErrInvalidCallback)
	}

	return Callback{
		Code:  q.Get("code"),
		Error: q.Get("error"),
		State: q.Get("state"),
	}, nil
}
