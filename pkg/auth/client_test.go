package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHTTPClient answers every request with a canned response and records
// what it was sent.
type stubHTTPClient struct {
	mu       sync.Mutex
	status   int
	body     string
	err      error
	requests []*http.Request
	forms    []url.Values
}

func (s *stubHTTPClient) Do(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		form, _ := url.ParseQuery(string(raw))
		s.forms = append(s.forms, form)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func (s *stubHTTPClient) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, stub HTTPClient, opts ...ClientOption) *Client {
	t.Helper()
	opts = append([]ClientOption{
		WithHTTPClient(stub),
		WithNowFunc(func() time.Time { return fixedNow }),
	}, opts...)
	c, err := NewClient("abc", "s3cret", "https://app/cb", opts...)
	require.NoError(t, err)
	return c
}

const okBody = `{"access_token":"AT","token_type":"Bearer","scope":"user-library-read","expires_in":3600,"refresh_token":"RT"}`

func TestNewClient(t *testing.T) {
	tests := []struct {
		name        string
		id, secret  string
		redirectURI string
		opts        []ClientOption
		wantErr     bool
	}{
		{name: "valid", id: "abc", secret: "s", redirectURI: "https://app/cb"},
		{name: "blank client id", id: "  ", secret: "s", redirectURI: "https://app/cb", wantErr: true},
		{name: "empty secret", id: "abc", secret: "", redirectURI: "https://app/cb", wantErr: true},
		{name: "relative redirect", id: "abc", secret: "s", redirectURI: "/cb", wantErr: true},
		{name: "unparsable redirect", id: "abc", secret: "s", redirectURI: "http://[::1", wantErr: true},
		{name: "nil http client", id: "abc", secret: "s", redirectURI: "https://app/cb", opts: []ClientOption{WithHTTPClient(nil)}, wantErr: true},
		{name: "relative token url", id: "abc", secret: "s", redirectURI: "https://app/cb", opts: []ClientOption{WithTokenURL("/token")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.id, tt.secret, tt.redirectURI, tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				assert.NotContains(t, err.Error(), "s3cret")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestExchangeCodeStateMismatchMakesNoRequest(t *testing.T) {
	pairs := [][2]string{
		{"abc", "abd"},
		{"abc", ""},
		{"", "abc"},
		{"state", "State"},
		{"state", "state "},
	}
	for _, p := range pairs {
		stub := &stubHTTPClient{status: http.StatusOK, body: okBody}
		c := newTestClient(t, stub)

		_, err := c.ExchangeCode(context.Background(), "code", p[0], p[1])
		require.ErrorIs(t, err, ErrStateMismatch, "expected %q received %q", p[0], p[1])
		assert.Equal(t, 0, stub.calls())
	}
}

func TestExchangeCodeSuccess(t *testing.T) {
	stub := &stubHTTPClient{status: http.StatusOK, body: okBody}
	c := newTestClient(t, stub)

	tok, err := c.ExchangeCode(context.Background(), "the-code", "st", "st")
	require.NoError(t, err)

	assert.Equal(t, "AT", tok.AccessToken)
	assert.Equal(t, "RT", tok.RefreshToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, "user-library-read", tok.Scope)
	assert.Equal(t, int64(3600), tok.ExpiresIn)
	assert.WithinDuration(t, fixedNow.Add(3600*time.Second), tok.ExpiresAt, time.Second)

	require.Equal(t, 1, stub.calls())
	req := stub.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, TokenURL, req.URL.String())
	assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("abc:s3cret"))
	assert.Equal(t, wantAuth, req.Header.Get("Authorization"))

	form := stub.forms[0]
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "the-code", form.Get("code"))
	assert.Equal(t, "https://app/cb", form.Get("redirect_uri"))
	assert.False(t, form.Has("refresh_token"))
}

func TestExchangeCodeProviderError(t *testing.T) {
	stub := &stubHTTPClient{status: http.StatusBadRequest, body: `{"error":"invalid_grant"}`}
	c := newTestClient(t, stub)

	_, err := c.ExchangeCode(context.Background(), "code", "st", "st")
	require.ErrorIs(t, err, ErrProvider)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusBadRequest, perr.Status)
	assert.Contains(t, perr.Body, "invalid_grant")
	assert.Equal(t, "invalid_grant", perr.Code)
	assert.False(t, perr.Retryable())
	assert.NotContains(t, err.Error(), "s3cret")
}

func TestProviderErrorRetryable(t *testing.T) {
	stub := &stubHTTPClient{status: http.StatusBadGateway, body: "<html>bad gateway</html>"}
	c := newTestClient(t, stub)

	_, err := c.Refresh(context.Background(), "RT")
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.Retryable())
	assert.Empty(t, perr.Code)
}

func TestProviderErrorSnippet(t *testing.T) {
	long := strings.Repeat("x", 4096)
	err := &ProviderError{Status: 500, Body: long}
	assert.Less(t, len(err.Error()), 600)
	assert.Len(t, err.Body, 4096)
}

func TestExchangeCodeMalformedResponse(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "not json", body: `<html></html>`},
		{name: "json array", body: `[]`},
		{name: "missing access_token", body: `{"token_type":"Bearer","expires_in":3600,"refresh_token":"RT"}`, field: "access_token"},
		{name: "empty access_token", body: `{"access_token":"","token_type":"Bearer","expires_in":3600,"refresh_token":"RT"}`, field: "access_token"},
		{name: "numeric access_token", body: `{"access_token":1,"token_type":"Bearer","expires_in":3600,"refresh_token":"RT"}`, field: "access_token"},
		{name: "missing token_type", body: `{"access_token":"AT","expires_in":3600,"refresh_token":"RT"}`, field: "token_type"},
		{name: "mac token_type", body: `{"access_token":"AT","token_type":"MAC","expires_in":3600,"refresh_token":"RT"}`, field: "token_type"},
		{name: "missing expires_in", body: `{"access_token":"AT","token_type":"Bearer","refresh_token":"RT"}`, field: "expires_in"},
		{name: "string expires_in", body: `{"access_token":"AT","token_type":"Bearer","expires_in":"3600","refresh_token":"RT"}`, field: "expires_in"},
		{name: "fractional expires_in", body: `{"access_token":"AT","token_type":"Bearer","expires_in":36.5,"refresh_token":"RT"}`, field: "expires_in"},
		{name: "negative expires_in", body: `{"access_token":"AT","token_type":"Bearer","expires_in":-1,"refresh_token":"RT"}`, field: "expires_in"},
		{name: "numeric scope", body: `{"access_token":"AT","token_type":"Bearer","expires_in":3600,"scope":7,"refresh_token":"RT"}`, field: "scope"},
		{name: "missing refresh_token", body: `{"access_token":"AT","token_type":"Bearer","expires_in":3600}`, field: "refresh_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubHTTPClient{status: http.StatusOK, body: tt.body}
			c := newTestClient(t, stub)

			_, err := c.ExchangeCode(context.Background(), "code", "st", "st")
			require.ErrorIs(t, err, ErrMalformedResponse)

			var merr *MalformedResponseError
			require.True(t, errors.As(err, &merr))
			assert.Equal(t, tt.field, merr.Field)
		})
	}
}

func TestExchangeCodeCanonicalTokenType(t *testing.T) {
	stub := &stubHTTPClient{status: http.StatusOK, body: `{"access_token":"AT","token_type":"bearer","expires_in":3600,"refresh_token":"RT"}`}
	c := newTestClient(t, stub)

	tok, err := c.ExchangeCode(context.Background(), "code", "st", "st")
	require.NoError(t, err)
	assert.Equal(t, TokenTypeBearer, tok.TokenType)
}

func TestExchangeCodeTransportError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	stub := &stubHTTPClient{err: cause}
	c := newTestClient(t, stub)

	_, err := c.ExchangeCode(context.Background(), "code", "st", "st")
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, cause)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.False(t, terr.Timeout())
}

func TestExchangeCodeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewClient("abc", "s3cret", "https://app/cb",
		WithTokenURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}),
	)
	require.NoError(t, err)

	_, err = c.ExchangeCode(context.Background(), "code", "st", "st")
	require.ErrorIs(t, err, ErrTransport)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.True(t, terr.Timeout())
}

func TestExchangeCodeContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := NewClient("abc", "s3cret", "https://app/cb", WithTokenURL(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.ExchangeCode(ctx, "code", "st", "st")
	require.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExchangeCodeAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "abc" || secret != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "good" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid authorization code"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	c, err := NewClient("abc", "s3cret", "https://app/cb", WithTokenURL(srv.URL))
	require.NoError(t, err)

	tok, err := c.ExchangeCode(context.Background(), "good", "st", "st")
	require.NoError(t, err)
	assert.Equal(t, "AT", tok.AccessToken)
	assert.False(t, tok.IsExpired(time.Now()))

	_, err = c.ExchangeCode(context.Background(), "bad", "st", "st")
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "Invalid authorization code", perr.Description)
}

func TestRefresh(t *testing.T) {
	tests := []struct {
		name    string
		policy  RefreshPolicy
		body    string
		wantRT  string
		wantErr error
	}{
		{
			name:   "rotated token is used",
			policy: ReusePreviousRefreshToken,
			body:   `{"access_token":"AT2","token_type":"Bearer","scope":"","expires_in":3600,"refresh_token":"RT2"}`,
			wantRT: "RT2",
		},
		{
			name:   "missing token reuses previous",
			policy: ReusePreviousRefreshToken,
			body:   `{"access_token":"AT2","token_type":"Bearer","expires_in":3600}`,
			wantRT: "RT",
		},
		{
			name:   "null token reuses previous",
			policy: ReusePreviousRefreshToken,
			body:   `{"access_token":"AT2","token_type":"Bearer","expires_in":3600,"refresh_token":null}`,
			wantRT: "RT",
		},
		{
			name:    "missing token rejected when rotation required",
			policy:  RequireRotatedRefreshToken,
			body:    `{"access_token":"AT2","token_type":"Bearer","expires_in":3600}`,
			wantErr: ErrMalformedResponse,
		},
		{
			name:   "rotated token accepted when rotation required",
			policy: RequireRotatedRefreshToken,
			body:   `{"access_token":"AT2","token_type":"Bearer","expires_in":3600,"refresh_token":"RT2"}`,
			wantRT: "RT2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubHTTPClient{status: http.StatusOK, body: tt.body}
			c := newTestClient(t, stub, WithRefreshPolicy(tt.policy))

			tok, err := c.Refresh(context.Background(), "RT")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "AT2", tok.AccessToken)
			assert.Equal(t, tt.wantRT, tok.RefreshToken)
			assert.Equal(t, fixedNow.Add(time.Hour), tok.ExpiresAt)

			form := stub.forms[0]
			assert.Equal(t, "refresh_token", form.Get("grant_type"))
			assert.Equal(t, "RT", form.Get("refresh_token"))
			assert.False(t, form.Has("code"))
			assert.False(t, form.Has("redirect_uri"))
		})
	}
}

func TestRefreshEmptyToken(t *testing.T) {
	stub := &stubHTTPClient{status: http.StatusOK, body: okBody}
	c := newTestClient(t, stub)

	_, err := c.Refresh(context.Background(), "")
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 0, stub.calls())
}

func TestExchangeCallback(t *testing.T) {
	t.Run("denied", func(t *testing.T) {
		stub := &stubHTTPClient{status: http.StatusOK, body: okBody}
		c := newTestClient(t, stub)

		_, err := c.ExchangeCallback(context.Background(), Callback{Error: "access_denied", State: "st"}, "st")
		require.ErrorIs(t, err, ErrAuthorizationDenied)
		var derr *AuthorizationDeniedError
		require.True(t, errors.As(err, &derr))
		assert.Equal(t, "access_denied", derr.Reason)
		assert.Equal(t, 0, stub.calls())
	})

	t.Run("state checked before error", func(t *testing.T) {
		stub := &stubHTTPClient{status: http.StatusOK, body: okBody}
		c := newTestClient(t, stub)

		_, err := c.ExchangeCallback(context.Background(), Callback{Error: "access_denied", State: "forged"}, "st")
		require.ErrorIs(t, err, ErrStateMismatch)
	})

	t.Run("error wins over code", func(t *testing.T) {
		stub := &stubHTTPClient{status: http.StatusOK, body: okBody}
		c := newTestClient(t, stub)

		cb, err := CallbackFromQuery(url.Values{"error": {"access_denied"}, "code": {"c"}, "state": {"st"}})
		require.NoError(t, err)

		_, err = c.ExchangeCallback(context.Background(), cb, "st")
		require.ErrorIs(t, err, ErrAuthorizationDenied)
		assert.Equal(t, 0, stub.calls())
	})

	t.Run("code", func(t *testing.T) {
		stub := &stubHTTPClient{status: http.StatusOK, body: okBody}
		c := newTestClient(t, stub)

		tok, err := c.ExchangeCallback(context.Background(), Callback{Code: "c", State: "st"}, "st")
		require.NoError(t, err)
		assert.Equal(t, "AT", tok.AccessToken)
		assert.Equal(t, 1, stub.calls())
	})
}

func TestConcurrentExchanges(t *testing.T) {
	stub := &stubHTTPClient{status: http.StatusOK, body: okBody}
	c := newTestClient(t, stub)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ExchangeCode(context.Background(), "code", "st", "st")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, stub.calls())
}

func TestRefreshPolicyString(t *testing.T) {
	assert.Equal(t, "reuse-previous", ReusePreviousRefreshToken.String())
	assert.Equal(t, "require-rotated", RequireRotatedRefreshToken.String())
	assert.Equal(t, "RefreshPolicy(7)", RefreshPolicy(7).String())
}
