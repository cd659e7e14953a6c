package auth

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

// tokenResponse is a validated token endpoint response body.
type tokenResponse struct {
	AccessToken  string
	TokenType    string
	Scope        string
	ExpiresIn    int64
	RefreshToken string
}

// decodeTokenResponse checks field presence and types one by one so the
// error names the offending field. refresh_token is optional here; the
// grant decides whether its absence is acceptable.
func decodeTokenResponse(body []byte) (tokenResponse, error) {
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return tokenResponse{}, &MalformedResponseError{Reason: "body is not a JSON object"}
	}

	var resp tokenResponse
	var err error
	if resp.AccessToken, err = requiredString(fields, "access_token"); err != nil {
		return tokenResponse{}, err
	}
	if resp.AccessToken == "" {
		return tokenResponse{}, &MalformedResponseError{Field: "access_token", Reason: "empty"}
	}
	if resp.TokenType, err = requiredString(fields, "token_type"); err != nil {
		return tokenResponse{}, err
	}
	// RFC 6749 token types are case insensitive; keep the canonical spelling.
	if !strings.EqualFold(resp.TokenType, TokenTypeBearer) {
		return tokenResponse{}, &MalformedResponseError{Field: "token_type", Reason: "not Bearer"}
	}
	resp.TokenType = TokenTypeBearer
	if resp.ExpiresIn, err = requiredSeconds(fields, "expires_in"); err != nil {
		return tokenResponse{}, err
	}
	if resp.Scope, err = optionalString(fields, "scope"); err != nil {
		return tokenResponse{}, err
	}
	if resp.RefreshToken, err = optionalString(fields, "refresh_token"); err != nil {
		return tokenResponse{}, err
	}
	return resp, nil
}

func requiredString(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return "", &MalformedResponseError{Field: name, Reason: "missing"}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &MalformedResponseError{Field: name, Reason: "not a string"}
	}
	return s, nil
}

func optionalString(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", &MalformedResponseError{Field: name, Reason: "not a string"}
	}
	return s, nil
}

func requiredSeconds(fields map[string]json.RawMessage, name string) (int64, error) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return 0, &MalformedResponseError{Field: name, Reason: "missing"}
	}
	var n json.Number
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte(`"`)) {
		return 0, &MalformedResponseError{Field: name, Reason: "not a number"}
	}
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, &MalformedResponseError{Field: name, Reason: "not a number"}
	}
	v, err := n.Int64()
	if err != nil {
		return 0, &MalformedResponseError{Field: name, Reason: "not an integer"}
	}
	if v < 0 || v > math.MaxInt64/int64(1e9) {
		return 0, &MalformedResponseError{Field: name, Reason: "out of range"}
	}
	return v, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// oauthError is the error object of RFC 6749 section 5.2.
type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func newProviderError(status int, body []byte) *ProviderError {
	pe := &ProviderError{Status: status, Body: string(body)}
	var oe oauthError
	if json.Unmarshal(body, &oe) == nil {
		pe.Code = oe.Error
		pe.Description = oe.ErrorDescription
	}
	return pe
}
