package discord

import "net/http"

// Credential is the account token and the browser identity sent with it.
// It is immutable; Headers returns a fresh map on every call so no request
// can leak a mutation into another.
type Credential struct {
	token     string
	userAgent string
}

// NewCredential creates a Credential
func NewCredential(token, userAgent string) Credential {
	return Credential{token: token, userAgent: userAgent}
}

// Headers returns a new header set carrying the credential
func (c Credential) Headers() http.Header {
	h := make(http.Header, 2)
	if c.token != "" {
		h.Set("Authorization", c.token)
	}
	if c.userAgent != "" {
		h.Set("User-Agent", c.userAgent)
	}
	return h
}

// IsZero reports whether no token is set
func (c Credential) IsZero() bool {
	return c.token == ""
}

// String masks the token so a Credential is safe to log
func (c Credential) String() string {
	return MaskToken(c.token)
}

// MaskToken keeps the first and last four characters of a token
func MaskToken(token string) string {
	if token == "" {
		return "<none>"
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}
