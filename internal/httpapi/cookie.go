// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

// CookieCodec writes and reads the session cookie. With a secret
// configured the cookie value is the token plus an HMAC-SHA256 signature
// ("token.signature", base64url); tampered or unsigned values are
// rejected before the token reaches the core. With no secret the raw
// token is the cookie value.
type CookieCodec struct {
	name   string
	secret []byte
	domain string
	secure bool
}

// NewCookieCodec builds a codec. An empty secret disables signing.
func NewCookieCodec(name, secret, domain string, secure bool) *CookieCodec {
	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	return &CookieCodec{name: name, secret: key, domain: domain, secure: secure}
}

// Name returns the cookie name.
func (c *CookieCodec) Name() string { return c.name }

func (c *CookieCodec) sign(token string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Encode turns a session token into a cookie value.
func (c *CookieCodec) Encode(token string) string {
	if len(c.secret) == 0 {
		return token
	}
	return token + "." + c.sign(token)
}

// Decode extracts the session token from a cookie value. ok is false when
// the value is empty or, in signed mode, when the signature is missing or
// does not verify.
func (c *CookieCodec) Decode(value string) (token string, ok bool) {
	if value == "" {
		return "", false
	}
	if len(c.secret) == 0 {
		return value, true
	}

	token, sig, found := strings.Cut(value, ".")
	if !found || token == "" {
		return "", false
	}
	want, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(token))
	if !hmac.Equal(mac.Sum(nil), want) {
		return "", false
	}
	return token, true
}

// Set writes the session cookie on the response.
func (c *CookieCodec) Set(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    c.Encode(token),
		Path:     "/",
		Domain:   c.domain,
		Expires:  expires,
		Secure:   c.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear expires the session cookie on the response.
func (c *CookieCodec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   -1,
		Secure:   c.secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// Read extracts the session token from the request. The cookie wins; an
// Authorization bearer header is accepted as a fallback for non-browser
// clients and carries the raw token, never the signed form.
func (c *CookieCodec) Read(r *http.Request) (token string, ok bool) {
	if cookie, err := r.Cookie(c.name); err == nil {
		if token, ok = c.Decode(cookie.Value); ok {
			return token, true
		}
		// A present but invalid cookie does not fall through to the
		// header; the client should clear it.
		return "", false
	}

	header := r.Header.Get("Authorization")
	if bearer, found := strings.CutPrefix(header, "Bearer "); found && bearer != "" {
		return bearer, true
	}
	return "", false
}
