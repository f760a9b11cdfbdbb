package auth

import (
	"net/http"
	"time"
)

const RefreshCookieName = "refresh_token"

// CookiePolicy describes how the refresh secret travels to the browser.
type CookiePolicy struct {
	Name   string
	Paths  []string
	MaxAge time.Duration
	Secure bool
}

// NewCookiePolicy returns the policy for a refresh secret valid for ttl. The
// cookie is scoped to the two endpoints that read it.
func NewCookiePolicy(ttl time.Duration, secure bool) CookiePolicy {
	return CookiePolicy{
		Name:   RefreshCookieName,
		Paths:  []string{"/refresh", "/logout"},
		MaxAge: ttl,
		Secure: secure,
	}
}

// AttachRefreshCookie sets the refresh cookie on every configured path.
func (p CookiePolicy) AttachRefreshCookie(w http.ResponseWriter, raw string) {
	for _, path := range p.Paths {
		http.SetCookie(w, p.cookie(path, raw, int(p.MaxAge/time.Second)))
	}
}

// ClearRefreshCookie expires the refresh cookie on every configured path.
func (p CookiePolicy) ClearRefreshCookie(w http.ResponseWriter) {
	for _, path := range p.Paths {
		c := p.cookie(path, "", -1)
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

// ReadRefreshCookie returns the refresh secret presented with r, if any.
func (p CookiePolicy) ReadRefreshCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(p.Name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (p CookiePolicy) cookie(path, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     p.Name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}
