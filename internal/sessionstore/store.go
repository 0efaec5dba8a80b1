// Package sessionstore persists the dashboard's session cookies between runs.
//
// The stored cookies are opaque to everything but the session agent, a store
// only ever keys them by host.
package sessionstore

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrNotFound is returned by Load when nothing is stored for a host.
var ErrNotFound = errors.New("sessionstore: no session stored for host")

// Store is implemented by every session backend.
//
// note: fault injection point
type Store interface {
	Load(ctx context.Context, host string) ([]*http.Cookie, error)
	Save(ctx context.Context, host string, cookies []*http.Cookie) error
	Clear(ctx context.Context, host string) error
}

// cookie is the serialized form of an http.Cookie.
type cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// session is what is stored under a single host.
type session struct {
	Cookies   []cookie  `json:"cookies"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toSession(cookies []*http.Cookie, now time.Time) session {
	out := session{
		Cookies:   make([]cookie, 0, len(cookies)),
		UpdatedAt: now,
	}
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		out.Cookies = append(out.Cookies, cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	return out
}

func (s session) httpCookies() []*http.Cookie {
	out := make([]*http.Cookie, len(s.Cookies))
	for i, c := range s.Cookies {
		out[i] = &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
	}
	return out
}
