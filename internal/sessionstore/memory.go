package sessionstore

import (
	"context"
	"net/http"
	"pagerduty-tools/internal/components/chrono"
	"sync"
)

// Memory keeps sessions for the lifetime of the process.
type Memory struct {
	clock    chrono.API
	mutex    sync.Mutex
	sessions map[string]session
}

func NewMemory(clock chrono.API) *Memory {
	return &Memory{
		clock:    clock,
		sessions: map[string]session{},
	}
}

func (m *Memory) Load(_ context.Context, host string) ([]*http.Cookie, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	s, ok := m.sessions[host]
	if !ok {
		return nil, ErrNotFound
	}
	return s.httpCookies(), nil
}

func (m *Memory) Save(_ context.Context, host string, cookies []*http.Cookie) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.sessions[host] = toSession(cookies, m.clock.Now())
	return nil
}

func (m *Memory) Clear(_ context.Context, host string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.sessions, host)
	return nil
}
