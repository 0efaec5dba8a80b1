package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"pagerduty-tools/internal/components/chrono"
	"path/filepath"
)

// DefaultFilePath is where the cookies live unless configured otherwise.
const DefaultFilePath = "~/.pagerduty-cookies"

// File stores every host's session in a single json document.
// There is no locking, concurrent invocations may clobber each other.
type File struct {
	path  string
	clock chrono.API
}

func NewFile(path string, clock chrono.API) File {
	return File{path: path, clock: clock}
}

func (f File) Path() string {
	return f.path
}

func (f File) read() (map[string]session, error) {
	contents, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return map[string]session{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 {
		return map[string]session{}, nil
	}

	sessions := map[string]session{}
	err = json.Unmarshal(contents, &sessions)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return sessions, nil
}

func (f File) write(sessions map[string]session) error {
	serialized, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return err
	}
	err = os.MkdirAll(filepath.Dir(f.path), 0700)
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	err = os.WriteFile(tmp, serialized, 0600)
	if err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f File) Load(_ context.Context, host string) ([]*http.Cookie, error) {
	sessions, err := f.read()
	if err != nil {
		return nil, err
	}
	s, ok := sessions[host]
	if !ok {
		return nil, ErrNotFound
	}
	return s.httpCookies(), nil
}

func (f File) Save(_ context.Context, host string, cookies []*http.Cookie) error {
	sessions, err := f.read()
	if err != nil {
		return err
	}
	sessions[host] = toSession(cookies, f.clock.Now())
	return f.write(sessions)
}

func (f File) Clear(_ context.Context, host string) error {
	sessions, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := sessions[host]; !ok {
		return nil
	}
	delete(sessions, host)
	return f.write(sessions)
}
