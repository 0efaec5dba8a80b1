package commands

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"pagerduty-tools/internal/components/chrono"
	"pagerduty-tools/internal/notify"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

const onCallPage = `<html><body>
<div class="escalation_policy">
  <h3>Ops</h3>
  <table class="on_call_levels">
    <tr class="level"><td class="level_label">Level 1:</td><td class="person"><a href="/users/P1">Alice</a></td></tr>
    <tr class="level"><td class="level_label">Level 2:</td><td class="person"><a href="/users/P2">Bob</a></td></tr>
  </table>
</div>
<div class="escalation_policy">
  <h3>Database</h3>
  <table class="on_call_levels">
    <tr class="level"><td class="level_label">Level 1:</td><td class="person"><a href="/users/P3">Carol</a></td></tr>
  </table>
</div>
</body></html>`

const signInPage = `<html><body>
<form id="login_form" action="/session" method="post">
  <input type="hidden" name="authenticity_token" value="tok">
  <input name="user[email]"><input type="password" name="user[password]">
</form>
</body></html>`

func profilePage(email string) string {
	return `<html><body><div id="user_profile"><a href="mailto:` + email + `">` + email + `</a></div></body></html>`
}

type servers struct {
	dashboard *httptest.Server
	campfire  *httptest.Server

	topics []string
	hits   atomic.Int32
}

func newServers(t *testing.T) *servers {
	s := &servers{}

	mux := http.NewServeMux()
	authed := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie("_session")
			if err != nil || cookie.Value != "ok" {
				http.Redirect(w, r, "/sign_in", http.StatusFound)
				return
			}
			io.WriteString(w, body)
		}
	}
	mux.HandleFunc("GET /sign_in", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, signInPage)
	})
	mux.HandleFunc("POST /session", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("user[email]") != "ops@acme.test" || r.FormValue("user[password]") != "pw" {
			io.WriteString(w, signInPage)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "_session", Value: "ok", Path: "/"})
		http.Redirect(w, r, "/on_call_info", http.StatusFound)
	})
	mux.HandleFunc("GET /on_call_info", authed(onCallPage))
	mux.HandleFunc("GET /users/P1", authed(profilePage("alice@acme.test")))
	mux.HandleFunc("GET /users/P2", authed(profilePage("bob@acme.test")))
	mux.HandleFunc("GET /users/P3", authed(profilePage("carol@acme.test")))
	s.dashboard = httptest.NewServer(mux)
	t.Cleanup(s.dashboard.Close)

	s.campfire = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		raw, _ := io.ReadAll(r.Body)
		s.topics = append(s.topics, string(raw))
	}))
	t.Cleanup(s.campfire.Close)

	return s
}

func (s *servers) environment() map[string]string {
	return map[string]string{
		"PAGERDUTY_BASE_URL": s.dashboard.URL,
		"PAGERDUTY_EMAIL":    "ops@acme.test",
		"PAGERDUTY_PASSWORD": "pw",
		"CAMPFIRE_BASE_URL":  s.campfire.URL,
		"CAMPFIRE_TOKEN":     "token",
		"CAMPFIRE_ROOM":      "42",
	}
}

func execute(t *testing.T, environment map[string]string, args ...string) (string, error) {
	config := filepath.Join(t.TempDir(), "oncall.json5")
	err := os.WriteFile(config, []byte(`{ session: { backend: "memory" }, rate_limit: 1000 }`), 0600)
	require.NoError(t, err)

	cmd := NewRootCmd(environment)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", config}, args...))

	err = cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPrintsReport(t *testing.T) {
	s := newServers(t)

	out, err := execute(t, s.environment())
	require.NoError(t, err)
	require.Equal(t, "Level 1: Alice, Level 2: Bob, Level 1: Carol\n", out)
	require.Zero(t, s.hits.Load(), "nothing is sent to campfire without -c")
}

func TestFilters(t *testing.T) {
	s := newServers(t)

	out, err := execute(t, s.environment(), "2")
	require.NoError(t, err)
	require.Equal(t, "Level 2: Bob\n", out)

	out, err = execute(t, s.environment(), "-p", "database")
	require.NoError(t, err)
	require.Equal(t, "Level 1: Carol\n", out)

	out, err = execute(t, s.environment(), "--level-digits", "12", "--policy", "Ops")
	require.NoError(t, err)
	require.Equal(t, "Level 1: Alice, Level 2: Bob\n", out)

	_, err = execute(t, s.environment(), "-p", "Opz")
	require.ErrorContains(t, err, "did you mean Ops?")

	_, err = execute(t, s.environment(), "two")
	require.Error(t, err)
}

func TestCampfire(t *testing.T) {
	s := newServers(t)

	out, err := execute(t, s.environment(), "-c")
	require.NoError(t, err)
	require.Empty(t, out)
	require.Equal(t, int32(1), s.hits.Load())
	require.JSONEq(t, `{"room":{"topic":"Level 1: Alice, Level 2: Bob, Level 1: Carol"}}`, s.topics[0])

	_, err = execute(t, s.environment(), "-t", "1")
	require.NoError(t, err)
	require.Equal(t, int32(2), s.hits.Load())
	require.JSONEq(t, `{"room":{"topic":"Level 1: Alice, Level 1: Carol"}}`, s.topics[1])

	environment := s.environment()
	delete(environment, "CAMPFIRE_TOKEN")
	_, err = execute(t, environment, "-c")
	require.ErrorContains(t, err, "token")
}

func TestEmailStub(t *testing.T) {
	s := newServers(t)

	out, err := execute(t, s.environment(), "-e")
	require.NoError(t, err)
	require.Equal(t, notify.EmailNotWorking+"\n", out)
}

func TestTableFormat(t *testing.T) {
	s := newServers(t)

	out, err := execute(t, s.environment(), "--format", "table")
	require.NoError(t, err)
	require.True(t, strings.Contains(out, "carol@acme.test"))

	_, err = execute(t, s.environment(), "--format", "xml")
	require.Error(t, err)
}

func TestRejectedLogin(t *testing.T) {
	s := newServers(t)
	environment := s.environment()
	environment["PAGERDUTY_PASSWORD"] = "wrong"

	_, err := execute(t, environment)
	require.ErrorContains(t, err, "rejected")
}

func TestDashboardUrl(t *testing.T) {
	u, err := Config{Subdomain: "acme"}.DashboardUrl()
	require.NoError(t, err)
	require.Equal(t, "https://acme.pagerduty.com", u)

	u, err = Config{Subdomain: "acme", BaseUrl: "http://localhost:8080"}.DashboardUrl()
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080", u)

	_, err = Config{}.DashboardUrl()
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "oncall.json5")
	err := os.WriteFile(path, []byte(`{
		// comments are fine
		subdomain: "acme",
		campfire: { subdomain: "acme", room: "1" },
		markup: { policy: "section.policy" },
		level_args: "digits",
	}`), 0600)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "oncall.local.json5"), []byte(`{ campfire: { token: "local-token" } }`), 0600)
	require.NoError(t, err)

	cfg, err := LoadConfig(path, map[string]string{"PAGERDUTY_SUBDOMAIN": "override"})
	require.NoError(t, err)
	require.Equal(t, "override", cfg.Subdomain)
	require.Equal(t, "local-token", cfg.Campfire.Token)
	require.Equal(t, "acme", cfg.Campfire.Subdomain)
	require.Equal(t, "section.policy", cfg.Markup.Policy)
	require.Equal(t, "digits", cfg.LevelArgs)

	_, err = LoadConfig(filepath.Join(dir, "missing.json5"), map[string]string{})
	require.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	for _, backend := range []string{"file", "sqlite", "memory"} {
		cfg := Config{Session: SessionConfig{
			Backend: backend,
			Path:    filepath.Join(t.TempDir(), "sessions"),
		}}
		store, closeStore, err := cfg.OpenStore(ctx, false, chrono.StandardImpl{})
		require.NoError(t, err, backend)
		require.NotNil(t, store)
		require.NoError(t, closeStore())
	}

	_, _, err := Config{Session: SessionConfig{Backend: "redis"}}.OpenStore(ctx, false, chrono.StandardImpl{})
	require.Error(t, err)
}
