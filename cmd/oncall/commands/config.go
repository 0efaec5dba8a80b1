package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"pagerduty-tools/internal/components/chrono"
	"pagerduty-tools/internal/pagerduty"
	"pagerduty-tools/internal/sessionstore"
	"pagerduty-tools/lib/configutil"
	"path/filepath"

	"github.com/caarlos0/env/v9"
)

const (
	configName       = "oncall.json5"
	globalConfigPath = "~/.config/pagerduty-tools/oncall.json5"
)

type SessionConfig struct {
	// Backend is one of "file" (default), "sqlite" or "memory".
	Backend string `json:"backend" env:"ONCALL_SESSION_BACKEND"`
	Path    string `json:"path" env:"ONCALL_SESSION_PATH"`
}

type CampfireConfig struct {
	// BaseUrl replaces https://<subdomain>.campfirenow.com when set.
	BaseUrl   string `json:"base_url" env:"CAMPFIRE_BASE_URL"`
	Subdomain string `json:"subdomain" env:"CAMPFIRE_SUBDOMAIN"`
	Token     string `json:"token" env:"CAMPFIRE_TOKEN"`
	Room      string `json:"room" env:"CAMPFIRE_ROOM"`
}

type Config struct {
	BaseUrl   string `json:"base_url" env:"PAGERDUTY_BASE_URL"`
	Subdomain string `json:"subdomain" env:"PAGERDUTY_SUBDOMAIN"`
	Email     string `json:"email"`
	Password  string `json:"password"`

	Session  SessionConfig  `json:"session"`
	Campfire CampfireConfig `json:"campfire"`

	Markup           pagerduty.Layout `json:"markup"`
	LevelArgs        string           `json:"level_args"`
	BrowserTransport bool             `json:"browser_transport"`
	// RateLimit is the most requests per second made to the dashboard.
	RateLimit float64 `json:"rate_limit"`
}

// LoadConfig reads the config at path, or when empty, the nearest oncall.json5
// up from the working directory and then the one in the user's config
// directory. No config file at all is not an error. Environment variables
// override whatever was read.
func LoadConfig(path string, environment map[string]string) (Config, error) {
	cfg, err := readConfigFile(path)
	if err != nil {
		return Config{}, err
	}
	err = env.ParseWithOptions(&cfg, env.Options{Environment: environment})
	if err != nil {
		return Config{}, fmt.Errorf("read config from environment: %w", err)
	}
	return cfg, nil
}

func readConfigFile(path string) (Config, error) {
	if path != "" {
		cfg, err := configutil.ReadConfig[Config](path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		return cfg, nil
	}

	cfg, err := configutil.ReadRecursively[Config](configName)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	global, err := configutil.ExpandHome(globalConfigPath)
	if err != nil {
		return Config{}, nil
	}
	cfg, err = configutil.ReadConfig[Config](global)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", global, err)
	}
	return cfg, nil
}

// DashboardUrl is base_url, or the account's dashboard derived from subdomain.
func (c Config) DashboardUrl() (string, error) {
	if c.BaseUrl != "" {
		return c.BaseUrl, nil
	}
	if c.Subdomain != "" {
		return fmt.Sprintf("https://%s.pagerduty.com", c.Subdomain), nil
	}
	return "", fmt.Errorf("no dashboard configured, set \"subdomain\" in %s or PAGERDUTY_SUBDOMAIN", configName)
}

// OpenStore opens the configured session backend, closeStore must be called
// once the run is over.
func (c Config) OpenStore(ctx context.Context, noSave bool, clock chrono.API) (store sessionstore.Store, closeStore func() error, err error) {
	noop := func() error { return nil }
	if noSave {
		return sessionstore.NewMemory(clock), noop, nil
	}

	switch c.Session.Backend {
	case "", "file":
		path := c.Session.Path
		if path == "" {
			path = sessionstore.DefaultFilePath
		}
		path, err = configutil.ExpandHome(path)
		if err != nil {
			return nil, nil, err
		}
		return sessionstore.NewFile(path, clock), noop, nil
	case "sqlite":
		path := c.Session.Path
		if path == "" {
			path = "~/.config/pagerduty-tools/sessions.db"
		}
		path, err = configutil.ExpandHome(path)
		if err != nil {
			return nil, nil, err
		}
		err = os.MkdirAll(filepath.Dir(path), 0700)
		if err != nil {
			return nil, nil, err
		}
		db, err := sessionstore.OpenSQLite(ctx, path, clock)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case "memory":
		return sessionstore.NewMemory(clock), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown session backend %q, expected file, sqlite or memory", c.Session.Backend)
}

// Credentials tries the environment, then the config file, then asks.
func (c Config) Credentials(host string, environment map[string]string) pagerduty.CredentialSource {
	return pagerduty.Chain{
		pagerduty.Env{Environment: environment},
		pagerduty.Static{Email: c.Email, Password: c.Password},
		pagerduty.Prompt{DefaultEmail: c.Email, Host: host},
	}
}
