package pagerduty

import (
	"context"
	"errors"
	"fmt"

	"github.com/caarlos0/env/v9"
	"github.com/charmbracelet/huh"
)

// Credentials are what the dashboard's login form asks for.
type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) complete() bool {
	return c.Email != "" && c.Password != ""
}

// CredentialSource hands out credentials for a login attempt, attempt starts at 1.
// A source with nothing to offer returns ErrNoCredentials.
//
// note: fault injection point
type CredentialSource interface {
	Credentials(ctx context.Context, attempt int) (Credentials, error)
}

// Static always offers the same credentials, typically read from the config file.
type Static Credentials

func (s Static) Credentials(context.Context, int) (Credentials, error) {
	c := Credentials(s)
	if !c.complete() {
		return Credentials{}, ErrNoCredentials
	}
	return c, nil
}

type envCredentials struct {
	Email    string `env:"PAGERDUTY_EMAIL"`
	Password string `env:"PAGERDUTY_PASSWORD,unset"`
}

// Env reads PAGERDUTY_EMAIL and PAGERDUTY_PASSWORD. The password is unset from
// the process environment once read.
type Env struct {
	// Environment replaces the process environment when non-nil.
	Environment map[string]string
}

func (e Env) Credentials(context.Context, int) (Credentials, error) {
	var parsed envCredentials
	err := env.ParseWithOptions(&parsed, env.Options{Environment: e.Environment})
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials from environment: %w", err)
	}
	c := Credentials(parsed)
	if !c.complete() {
		return Credentials{}, ErrNoCredentials
	}
	return c, nil
}

// Prompt asks for credentials on the terminal, the email is prefilled
// with DefaultEmail when given.
type Prompt struct {
	DefaultEmail string
	Host         string
}

func (p Prompt) Credentials(ctx context.Context, attempt int) (Credentials, error) {
	c := Credentials{Email: p.DefaultEmail}

	description := fmt.Sprintf("Sign in to %s", p.Host)
	if attempt > 1 {
		description = "That email and password were rejected, try again."
	}

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("PagerDuty email").
			Description(description).
			Value(&c.Email),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&c.Password),
	))
	err := form.RunWithContext(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("prompt failed: %w", err)
	}
	if !c.complete() {
		return Credentials{}, ErrNoCredentials
	}
	return c, nil
}

// Chain offers the credentials of the first source that has any.
type Chain []CredentialSource

func (c Chain) Credentials(ctx context.Context, attempt int) (Credentials, error) {
	for _, source := range c {
		creds, err := source.Credentials(ctx, attempt)
		if errors.Is(err, ErrNoCredentials) {
			continue
		}
		return creds, err
	}
	return Credentials{}, ErrNoCredentials
}
