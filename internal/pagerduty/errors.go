package pagerduty

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuthentication is matched by every AuthenticationError.
	ErrAuthentication = errors.New("pagerduty: authentication failed")
	// ErrLayoutChanged is matched by every ParseError, it means the dashboard
	// no longer looks the way the scraper expects.
	ErrLayoutChanged = errors.New("pagerduty: page layout changed")
	// ErrUnknownPolicy is matched by every UnknownPolicyError.
	ErrUnknownPolicy = errors.New("pagerduty: unknown escalation policy")
	// ErrNoCredentials is returned by a CredentialSource that has nothing to offer.
	ErrNoCredentials = errors.New("pagerduty: no credentials available")
)

// AuthenticationError is returned when the dashboard rejected every login
// attempt, or accepted a login but then refused the session it handed out.
type AuthenticationError struct {
	Attempts int
	Email    string
	// SessionRejected is set when the login itself was accepted.
	SessionRejected bool
}

func (e *AuthenticationError) Error() string {
	if e.SessionRejected {
		return fmt.Sprintf("pagerduty: logged in as %q but the dashboard rejected the new session", e.Email)
	}
	return fmt.Sprintf("pagerduty: login as %q rejected after %d attempt(s)", e.Email, e.Attempts)
}

func (e *AuthenticationError) Is(target error) bool {
	return target == ErrAuthentication
}

// ParseError is returned when a page is missing the markup the scraper relies on.
type ParseError struct {
	Page   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pagerduty: could not parse %s page: %s (has the page layout changed?)", e.Page, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrLayoutChanged
}

// UnknownPolicyError is returned when a policy filter names no heading on the dashboard.
type UnknownPolicyError struct {
	Policy string
	// Suggestions are the closest known policy names, most similar first.
	Suggestions []string
}

func (e *UnknownPolicyError) Error() string {
	msg := fmt.Sprintf("pagerduty: no escalation policy named %q", e.Policy)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(", did you mean %s?", strings.Join(e.Suggestions, " or "))
	}
	return msg
}

func (e *UnknownPolicyError) Is(target error) bool {
	return target == ErrUnknownPolicy
}

// StatusError is returned when a dashboard page answers with an unexpected status.
type StatusError struct {
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pagerduty: GET %s returned status %d", e.Path, e.Status)
}
