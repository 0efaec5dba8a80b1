// Package notify delivers an on call report to wherever the user asked for it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"pagerduty-tools/internal/assert"
	"pagerduty-tools/internal/components/telemetry"
	"pagerduty-tools/internal/oncall"
)

// ErrNotImplemented is returned by notifiers that only pretend to deliver.
var ErrNotImplemented = errors.New("notify: not implemented")

// NotificationError is returned when a chat service refused a message.
type NotificationError struct {
	Status int
	Body   string
}

func (e *NotificationError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("notify: chat service returned status %d", e.Status)
	}
	return fmt.Sprintf("notify: chat service returned status %d: %s", e.Status, e.Body)
}

// Format is how a report is printed to a terminal.
type Format string

const (
	FormatText  Format = "text"
	FormatTable Format = "table"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatText:
		return FormatText, nil
	case FormatTable:
		return FormatTable, nil
	}
	return "", fmt.Errorf("unknown format %q, expected %q or %q", s, FormatText, FormatTable)
}

// Stdout prints the report.
type Stdout struct {
	Out    io.Writer
	Format Format
}

func (s Stdout) Notify(_ context.Context, res oncall.Result) error {
	var err error
	switch s.Format {
	case FormatTable:
		_, err = fmt.Fprintln(s.Out, oncall.FormatTable(res.Levels))
	default:
		_, err = fmt.Fprintln(s.Out, res.Report)
	}
	return err
}

// Targets sends a result to every notifier that is set. Stdout is only used
// when neither Campfire nor Email is.
type Targets struct {
	Campfire oncall.Notifier
	Email    oncall.Notifier
	Stdout   oncall.Notifier

	Tel telemetry.API
}

func (t Targets) Notify(ctx context.Context, res oncall.Result) error {
	assert.NotNil(t.Tel)

	if t.Campfire == nil && t.Email == nil {
		assert.NotNil(t.Stdout)
		return t.Stdout.Notify(ctx, res)
	}

	if t.Campfire != nil {
		err := t.Campfire.Notify(ctx, res)
		if err != nil {
			return err
		}
	}
	if t.Email != nil {
		err := t.Email.Notify(ctx, res)
		if errors.Is(err, ErrNotImplemented) {
			t.Tel.ReportDebug("email notification skipped", len(res.Emails()))
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}
