package pagerduty

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("pagerduty-tools/internal/pagerduty")
	meter  = otel.Meter("pagerduty-tools/internal/pagerduty")

	fetchCounter = int64Counter(
		"pagerduty.agent.fetches",
		"Dashboard pages fetched",
		"{page}",
	)
	loginCounter = int64Counter(
		"pagerduty.agent.logins",
		"Login forms submitted, by whether the dashboard accepted them",
		"{login}",
	)
)

func int64Counter(name, description, unit string) metric.Int64Counter {
	counter, err := meter.Int64Counter(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		panic(err)
	}
	return counter
}

// report ids of the agent, scoped under "pagerduty"
const (
	report_agent_restore_session = "agent.restore-session"
	report_agent_save_session    = "agent.save-session"
	report_agent_clear_session   = "agent.clear-session"
	report_agent_login           = "agent.login"
	report_agent_fetch           = "agent.fetch"
)

// report ids of the dashboard, scoped under "dashboard"
const (
	report_dashboard_schedule = "schedule"
	report_dashboard_email    = "email"
)
