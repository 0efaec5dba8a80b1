package pagerduty

import (
	"context"
	"fmt"
	"pagerduty-tools/internal/assert"
	"pagerduty-tools/internal/components/telemetry"
	"pagerduty-tools/internal/oncall"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	profileCacheSize = 64
	profileCacheTTL  = time.Minute * 10
)

// Dashboard scrapes the on call schedule and user profiles through a Fetcher.
type Dashboard struct {
	fetcher Fetcher
	layout  Layout
	tel     telemetry.API

	// the same person often holds several levels
	emails *expirable.LRU[string, string]
}

func NewDashboard(fetcher Fetcher, layout Layout, tel telemetry.API) *Dashboard {
	assert.NotNil(fetcher)
	assert.NotNil(tel)

	return &Dashboard{
		fetcher: fetcher,
		layout:  layout.WithDefaults(),
		tel:     telemetry.NewScopedAPI("dashboard", tel),
		emails:  expirable.NewLRU[string, string](profileCacheSize, nil, profileCacheTTL),
	}
}

func (d *Dashboard) fetchOk(ctx context.Context, path string) (Response, error) {
	res, err := d.fetcher.Fetch(ctx, path)
	if err != nil {
		return Response{}, err
	}
	if res.Status < 200 || res.Status >= 300 {
		return Response{}, &StatusError{Path: path, Status: res.Status}
	}
	return res, nil
}

// Schedule implements oncall.ScheduleSource.
func (d *Dashboard) Schedule(ctx context.Context, filter oncall.Filter) ([]oncall.Level, error) {
	ctx, span := tracer.Start(ctx, "dashboard:Schedule")
	defer span.End()

	res, err := d.fetchOk(ctx, d.layout.OnCallPath)
	if err != nil {
		d.tel.ReportBroken(report_dashboard_schedule, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	levels, err := ParseSchedule(ctx, res.Body, filter, d.layout)
	if err != nil {
		d.tel.ReportBroken(report_dashboard_schedule, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	d.tel.ReportDebug("parsed schedule", len(levels))
	return levels, nil
}

// Email implements oncall.ProfileSource, addresses are cached per profile path.
func (d *Dashboard) Email(ctx context.Context, profilePath string) (string, error) {
	ctx, span := tracer.Start(ctx, "dashboard:Email")
	defer span.End()
	span.SetAttributes(attribute.String("pagerduty.profile", profilePath))

	if email, ok := d.emails.Get(profilePath); ok {
		return email, nil
	}

	res, err := d.fetchOk(ctx, profilePath)
	if err != nil {
		d.tel.ReportBroken(report_dashboard_email, err, profilePath)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	email, err := ParseProfile(ctx, res.Body, d.layout)
	if err != nil {
		d.tel.ReportBroken(report_dashboard_email, fmt.Errorf("%s: %w", profilePath, err))
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	d.emails.Add(profilePath, email)
	return email, nil
}
