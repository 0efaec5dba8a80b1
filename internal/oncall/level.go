// Package oncall holds what the tool knows about the people on call and how
// it turns them into a report, independent of where the data is scraped from.
package oncall

import (
	"context"
	"slices"
	"strings"
)

// Level is one rung of an escalation policy and the person assigned to it.
type Level struct {
	Label       string
	Person      string
	ProfilePath string
	// Email is empty until the assignee's profile has been resolved.
	Email  string
	Number int
	Policy string
}

// Filter narrows down which levels are reported, the zero value keeps everything.
// Both fields must match for a level to be kept.
type Filter struct {
	Levels []int
	Policy string
}

func (f Filter) Match(l Level) bool {
	if len(f.Levels) > 0 && !slices.Contains(f.Levels, l.Number) {
		return false
	}
	if f.Policy != "" && !SamePolicy(f.Policy, l.Policy) {
		return false
	}
	return true
}

// SamePolicy compares escalation policy names the way they are matched
// against the --policy flag.
func SamePolicy(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ScheduleSource provides the on call levels currently assigned.
type ScheduleSource interface {
	Schedule(ctx context.Context, filter Filter) ([]Level, error)
}

// ProfileSource resolves a user's contact email from their profile path.
type ProfileSource interface {
	Email(ctx context.Context, profilePath string) (string, error)
}
