package pagerduty

import (
	"bytes"
	"context"
	"fmt"
	"pagerduty-tools/internal/oncall"
	"pagerduty-tools/lib/htmlutil"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	maxPolicySuggestions = 3
	minPolicySimilarity  = 0.7

	schedulePageName = "on call"
	profilePageName  = "user profile"
)

var levelNumberRegex = regexp.MustCompile(`\d+`)

func selectionText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	return htmlutil.NodeText(sel.Get(0))
}

// ParseSchedule reads the on call levels out of the dashboard's on call page, in
// document order, keeping only the ones matching the filter.
//
// A page without the expected markup fails as a whole with a ParseError, no
// partial list is ever returned.
func ParseSchedule(ctx context.Context, page []byte, filter oncall.Filter, layout Layout) ([]oncall.Level, error) {
	_, span := tracer.Start(ctx, "ParseSchedule")
	defer span.End()

	layout = layout.WithDefaults()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse html")
		return nil, &ParseError{Page: schedulePageName, Reason: err.Error()}
	}

	policies := doc.Find(layout.Policy)
	if policies.Length() == 0 {
		span.SetStatus(codes.Error, "no escalation policy found")
		return nil, &ParseError{
			Page:   schedulePageName,
			Reason: fmt.Sprintf("no escalation policy matches %q", layout.Policy),
		}
	}

	var (
		levels   []oncall.Level
		headings []string
		rows     int
		parseErr error
	)
	policies.EachWithBreak(func(_ int, policy *goquery.Selection) bool {
		heading := selectionText(policy.Find(layout.PolicyHeading))
		headings = append(headings, heading)

		policy.Find(layout.LevelRow).EachWithBreak(func(_ int, row *goquery.Selection) bool {
			rows++
			level, err := parseLevelRow(row, heading, layout)
			if err != nil {
				parseErr = err
				return false
			}
			if filter.Match(level) {
				levels = append(levels, level)
			}
			return true
		})
		return parseErr == nil
	})
	if parseErr != nil {
		span.SetStatus(codes.Error, "malformed level row")
		return nil, parseErr
	}
	if rows == 0 {
		span.SetStatus(codes.Error, "no level rows found")
		return nil, &ParseError{
			Page:   schedulePageName,
			Reason: fmt.Sprintf("no on call level matches %q", layout.LevelRow),
		}
	}

	if filter.Policy != "" && !slices.ContainsFunc(headings, func(h string) bool {
		return oncall.SamePolicy(filter.Policy, h)
	}) {
		span.SetStatus(codes.Error, "unknown policy")
		return nil, &UnknownPolicyError{
			Policy:      filter.Policy,
			Suggestions: suggestPolicies(filter.Policy, headings),
		}
	}

	span.SetAttributes(
		attribute.Int("oncall.rows", rows),
		attribute.Int("oncall.matched", len(levels)),
	)
	return levels, nil
}

func parseLevelRow(row *goquery.Selection, policy string, layout Layout) (oncall.Level, error) {
	// the dashboard renders "Level 1:", the report adds its own colon
	label := strings.TrimSpace(strings.TrimSuffix(selectionText(row.Find(layout.LevelLabel)), ":"))
	if label == "" {
		return oncall.Level{}, &ParseError{
			Page:   schedulePageName,
			Reason: fmt.Sprintf("level row without a label matching %q", layout.LevelLabel),
		}
	}

	digits := levelNumberRegex.FindString(label)
	number, err := strconv.Atoi(digits)
	if err != nil {
		return oncall.Level{}, &ParseError{
			Page:   schedulePageName,
			Reason: fmt.Sprintf("level label %q has no level number", label),
		}
	}

	link := row.Find(layout.Person).First()
	person := selectionText(link)
	href := link.AttrOr("href", "")
	if person == "" || href == "" {
		return oncall.Level{}, &ParseError{
			Page:   schedulePageName,
			Reason: fmt.Sprintf("level %q has no person link matching %q", label, layout.Person),
		}
	}

	return oncall.Level{
		Label:       label,
		Person:      person,
		ProfilePath: href,
		Number:      number,
		Policy:      policy,
	}, nil
}

func suggestPolicies(policy string, headings []string) []string {
	type scored struct {
		name       string
		similarity float64
	}

	var candidates []scored
	for _, h := range headings {
		if h == "" || slices.ContainsFunc(candidates, func(c scored) bool { return c.name == h }) {
			continue
		}
		similarity := matchr.JaroWinkler(policy, h, false)
		if similarity < minPolicySimilarity {
			continue
		}
		candidates = append(candidates, scored{name: h, similarity: similarity})
	}

	slices.SortStableFunc(candidates, func(a, b scored) int {
		// flipped to sort descending
		if a.similarity > b.similarity {
			return -1
		}
		if a.similarity < b.similarity {
			return 1
		}
		return 0
	})

	var out []string
	for i := 0; i < len(candidates) && i < maxPolicySuggestions; i++ {
		out = append(out, candidates[i].name)
	}
	return out
}
