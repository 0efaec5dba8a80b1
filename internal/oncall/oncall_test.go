package oncall

import (
	"context"
	"errors"
	"pagerduty-tools/internal/components/telemetry"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestFormatReport(t *testing.T) {
	report := FormatReport([]Level{
		{Label: "L1", Person: "Alice", Number: 1},
		{Label: "L2", Person: "Bob", Number: 2},
	})
	require.Equal(t, "L1: Alice, L2: Bob", report)

	require.Equal(t, "", FormatReport(nil))

	// order is preserved and nothing is deduplicated
	report = FormatReport([]Level{
		{Label: "Level 3", Person: "Carol"},
		{Label: "Level 1", Person: "Carol"},
	})
	require.Equal(t, "Level 3: Carol, Level 1: Carol", report)
}

func TestFormatTable(t *testing.T) {
	out := FormatTable([]Level{
		{Label: "Level 1", Person: "Alice", Email: "alice@acme.test", Policy: "Ops"},
	})
	require.Contains(t, out, "POLICY")
	require.Contains(t, out, "alice@acme.test")
	require.Contains(t, out, "Ops")
}

func TestFilter(t *testing.T) {
	levels := []Level{
		{Label: "Level 1", Number: 1, Policy: "Ops"},
		{Label: "Level 2", Number: 2, Policy: "Ops"},
		{Label: "Level 1", Number: 1, Policy: "Database"},
		{Label: "Level 2", Number: 2, Policy: "Database"},
	}

	cases := []struct {
		filter   Filter
		expected []int
	}{
		{filter: Filter{}, expected: []int{0, 1, 2, 3}},
		{filter: Filter{Levels: []int{2}}, expected: []int{1, 3}},
		{filter: Filter{Policy: "ops"}, expected: []int{0, 1}},
		{filter: Filter{Policy: " Database "}, expected: []int{2, 3}},
		{filter: Filter{Policy: "Ops", Levels: []int{2}}, expected: []int{1}},
		{filter: Filter{Policy: "Ops", Levels: []int{7}}, expected: nil},
	}

	for _, test := range cases {
		var matched []int
		for i, l := range levels {
			if test.filter.Match(l) {
				matched = append(matched, i)
			}
		}
		require.Equal(t, test.expected, matched, "filter %+v", test.filter)
	}
}

func TestParseLevelArgs(t *testing.T) {
	cases := []struct {
		args     []string
		mode     LevelArgMode
		expected []int
		err      bool
	}{
		{args: nil, mode: LevelArgsNumber, expected: nil},
		{args: []string{"2"}, mode: LevelArgsNumber, expected: []int{2}},
		{args: []string{"12"}, mode: LevelArgsNumber, expected: []int{12}},
		{args: []string{"12"}, mode: LevelArgsDigits, expected: []int{1, 2}},
		{args: []string{"3", "1", "3"}, mode: LevelArgsNumber, expected: []int{3, 1}},
		{args: []string{"21", "13"}, mode: LevelArgsDigits, expected: []int{2, 1, 3}},
		{args: []string{"two"}, mode: LevelArgsNumber, err: true},
		{args: []string{"1a"}, mode: LevelArgsDigits, err: true},
		{args: []string{"-1"}, mode: LevelArgsNumber, err: true},
		{args: []string{""}, mode: LevelArgsNumber, err: true},
	}

	for _, test := range cases {
		levels, err := ParseLevelArgs(test.args, test.mode)
		if test.err {
			require.Error(t, err, "args %v", test.args)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, test.expected, levels, "args %v mode %s", test.args, test.mode)
	}
}

func TestParseLevelArgMode(t *testing.T) {
	mode, err := ParseLevelArgMode("")
	require.NoError(t, err)
	require.Equal(t, LevelArgsNumber, mode)

	mode, err = ParseLevelArgMode("digits")
	require.NoError(t, err)
	require.Equal(t, LevelArgsDigits, mode)

	_, err = ParseLevelArgMode("hex")
	require.Error(t, err)
}

type fakeSchedule struct {
	levels []Level
	err    error
	filter Filter
}

func (f *fakeSchedule) Schedule(_ context.Context, filter Filter) ([]Level, error) {
	f.filter = filter
	return f.levels, f.err
}

type fakeProfiles struct {
	emails  map[string]string
	fetched []string
}

func (f *fakeProfiles) Email(_ context.Context, path string) (string, error) {
	f.fetched = append(f.fetched, path)
	email, ok := f.emails[path]
	if !ok {
		return "", errors.New("no such profile")
	}
	return email, nil
}

func TestCollect(t *testing.T) {
	schedule := &fakeSchedule{levels: []Level{
		{Label: "Level 1", Person: "Alice", ProfilePath: "/users/PA", Number: 1, Policy: "Ops"},
		{Label: "Level 2", Person: "Bob", ProfilePath: "/users/PB", Number: 2, Policy: "Ops"},
	}}
	profiles := &fakeProfiles{emails: map[string]string{
		"/users/PA": "alice@acme.test",
		"/users/PB": "bob@acme.test",
	}}
	rec := &telemetry.Recorder{}

	filter := Filter{Policy: "Ops"}
	res, err := Collect(context.Background(), schedule, profiles, filter, rec)
	require.NoError(t, err)

	require.Equal(t, filter, schedule.filter)
	require.Equal(t, []string{"/users/PA", "/users/PB"}, profiles.fetched)
	require.Equal(t, "Level 1: Alice, Level 2: Bob", res.Report)

	expected := []Level{
		{Label: "Level 1", Person: "Alice", ProfilePath: "/users/PA", Email: "alice@acme.test", Number: 1, Policy: "Ops"},
		{Label: "Level 2", Person: "Bob", ProfilePath: "/users/PB", Email: "bob@acme.test", Number: 2, Policy: "Ops"},
	}
	if diff := cmp.Diff(expected, res.Levels); diff != "" {
		t.Fatalf("levels mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"alice@acme.test", "bob@acme.test"}, res.Emails())
	require.Equal(t, []any{int64(2)}, rec.Reports("count")[0].Params)
}

func TestCollectProfileFailure(t *testing.T) {
	schedule := &fakeSchedule{levels: []Level{
		{Label: "Level 1", Person: "Alice", ProfilePath: "/users/missing"},
	}}
	rec := &telemetry.Recorder{}

	res, err := Collect(context.Background(), schedule, &fakeProfiles{}, Filter{}, rec)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "Alice"))
	require.Empty(t, res.Levels)
	require.Len(t, rec.Reports("broken"), 1)
}

func TestCollectScheduleFailure(t *testing.T) {
	boom := errors.New("boom")
	_, err := Collect(
		context.Background(),
		&fakeSchedule{err: boom},
		&fakeProfiles{},
		Filter{},
		&telemetry.Recorder{},
	)
	require.ErrorIs(t, err, boom)
}

type notifierFunc func(ctx context.Context, res Result) error

func (f notifierFunc) Notify(ctx context.Context, res Result) error {
	return f(ctx, res)
}

func TestRun(t *testing.T) {
	schedule := &fakeSchedule{levels: []Level{
		{Label: "Level 1", Person: "Alice", ProfilePath: "/users/PA", Number: 1},
	}}
	profiles := &fakeProfiles{emails: map[string]string{"/users/PA": "alice@acme.test"}}

	var notified []Result
	res, err := Run(context.Background(), schedule, profiles, Filter{}, notifierFunc(func(_ context.Context, res Result) error {
		notified = append(notified, res)
		return nil
	}), &telemetry.Recorder{})
	require.NoError(t, err)
	require.Equal(t, []Result{res}, notified)

	// a failed collection never reaches the notifier
	notified = nil
	_, err = Run(context.Background(), &fakeSchedule{err: errors.New("boom")}, profiles, Filter{}, notifierFunc(func(_ context.Context, res Result) error {
		notified = append(notified, res)
		return nil
	}), &telemetry.Recorder{})
	require.Error(t, err)
	require.Empty(t, notified)

	rec := &telemetry.Recorder{}
	_, err = Run(context.Background(), schedule, profiles, Filter{}, notifierFunc(func(context.Context, Result) error {
		return errors.New("chat is down")
	}), rec)
	require.ErrorContains(t, err, "chat is down")
	require.Equal(t, "run.notify", rec.Reports("broken")[0].ID)
}
