package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// InitSlog installs the default slog handler. Logs go to stderr so stdout
// stays reserved for the report.
func InitSlog(debug bool) {
	InitSlogTo(os.Stderr, debug)
}

func InitSlogTo(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})))
}

// SlogAPI implements API using the log/slog package.
type SlogAPI struct{}

func (SlogAPI) formatParams(out *[]any, params []any) {
	for i, p := range params {
		*out = append(
			*out,
			fmt.Sprintf("params.%d", i),
			p,
		)
	}
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Error("broken component", remainingPairs...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	remainingPairs := []any{"id", id}
	s.formatParams(&remainingPairs, params)
	slog.Warn("warning", remainingPairs...)
}

func (s SlogAPI) ReportDebug(message string, params ...any) {
	remainingPairs := []any{}
	s.formatParams(&remainingPairs, params)
	slog.Debug(message, remainingPairs...)
}

// ReportCount logs at debug level, a single run has no time series worth
// showing on a terminal.
func (s SlogAPI) ReportCount(id string, count int64) {
	slog.Debug("count", "id", id, "n", count)
}
