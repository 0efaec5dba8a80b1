package oncall

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// FormatReport joins "<label>: <person>" for every level with ", ", in the order given.
func FormatReport(levels []Level) string {
	parts := make([]string, len(levels))
	for i, l := range levels {
		parts[i] = l.Label + ": " + l.Person
	}
	return strings.Join(parts, ", ")
}

// FormatTable renders the levels with their policy and email, for humans
// reading a terminal rather than a chat topic.
func FormatTable(levels []Level) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Policy", "Level", "Person", "Email"})
	for _, l := range levels {
		t.AppendRow(table.Row{l.Policy, l.Label, l.Person, l.Email})
	}
	return t.Render()
}
