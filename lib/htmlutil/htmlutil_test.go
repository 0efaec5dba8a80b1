package htmlutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func TestNodeText(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(
		"<div id=\"x\">\n  Level  <b>1</b>\t\n\u200b</div>",
	))
	require.NoError(t, err)

	require.Equal(t, "Level 1", NodeText(doc))

	doc, err = html.Parse(strings.NewReader("<td>Level&nbsp;&nbsp;2:&nbsp;</td>"))
	require.NoError(t, err)
	require.Equal(t, "Level 2:", NodeText(doc))
}

func TestNormalizeText(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{in: "  Ops  ", expected: "Ops"},
		{in: "Primary\n\n   On Call", expected: "Primary On Call"},
		{in: "", expected: ""},
		{in: "Level\u00a0 1:", expected: "Level 1:"},
		{in: "\u00a0Alice\u00a0Smith\u2009", expected: "Alice Smith"},
	}
	for _, test := range cases {
		require.Equal(t, test.expected, NormalizeText(test.in))
	}
}
