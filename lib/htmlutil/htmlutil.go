package htmlutil

import (
	"bytes"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// NormalizeText drops non-printable characters, trims the ends and collapses
// runs of inner whitespace to a single space. Unicode spaces such as &nbsp;
// count as whitespace.
func NormalizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// NodeText is GetText followed by NormalizeText.
func NodeText(node *html.Node) string {
	return NormalizeText(GetText(node))
}
