package pagerduty

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// ParseProfile reads a user's contact email out of their profile page.
func ParseProfile(ctx context.Context, page []byte, layout Layout) (string, error) {
	_, span := tracer.Start(ctx, "ParseProfile")
	defer span.End()

	layout = layout.WithDefaults()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse html")
		return "", &ParseError{Page: profilePageName, Reason: err.Error()}
	}

	profile := doc.Find(layout.Profile)
	if profile.Length() == 0 {
		span.SetStatus(codes.Error, "no profile found")
		return "", &ParseError{
			Page:   profilePageName,
			Reason: fmt.Sprintf("no profile matches %q", layout.Profile),
		}
	}

	links := profile.Find(layout.ProfileEmail)
	email := profileEmail(links)
	if email == "" {
		span.SetStatus(codes.Error, "no email link found")
		return "", &ParseError{
			Page:   profilePageName,
			Reason: fmt.Sprintf("no email matches %q", layout.ProfileEmail),
		}
	}
	return email, nil
}

// profileEmail picks the first mailto link among links, the scheme is matched
// case insensitively. A link whose text is an address is the fallback.
func profileEmail(links *goquery.Selection) string {
	var email, fallback string
	links.EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if address := emailFromHref(link.AttrOr("href", "")); strings.Contains(address, "@") {
			email = address
			return false
		}
		if text := selectionText(link); fallback == "" && strings.Contains(text, "@") {
			fallback = text
		}
		return true
	})
	if email != "" {
		return email
	}
	return fallback
}

// emailFromHref extracts the address out of a "mailto:" link, dropping any query.
func emailFromHref(href string) string {
	href = strings.TrimSpace(href)
	if len(href) < len("mailto:") || !strings.EqualFold(href[:len("mailto:")], "mailto:") {
		return ""
	}
	address := href[len("mailto:"):]
	address, _, _ = strings.Cut(address, "?")
	unescaped, err := url.PathUnescape(address)
	if err == nil {
		address = unescaped
	}
	return strings.TrimSpace(address)
}
