package http

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"budget/internal/core"
)

const currencyLabel = "LKR"

// newSanitizer strips all markup from user text.
func newSanitizer() *bluemonday.Policy {
	return bluemonday.StrictPolicy()
}

// sanitizeInput removes markup and control characters and trims whitespace.
// bluemonday escapes what it keeps, so entities are decoded again: the
// templates escape on output.
func sanitizeInput(p *bluemonday.Policy, s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
	s = html.UnescapeString(p.Sanitize(s))
	return strings.TrimSpace(s)
}

// formatMoney renders m as "1,234.50 LKR".
func formatMoney(m core.Money) string {
	return groupThousands(m.String()) + " " + currencyLabel
}

// groupThousands inserts commas into the integer part of a fixed-point string.
func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if hasFrac {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// safeRedirect returns target when it is a local absolute path, fallback otherwise.
func safeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(h interface{ Get(string) string }) bool {
	return h.Get("HX-Request") == "true"
}
