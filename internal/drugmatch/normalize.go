// Package drugmatch compares drug product names scraped from the host
// application's grids against the curated reference list. The host renders
// the same product with full-width or half-width brackets depending on which
// grid it came from, so every comparison goes through Normalize first.
package drugmatch

import (
	"regexp"
	"strings"
)

var (
	narrowBrackets = strings.NewReplacer("（", "(", "）", ")")
	widenBrackets  = strings.NewReplacer("(", "（", ")", "）")
	qualifierRe    = regexp.MustCompile(`\(.*?\)`)
)

// Normalize canonicalizes a drug name: full-width brackets become half-width
// and surrounding whitespace is trimmed. Idempotent.
func Normalize(raw string) string {
	return strings.TrimSpace(narrowBrackets.Replace(raw))
}

// Widen converts half-width brackets back to full-width. The host page
// sometimes renders a name with full-width brackets even though the grid
// cell used half-width ones, so element lookups retry with this form.
func Widen(name string) string {
	return widenBrackets.Replace(name)
}

// StripQualifier removes parenthetical dosage-form qualifiers, e.g.
// "二甲双胍(缓释片)" -> "二甲双胍". Last-resort lookup form.
func StripQualifier(name string) string {
	return strings.TrimSpace(qualifierRe.ReplaceAllString(Normalize(name), ""))
}
