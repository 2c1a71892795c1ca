// Package normalize implements the pure, deterministic field canonicalizers
// shared by the transformer, the scorer, and the CRM puller. Every function
// here is idempotent: Email(Email(x)) == Email(x), and likewise for Phone
// and Address.
package normalize

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)
var nonDigit = regexp.MustCompile(`[^0-9]`)

// minPhoneDigits is the shortest digit string treated as a usable exact-match
// key. Shorter results are still stored but never compared.
const minPhoneDigits = 10

// addressAbbreviations are applied as whole-word replacements, longest
// matches first within a category so "boulevard" never partially matches
// "blvd" substrings.
var addressAbbreviations = []struct {
	full  string
	short string
}{
	{"street", "st"},
	{"avenue", "ave"},
	{"boulevard", "blvd"},
	{"drive", "dr"},
	{"road", "rd"},
	{"lane", "ln"},
	{"court", "ct"},
	{"apartment", "apt"},
	{"suite", "ste"},
	{"north", "n"},
	{"south", "s"},
	{"east", "e"},
	{"west", "w"},
}

var addressReplacers = buildAddressReplacers()

func buildAddressReplacers() []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(addressAbbreviations))
	for i, pair := range addressAbbreviations {
		res[i] = regexp.MustCompile(`\b` + pair.full + `\b`)
	}
	return res
}

// Email trims and lowercases an address. An empty result normalizes to "".
func Email(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Phone strips every non-digit character. The caller decides whether the
// result is long enough to serve as an exact-match key via IsUsablePhoneKey;
// the stripped value is still returned (and stored) regardless of length.
func Phone(raw string) string {
	return nonDigit.ReplaceAllString(raw, "")
}

// IsUsablePhoneKey reports whether a normalized phone value is long enough
// to participate in phone_exact matching.
func IsUsablePhoneKey(normalized string) bool {
	return len(normalized) >= minPhoneDigits
}

// Address lowercases, trims, expands common street-suffix and
// direction abbreviations on word boundaries, and collapses internal
// whitespace runs to a single space.
func Address(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	for i, re := range addressReplacers {
		s = re.ReplaceAllString(s, addressAbbreviations[i].short)
	}
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
