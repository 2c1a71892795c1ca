package service

import (
	"strings"
	"time"
)

// fallbackDateLayouts are tried, in order, after ISO-8601 and the source's
// configured date_format have both failed.
var fallbackDateLayouts = []string{
	"01/02/2006",
	"01-02-2006",
	"2006-01-02",
}

// parseSourceDate implements the Transformer's date parsing order: ISO
// first, then the source's own date_format, then the fixed fallback list.
// An unparsable date becomes nil rather than a row-level failure.
func parseSourceDate(raw string, sourceDateFormat string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
		return &t
	}

	if layout := toGoLayout(sourceDateFormat); layout != "" {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}

	for _, layout := range fallbackDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}

	return nil
}

// toGoLayout translates a human date_format spec (MM/DD/YYYY-style tokens)
// into Go's reference-time layout string. Returns "" if the format is empty.
func toGoLayout(format string) string {
	format = strings.TrimSpace(format)
	if format == "" {
		return ""
	}
	replacer := strings.NewReplacer(
		"YYYY", "2006",
		"MM", "01",
		"DD", "02",
		"HH", "15",
		"mm", "04",
		"ss", "05",
	)
	return replacer.Replace(format)
}
