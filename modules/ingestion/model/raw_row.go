package model

// RawRow is one parsed CSV row, immutable except for the back-pointers the
// transformer fills in (is_duplicate/duplicate_of/canonical_lead_id).
type RawRow struct {
	ID               string
	BatchID          string
	RowNumber        int
	RawData          map[string]string
	IsValid          bool
	ValidationErrors []string
	IsDuplicate      bool
	DuplicateOf      *string
	CanonicalLeadID  *string
}
