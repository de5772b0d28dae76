package records

import (
	"strconv"
	"strings"
)

// Validate checks every record in order and returns a *MalformedRecordError
// for the first record with an empty location or page, an unrecognised
// category, or a location already used by an earlier record.
func Validate(recs []DocumentRecord) error {
	seen := make(map[string]int, len(recs))
	for i, r := range recs {
		if err := validateRecord(i, r); err != nil {
			return err
		}
		if first, dup := seen[r.Location]; dup {
			return &MalformedRecordError{
				Index:  i,
				Field:  "location",
				Reason: "duplicate of record " + strconv.Itoa(first),
			}
		}
		seen[r.Location] = i
	}
	return nil
}

func validateRecord(i int, r DocumentRecord) error {
	if strings.TrimSpace(r.Location) == "" {
		return &MalformedRecordError{Index: i, Field: "location", Reason: "location is required"}
	}
	if strings.TrimSpace(r.Page) == "" {
		return &MalformedRecordError{Index: i, Field: "page", Reason: "page is required"}
	}
	if _, err := ParseCategory(string(r.Category)); err != nil {
		return &MalformedRecordError{Index: i, Field: "category", Reason: err.Error()}
	}
	return nil
}
