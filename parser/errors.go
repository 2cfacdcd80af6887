package parser

import "fmt"

// Invalid reasons. Invalid records are permanently excluded by the
// pipeline; they are never retried.
const (
	ReasonThirdParty = "third_party_origin"
	ReasonWrongCity  = "wrong_city"
	ReasonBadTitle   = "malformed_title"
)

// InvalidError marks a record as permanently invalid content: the listing
// is hosted off the canonical path, belongs to another city, or its title
// does not match the catalog's fixed shape.
type InvalidError struct {
	Reason string
}

func (e InvalidError) Error() string {
	return fmt.Sprintf("invalid record: %s", e.Reason)
}

// ParseError is a generic selector/content failure. Kept distinct from
// InvalidError so callers can tell a fixable markup drift from a genuine
// invalid-listing signal, even though the pipeline currently treats both
// as permanent.
type ParseError struct {
	Field string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("parse failure on %s", e.Field)
}
