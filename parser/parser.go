// Package parser holds the pure field extractors: page body in, structured
// records out. No network access and no state, so every rule is unit-testable.
package parser

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	rangePat  = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*-\s*(\d+(?:\.\d+)?)$`)
	numberPat = regexp.MustCompile(`\d+(?:\.\d+)?(?:\s*-\s*\d+(?:\.\d+)?)?`)

	// Title shape: "<rent type>·<community> <condition>". The rent type
	// is optional in some catalog entries.
	titleCleanPat = regexp.MustCompile(`[^·\p{L}\p{N}_\s]`)
	titlePat      = regexp.MustCompile(`^(.+?)?·([\p{L}\p{N}_]+)\s+(.*)$`)
)

// Number normalizes a scraped numeric field. A textual range "a-b" yields
// the midpoint (a+b)/2; anything else parses as a literal number.
func Number(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if m := rangePat.FindStringSubmatch(text); m != nil {
		a, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, ParseError{Field: "number range"}
		}
		b, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return 0, ParseError{Field: "number range"}
		}
		return (a + b) / 2, nil
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, ParseError{Field: "number"}
	}
	return v, nil
}

// TitleInfo is the local pre-parse of a summary title.
type TitleInfo struct {
	RentType  string
	Community string
	Condition string
}

// Title splits a catalog title into rent-type, community, and condition
// using the fixed textual pattern. A non-matching title is classified
// invalid; the caller must not fetch the detail page for it.
func Title(raw string) (TitleInfo, error) {
	cleaned := titleCleanPat.ReplaceAllString(raw, "")
	m := titlePat.FindStringSubmatch(cleaned)
	if m == nil {
		return TitleInfo{}, InvalidError{Reason: ReasonBadTitle}
	}
	return TitleInfo{
		RentType:  strings.TrimSpace(m[1]),
		Community: m[2],
		Condition: strings.TrimSpace(m[3]),
	}, nil
}

// CanonicalListing reports whether link points at a first-party listing:
// its path must live under the canonical prefix. Third-party uploads are
// hosted elsewhere and carry markedly worse data quality.
func CanonicalListing(link, prefix string) bool {
	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}
	return strings.HasPrefix(parsed.Path, prefix)
}
