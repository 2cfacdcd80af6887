package parser

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	houseCodePat = regexp.MustCompile(`([A-Z]+)(\d+)`)
	infoDatePat  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	floorPat     = regexp.MustCompile(`[:：]\s*(.+)/(\d+)`)
	colonPat     = regexp.MustCompile(`[:：]`)
)

// DetailFields carries the enrichment extracted from one detail page.
// Withdrawn marks a listing taken offline by the source: every enrichable
// field is absent, which is distinct from a parse failure.
type DetailFields struct {
	Withdrawn  bool
	HouseID    string
	InfoDate   string
	HouseFloor string
	BuildFloor int
	Elevator   string
}

// Detail extracts the detail-page fields. It returns InvalidError when the
// listing id prefix does not match cityCode, ParseError on any missing or
// malformed selector, and a Withdrawn sentinel when the page carries the
// offline marker (with the listing id still resolved when present).
func Detail(body []byte, cityCode string) (*DetailFields, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, ParseError{Field: "document"}
	}

	if doc.Find(".offline").Length() > 0 {
		fields := &DetailFields{Withdrawn: true}
		// Offline pages usually still expose the listing code; keep it
		// so the placeholder row stays keyed.
		if code, city := houseCode(doc); code != "" && city == cityCode {
			fields.HouseID = code
		}
		return fields, nil
	}

	code, city := houseCode(doc)
	if code == "" {
		return nil, ParseError{Field: "house code"}
	}
	if city != cityCode {
		return nil, InvalidError{Reason: ReasonWrongCity}
	}

	infoDate := infoDatePat.FindString(doc.Find(".content__subtitle").Text())
	if infoDate == "" {
		return nil, ParseError{Field: "info date"}
	}

	floorText := doc.Find("#info > ul:nth-child(2) > li:nth-child(8)").Text()
	m := floorPat.FindStringSubmatch(floorText)
	if m == nil {
		return nil, ParseError{Field: "floor"}
	}
	houseFloor := strings.TrimSpace(m[1])
	buildFloor, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, ParseError{Field: "building floor count"}
	}

	elevatorText := doc.Find("#info > ul:nth-child(2) > li:nth-child(9)").Text()
	parts := colonPat.Split(elevatorText, 2)
	if len(parts) < 2 {
		return nil, ParseError{Field: "elevator flag"}
	}
	elevator := strings.TrimSpace(parts[1])

	return &DetailFields{
		HouseID:    code,
		InfoDate:   infoDate,
		HouseFloor: houseFloor,
		BuildFloor: buildFloor,
		Elevator:   elevator,
	}, nil
}

func houseCode(doc *goquery.Document) (code, city string) {
	raw := doc.Find(".house_code").Text()
	m := houseCodePat.FindStringSubmatch(raw)
	if m == nil {
		return "", ""
	}
	return m[2], m[1]
}
