package parser

import (
	"bytes"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-rentals/models"
)

var unitStripPat = regexp.MustCompile(`[-\d\s.]+`)

// MaxPage extracts the catalog's total page count from the first page's
// pagination metadata. The crawl cannot be bounded without it, so any
// absent or non-numeric value is an error the caller treats as fatal.
func MaxPage(body []byte) (int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, ParseError{Field: "document"}
	}

	raw, ok := doc.Find(".content__pg").Attr("data-totalpage")
	if !ok {
		return 0, ParseError{Field: "total page attribute"}
	}
	max, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || max <= 0 {
		return 0, ParseError{Field: "total page number"}
	}
	return max, nil
}

// CatalogRecords extracts summary record drafts from one catalog page in a
// single pass. Item blocks missing a title or link are skipped with a log
// line; a numeric field recorded as a range is stored as its midpoint.
func CatalogRecords(body []byte, host string) ([]*models.SummaryRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, ParseError{Field: "document"}
	}

	var records []*models.SummaryRecord
	doc.Find("#content .content__list--item").Each(func(_ int, item *goquery.Selection) {
		rec := extractSummary(item, host)
		if rec == nil {
			return
		}
		records = append(records, rec)
	})
	return records, nil
}

func extractSummary(item *goquery.Selection, host string) *models.SummaryRecord {
	titleLink := item.Find(".content__list--item--title.twoline a")
	title := strings.TrimSpace(titleLink.Text())
	href, _ := titleLink.Attr("href")
	if title == "" || href == "" {
		slog.Debug("catalog item missing title or link, skipped")
		return nil
	}

	des := item.Find(".content__list--item--des")
	district := strings.TrimSpace(des.Find("a:nth-child(1)").Text())
	neighborhood := strings.TrimSpace(des.Find("a:nth-child(2)").Text())

	areaText := numberPat.FindString(des.Text())
	area, err := Number(areaText)
	if err != nil {
		slog.Debug("catalog item area unparsable", slog.String("title", title))
		return nil
	}

	priceBlock := item.Find(".content__list--item-price")
	price, err := Number(strings.TrimSpace(priceBlock.Find("em").Text()))
	if err != nil {
		slog.Debug("catalog item price unparsable", slog.String("title", title))
		return nil
	}
	unit := strings.TrimSpace(unitStripPat.ReplaceAllString(priceBlock.Text(), ""))

	return &models.SummaryRecord{
		Title:        title,
		Link:         strings.TrimSuffix(host, "/") + href,
		District:     district,
		Neighborhood: neighborhood,
		Area:         area,
		Price:        price,
		Unit:         unit,
		Status:       models.StatusPending,
	}
}
