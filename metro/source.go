// Package metro scrapes the transit operator's line/station reference
// table with a headless browser. The page is rendered client-side, so a
// plain GET returns nothing useful; everything site-specific stays behind
// the pipeline's StationSource interface.
package metro

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/aluiziolira/go-scrape-rentals/models"
)

// Source drives a headless Chrome session against the operator's site.
type Source struct {
	url     string
	timeout time.Duration
}

// New creates a station source for the given reference-table URL.
func New(url string, timeout time.Duration) *Source {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Source{url: url, timeout: timeout}
}

type stationRow struct {
	LineCode    string `json:"lineCode"`
	LineName    string `json:"lineName"`
	LineColor   string `json:"lineColor"`
	StationCode string `json:"stationCode"`
	StationName string `json:"stationName"`
}

// Stations clicks through every line tab and collects the station rows.
func (s *Source) Stations(ctx context.Context) ([]*models.StationRecord, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if bin := findChromeBinary(); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	runCtx, cancelTimeout := context.WithTimeout(browserCtx, s.timeout)
	defer cancelTimeout()

	var lineCount int
	err := chromedp.Run(runCtx,
		chromedp.Navigate(s.url),
		chromedp.WaitVisible(".current", chromedp.ByQuery),
		chromedp.Evaluate(`document.querySelectorAll('#zoneHeader td a').length`, &lineCount),
	)
	if err != nil {
		return nil, fmt.Errorf("load reference table: %w", err)
	}
	if lineCount == 0 {
		return nil, fmt.Errorf("reference table exposes no lines")
	}

	var stations []*models.StationRecord
	for i := 0; i < lineCount; i++ {
		rows, err := s.scrapeLine(runCtx, i)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		for _, row := range rows {
			stations = append(stations, &models.StationRecord{
				LineCode:    row.LineCode,
				LineName:    row.LineName,
				LineColor:   row.LineColor,
				StationCode: row.StationCode,
				StationName: row.StationName,
			})
		}
		slog.Debug("scraped line", slog.Int("index", i), slog.Int("stations", len(rows)))
	}
	return stations, nil
}

// scrapeLine activates one line tab and reads its station table. The
// first three table rows are headers and skipped; the first cell holds
// "lineCode\nstationCode", the second the station name.
func (s *Source) scrapeLine(ctx context.Context, index int) ([]stationRow, error) {
	clickScript := fmt.Sprintf(
		`document.querySelectorAll('#zoneHeader td a')[%d].click()`, index)

	readScript := fmt.Sprintf(`
		(function() {
			var button = document.querySelectorAll('#zoneHeader td a')[%d];
			var style = button.getAttribute('style') || '';
			var colorMatch = style.match(/rgb\(\d{1,3},\s*\d{1,3},\s*\d{1,3}\)/);
			var lineName = (button.textContent || '').trim();
			var lineColor = colorMatch ? colorMatch[0] : '';

			var results = [];
			var trs = document.querySelectorAll('#zoneService tbody tr');
			for (var i = 3; i < trs.length; i++) {
				var tds = trs[i].querySelectorAll('td');
				if (tds.length < 2) continue;
				var codes = (tds[0].innerText || '').trim().split('\n');
				if (codes.length < 2) continue;
				results.push({
					lineCode: codes[0].trim(),
					lineName: lineName,
					lineColor: lineColor,
					stationCode: codes[1].trim(),
					stationName: (tds[1].innerText || '').trim()
				});
			}
			return results;
		})()
	`, index)

	var rows []stationRow
	err := chromedp.Run(ctx,
		chromedp.Evaluate(clickScript, nil),
		// The table re-renders after the tab switch.
		chromedp.Sleep(2*time.Second),
		chromedp.Evaluate(readScript, &rows),
	)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
