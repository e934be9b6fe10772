package rfp

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"rfpquote/internal"
	"rfpquote/internal/util"
)

// DataFile is the base name of the RFP list inside DATA_DIR.
const DataFile = "rfps"

var deadlineLayouts = []string{
	internal.DeadlineLayout,
	"02-01-2006",
	"02/01/2006",
	"02.01.2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// LoadFile reads an RFP list from a .json or .yaml file.
func LoadFile(path string) ([]internal.RFP, error) {
	var rfps []internal.RFP
	if err := util.DecodeFile(path, &rfps); err != nil {
		return nil, err
	}
	if err := validate(rfps); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rfps, nil
}

// LoadDir reads rfps.json (or .yaml/.yml) from dir.
func LoadDir(dir string) ([]internal.RFP, error) {
	path, ok := util.FindDataFile(dir, DataFile)
	if !ok {
		return nil, fmt.Errorf("no %s.json or %s.yaml in %s", DataFile, DataFile, dir)
	}
	return LoadFile(path)
}

func validate(rfps []internal.RFP) error {
	seen := map[string]struct{}{}
	for i, r := range rfps {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			return fmt.Errorf("rfp %d: empty id", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("rfp %d: duplicate id %s", i, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ParseHTMLListing reads tender rows from a saved portal page. Columns are found by
// header text; rows without an id get the next RFP-YYYY-NNNN after existing.
func ParseHTMLListing(r io.Reader, existing []internal.RFP, now time.Time) ([]internal.RFP, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	known := append([]internal.RFP(nil), existing...)
	out := []internal.RFP{}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		headers := []string{}
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, util.NormalizeKey(cell.Text()))
		})
		idIdx := headerIndex(headers, "ref", "tender no", "tender id", "rfp id", "id")
		titleIdx := headerIndex(headers, "title", "description", "work", "subject")
		clientIdx := headerIndex(headers, "client", "organisation", "organization", "department", "buyer")
		deadlineIdx := headerIndex(headers, "deadline", "closing", "due", "submission", "last date")
		valueIdx := headerIndex(headers, "value", "estimate", "amount")
		if titleIdx < 0 || deadlineIdx < 0 {
			return
		}

		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
			})
			title := cellAt(cells, titleIdx)
			if title == "" {
				return
			}

			item := internal.RFP{
				ID:                 cellAt(cells, idIdx),
				Title:              title,
				Client:             cellAt(cells, clientIdx),
				SubmissionDeadline: normalizeDeadline(cellAt(cells, deadlineIdx)),
				EstimatedValue:     cellAt(cells, valueIdx),
			}
			if href, ok := row.Find("a[href]").First().Attr("href"); ok {
				item.URL = strings.TrimSpace(href)
			}
			if item.ID == "" {
				item.ID = NextID(known, now.Year())
			}
			known = append(known, item)
			out = append(out, item)
		})
	})

	if len(out) == 0 {
		return nil, errors.New("no tender rows found in html")
	}
	log.Debug().Int("rows", len(out)).Msg("parsed tender listing")
	return out, nil
}

func headerIndex(headers []string, probes ...string) int {
	for _, probe := range probes {
		for i, h := range headers {
			if h == probe || len(probe) > 2 && strings.Contains(h, probe) {
				return i
			}
		}
	}
	return -1
}

func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

// normalizeDeadline rewrites known date forms as YYYY-MM-DD. Anything else is kept
// as-is and later skipped by Scan.
func normalizeDeadline(s string) string {
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(internal.DeadlineLayout)
		}
	}
	return s
}
