package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-hal/models"
)

// MinCells is the number of cells a listing row must carry.
const MinCells = 6

// BlockedError reports an anti-bot interstitial detected in a response.
type BlockedError struct {
	Step   string
	Marker string
}

func (e *BlockedError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("blocked: matched %q", e.Marker)
	}
	return fmt.Sprintf("blocked on %s: matched %q", e.Step, e.Marker)
}

// ParseListing extracts listing rows from an HTML body. It never fails on
// malformed markup: missing tables read as empty and short rows are skipped.
func ParseListing(body []byte, c *Classifier) models.FetchOutcome {
	if c == nil {
		c = DefaultClassifier()
	}

	switch verdict, marker := c.Classify(string(body)); verdict {
	case VerdictBlocked:
		return models.BlockedOutcome(&BlockedError{Marker: marker})
	case VerdictEmpty:
		return models.EmptyOutcome()
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return models.EmptyOutcome()
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return models.EmptyOutcome()
	}

	rows := make([]models.RawRow, 0)
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := tr.Find("td").Map(func(_ int, td *goquery.Selection) string {
			return cellText(td.Text())
		})
		if len(cells) < MinCells {
			return
		}
		rows = append(rows, models.RawRow{
			ProductName:  cells[0],
			CategoryText: cells[1],
			Unit:         cells[2],
			MinPrice:     cells[3],
			MaxPrice:     cells[4],
			SourceDate:   cells[5],
		})
	})
	return models.RowsOutcome(rows)
}

func cellText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
