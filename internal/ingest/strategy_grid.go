package ingest

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/voiddp/ak-events-tracker/internal/catalog"
)

// Tables whose first row carries this marker summarize rewards already
// listed elsewhere on the page; counting them would double everything.
const totalsMarker = "合计"

// extractGridRewards handles the grid layout: table cells and free-standing
// div containers holding a linked, titled item element next to a quantity
// label.
func extractGridRewards(root *goquery.Selection, cat *catalog.Catalog, ex *Extraction) {
	root.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		if strings.Contains(tbl.Find("tr").First().Text(), totalsMarker) {
			return
		}
		tbl.Find("td").Each(func(_ int, td *goquery.Selection) {
			gridCell(td, cat, ex)
		})
	})

	// Free-standing containers outside any table. Only the innermost div
	// holding the link counts, so nested wrappers don't double-contribute.
	root.Find("div").Each(func(_ int, div *goquery.Selection) {
		if div.ParentsFiltered("table").Length() > 0 {
			return
		}
		if div.Find("div a[title]").Length() > 0 {
			return
		}
		gridCell(div, cat, ex)
	})
}

// gridCell reads one container: an a[title] naming the item plus the first
// sibling text that parses as a quantity.
func gridCell(cell *goquery.Selection, cat *catalog.Catalog, ex *Extraction) {
	link := cell.Find("a[title]").First()
	if link.Length() == 0 {
		return
	}
	title, _ := link.Attr("title")
	item, ok := cat.ByName(cleanText(title))
	if !ok {
		return
	}

	qty := -1
	cell.Find("span,div,b").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		text = strings.TrimPrefix(text, "x")
		text = strings.TrimPrefix(text, "×")
		if n, ok := parseQuantity(text); ok {
			qty = n
			return false
		}
		return true
	})
	if qty < 0 {
		return
	}
	ex.Rewards.Add(item.ID, qty)
}
