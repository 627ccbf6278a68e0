package ingest

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/voiddp/ak-events-tracker/internal/catalog"
)

// extractListRewards handles reward lists: <li> entries carrying a name
// sub-element and a separately styled quantity sub-element. The name must
// resolve against the catalog by exact localized name; unknown names are
// skipped, the wiki links plenty of non-reward pages.
func extractListRewards(root *goquery.Selection, cat *catalog.Catalog, ex *Extraction) {
	root.Find("li").Each(func(_ int, li *goquery.Selection) {
		qty := -1
		li.Find("span[class],span[style],div[class]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if n, ok := parseQuantity(cleanText(s.Text())); ok {
				qty = n
				return false
			}
			return true
		})
		if qty < 0 {
			return
		}

		var item *catalog.Item
		li.Find("a,span,div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			name := cleanText(s.Text())
			if name == "" {
				return true
			}
			if it, ok := cat.ByName(name); ok {
				item = it
				return false
			}
			if title, exists := s.Attr("title"); exists {
				if it, ok := cat.ByName(cleanText(title)); ok {
					item = it
					return false
				}
			}
			return true
		})
		if item == nil {
			return
		}
		ex.Rewards.Add(item.ID, qty)
	})
}
