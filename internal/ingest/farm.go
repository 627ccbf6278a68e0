package ingest

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/voiddp/ak-events-tracker/internal/catalog"
)

// Stage tables label their material drops with one of these rate keywords.
var dropRateKeywords = map[string]bool{
	"固定掉落": true,
	"大概率":  true,
	"概率掉落": true,
	"小概率":  true,
}

// detectFarms collects tier-3 materials linked inside cells that carry a
// drop-rate keyword span, deduplicated in document order. Callers cap the
// result at three.
func detectFarms(root *goquery.Selection, cat *catalog.Catalog) []string {
	var ids []string
	seen := map[string]bool{}

	root.Find("td").Each(func(_ int, td *goquery.Selection) {
		keyword := false
		td.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if dropRateKeywords[cleanText(s.Text())] {
				keyword = true
				return false
			}
			return true
		})
		if !keyword {
			return
		}
		td.Find("a[title]").Each(func(_ int, a *goquery.Selection) {
			title, _ := a.Attr("title")
			item, ok := cat.MaterialByName(cleanText(title), 3)
			if !ok || seen[item.ID] {
				return
			}
			seen[item.ID] = true
			ids = append(ids, item.ID)
		})
	})
	return ids
}
