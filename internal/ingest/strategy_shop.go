package ingest

import (
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/voiddp/ak-events-tracker/internal/catalog"
)

// Shop rows write pack multipliers into the name cell: "治疗小队资质卡x3"
// means three per purchase.
var shopNameRe = regexp.MustCompile(`^(.+?)(?:[x×](\d+))?$`)

// Stock cells use these to mark unlimited supply.
var infiniteMarkers = map[string]bool{
	"∞":  true,
	"无限": true,
	"不限": true,
}

// LMD stock is nominally unlimited in every shop; tracking it as an
// infinite reward would be noise.
const lmdItemID = "4001"

// extractShopRewards handles shop tables: rows of at least two cells where
// the first cell names an item (with an optional pack multiplier) and a
// later cell carries the purchasable amount. Final quantity is amount times
// multiplier. An unlimited-stock marker records the item as infinite-supply
// instead of contributing a finite quantity.
func extractShopRewards(root *goquery.Selection, cat *catalog.Catalog, ex *Extraction) {
	root.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}

		var item *catalog.Item
		multiplier := 1
		infinite := false
		amount := 0

		cells.EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			text := cleanText(cell.Text())
			if item == nil {
				m := shopNameRe.FindStringSubmatch(text)
				if m == nil {
					return true
				}
				it, ok := cat.ByName(m[1])
				if !ok {
					return true
				}
				item = it
				if m[2] != "" {
					if n, err := strconv.Atoi(m[2]); err == nil && n > 0 {
						multiplier = n
					}
				}
				return true
			}
			if infiniteMarkers[text] {
				infinite = true
				return false
			}
			if n, ok := parseQuantity(text); ok && n > 0 {
				amount = n
				return false
			}
			return true
		})

		if item == nil {
			return
		}
		if infinite {
			if item.ID != lmdItemID {
				addInfinite(ex, item.ID)
			}
			return
		}
		ex.Rewards.Add(item.ID, amount*multiplier)
	})
}
