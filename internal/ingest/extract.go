// Package ingest turns fetched wiki pages into structured reward data. Four
// independent extraction strategies scan the same parsed document and
// contribute additively into one reward map per page; farm and title
// detection run alongside.
package ingest

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/voiddp/ak-events-tracker/internal/catalog"
	"github.com/voiddp/ak-events-tracker/internal/models"
)

// Extraction is everything one page contributes.
type Extraction struct {
	Rewards     models.RewardMap
	FarmIDs     []string // tier-3 materials flagged as efficiently farmable, document order
	InfiniteIDs []string // shop items with unbounded stock
	Title       string   // derived localized title, empty when none detected
}

// ExtractPage runs all strategies over one page's raw HTML. A strategy that
// finds nothing simply contributes nothing; that is not an error.
func ExtractPage(rawHTML string, cat *catalog.Catalog) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("ingest: parsing page: %w", err)
	}
	ex := extractFromSelection(doc.Selection, cat)
	ex.Title = detectTitle(rawHTML)
	return ex, nil
}

// extractFromSelection runs the reward strategies and farm detection over an
// arbitrary subtree. Used directly for tabbed sub-sections where one page
// holds several sub-units.
func extractFromSelection(sel *goquery.Selection, cat *catalog.Catalog) *Extraction {
	ex := &Extraction{Rewards: models.RewardMap{}}
	extractListRewards(sel, cat, ex)
	extractGridRewards(sel, cat, ex)
	extractShopRewards(sel, cat, ex)
	extractTextRewards(sel, cat, ex)
	ex.FarmIDs = detectFarms(sel, cat)
	return ex
}

func addInfinite(ex *Extraction, id string) {
	for _, v := range ex.InfiniteIDs {
		if v == id {
			return
		}
	}
	ex.InfiniteIDs = append(ex.InfiniteIDs, id)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
