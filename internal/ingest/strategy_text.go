package ingest

import (
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/voiddp/ak-events-tracker/internal/catalog"
)

// Free-flowing reward prose separates entries with any of these.
var textDelimiters = regexp.MustCompile(`[、，,；;\n]`)

// Segments mentioning paid packs describe monetized bundle contents, not
// obtainable rewards.
const paidPackMarker = "礼包"

// variant patterns are per-item regexps over <name><glyph><digits> prose
// like "合成玉×3000" or "固源岩组x40". Compiled lazily per catalog item and
// cached, keyed by canonical name.
var (
	textPatternMu    sync.Mutex
	textPatternCache = map[string]*regexp.Regexp{}
)

func textPattern(it *catalog.Item) *regexp.Regexp {
	textPatternMu.Lock()
	defer textPatternMu.Unlock()
	if re, ok := textPatternCache[it.Name]; ok {
		return re
	}
	quoted := make([]string, 0, len(it.Variants()))
	for _, v := range it.Variants() {
		quoted = append(quoted, regexp.QuoteMeta(v))
	}
	re := regexp.MustCompile(`(?:` + strings.Join(quoted, `|`) + `)[×x*](\d+[万千百]?)`)
	textPatternCache[it.Name] = re
	return re
}

// extractTextRewards handles rewards written as prose in paragraphs, spans
// and list items. Each delimiter-split segment is tested against every
// catalog item's name variants; the first match consumes the segment so one
// segment never contributes twice. Identical segment text repeated through
// nested markup is only counted once per page.
func extractTextRewards(root *goquery.Selection, cat *catalog.Catalog, ex *Extraction) {
	seen := map[string]bool{}

	root.Find("p,span,li").Each(func(_ int, node *goquery.Selection) {
		for _, segment := range textDelimiters.Split(node.Text(), -1) {
			segment = cleanText(segment)
			if segment == "" || seen[segment] {
				continue
			}
			seen[segment] = true
			if strings.Contains(segment, paidPackMarker) {
				continue
			}
			for _, it := range cat.Items() {
				m := textPattern(it).FindStringSubmatch(segment)
				if m == nil {
					continue
				}
				if n, ok := parseQuantity(m[1]); ok {
					ex.Rewards.Add(it.ID, n)
				}
				break
			}
		}
	})
}
