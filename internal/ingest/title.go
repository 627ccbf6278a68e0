package ingest

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// Event pages carry the localized title in a fixed header element. The page
// body often arrives entity-escaped inside wikitext, so the scan runs over
// the de-escaped raw HTML rather than the parsed document.
var titleHeaderRe = regexp.MustCompile(`class="fnameheader[^"]*"[^>]*>([^<]+)<`)

var titlePolicy = bluemonday.StrictPolicy()

// Phrases the source wiki writes in Chinese even inside otherwise-localized
// titles.
var titleSubstitutions = []struct{ from, to string }{
	{"复刻", "Rerun"},
	{"（", " ("},
	{"）", ")"},
}

// detectTitle extracts a localized display title from raw page HTML. Only
// mostly-Latin captures qualify; a Chinese header is the page key itself and
// adds nothing.
func detectTitle(rawHTML string) string {
	m := titleHeaderRe.FindStringSubmatch(html.UnescapeString(rawHTML))
	if m == nil {
		return ""
	}
	// Sanitize entity-escapes its plain-text output, so de-escape once more
	// to keep literal &, < and friends in the stored title.
	captured := cleanText(html.UnescapeString(titlePolicy.Sanitize(m[1])))
	if captured == "" || !mostlyLatin(captured) {
		return ""
	}

	title := capitalizeWords(captured)
	for _, sub := range titleSubstitutions {
		title = strings.ReplaceAll(title, sub.from, sub.to)
	}
	return cleanText(title)
}

// mostlyLatin reports whether at least half of the non-whitespace characters
// are Latin letters.
func mostlyLatin(s string) bool {
	total, latin := 0, 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.In(r, unicode.Latin) {
			latin++
		}
	}
	return total > 0 && latin*2 >= total
}

func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
