package catalog

import (
	"strings"

	"golang.org/x/text/width"
)

// Wiki editors are inconsistent about interpunct and hyphen glyphs in item
// names ("晶体电子单元" vs "D32钢", "RMA70-12" vs "RMA70−12"). Each family
// member substitutes for any other member.
var glyphFamilies = [][]rune{
	{'·', '・', '‧', '•'},
	{'-', '−', '–'},
}

// nameVariants returns name plus every single-family glyph substitution and
// a half-width fold. The canonical name is always first; the rest are
// deduplicated.
func nameVariants(name string) []string {
	seen := map[string]bool{name: true}
	out := []string{name}

	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	for _, family := range glyphFamilies {
		present := false
		for _, g := range family {
			if strings.ContainsRune(name, g) {
				present = true
				break
			}
		}
		if !present {
			continue
		}
		for _, repl := range family {
			v := name
			for _, g := range family {
				if g != repl {
					v = strings.ReplaceAll(v, string(g), string(repl))
				}
			}
			add(v)
		}
	}

	// Fold full-width latin/digits (ＲＭＡ７０ style) to half-width.
	add(width.Narrow.String(name))

	return out
}
