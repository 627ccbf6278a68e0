package ingest

import (
	"regexp"
	"strconv"
)

// Quantities on the wiki are plain digits optionally suffixed with a
// magnitude glyph: 万 (x10000), 千 (x1000), 百 (x100).
var quantityRe = regexp.MustCompile(`^(\d+)([万千百])?$`)

var glyphMultipliers = map[string]int{
	"万": 10000,
	"千": 1000,
	"百": 100,
}

// parseQuantity parses a magnitude-suffixed numeral string. The second
// return is false for anything that does not match the pattern, including
// the empty string: "no value" is distinct from zero and callers must not
// conflate the two.
func parseQuantity(s string) (int, bool) {
	m := quantityRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		// Digits overflowed int; no sane wiki quantity does.
		return 0, false
	}
	if m[2] != "" {
		n *= glyphMultipliers[m[2]]
	}
	return n, true
}
