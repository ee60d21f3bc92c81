package tagging

import (
	"sort"
	"strings"
)

// MissingPlaceholder is what an absent tag cell stringifies to. It is parsed
// like any other value, so a missing cell yields the one-tag list ["nan"].
const MissingPlaceholder = "nan"

const separator = ","

// naTokens are the cell values treated as missing, matched exactly against
// the raw cell. The list is pandas' default na_values.
var naTokens = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-1.#IND":  {},
	"-1.#QNAN": {},
	"-NaN":     {},
	"-nan":     {},
	"1.#IND":   {},
	"1.#QNAN":  {},
	"<NA>":     {},
	"N/A":      {},
	"NA":       {},
	"NULL":     {},
	"NaN":      {},
	"None":     {},
	"n/a":      {},
	"nan":      {},
	"null":     {},
}

// IsMissing reports whether a CSV cell counts as a missing value: absent from
// the row, empty, or one of the NA tokens.
func IsMissing(raw string, present bool) bool {
	if !present {
		return true
	}
	_, ok := naTokens[raw]
	return ok
}

// Parse splits a raw tag field on commas, trims every piece and drops the
// pieces that end up empty. Order and duplicates are preserved.
func Parse(raw string) []string {
	out := make([]string, 0, strings.Count(raw, separator)+1)
	for _, piece := range strings.Split(raw, separator) {
		tag := strings.TrimSpace(piece)
		if tag == "" {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// ParseCell parses a CSV cell that may be missing. A missing cell (see
// IsMissing) is replaced by MissingPlaceholder before parsing; a
// whitespace-only cell is present and parses to an empty list.
func ParseCell(raw string, present bool) []string {
	if IsMissing(raw, present) {
		return Parse(MissingPlaceholder)
	}
	return Parse(raw)
}

// IsPlaceholder reports whether tags is exactly the list produced from a
// missing cell.
func IsPlaceholder(tags []string) bool {
	return len(tags) == 1 && tags[0] == MissingPlaceholder
}

// IsBlank reports whether a display value is empty, an NA token or the
// missing placeholder in any case.
func IsBlank(value string) bool {
	v := strings.TrimSpace(value)
	return IsMissing(v, true) || strings.EqualFold(v, MissingPlaceholder)
}

// Join renders a tag list the way the table, tooltip and detail view show it.
func Join(tags []string) string {
	return strings.Join(tags, ", ")
}

// Universe returns every distinct tag found in lists, sorted.
func Universe(lists [][]string) []string {
	seen := make(map[string]struct{})
	for _, tags := range lists {
		for _, t := range tags {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
