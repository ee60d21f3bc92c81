// Package filter selects firms by sector and stage tags.
//
// A firm matches when at least one of its sectors is selected and at least
// one of its stages is selected. An empty selection on either dimension
// matches nothing; callers are expected to surface Result.Warning.
package filter

import (
	"sort"
	"strings"

	"vcmap/internal/dataset"
)

// IndexThreshold is the dataset size from which New builds an inverted index.
const IndexThreshold = 100_000

// EmptySelectionWarning is shown when either dimension has nothing selected.
const EmptySelectionWarning = "Please select at least one Sector and Stage."

// Selection is a set of tags chosen by the user.
type Selection map[string]struct{}

// NewSelection builds a Selection, ignoring blank tags.
func NewSelection(tags ...string) Selection {
	s := make(Selection, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether tag is selected.
func (s Selection) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Len is the number of selected tags.
func (s Selection) Len() int { return len(s) }

// Tags returns the selection sorted.
func (s Selection) Tags() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (s Selection) any(tags []string) bool {
	for _, t := range tags {
		if s.Has(t) {
			return true
		}
	}
	return false
}

// Result holds the matching firms in input order. EmptySelection is set,
// with Warning, when either dimension had nothing selected.
type Result struct {
	Firms          []dataset.Firm
	EmptySelection bool
	Warning        string
}

func emptySelection() Result {
	return Result{Firms: []dataset.Firm{}, EmptySelection: true, Warning: EmptySelectionWarning}
}

// Match scans firms linearly and keeps input order.
func Match(firms []dataset.Firm, sectors, stages Selection) Result {
	if sectors.Len() == 0 || stages.Len() == 0 {
		return emptySelection()
	}
	out := make([]dataset.Firm, 0)
	for _, f := range firms {
		if sectors.any(f.Sectors) && stages.any(f.Stages) {
			out = append(out, f)
		}
	}
	return Result{Firms: out}
}

// Options tunes New.
type Options struct {
	ForceIndex bool
}

// Engine answers selections over a fixed firm list, using an Index for
// large inputs.
type Engine struct {
	firms []dataset.Firm
	index *Index
}

// New returns an Engine over firms, indexing them when ForceIndex is set or
// there are at least IndexThreshold firms.
func New(firms []dataset.Firm, opts Options) *Engine {
	e := &Engine{firms: firms}
	if opts.ForceIndex || len(firms) >= IndexThreshold {
		e.index = NewIndex(firms)
	}
	return e
}

// Indexed reports whether the engine answers from an Index.
func (e *Engine) Indexed() bool { return e.index != nil }

// Match returns the same Result as the package-level Match.
func (e *Engine) Match(sectors, stages Selection) Result {
	if e.index != nil {
		return e.index.Match(sectors, stages)
	}
	return Match(e.firms, sectors, stages)
}
