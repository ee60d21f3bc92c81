package filter

import (
	"sort"

	"vcmap/internal/dataset"
)

// Index maps each tag to the ascending positions of the firms carrying it.
type Index struct {
	firms   []dataset.Firm
	sectors map[string][]int
	stages  map[string][]int
}

func NewIndex(firms []dataset.Firm) *Index {
	idx := &Index{
		firms:   firms,
		sectors: make(map[string][]int),
		stages:  make(map[string][]int),
	}
	for i, f := range firms {
		addPostings(idx.sectors, f.Sectors, i)
		addPostings(idx.stages, f.Stages, i)
	}
	return idx
}

func addPostings(m map[string][]int, tags []string, pos int) {
	for _, t := range tags {
		list := m[t]
		// Duplicate tags within a row would repeat pos.
		if n := len(list); n > 0 && list[n-1] == pos {
			continue
		}
		m[t] = append(list, pos)
	}
}

// Match returns the same result as the linear Match over the indexed firms.
func (idx *Index) Match(sectors, stages Selection) Result {
	if sectors.Len() == 0 || stages.Len() == 0 {
		return emptySelection()
	}

	bySector := union(idx.sectors, sectors)
	byStage := union(idx.stages, stages)

	out := make([]dataset.Firm, 0)
	for i, j := 0, 0; i < len(bySector) && j < len(byStage); {
		switch {
		case bySector[i] == byStage[j]:
			out = append(out, idx.firms[bySector[i]])
			i++
			j++
		case bySector[i] < byStage[j]:
			i++
		default:
			j++
		}
	}
	return Result{Firms: out}
}

func union(postings map[string][]int, sel Selection) []int {
	seen := make(map[int]struct{})
	var out []int
	for tag := range sel {
		for _, pos := range postings[tag] {
			if _, ok := seen[pos]; ok {
				continue
			}
			seen[pos] = struct{}{}
			out = append(out, pos)
		}
	}
	sort.Ints(out)
	return out
}
