package pp3

import (
	"strings"

	"github.com/dshills/aipp3/internal/edits"
)

// byName indexes contents by section name; the first section wins when a
// name repeats.
func byName(contents []string) map[string]string {
	m := make(map[string]string, len(contents))
	for _, c := range contents {
		doc := Split(c)
		if doc.Len() == 0 {
			continue
		}
		name := doc.Sections[0].Name
		if _, ok := m[name]; !ok {
			m[name] = c
		}
	}
	return m
}

// Merge reassembles a full profile. For each name in order it takes the
// section from edited (the patched included text), then from the original
// included sections, then from the excluded ones. A name found nowhere
// contributes an empty line.
func Merge(order []string, edited string, included, excluded []string) string {
	tiers := []map[string]string{
		byName(Split(edited).Contents()),
		byName(included),
		byName(excluded),
	}

	out := make([]string, len(order))
	for i, name := range order {
		for _, tier := range tiers {
			if c, ok := tier[name]; ok {
				out[i] = c
				break
			}
		}
	}
	return strings.Join(out, "\n")
}

// MergeEdits applies blocks to the included text of f and merges the result
// back into the full profile. It returns the merged profile and the number of
// blocks whose search text was found.
func MergeEdits(f Filtered, blocks []edits.Block) (string, int) {
	patched, applied := edits.Apply(f.IncludedText(), blocks)
	return Merge(f.Names(), patched, f.Included, f.Excluded), applied
}
