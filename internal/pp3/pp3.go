// Package pp3 splits RawTherapee processing profiles into named sections,
// partitions them by name, and reassembles a full profile after a subset of
// sections has been edited.
package pp3

import (
	"strings"
)

// Section is one bracket-delimited block of a profile.
type Section struct {
	Name    string // header label without the brackets
	Content string // header line plus parameter lines, trimmed at the boundaries
	Index   int    // 0-based position among all sections of the source text
}

// Document is the ordered list of sections of a profile.
type Document struct {
	Sections []Section
}

// Contents returns the section contents in source order.
func (d Document) Contents() []string {
	out := make([]string, len(d.Sections))
	for i, s := range d.Sections {
		out[i] = s.Content
	}
	return out
}

// Names returns the section names in source order. Duplicates are kept.
func (d Document) Names() []string {
	out := make([]string, len(d.Sections))
	for i, s := range d.Sections {
		out[i] = s.Name
	}
	return out
}

// Len returns the number of sections.
func (d Document) Len() int { return len(d.Sections) }

// isHeader reports whether line opens a new section.
func isHeader(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "[")
}

// headerName extracts the label from a header line. A missing closing
// bracket leaves the label intact rather than dropping its last character.
func headerName(line string) string {
	t := strings.TrimSpace(line)
	t = strings.TrimPrefix(t, "[")
	return strings.TrimSuffix(t, "]")
}

// Split breaks profile text into sections. Lines before the first header are
// discarded. Parameter lines are kept verbatim; only the outer boundaries of
// each section are trimmed. Split is pure and safe for concurrent use.
func Split(content string) Document {
	var doc Document
	if strings.TrimSpace(content) == "" {
		return doc
	}

	type pending struct {
		name string
		buf  []string
	}

	flush := func(p *pending) {
		if p == nil {
			return
		}
		doc.Sections = append(doc.Sections, Section{
			Name:    p.name,
			Content: strings.TrimSpace(strings.Join(p.buf, "\n")),
			Index:   len(doc.Sections),
		})
	}

	var cur *pending
	for _, line := range strings.Split(content, "\n") {
		if isHeader(line) {
			flush(cur)
			cur = &pending{name: headerName(line), buf: []string{line}}
			continue
		}
		if cur == nil {
			// Preamble before the first header.
			continue
		}
		cur.buf = append(cur.buf, line)
	}
	flush(cur)

	return doc
}

// Filtered is a split profile partitioned into the sections selected for
// editing and the ones preserved as-is. Included and Excluded each keep the
// source order of their members.
type Filtered struct {
	Document
	Included []string
	Excluded []string
}

// Filter splits content and partitions its sections by exact, case-sensitive
// membership of their name in names.
func Filter(content string, names []string) Filtered {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	f := Filtered{Document: Split(content)}
	for _, s := range f.Sections {
		if want[s.Name] {
			f.Included = append(f.Included, s.Content)
		} else {
			f.Excluded = append(f.Excluded, s.Content)
		}
	}
	return f
}

// IncludedText returns the included sections joined by newlines, the text
// exposed to the edit proposer.
func (f Filtered) IncludedText() string {
	return strings.Join(f.Included, "\n")
}
