package section

import (
	"sort"
	"strings"
	"sync"

	"github.com/hanpama/gqlpath/internal/digest"
)

// Document is the raw text of one document together with its section index.
type Document struct {
	ID       string
	Text     string
	Hash     uint64
	Sections []*Section

	mu      sync.Mutex
	spreads map[*Section][]string
}

// NewDocument scans text and builds its section index.
func NewDocument(id, text string) *Document {
	return &Document{
		ID:       id,
		Text:     text,
		Hash:     digest.String(text),
		Sections: Scan(text),
	}
}

// Section returns the section of type t named name.
//
// With an empty name a single candidate is returned as is; when several
// candidates exist operations fall back to the first lexical occurrence and
// every other type yields an empty section. A missing section is also
// reported as an empty section, never as an error.
func (d *Document) Section(t Type, name string) *Section {
	var candidates []*Section
	for _, s := range d.Sections {
		if s.Type != t {
			continue
		}
		if name != "" {
			if s.Name == name {
				return s
			}
			continue
		}
		candidates = append(candidates, s)
	}
	switch {
	case len(candidates) == 1:
		return candidates[0]
	case len(candidates) > 1 && t == Operation:
		return candidates[0]
	}
	return emptySection(t, name)
}

// Fragment returns the first fragment definition called name, or nil.
func (d *Document) Fragment(name string) *Section {
	for _, s := range d.Sections {
		if s.Type == Fragment && s.Name == name {
			return s
		}
	}
	return nil
}

// Spreads lists the fragment names spread inside s.
func (d *Document) Spreads(s *Section) []string {
	if !s.Type.Executable() {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if names, ok := d.spreads[s]; ok {
		return names
	}
	if d.spreads == nil {
		d.spreads = make(map[*Section][]string)
	}
	names := spreads(s.Text)
	d.spreads[s] = names
	return names
}

// Closure returns seed plus every fragment reachable from it through
// spreads, deduplicated and in document order. Fragment cycles terminate
// because each fragment is visited once.
func (d *Document) Closure(seed []*Section) []*Section {
	visited := make(map[*Section]bool, len(seed))
	var out []*Section
	queue := append([]*Section(nil), seed...)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if s == nil || visited[s] {
			continue
		}
		visited[s] = true
		out = append(out, s)
		for _, name := range d.Spreads(s) {
			if f := d.Fragment(name); f != nil && !visited[f] {
				queue = append(queue, f)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// ClosureContains reports whether the text of s and of every fragment it
// reaches contains all terms.
func (d *Document) ClosureContains(s *Section, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	var b strings.Builder
	for _, c := range d.Closure([]*Section{s}) {
		b.WriteString(c.Text)
		b.WriteByte('\n')
	}
	text := b.String()
	for _, term := range terms {
		if !strings.Contains(text, term) {
			return false
		}
	}
	return true
}
