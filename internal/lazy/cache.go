package lazy

import (
	"sync"

	"github.com/hanpama/gqlpath/internal/matcher"
	"github.com/hanpama/gqlpath/internal/section"
	"github.com/hanpama/gqlpath/internal/tree"
)

type sectionKey struct {
	doc     string
	typ     section.Type
	name    string
	ordinal int
}

// sectionEntry is valid for a section only while its text and position
// are unchanged.
type sectionEntry struct {
	hash uint64
	base tree.Base
	tree *tree.Tree
}

type resultKey struct {
	doc  string
	expr string
}

// resultEntry is valid only for the document content it was computed on.
type resultEntry struct {
	hash     uint64
	matches  []matcher.Match
	sections []*section.Section
}

type caches struct {
	sections sync.Map // sectionKey -> *sectionEntry
	results  sync.Map // resultKey -> *resultEntry
}

func (c *caches) section(k sectionKey) (*sectionEntry, bool) {
	v, ok := c.sections.Load(k)
	if !ok {
		return nil, false
	}
	return v.(*sectionEntry), true
}

func (c *caches) result(k resultKey) (*resultEntry, bool) {
	v, ok := c.results.Load(k)
	if !ok {
		return nil, false
	}
	return v.(*resultEntry), true
}

func (c *caches) clear() {
	c.sections.Clear()
	c.results.Clear()
}

func (c *caches) clearDocument(id string) {
	c.sections.Range(func(k, _ any) bool {
		if k.(sectionKey).doc == id {
			c.sections.Delete(k)
		}
		return true
	})
	c.results.Range(func(k, _ any) bool {
		if k.(resultKey).doc == id {
			c.results.Delete(k)
		}
		return true
	})
}

func (c *caches) sizes() (sections, results int) {
	c.sections.Range(func(_, _ any) bool { sections++; return true })
	c.results.Range(func(_, _ any) bool { results++; return true })
	return sections, results
}
