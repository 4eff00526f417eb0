package tree

import (
	"github.com/hanpama/gqlpath/internal/language"
	"github.com/hanpama/gqlpath/internal/section"
)

// BaseOf returns the position of s inside its document.
func BaseOf(s *section.Section) Base {
	return Base{Offset: s.RuneStart, Line: s.Line, Column: s.Column}
}

// FromSection parses the text of a single section. Node positions are
// absolute positions in the section's document.
func FromSection(docID string, s *section.Section) (*Tree, error) {
	if s.Empty() {
		return NewBuilder().Tree(), nil
	}
	if s.Type.Executable() {
		doc, err := language.ParseQuery(docID, s.Text)
		if err != nil {
			return nil, err
		}
		return BuildQuery(doc, BaseOf(s)), nil
	}
	doc, err := language.ParseSchema(docID, s.Text)
	if err != nil {
		return nil, err
	}
	return BuildSchema(doc, BaseOf(s)), nil
}
