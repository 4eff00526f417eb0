package section

import (
	"context"
	"errors"
	"fmt"
)

// Loader reads documents from a Source and cuts them into sections.
type Loader struct {
	src Source
}

// NewLoader creates a Loader. A nil src defaults to an AFSSource.
func NewLoader(src Source) *Loader {
	if src == nil {
		src = NewAFSSource()
	}
	return &Loader{src: src}
}

// Load reads the document once and indexes its sections. Any read failure
// is reported as ErrDocumentNotFound, except refusals by the source, which
// keep ErrDocumentAccess.
func (l *Loader) Load(ctx context.Context, id string) (*Document, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty document id", ErrDocumentNotFound)
	}
	data, err := l.src.Read(ctx, id)
	if err != nil {
		if errors.Is(err, ErrDocumentAccess) {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDocumentNotFound, id, err)
	}
	return NewDocument(id, string(data)), nil
}

// LoadSection loads the document and returns the section of type t named
// name, following Document.Section rules.
func (l *Loader) LoadSection(ctx context.Context, id string, t Type, name string) (*Section, error) {
	doc, err := l.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.Section(t, name), nil
}
