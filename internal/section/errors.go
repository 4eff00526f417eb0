package section

import "errors"

var (
	// ErrDocumentNotFound indicates the document could not be read.
	ErrDocumentNotFound = errors.New("section: document not found")
	// ErrDocumentAccess indicates a document id outside what a source may
	// serve.
	ErrDocumentAccess = errors.New("section: document access denied")
)
