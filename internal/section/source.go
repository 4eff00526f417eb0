package section

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/viant/afs"
)

// Source resolves a document identity to its raw text.
type Source interface {
	Read(ctx context.Context, id string) ([]byte, error)
}

// AFSSource reads documents through viant/afs, so an identity may be a local
// path or any URL afs understands (file://, mem://, ...).
type AFSSource struct {
	fs afs.Service
}

// NewAFSSource creates an AFSSource backed by afs.New().
func NewAFSSource() *AFSSource {
	return &AFSSource{fs: afs.New()}
}

// Read implements Source.
func (s *AFSSource) Read(ctx context.Context, id string) ([]byte, error) {
	ok, err := s.fs.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s does not exist", id)
	}
	return s.fs.DownloadWithURL(ctx, id)
}

// RootedSource serves only local files below one directory. Ids are paths
// relative to that directory; URLs, absolute paths and paths that leave the
// directory, symlinks included, are refused with ErrDocumentAccess.
type RootedSource struct {
	dir string
	src Source
}

// NewRootedSource confines src to dir. A nil src reads through afs.
func NewRootedSource(dir string, src Source) (*RootedSource, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("document root: %w", err)
	}
	if fi, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("document root: %w", err)
	} else if !fi.IsDir() {
		return nil, fmt.Errorf("document root %s is not a directory", abs)
	}
	if src == nil {
		src = NewAFSSource()
	}
	return &RootedSource{dir: abs, src: src}, nil
}

// Dir is the resolved root directory.
func (s *RootedSource) Dir() string { return s.dir }

// Read implements Source.
func (s *RootedSource) Read(ctx context.Context, id string) ([]byte, error) {
	p, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	return s.src.Read(ctx, p)
}

func (s *RootedSource) resolve(id string) (string, error) {
	if strings.Contains(id, "://") {
		return "", fmt.Errorf("%w: %q is not a local path", ErrDocumentAccess, id)
	}
	rel := filepath.FromSlash(id)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q is outside the document root", ErrDocumentAccess, id)
	}
	p := filepath.Join(s.dir, rel)
	resolved, err := filepath.EvalSymlinks(p)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return "", err
	}
	if r, err := filepath.Rel(s.dir, resolved); err != nil || !filepath.IsLocal(r) {
		return "", fmt.Errorf("%w: %q is outside the document root", ErrDocumentAccess, id)
	}
	return resolved, nil
}

// MemorySource serves documents held in memory. It is safe for concurrent
// use.
type MemorySource struct {
	mu   sync.RWMutex
	docs map[string]string
}

// NewMemorySource creates a MemorySource holding docs (id -> text).
func NewMemorySource(docs map[string]string) *MemorySource {
	m := &MemorySource{docs: make(map[string]string, len(docs))}
	for id, text := range docs {
		m.docs[id] = text
	}
	return m
}

// Put stores or replaces a document.
func (m *MemorySource) Put(id, text string) {
	m.mu.Lock()
	m.docs[id] = text
	m.mu.Unlock()
}

// Read implements Source.
func (m *MemorySource) Read(ctx context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	text, ok := m.docs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("document %q not found", id)
	}
	return []byte(text), nil
}
