package asset

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"sync"
)

// Ext is the file extension of shader assets.
const Ext = ".shader"

// Store loads and caches parsed assets from a file system.
// Asset identities are slash-separated paths relative to the file system
// root, for example "materials/lit.shader".
//
// Store is safe for concurrent use.
type Store struct {
	fsys fs.FS

	mu     sync.Mutex
	assets map[string]*ShaderAsset
}

// NewStore creates a store reading from fsys.
func NewStore(fsys fs.FS) *Store {
	return &Store{
		fsys:   fsys,
		assets: make(map[string]*ShaderAsset),
	}
}

// Load returns the parsed asset, reading and parsing it on first use.
// Parse failures are not cached, so a corrected file is picked up by the
// next Load without an explicit Invalidate.
func (s *Store) Load(name string) (*ShaderAsset, error) {
	s.mu.Lock()
	a, ok := s.assets[name]
	s.mu.Unlock()
	if ok {
		return a, nil
	}

	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("asset: read %s: %w", name, err)
	}
	a, err = Parse(name, data)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.assets[name]; ok {
		return cached, nil
	}
	s.assets[name] = a
	return a, nil
}

// Invalidate drops the cached parse of name. The next Load re-reads it.
// It reports whether an entry was removed.
func (s *Store) Invalidate(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[name]; !ok {
		return false
	}
	delete(s.assets, name)
	return true
}

// Len returns the number of cached assets.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.assets)
}

// Names lists every asset file under the store root, sorted.
func (s *Store) Names() ([]string, error) {
	var names []string
	err := fs.WalkDir(s.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && path.Ext(p) == Ext {
			names = append(names, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("asset: list: %w", err)
	}
	sort.Strings(names)
	return names, nil
}
