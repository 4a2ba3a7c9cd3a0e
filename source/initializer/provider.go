package initializer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// A SourceProvider abstracts file I/O for the elaboration pipeline, so that
// bundles can be elaborated from places other than the filesystem, e.g. from
// request bodies or test fixtures.
type SourceProvider interface {
	ReadSource(path string) (string, error)
	ResolveImport(base, importPath string) (string, error)
	Canonicalize(path string) (string, error)
}

// FileSystemProvider is the default provider, delegating to the os package.
type FileSystemProvider struct{}

func (FileSystemProvider) ReadSource(path string) (string, error) {
	b, e := os.ReadFile(path)
	if e != nil {
		return "", e
	}
	return string(b), nil
}

func (FileSystemProvider) ResolveImport(base, importPath string) (string, error) {
	return filepath.Join(base, importPath), nil
}

func (FileSystemProvider) Canonicalize(path string) (string, error) {
	abs, e := filepath.Abs(path)
	if e != nil {
		return "", e
	}
	canon, e := filepath.EvalSymlinks(abs)
	if e != nil {
		return "", e
	}
	return canon, nil
}

// InMemoryProvider maps paths to source text. Canonicalization is purely
// lexical, which makes it usable in tests and in the HTTP service where no
// files exist.
type InMemoryProvider struct {
	Files map[string]string
}

func NewInMemoryProvider(files map[string]string) *InMemoryProvider {
	normalized := make(map[string]string, len(files))
	for k, v := range files {
		normalized[normalizePath(k)] = v
	}
	return &InMemoryProvider{Files: normalized}
}

func normalizePath(p string) string {
	return filepath.ToSlash(filepath.Clean(p))
}

func (m *InMemoryProvider) ReadSource(path string) (string, error) {
	src, ok := m.Files[normalizePath(path)]
	if !ok {
		return "", fmt.Errorf("file not found in memory: %v", normalizePath(path))
	}
	return src, nil
}

func (m *InMemoryProvider) ResolveImport(base, importPath string) (string, error) {
	return normalizePath(filepath.Join(base, importPath)), nil
}

func (m *InMemoryProvider) Canonicalize(path string) (string, error) {
	normalized := normalizePath(path)
	if _, ok := m.Files[normalized]; ok {
		return normalized, nil
	}
	for k := range m.Files {
		if strings.HasPrefix(k, normalized+"/") {
			return normalized, nil
		}
	}
	return "", fmt.Errorf("path not found in memory provider: %v", normalized)
}
