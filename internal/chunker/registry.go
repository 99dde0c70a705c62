package chunker

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// LanguageSpec binds a tree-sitter grammar to the query that extracts its
// top-level definitions. The query must capture the outer node as @chunk,
// its identifier as @name, and may tag class-like captures by using a
// node kind containing "class", "type" or "interface".
type LanguageSpec struct {
	Language   *sitter.Language
	Query      string
	Extensions []string // without the leading dot
}

// Registry maps file extensions to language specs.
type Registry struct {
	mu    sync.RWMutex
	byExt map[string]registered
}

type registered struct {
	name string
	spec *LanguageSpec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]registered)}
}

// Register adds a language spec under the given name.
func (r *Registry) Register(name string, spec *LanguageSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range spec.Extensions {
		r.byExt[ext] = registered{name: name, spec: spec}
	}
}

// Lookup returns the spec and language name for a file path based on its
// extension, or nil when no grammar is registered.
func (r *Registry) Lookup(path string) (*LanguageSpec, string) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byExt[ext]
	if !ok {
		return nil, ""
	}
	return reg.spec, reg.name
}

// LanguageName returns the language identifier for a path. Unregistered
// extensions map to the bare extension so downstream filters still have
// something to match on.
func (r *Registry) LanguageName(path string) string {
	if _, name := r.Lookup(path); name != "" {
		return name
	}
	return strings.TrimPrefix(filepath.Ext(path), ".")
}
