package importer

import (
	"strings"
	"sync"

	"ska-importer/internal/retarget"
	"ska-importer/internal/skeleton"
)

// Named is one animation produced by a loader.
type Named struct {
	Name   string
	Curves *retarget.Result
}

// AltLoader imports a non-SKA animation format onto skel. A file may hold
// several animations.
type AltLoader interface {
	Load(path string, skel *skeleton.Skeleton, fps float64) ([]Named, error)
}

// LoaderFunc adapts a function to AltLoader.
type LoaderFunc func(path string, skel *skeleton.Skeleton, fps float64) ([]Named, error)

func (f LoaderFunc) Load(path string, skel *skeleton.Skeleton, fps float64) ([]Named, error) {
	return f(path, skel, fps)
}

// Registry maps lowercase file extensions to alternate loaders. The zero
// value is an empty registry.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]AltLoader
}

// Register adds l for ext (with or without the leading dot).
func (r *Registry) Register(ext string, l AltLoader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaders == nil {
		r.loaders = make(map[string]AltLoader)
	}
	r.loaders[normExt(ext)] = l
}

// Lookup returns the loader for ext.
func (r *Registry) Lookup(ext string) (AltLoader, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.loaders[normExt(ext)]
	return l, ok
}

func normExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
