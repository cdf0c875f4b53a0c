package layout

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Registry holds layouts by name.
type Registry struct {
	mu      sync.RWMutex
	layouts map[string]Layout
}

// NewRegistry returns a registry pre-populated with the built-in layouts.
func NewRegistry() *Registry {
	r := &Registry{layouts: make(map[string]Layout)}
	for _, l := range Builtins() {
		r.layouts[l.Name] = l
	}
	return r
}

// Register validates and adds a layout, replacing any layout of the same name.
func (r *Registry) Register(l Layout) error {
	if err := l.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.layouts[l.Name] = l
	return nil
}

// Get returns the named layout.
func (r *Registry) Get(name string) (Layout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.layouts[name]
	if !ok {
		return Layout{}, fmt.Errorf("%w: %q", ErrUnknownLayout, name)
	}
	return l, nil
}

// Names returns the registered layout names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.layouts))
	for n := range r.layouts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns every registered layout sorted by name.
func (r *Registry) All() []Layout {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Layout, 0, len(names))
	for _, n := range names {
		out = append(out, r.layouts[n])
	}
	return out
}

type layoutFile struct {
	Layouts []Layout `yaml:"layouts"`
}

// Parse decodes a YAML document with a top-level "layouts" list.
func Parse(data []byte) ([]Layout, error) {
	var f layoutFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse layouts: %w", err)
	}
	for _, l := range f.Layouts {
		if err := l.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Layouts, nil
}

// LoadFile registers every layout in the YAML file at path.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: layouts file path comes from configuration
	if err != nil {
		return fmt.Errorf("failed to read layouts file: %w", err)
	}
	layouts, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for _, l := range layouts {
		if err := r.Register(l); err != nil {
			return err
		}
	}
	return nil
}

// Marshal encodes layouts in the file format read by Parse.
func Marshal(layouts []Layout) ([]byte, error) {
	return yaml.Marshal(layoutFile{Layouts: layouts})
}
