package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/zclconf/go-cty/cty"
)

// RegisterFunc constructs the plugin a manifest block declares and
// registers it with its hierarchy. metadata carries the block's decoded
// metadata attributes; implementations typically close over the hierarchy
// they register into.
type RegisterFunc func(ctx context.Context, metadata map[string]cty.Value) error

// Bindings maps the register names used in plugin manifests to compiled Go
// functions. Plugin packages bind their functions at wiring time; the
// loader resolves manifest blocks against them during import.
type Bindings struct {
	mu  sync.RWMutex
	all map[string]RegisterFunc
}

// NewBindings creates an empty binding table.
func NewBindings() *Bindings {
	return &Bindings{all: make(map[string]RegisterFunc)}
}

// Bind registers a Go function under a manifest-visible name. Binding the
// same name twice is a programmer error.
func (b *Bindings) Bind(name string, fn RegisterFunc) {
	if name == "" || fn == nil {
		panic("discovery: binding needs a name and a function")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.all[name]; exists {
		panic(fmt.Sprintf("discovery: register function %q already bound", name))
	}
	slog.Debug("Bound plugin register function.", "name", name)
	b.all[name] = fn
}

// lookup resolves a manifest's register name.
func (b *Bindings) lookup(name string) (RegisterFunc, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	fn, ok := b.all[name]
	return fn, ok
}

// Names lists the bound register names, sorted. Used in error messages and
// tests.
func (b *Bindings) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.all))
	for name := range b.all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
