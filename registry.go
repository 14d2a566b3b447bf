package plugreg

import (
	"bytes"
	"context"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/vk/plugreg/ctxlog"
	"github.com/vk/plugreg/regcache"
)

// Discovery lifecycle of a registry. Discovery runs at most once; explicit
// registrations keep appending after it is done.
const (
	stateNotStarted int32 = iota
	stateInProgress
	stateDone
)

// Registry is the shared key-to-plugin mapping of one hierarchy. It behaves
// like a plain map with one twist: the first read-style access triggers a
// one-time module scan through the hierarchy's Loader, so plugins living in
// modules nothing has imported yet still show up. Writes never trigger the
// scan.
type Registry[T any] struct {
	h *Hierarchy[T]

	mu      sync.Mutex
	entries map[string]T

	state atomic.Int32
	owner atomic.Int64  // goroutine running discovery
	done  chan struct{} // closed when discovery reaches Done
}

func newRegistry[T any](h *Hierarchy[T]) *Registry[T] {
	return &Registry[T]{h: h, entries: make(map[string]T)}
}

// Get looks up a plugin by key.
func (r *Registry[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	if err := r.materialize(ctx); err != nil {
		return zero, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[key]
	return v, ok, nil
}

// Has reports whether a key is registered.
func (r *Registry[T]) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := r.Get(ctx, key)
	return ok, err
}

// Keys returns the registered keys, sorted for determinism.
func (r *Registry[T]) Keys(ctx context.Context) ([]string, error) {
	if err := r.materialize(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Values returns the registered plugins, ordered by their sorted keys.
func (r *Registry[T]) Values(ctx context.Context) ([]T, error) {
	items, err := r.Items(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := make([]T, 0, len(items))
	for _, k := range keys {
		values = append(values, items[k])
	}
	return values, nil
}

// Items returns a copy of the key-to-plugin mapping.
func (r *Registry[T]) Items(ctx context.Context) (map[string]T, error) {
	if err := r.materialize(ctx); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make(map[string]T, len(r.entries))
	for k, v := range r.entries {
		items[k] = v
	}
	return items, nil
}

// Len returns the number of registered plugins.
func (r *Registry[T]) Len(ctx context.Context) (int, error) {
	if err := r.materialize(ctx); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries), nil
}

// Materialize triggers discovery without reading anything. Useful to front-
// load the scan (and surface its error) at a chosen point in startup.
func (r *Registry[T]) Materialize(ctx context.Context) error {
	return r.materialize(ctx)
}

// store appends or overwrites one entry. Called by the engine; never
// triggers discovery.
func (r *Registry[T]) store(key string, candidate T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = candidate
}

// materialize runs discovery exactly once. The NotStarted-to-InProgress
// transition is mutually exclusive; a goroutine losing that race blocks
// until the winner reaches Done and then proceeds with a normal read. The
// discovering goroutine itself may re-enter through module imports — those
// re-entrant reads see the partially populated registry as-is instead of
// deadlocking, which is why the owner goroutine is tracked.
func (r *Registry[T]) materialize(ctx context.Context) error {
	switch r.state.Load() {
	case stateDone:
		return nil
	case stateInProgress:
		if r.owner.Load() == goroutineID() {
			return nil
		}
	}

	r.mu.Lock()
	if r.state.Load() != stateNotStarted {
		done := r.done
		r.mu.Unlock()
		if done == nil {
			return nil
		}
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	done := make(chan struct{})
	r.done = done
	r.owner.Store(goroutineID())
	r.state.Store(stateInProgress)
	r.mu.Unlock()

	err := r.discover(ctx)

	r.mu.Lock()
	r.state.Store(stateDone)
	r.owner.Store(0)
	close(done)
	r.mu.Unlock()

	return err
}

// discover performs the one-time scan: resolve the scope, get the module
// set (from cache when fresh, else by enumerating and writing the cache
// back best-effort), and import every module. Imports re-enter the engine
// for whatever plugins they declare. The first import failure aborts the
// scan; registrations made before it stay. A scan that finds nothing new is
// not an error.
func (r *Registry[T]) discover(ctx context.Context) error {
	cfg := &r.h.cfg
	logger := ctxlog.FromContext(ctx).With("registry", cfg.Name)

	if cfg.Loader == nil {
		logger.Debug("No module loader configured, registry holds explicit registrations only.")
		return nil
	}

	scope := regcache.Scope{Package: cfg.Package, Recursive: !cfg.ShallowScan}

	var modules []string
	fromCache := false
	if cache := cfg.cache(); cache != nil {
		if cached, ok := cache.Get(ctx, scope); ok {
			modules, fromCache = cached, true
		}
	}
	if !fromCache {
		enumerated, err := cfg.Loader.EnumerateModules(ctx, scope.Package, scope.Recursive)
		if err != nil {
			return &DiscoveryError{Module: scope.Package, Err: err}
		}
		modules = enumerated
		if cache := cfg.cache(); cache != nil {
			cache.Put(ctx, scope, modules)
		}
	}

	logger.Debug("Scanning modules for plugins.",
		"package", scope.Package, "recursive", scope.Recursive,
		"modules", len(modules), "cached", fromCache)

	for _, id := range modules {
		if err := cfg.Loader.ImportModule(ctx, id); err != nil {
			return &DiscoveryError{Module: id, Err: err}
		}
	}

	r.mu.Lock()
	entries := len(r.entries)
	r.mu.Unlock()
	logger.Info("Registry discovery finished.", "modules", len(modules), "entries", entries)
	return nil
}

// goroutineID parses the current goroutine's ID out of the runtime stack
// header ("goroutine 18 [running]:"). Discovery runs arbitrary registration
// code synchronously on the discovering goroutine; distinguishing that
// goroutine from racing readers is what keeps re-entrant reads from
// blocking on their own scan.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
