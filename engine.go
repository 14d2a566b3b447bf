package plugreg

import (
	"log/slog"
	"reflect"
	"sync"
)

// roots is the process-wide hierarchy-root table: it maps each root
// interface type to the Hierarchy declared for it, so that any package can
// reach a hierarchy's shared registry through Lookup without threading the
// value around.
var roots = struct {
	mu     sync.Mutex
	byType map[reflect.Type]any
}{byType: make(map[reflect.Type]any)}

// rootType identifies the hierarchy root T. T is expected to be the
// interface all plugins in the hierarchy implement.
func rootType[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Hierarchy binds one Config to a hierarchy root type T and owns the shared
// registry every plugin registered under T lands in.
type Hierarchy[T any] struct {
	cfg      Config
	registry *Registry[T]
}

// New declares the plugin hierarchy rooted at T, resolving cfg once and
// creating the hierarchy's empty registry. Declaring a second configuration
// for a root that already has one is a ConfigurationError: a hierarchy may
// not fork into two independent registries.
func New[T any](cfg Config) (*Hierarchy[T], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	root := rootType[T]()

	roots.mu.Lock()
	defer roots.mu.Unlock()
	if _, exists := roots.byType[root]; exists {
		return nil, &ConfigurationError{
			Class:  root.String(),
			Reason: "a registry configuration is already declared for this hierarchy root",
		}
	}

	h := &Hierarchy[T]{cfg: cfg.withDefaults()}
	h.registry = newRegistry(h)
	roots.byType[root] = h

	slog.Debug("Declared plugin hierarchy.", "root", root.String(), "name", h.cfg.Name)
	return h, nil
}

// Lookup returns the hierarchy previously declared for root T, if any.
func Lookup[T any]() (*Hierarchy[T], bool) {
	roots.mu.Lock()
	defer roots.mu.Unlock()
	h, ok := roots.byType[rootType[T]()].(*Hierarchy[T])
	return h, ok
}

// Registry returns the hierarchy's shared registry. Every call, from any
// registration site in the hierarchy, returns the same object.
func (h *Hierarchy[T]) Registry() *Registry[T] { return h.registry }

// Name returns the hierarchy's human-readable registry name.
func (h *Hierarchy[T]) Name() string { return h.cfg.Name }

// secondaryEntry is a fully resolved secondary registration, computed
// before any mapping is touched.
type secondaryEntry struct {
	target map[string]any
	key    string
	value  any
}

// Register registers one plugin with the hierarchy: it resolves the key,
// writes the plugin into the shared registry (silently overwriting any
// earlier entry under the same key), and fans out to the configured
// secondary registries in declaration order. Registration is all-or-
// nothing: every entry is resolved before the first mapping is mutated, so
// a failing registration leaves no partial writes behind. The candidate
// itself is never mutated.
func (h *Hierarchy[T]) Register(candidate T) error {
	name := typeName(candidate)

	key, ok, err := resolveKey(candidate, &h.cfg)
	if err != nil {
		return err
	}
	if !ok {
		if h.cfg.SkipIfNoKey {
			slog.Debug("Skipping registration, candidate has no key.",
				"name", h.cfg.Name, "candidate", name, "attribute", h.cfg.KeyAttribute)
			return nil
		}
		return &ConfigurationError{
			Class:     name,
			Attribute: h.cfg.KeyAttribute,
			Reason:    "candidate has no registry key: set the key attribute, configure a KeyExtractor, or enable SkipIfNoKey",
		}
	}

	pending, err := h.resolveSecondaries(candidate, name, key)
	if err != nil {
		return err
	}

	h.registry.store(key, candidate)
	for _, entry := range pending {
		entry.target[entry.key] = entry.value
	}

	slog.Debug("Registered plugin.", "name", h.cfg.Name, "key", key,
		"candidate", name, "secondaries", len(pending))
	return nil
}

// MustRegister is Register for wiring code that treats a failed
// registration as a programmer error.
func (h *Hierarchy[T]) MustRegister(candidate T) {
	if err := h.Register(candidate); err != nil {
		panic(err)
	}
}

// resolveSecondaries computes every secondary (key, value) pair for a
// candidate. A secondary whose key or value attribute is absent is skipped
// on its own; a key attribute of the wrong type fails the registration.
func (h *Hierarchy[T]) resolveSecondaries(candidate T, name, primaryKey string) ([]secondaryEntry, error) {
	var pending []secondaryEntry
	for _, sec := range h.cfg.Secondaries {
		key := primaryKey
		if sec.KeySource != PrimaryKey {
			val, found, err := lookupAttr(candidate, sec.KeySource)
			if err != nil {
				return nil, err
			}
			s, isString := val.(string)
			if found && !isString {
				return nil, &ConfigurationError{
					Class:     name,
					Attribute: sec.KeySource,
					Reason:    "secondary registry key must be a string",
				}
			}
			if !found || s == "" {
				slog.Warn("Cannot resolve secondary registry key, skipping entry.",
					"name", h.cfg.Name, "candidate", name, "keySource", sec.KeySource)
				continue
			}
			key = s
		}

		val, found, err := lookupAttr(candidate, sec.ValueAttribute)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		pending = append(pending, secondaryEntry{target: sec.Target, key: key, value: val})
	}
	return pending, nil
}
