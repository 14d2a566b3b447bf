package plugreg

import (
	"context"

	"github.com/vk/plugreg/regcache"
)

// PrimaryKey is the KeySource value that makes a secondary registry reuse
// the key computed for the primary registration.
const PrimaryKey = "primary"

// KeyExtractor derives a registration key from a candidate instead of a
// plain attribute read. name is the candidate's concrete type name. Its
// result is authoritative: ok=false (or an empty key) means "no key", even
// when the key attribute is set.
type KeyExtractor func(name string, candidate any) (key string, ok bool)

// Loader is the package-scan collaborator consumed during discovery. The
// discovery package ships a manifest-based implementation; tests supply
// counting doubles.
type Loader interface {
	// EnumerateModules lists the module identifiers under a package scope.
	// An empty pkg means the loader's default scope.
	EnumerateModules(ctx context.Context, pkg string, recursive bool) ([]string, error)

	// ImportModule executes a module, giving any plugins it declares the
	// chance to register. Importing is idempotent: an already-imported
	// module is not re-executed.
	ImportModule(ctx context.Context, moduleID string) error
}

// SecondaryRegistry configures one auto-populated secondary mapping.
// Target is owned by the caller; the engine only ever adds or overwrites
// entries in it, never clears or removes.
type SecondaryRegistry struct {
	// Target is the mapping the engine writes into.
	Target map[string]any
	// KeySource is PrimaryKey, or the name of an attribute whose string
	// value keys the secondary entry.
	KeySource string
	// ValueAttribute names the attribute whose value becomes the entry's
	// value. A candidate without it skips this secondary only.
	ValueAttribute string
}

// Config describes the registration behavior of one plugin hierarchy. It is
// resolved once, when the hierarchy is declared with New, and shared
// unchanged by every registration under that hierarchy.
type Config struct {
	// KeyAttribute names the method (niladic, one result) or exported
	// field whose string value becomes the registration key. Lookup
	// follows Go's promotion rules for embedded types. Required unless
	// KeyExtractor is set.
	KeyAttribute string

	// KeyExtractor, when set, overrides the attribute read entirely.
	KeyExtractor KeyExtractor

	// SkipIfNoKey silently skips candidates with no resolvable key
	// instead of failing the registration.
	SkipIfNoKey bool

	// Secondaries are fanned out to, in order, on every registration.
	Secondaries []SecondaryRegistry

	// Package is the discovery scope handed to the Loader. Empty selects
	// the loader's default scope.
	Package string

	// ShallowScan restricts discovery to the package itself, excluding
	// sub-packages. The zero value scans recursively.
	ShallowScan bool

	// DisableCache turns off persistence of scan results. The zero value
	// caches.
	DisableCache bool

	// Loader performs module enumeration and import. A nil Loader
	// disables discovery; the registry then only ever holds explicitly
	// registered plugins.
	Loader Loader

	// Cache persists scan results between processes. Nil with caching
	// enabled selects a file-backed store under the user cache directory.
	Cache regcache.Store

	// Name is a human-readable registry name used in logs and cache file
	// names. Defaults to "plugin".
	Name string
}

// validate rejects configurations the engine cannot act on. All failures
// are ConfigurationErrors reported at declaration time.
func (c Config) validate() error {
	if c.KeyAttribute == "" && c.KeyExtractor == nil {
		return &ConfigurationError{Reason: "config needs a KeyAttribute or a KeyExtractor"}
	}
	for _, sec := range c.Secondaries {
		if sec.Target == nil {
			return &ConfigurationError{Reason: "secondary registry target mapping is nil", Attribute: sec.ValueAttribute}
		}
		if sec.KeySource == "" {
			return &ConfigurationError{Reason: "secondary registry needs a KeySource (PrimaryKey or an attribute name)"}
		}
		if sec.ValueAttribute == "" {
			return &ConfigurationError{Reason: "secondary registry needs a ValueAttribute"}
		}
	}
	return nil
}

// withDefaults fills in the pieces a caller may omit.
func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "plugin"
	}
	if c.Cache == nil && !c.DisableCache && c.Loader != nil {
		c.Cache = regcache.NewFileStore(c.Name, regcache.Options{})
	}
	return c
}

// cache returns the effective cache store, or nil when caching is off.
func (c Config) cache() regcache.Store {
	if c.DisableCache {
		return nil
	}
	return c.Cache
}
