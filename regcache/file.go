package regcache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/vk/plugreg/ctxlog"
)

// formatVersion stamps the on-disk envelope; a mismatch invalidates the
// entry wholesale. Bump it whenever the envelope layout changes.
const formatVersion = "1"

// DefaultMaxAge is how long a cache entry stays fresh when neither the
// caller nor the environment says otherwise.
const DefaultMaxAge = 7 * 24 * time.Hour

// Options configure a FileStore. Zero-valued fields fall back to the
// PLUGREG_CACHE_* environment variables and then to library defaults.
type Options struct {
	// Dir is the directory cache files live in. Defaults to
	// <user cache dir>/plugreg.
	Dir string `env:"PLUGREG_CACHE_DIR"`

	// Disable turns the store into a no-op.
	Disable bool `env:"PLUGREG_CACHE_DISABLE"`

	// MaxAge invalidates entries older than this.
	MaxAge time.Duration `env:"PLUGREG_CACHE_MAX_AGE"`

	// Fingerprint, when set, stamps each entry with an advisory content
	// fingerprint of the scanned scope; an entry whose fingerprint no
	// longer matches is a miss. Staleness detection stays advisory: a
	// cached module set is still re-imported in full, so a wrong entry
	// fails closed instead of silently skipping modules.
	Fingerprint func(scope Scope) string
}

// envelope is the JSON layout of one cache file.
type envelope struct {
	FormatVersion string    `json:"format_version"`
	Fingerprint   string    `json:"fingerprint,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	Modules       []string  `json:"modules"`
}

// FileStore is the durable Store: one JSON file per scope, named after the
// registry and the scope, under a single cache directory.
type FileStore struct {
	name string
	opts Options
}

// NewFileStore builds a file-backed store for the named registry. Explicit
// options win over environment variables, which win over defaults. The
// constructor never fails; a store that cannot determine a usable cache
// directory simply misses everything.
func NewFileStore(name string, opts Options) *FileStore {
	var fromEnv Options
	if err := env.Parse(&fromEnv); err != nil {
		// Unparseable environment values only cost us the override.
		fromEnv = Options{}
	}
	if opts.Dir == "" {
		opts.Dir = fromEnv.Dir
	}
	if opts.Dir == "" {
		if base, err := os.UserCacheDir(); err == nil {
			opts.Dir = filepath.Join(base, "plugreg")
		}
	}
	opts.Disable = opts.Disable || fromEnv.Disable
	if opts.MaxAge == 0 {
		opts.MaxAge = fromEnv.MaxAge
	}
	if opts.MaxAge == 0 {
		opts.MaxAge = DefaultMaxAge
	}
	return &FileStore{name: name, opts: opts}
}

// Get loads and validates the entry for a scope. Any failure — missing
// file, unreadable file, corrupt JSON, version or fingerprint mismatch,
// expiry — is a miss.
func (s *FileStore) Get(ctx context.Context, scope Scope) ([]string, bool) {
	if s.disabled() {
		return nil, false
	}
	logger := ctxlog.FromContext(ctx)
	path := s.path(scope)

	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Debug("Registry cache unreadable, treating as miss.", "path", path, "error", err)
		}
		return nil, false
	}

	var e envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		logger.Debug("Registry cache corrupt, treating as miss.", "path", path, "error", err)
		return nil, false
	}
	if e.FormatVersion != formatVersion {
		logger.Debug("Registry cache format changed, treating as miss.", "path", path, "have", e.FormatVersion)
		return nil, false
	}
	if time.Since(e.CreatedAt) > s.opts.MaxAge {
		logger.Debug("Registry cache expired, treating as miss.", "path", path, "createdAt", e.CreatedAt)
		return nil, false
	}
	if s.opts.Fingerprint != nil && e.Fingerprint != s.opts.Fingerprint(scope) {
		logger.Debug("Registry cache fingerprint changed, treating as miss.", "path", path)
		return nil, false
	}

	logger.Debug("Registry cache hit.", "path", path, "modules", len(e.Modules))
	return e.Modules, true
}

// Put writes the entry for a scope. Failures are logged and dropped.
func (s *FileStore) Put(ctx context.Context, scope Scope, modules []string) {
	if s.disabled() {
		return
	}
	logger := ctxlog.FromContext(ctx)

	e := envelope{
		FormatVersion: formatVersion,
		CreatedAt:     time.Now(),
		Modules:       modules,
	}
	if s.opts.Fingerprint != nil {
		e.Fingerprint = s.opts.Fingerprint(scope)
	}

	raw, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		logger.Debug("Registry cache entry not serializable, dropping.", "error", err)
		return
	}

	path := s.path(scope)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Debug("Registry cache directory not writable, dropping entry.", "path", path, "error", err)
		return
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		logger.Debug("Registry cache write failed, dropping entry.", "path", path, "error", err)
		return
	}
	logger.Debug("Registry cache entry written.", "path", path, "modules", len(modules))
}

func (s *FileStore) disabled() bool {
	return s.opts.Disable || s.opts.Dir == ""
}

// path derives the cache file name from the registry name and the scope.
func (s *FileStore) path(scope Scope) string {
	suffix := "flat"
	if scope.Recursive {
		suffix = "recursive"
	}
	parts := []string{slug(s.name)}
	if scope.Package != "" {
		parts = append(parts, slug(scope.Package))
	}
	parts = append(parts, suffix)
	return filepath.Join(s.opts.Dir, strings.Join(parts, "_")+".json")
}

// slug flattens a registry or package name into a file-name-safe token.
func slug(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, s)
}
