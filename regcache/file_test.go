package regcache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore("handlers", Options{Dir: t.TempDir()})
	ctx := context.Background()
	scope := Scope{Package: "plugins", Recursive: true}
	modules := []string{"plugins/a.hcl", "plugins/b.hcl"}

	_, ok := store.Get(ctx, scope)
	assert.False(t, ok)

	store.Put(ctx, scope, modules)
	got, ok := store.Get(ctx, scope)
	require.True(t, ok)
	assert.Equal(t, modules, got)

	// A different scope is a different entry.
	_, ok = store.Get(ctx, Scope{Package: "plugins", Recursive: false})
	assert.False(t, ok)
}

func TestFileStoreCorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore("handlers", Options{Dir: dir})
	ctx := context.Background()
	scope := Scope{Recursive: true}

	store.Put(ctx, scope, []string{"a.hcl"})
	require.NoError(t, os.WriteFile(store.path(scope), []byte("{not json"), 0o644))

	_, ok := store.Get(ctx, scope)
	assert.False(t, ok)
}

func TestFileStoreFormatVersionMismatchIsMiss(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore("handlers", Options{Dir: dir})
	ctx := context.Background()
	scope := Scope{Recursive: true}

	raw, err := json.Marshal(envelope{
		FormatVersion: "0",
		CreatedAt:     time.Now(),
		Modules:       []string{"a.hcl"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.path(scope), raw, 0o644))

	_, ok := store.Get(ctx, scope)
	assert.False(t, ok)
}

func TestFileStoreExpiredEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore("handlers", Options{Dir: dir, MaxAge: time.Hour})
	ctx := context.Background()
	scope := Scope{Recursive: true}

	raw, err := json.Marshal(envelope{
		FormatVersion: formatVersion,
		CreatedAt:     time.Now().Add(-2 * time.Hour),
		Modules:       []string{"a.hcl"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.path(scope), raw, 0o644))

	_, ok := store.Get(ctx, scope)
	assert.False(t, ok)
}

func TestFileStoreFingerprintMismatchIsMiss(t *testing.T) {
	fingerprint := "before"
	store := NewFileStore("handlers", Options{
		Dir:         t.TempDir(),
		Fingerprint: func(Scope) string { return fingerprint },
	})
	ctx := context.Background()
	scope := Scope{Recursive: true}

	store.Put(ctx, scope, []string{"a.hcl"})
	_, ok := store.Get(ctx, scope)
	require.True(t, ok)

	// The scanned content changed since the entry was stamped.
	fingerprint = "after"
	_, ok = store.Get(ctx, scope)
	assert.False(t, ok)
}

func TestFileStoreDisabled(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore("handlers", Options{Dir: dir, Disable: true})
	ctx := context.Background()
	scope := Scope{Recursive: true}

	store.Put(ctx, scope, []string{"a.hcl"})
	_, ok := store.Get(ctx, scope)
	assert.False(t, ok)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStorePutIntoUnwritableDirIsDropped(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, nil, 0o644)) // a file where the cache dir should go

	store := NewFileStore("handlers", Options{Dir: filepath.Join(blocked, "cache")})
	ctx := context.Background()
	scope := Scope{Recursive: true}

	store.Put(ctx, scope, []string{"a.hcl"}) // must not panic or error out
	_, ok := store.Get(ctx, scope)
	assert.False(t, ok)
}

func TestFileStoreEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PLUGREG_CACHE_DIR", dir)
	t.Setenv("PLUGREG_CACHE_MAX_AGE", "30m")

	store := NewFileStore("handlers", Options{})
	assert.Equal(t, dir, store.opts.Dir)
	assert.Equal(t, 30*time.Minute, store.opts.MaxAge)

	t.Setenv("PLUGREG_CACHE_DISABLE", "true")
	assert.True(t, NewFileStore("handlers", Options{}).disabled())
}

func TestFileStoreExplicitOptionsWinOverEnv(t *testing.T) {
	t.Setenv("PLUGREG_CACHE_DIR", t.TempDir())
	t.Setenv("PLUGREG_CACHE_MAX_AGE", "30m")

	explicit := t.TempDir()
	store := NewFileStore("handlers", Options{Dir: explicit, MaxAge: time.Hour})
	assert.Equal(t, explicit, store.opts.Dir)
	assert.Equal(t, time.Hour, store.opts.MaxAge)
}

func TestFileStorePathSeparatesRegistriesAndScopes(t *testing.T) {
	dir := t.TempDir()
	a := NewFileStore("readers", Options{Dir: dir})
	b := NewFileStore("writers", Options{Dir: dir})

	scopeFlat := Scope{Package: "pkg/sub"}
	scopeDeep := Scope{Package: "pkg/sub", Recursive: true}

	paths := map[string]bool{
		a.path(scopeFlat): true,
		a.path(scopeDeep): true,
		b.path(scopeFlat): true,
	}
	assert.Len(t, paths, 3)
	for p := range paths {
		assert.Equal(t, dir, filepath.Dir(p))
	}
}
