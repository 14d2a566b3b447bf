package discovery

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/plugreg/ctxlog"
	"github.com/vk/plugreg/fsutil"
)

// Loader discovers plugin manifests under a root directory. It implements
// plugreg.Loader: packages are directories relative to the root (an empty
// package means the root itself) and module identifiers are manifest paths
// relative to the root, slash-separated.
type Loader struct {
	root     string
	bindings *Bindings
	parser   *hclparse.Parser

	mu       sync.Mutex
	imported map[string]bool
}

// NewLoader builds a manifest loader rooted at a directory, resolving
// manifest register names against bindings.
func NewLoader(root string, bindings *Bindings) *Loader {
	if bindings == nil {
		bindings = NewBindings()
	}
	return &Loader{
		root:     root,
		bindings: bindings,
		parser:   hclparse.NewParser(),
		imported: make(map[string]bool),
	}
}

// Bindings returns the loader's binding table, so wiring code can keep
// binding register functions after construction.
func (l *Loader) Bindings() *Bindings { return l.bindings }

// EnumerateModules lists the manifest files under a package directory,
// recursively or not, as module identifiers.
func (l *Loader) EnumerateModules(ctx context.Context, pkg string, recursive bool) ([]string, error) {
	logger := ctxlog.FromContext(ctx)

	dir := l.root
	if pkg != "" {
		dir = filepath.Join(l.root, filepath.FromSlash(pkg))
	}

	var (
		files []string
		err   error
	)
	if recursive {
		files, err = fsutil.FindFilesByExtension(dir, ManifestExtension)
	} else {
		files, err = fsutil.ListFilesByExtension(dir, ManifestExtension)
	}
	if err != nil {
		return nil, fmt.Errorf("enumerate package %q: %w", pkg, err)
	}

	ids := make([]string, 0, len(files))
	for _, file := range files {
		rel, err := filepath.Rel(l.root, file)
		if err != nil {
			return nil, fmt.Errorf("enumerate package %q: %w", pkg, err)
		}
		ids = append(ids, filepath.ToSlash(rel))
	}

	logger.Debug("Enumerated plugin manifests.", "package", pkg, "recursive", recursive, "modules", len(ids))
	return ids, nil
}

// ImportModule parses one manifest and invokes the register function of
// every plugin block in it. Imports are serialized and idempotent: a module
// already imported successfully is not re-executed, so plugins it declared
// stay registered exactly once. A failed import is not marked imported and
// surfaces its cause.
func (l *Loader) ImportModule(ctx context.Context, moduleID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	logger := ctxlog.FromContext(ctx)
	if l.imported[moduleID] {
		logger.Debug("Module already imported, skipping.", "module", moduleID)
		return nil
	}

	path := filepath.Join(l.root, filepath.FromSlash(moduleID))
	decls, err := l.parseManifest(ctx, path)
	if err != nil {
		return err
	}

	for _, decl := range decls {
		fn, ok := l.bindings.lookup(decl.Register)
		if !ok {
			return fmt.Errorf("manifest %s: plugin %q names register function %q, but no such binding exists",
				moduleID, decl.Name, decl.Register)
		}
		if err := fn(ctx, decl.Metadata); err != nil {
			return fmt.Errorf("manifest %s: plugin %q failed to register: %w", moduleID, decl.Name, err)
		}
		logger.Debug("Imported plugin declaration.", "module", moduleID, "plugin", decl.Name, "register", decl.Register)
	}

	l.imported[moduleID] = true
	return nil
}
