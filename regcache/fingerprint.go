package regcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path/filepath"
)

// FingerprintDir returns an advisory content fingerprint for a directory
// tree: a hash over the relative path, size and modification time of every
// regular file under root. Editing, adding or deleting a file changes the
// fingerprint, which invalidates cache entries stamped with the old one.
// Errors yield an empty fingerprint, which never matches a stamped entry.
func FingerprintDir(root string) string {
	h := sha256.New()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(h, "%s|%d|%d\n", filepath.ToSlash(rel), info.Size(), info.ModTime().UnixNano())
		return nil
	})
	if err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}
