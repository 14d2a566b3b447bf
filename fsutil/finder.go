// Package fsutil provides the file system helpers the discovery scanner is
// built on.
package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FindFilesByExtension recursively searches the given root path for all
// files ending with the specified extension and returns their full paths,
// sorted.
func FindFilesByExtension(rootPath, extension string) ([]string, error) {
	if extension == "" {
		return nil, fmt.Errorf("fsutil: extension must not be empty")
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// ListFilesByExtension is the non-recursive variant: it lists matching
// files directly inside rootPath, ignoring sub-directories.
func ListFilesByExtension(rootPath, extension string) ([]string, error) {
	if extension == "" {
		return nil, fmt.Errorf("fsutil: extension must not be empty")
	}

	dirEntries, err := os.ReadDir(rootPath)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range dirEntries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), extension) {
			continue
		}
		files = append(files, filepath.Join(rootPath, entry.Name()))
	}

	sort.Strings(files)
	return files, nil
}
