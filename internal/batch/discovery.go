package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MeKo-Tech/cropocr/internal/utils"
)

// nameFilter selects label images by base name.
type nameFilter struct {
	include []string
	exclude []string
}

func (f nameFilter) accepts(path string) bool {
	if !utils.IsSupportedImage(path) {
		return false
	}
	base := filepath.Base(path)
	if matchAny(base, f.exclude) {
		return false
	}
	return len(f.include) == 0 || matchAny(base, f.include)
}

func matchAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// discoverImages expands paths into the list of label images to process.
// Explicit files keep argument order; directory listings are sorted.
func discoverImages(paths []string, recursive bool, filter nameFilter) ([]string, error) {
	var images []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			images = append(images, path)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", path, err)
		}
		if !info.IsDir() {
			if filter.accepts(path) {
				add(path)
			}
			continue
		}

		found, err := walkImages(path, recursive, filter)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}
	return images, nil
}

func walkImages(root string, recursive bool, filter nameFilter) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && path != root && !recursive:
			return filepath.SkipDir
		case !d.IsDir() && filter.accepts(path):
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}

// annotationsPath returns the canvas file belonging to imagePath: the same
// base name with a .json extension, in dir or next to the image.
func annotationsPath(imagePath, dir string) string {
	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath)) + ".json"
	if dir == "" {
		dir = filepath.Dir(imagePath)
	}
	return filepath.Join(dir, base)
}
