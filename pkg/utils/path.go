// Package utils provides small filesystem path helpers shared by the cache
// tiers. The disk tier stores one file per cache key under a configured root
// directory; these helpers guarantee that every path it touches stays inside
// that root.
package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateEntryName validates that a candidate entry file name is a bare
// name: no separators, no traversal elements, not empty. Disk tier file names
// are derived keys plus an extension, so anything else indicates a corrupted
// key or a tampered directory listing.
func ValidateEntryName(name string) error {
	if name == "" {
		return fmt.Errorf("entry name cannot be empty")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("entry name %q is a directory reference", name)
	}
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return fmt.Errorf("entry name %q contains a path separator", name)
	}
	return nil
}

// WithinBase validates that a path resolves inside the base directory.
// Relative paths are joined onto base before the check.
func WithinBase(base, path string) error {
	if base == "" {
		return fmt.Errorf("base path cannot be empty")
	}
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	cleanBase := filepath.Clean(base)
	cleanPath := filepath.Clean(path)

	if !filepath.IsAbs(cleanPath) {
		cleanPath = filepath.Join(cleanBase, cleanPath)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) &&
		cleanPath != cleanBase {
		return fmt.Errorf("path %s escapes base directory %s", path, base)
	}
	return nil
}

// SecureJoin joins path elements onto a base directory and fails if the
// result escapes the base through traversal elements.
func SecureJoin(base string, elements ...string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("base path cannot be empty")
	}

	cleanBase := filepath.Clean(base)
	fullPath := filepath.Join(append([]string{cleanBase}, elements...)...)

	if !strings.HasPrefix(fullPath, cleanBase+string(filepath.Separator)) &&
		fullPath != cleanBase {
		return "", fmt.Errorf("path escapes base directory")
	}
	return fullPath, nil
}
