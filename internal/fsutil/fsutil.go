package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SanitizeStem normalizes a source filename stem for use as an output
// directory and filename component: lowercase, spaces and underscores
// become hyphens, runs collapse, leading/trailing hyphens and dots drop.
func SanitizeStem(stem string) string {
	s := strings.ToLower(stem)
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_':
			return '-'
		case '/', '\\', '<', '>', ':', '"', '|', '?', '*':
			return -1
		default:
			if r < 0x20 {
				return -1
			}
			return r
		}
	}, s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-.")
	if s == "" {
		s = "image"
	}
	return s
}

// WithinRoot verifies that path resolves inside root, rejecting traversal
// via ".." components before anything is written.
func WithinRoot(root, path string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %s escapes output root %s", path, root)
	}
	return nil
}

// WriteFileAtomic writes data to path through a temp file in the same
// directory followed by a rename, so a crash or encode failure never leaves
// a truncated file visible under the final name. Parent directories are
// created as needed.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
