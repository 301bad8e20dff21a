package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source is one enumerated input file.
type Source struct {
	// Path is the location on disk.
	Path string
	// Name is the original filename, used as the manifest key.
	Name string
	// Stem is the filename without extension, pre-sanitization.
	Stem string
}

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// IsImageFile reports whether the filename carries a supported extension.
func IsImageFile(name string) bool {
	return imageExts[strings.ToLower(filepath.Ext(name))]
}

// Scan enumerates supported image files at the top level of dir in lexical
// order, which fixes the manifest's entry order across runs.
func Scan(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var sources []Source
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !IsImageFile(name) {
			continue
		}
		sources = append(sources, Source{
			Path: filepath.Join(dir, name),
			Name: name,
			Stem: strings.TrimSuffix(name, filepath.Ext(name)),
		})
	}
	return sources, nil
}
