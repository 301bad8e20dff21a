package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/SuperGenLabs/img-velocity/internal/fsutil"
)

// Filename is the manifest's name inside the output root.
const Filename = "manifest.json"

// WriteJSON persists the manifest atomically: the document is serialized
// fully in memory and lands under its final name via rename only.
func WriteJSON(m *Manifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')
	return fsutil.WriteFileAtomic(path, data, 0o644)
}

// ReadFile loads a manifest from disk.
func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m := New()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Images == nil {
		m.Images = NewImageSet()
	}
	return m, nil
}
