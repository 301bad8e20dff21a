package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is the manifest schema version.
const Version = "1.0"

// Variant types.
const (
	TypeStandard  = "standard"
	TypeThumbnail = "thumbnail"
)

// Variant describes one rendered output file.
type Variant struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
	Type   string `json:"type"`
}

// Entry groups the variants produced from one source image.
type Entry struct {
	AspectRatio string    `json:"aspect_ratio"`
	Variants    []Variant `json:"variants"`
}

// Manifest is the aggregated index of a batch run. Entry order equals the
// order sources were enumerated, not the order tasks completed.
type Manifest struct {
	Version string    `json:"version"`
	Images  *ImageSet `json:"images"`
}

// New returns an empty manifest at the current schema version.
func New() *Manifest {
	return &Manifest{Version: Version, Images: NewImageSet()}
}

// ImageSet is an insertion-ordered map of source filename → Entry.
// encoding/json serializes plain maps with sorted keys, which would destroy
// the enumeration order the schema promises, so marshaling is done by hand.
type ImageSet struct {
	names   []string
	entries map[string]Entry
}

func NewImageSet() *ImageSet {
	return &ImageSet{entries: make(map[string]Entry)}
}

// Set inserts or replaces the entry for name, preserving first-insertion
// position on replacement.
func (s *ImageSet) Set(name string, e Entry) {
	if _, ok := s.entries[name]; !ok {
		s.names = append(s.names, name)
	}
	s.entries[name] = e
}

// Get returns the entry for name.
func (s *ImageSet) Get(name string) (Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Len returns the number of entries.
func (s *ImageSet) Len() int { return len(s.names) }

// Names returns the entry names in insertion order.
func (s *ImageSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

func (s *ImageSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(s.entries[name])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *ImageSet) UnmarshalJSON(data []byte) error {
	s.names = nil
	s.entries = make(map[string]Entry)

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("images: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("images: expected string key, got %v", tok)
		}
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return fmt.Errorf("images[%q]: %w", name, err)
		}
		s.Set(name, e)
	}
	_, err = dec.Token() // closing brace
	return err
}
