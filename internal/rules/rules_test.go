package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/SuperGenLabs/img-velocity/internal/ratio"
)

func TestClassify(t *testing.T) {
	table := Builtin()

	tests := []struct {
		w, h   int
		key    ratio.Key
		folder string
	}{
		{3840, 2160, ratio.Key{W: 16, H: 9}, "landscape-16-9"},
		{1920, 1080, ratio.Key{W: 16, H: 9}, "landscape-16-9"},
		{1600, 1600, ratio.Key{W: 1, H: 1}, "square-1-1"},
		{3440, 1440, ratio.Key{W: 43, H: 18}, "ultrawide-21-9"},
		{1024, 1536, ratio.Key{W: 2, H: 3}, "portrait-2-3"},
	}
	for _, tt := range tests {
		key, rule, err := table.Classify(tt.w, tt.h)
		if err != nil {
			t.Fatalf("Classify(%d, %d): %v", tt.w, tt.h, err)
		}
		if key != tt.key {
			t.Errorf("Classify(%d, %d) key = %v, want %v", tt.w, tt.h, key, tt.key)
		}
		if rule.Folder != tt.folder {
			t.Errorf("Classify(%d, %d) folder = %q, want %q", tt.w, tt.h, rule.Folder, tt.folder)
		}
	}
}

func TestClassifyUnsupported(t *testing.T) {
	table := Builtin()
	_, _, err := table.Classify(1000, 777)
	if !errors.Is(err, ErrUnsupportedAspectRatio) {
		t.Fatalf("got %v, want ErrUnsupportedAspectRatio", err)
	}
}

func TestClassifyInvalidDimensions(t *testing.T) {
	table := Builtin()
	_, _, err := table.Classify(0, 1080)
	if !errors.Is(err, ratio.ErrInvalidDimensions) {
		t.Fatalf("got %v, want ErrInvalidDimensions", err)
	}
}

func TestBuiltinLaddersDescendByArea(t *testing.T) {
	for _, key := range Builtin().Keys() {
		rule, _ := Builtin().Lookup(key)
		for _, ladder := range [][]Size{rule.Sizes, rule.Thumbnails} {
			for i := 1; i < len(ladder); i++ {
				if ladder[i].Area() >= ladder[i-1].Area() {
					t.Errorf("rule %s: %v does not descend by area at index %d", key, ladder, i)
				}
			}
		}
	}
}

func TestBuiltinFoldersUnique(t *testing.T) {
	table := Builtin()
	seen := map[string]ratio.Key{}
	for _, key := range table.Keys() {
		rule, _ := table.Lookup(key)
		if rule.MinWidth <= 0 || rule.MinHeight <= 0 {
			t.Errorf("rule %s: non-positive minimums", key)
		}
		if prev, dup := seen[rule.Folder]; dup {
			t.Errorf("folder %q shared by %s and %s", rule.Folder, prev, key)
		}
		seen[rule.Folder] = key
	}
}

func TestCustomRule(t *testing.T) {
	r := CustomRule(ratio.Key{W: 7, H: 5})
	if r.Folder != "custom-7-5" {
		t.Errorf("folder = %q", r.Folder)
	}
	if len(r.Sizes) != 0 || len(r.Thumbnails) != 0 {
		t.Errorf("custom rule should have empty ladders")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	data := `rules:
  - ratio: "16:9"
    min_width: 1920
    min_height: 1080
    folder: wide
    sizes:
      - [1920, 1080]
      - [1280, 720]
    thumbnails:
      - [160, 90]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("Len = %d", table.Len())
	}
	rule, ok := table.Lookup(ratio.Key{W: 16, H: 9})
	if !ok {
		t.Fatal("16:9 rule missing")
	}
	if rule.Folder != "wide" || rule.MinWidth != 1920 || len(rule.Sizes) != 2 || len(rule.Thumbnails) != 1 {
		t.Errorf("unexpected rule: %+v", rule)
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"empty.yaml":   `rules: []`,
		"badkey.yaml":  "rules:\n  - ratio: \"wide\"\n    min_width: 1\n    min_height: 1\n    folder: x\n    sizes: [[1, 1]]\n",
		"badsize.yaml": "rules:\n  - ratio: \"1:1\"\n    min_width: 1\n    min_height: 1\n    folder: x\n    sizes: [[1, 1, 1]]\n",
		"nomin.yaml":   "rules:\n  - ratio: \"1:1\"\n    folder: x\n    sizes: [[1, 1]]\n",
	}
	for name, content := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
