package rules

import (
	"errors"
	"fmt"

	"github.com/SuperGenLabs/img-velocity/internal/ratio"
)

// ErrUnsupportedAspectRatio is returned when an image's reduced ratio has
// no entry in the rule table.
var ErrUnsupportedAspectRatio = errors.New("unsupported aspect ratio")

// Size is one target output resolution.
type Size struct {
	W, H int
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.W, s.H) }

// Area returns the pixel count, used for ordering variants.
func (s Size) Area() int { return s.W * s.H }

// Rule describes the processing policy for one aspect ratio bucket:
// the minimum acceptable source resolution, the output folder, and the
// ordered ladders of standard and thumbnail sizes (descending by area).
type Rule struct {
	Ratio      ratio.Key
	MinWidth   int
	MinHeight  int
	Folder     string
	Sizes      []Size
	Thumbnails []Size
}

// Table is the immutable ratio → Rule mapping, built once at startup and
// shared read-only across workers.
type Table struct {
	rules map[ratio.Key]Rule
}

// NewTable builds a table from a list of rules. Later duplicates win.
func NewTable(rules []Rule) *Table {
	m := make(map[ratio.Key]Rule, len(rules))
	for _, r := range rules {
		m[r.Ratio] = r
	}
	return &Table{rules: m}
}

// Lookup returns the rule for the given key.
func (t *Table) Lookup(k ratio.Key) (Rule, bool) {
	r, ok := t.rules[k]
	return r, ok
}

// Len returns the number of configured ratio buckets.
func (t *Table) Len() int { return len(t.rules) }

// Keys returns all configured ratio keys in no particular order.
func (t *Table) Keys() []ratio.Key {
	keys := make([]ratio.Key, 0, len(t.rules))
	for k := range t.rules {
		keys = append(keys, k)
	}
	return keys
}

// Classify reduces the dimensions to a ratio key and resolves its rule.
// A zero or negative dimension fails before any ratio math is attempted.
func (t *Table) Classify(width, height int) (ratio.Key, Rule, error) {
	key, err := ratio.Reduce(width, height)
	if err != nil {
		return ratio.Key{}, Rule{}, err
	}
	r, ok := t.rules[key]
	if !ok {
		return key, Rule{}, fmt.Errorf("%w: %s", ErrUnsupportedAspectRatio, key)
	}
	return key, r, nil
}

// CustomRule synthesizes a rule for a ratio absent from the table, used
// when an override explicitly targets such a ratio. The ladders are empty;
// a resolution override supplies the sizes at planning time.
func CustomRule(k ratio.Key) Rule {
	return Rule{
		Ratio:  k,
		Folder: fmt.Sprintf("custom-%d-%d", k.W, k.H),
	}
}

// Builtin returns the default rule table.
func Builtin() *Table {
	return NewTable(builtinRules)
}

var builtinRules = []Rule{
	{
		Ratio: ratio.Key{W: 1, H: 1}, MinWidth: 1600, MinHeight: 1600,
		Folder: "square-1-1",
		Sizes: []Size{
			{1600, 1600}, {1080, 1080}, {800, 800}, {600, 600},
			{400, 400}, {200, 200}, {100, 100},
		},
		Thumbnails: []Size{{64, 64}, {32, 32}},
	},
	{
		Ratio: ratio.Key{W: 16, H: 9}, MinWidth: 3840, MinHeight: 2160,
		Folder: "landscape-16-9",
		Sizes: []Size{
			{3840, 2160}, {2560, 1440}, {1920, 1080}, {1280, 720},
			{768, 432}, {640, 360}, {390, 219}, {375, 211},
		},
		Thumbnails: []Size{{160, 90}, {64, 36}, {32, 18}},
	},
	{
		// Ultrawide monitors. 3440x1440 reduces to 43:18 rather than a
		// literal 21:9, so the bucket is keyed on the reduced form.
		Ratio: ratio.Key{W: 43, H: 18}, MinWidth: 3440, MinHeight: 1440,
		Folder: "ultrawide-21-9",
		Sizes: []Size{
			{3440, 1440}, {2560, 1080}, {1920, 810}, {1280, 540},
			{768, 324}, {640, 270},
		},
		Thumbnails: []Size{{210, 90}, {105, 45}},
	},
	{
		Ratio: ratio.Key{W: 4, H: 3}, MinWidth: 2048, MinHeight: 1536,
		Folder: "landscape-4-3",
		Sizes: []Size{
			{2048, 1536}, {1600, 1200}, {1280, 960}, {1024, 768},
			{768, 576}, {640, 480}, {400, 300},
		},
		Thumbnails: []Size{{160, 120}, {80, 60}, {32, 24}},
	},
	{
		Ratio: ratio.Key{W: 3, H: 2}, MinWidth: 3456, MinHeight: 2304,
		Folder: "landscape-3-2",
		Sizes: []Size{
			{3456, 2304}, {2400, 1600}, {1920, 1280}, {1440, 960},
			{1200, 800}, {768, 512}, {600, 400}, {375, 250},
		},
		Thumbnails: []Size{{150, 100}, {75, 50}, {30, 20}},
	},
	{
		Ratio: ratio.Key{W: 4, H: 5}, MinWidth: 1600, MinHeight: 2000,
		Folder: "instagram-4-5",
		Sizes: []Size{
			{1600, 2000}, {1080, 1350}, {800, 1000}, {640, 800},
			{480, 600}, {400, 500}, {320, 400},
		},
		Thumbnails: []Size{{160, 200}, {80, 100}, {32, 40}},
	},
	{
		Ratio: ratio.Key{W: 9, H: 16}, MinWidth: 810, MinHeight: 1440,
		Folder: "portrait-9-16",
		Sizes: []Size{
			{1080, 1920}, {720, 1280}, {540, 960}, {428, 761},
			{390, 693}, {375, 667}, {360, 640},
		},
		Thumbnails: []Size{{90, 160}, {45, 80}, {18, 32}},
	},
	{
		Ratio: ratio.Key{W: 3, H: 4}, MinWidth: 1536, MinHeight: 2048,
		Folder: "portrait-3-4",
		Sizes: []Size{
			{1536, 2048}, {1200, 1600}, {900, 1200}, {768, 1024},
			{600, 800}, {450, 600}, {375, 500},
		},
		Thumbnails: []Size{{150, 200}, {75, 100}, {30, 40}},
	},
	{
		Ratio: ratio.Key{W: 2, H: 3}, MinWidth: 1024, MinHeight: 1536,
		Folder: "portrait-2-3",
		Sizes: []Size{
			{1600, 2400}, {1200, 1800}, {1000, 1500}, {800, 1200},
			{600, 900}, {400, 600}, {320, 480},
		},
		Thumbnails: []Size{{160, 240}, {80, 120}, {32, 48}},
	},
	{
		Ratio: ratio.Key{W: 5, H: 1}, MinWidth: 3840, MinHeight: 768,
		Folder: "wide-banner-5-1",
		Sizes: []Size{
			{3840, 768}, {2048, 410}, {1920, 384}, {1024, 205},
			{856, 172}, {428, 86},
		},
		Thumbnails: []Size{{320, 64}, {160, 32}},
	},
	{
		Ratio: ratio.Key{W: 8, H: 1}, MinWidth: 3840, MinHeight: 480,
		Folder: "slim-banner-8-1",
		Sizes: []Size{
			{3840, 480}, {2048, 256}, {1920, 240}, {1024, 128},
			{856, 108}, {428, 54},
		},
		Thumbnails: []Size{{320, 40}, {160, 20}},
	},
}
