package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/SuperGenLabs/img-velocity/internal/manifest"
	"github.com/SuperGenLabs/img-velocity/internal/plan"
	"github.com/SuperGenLabs/img-velocity/internal/policy"
	"github.com/SuperGenLabs/img-velocity/internal/ratio"
	"github.com/SuperGenLabs/img-velocity/internal/rules"
)

// testTable keeps minimums and ladders tiny so batch tests render real
// pixels without being slow.
func testTable() *rules.Table {
	return rules.NewTable([]rules.Rule{
		{
			Ratio: ratio.Key{W: 1, H: 1}, MinWidth: 100, MinHeight: 100,
			Folder:     "square-1-1",
			Sizes:      []rules.Size{{W: 100, H: 100}, {W: 50, H: 50}},
			Thumbnails: []rules.Size{{W: 20, H: 20}},
		},
		{
			Ratio: ratio.Key{W: 16, H: 9}, MinWidth: 160, MinHeight: 90,
			Folder:     "landscape-16-9",
			Sizes:      []rules.Size{{W: 160, H: 90}, {W: 80, H: 45}},
			Thumbnails: []rules.Size{{W: 32, H: 18}},
		},
	})
}

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.jpg", "notes.txt", ".hidden.png", "c.webp", "d.jpeg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	sources, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var names []string
	for _, s := range sources {
		names = append(names, s.Name)
	}
	want := []string{"a.jpg", "b.png", "c.webp", "d.jpeg"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	if sources[0].Stem != "a" {
		t.Errorf("stem = %q", sources[0].Stem)
	}
}

func TestRunOutcomeOrderMatchesInputOrder(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	// A mix of sizes so task costs vary and completions interleave.
	var want []string
	for i := 0; i < 12; i++ {
		name := fmt.Sprintf("img-%02d.png", i)
		size := 100 + (i%3)*60
		writeTestPNG(t, filepath.Join(in, name), size, size)
		want = append(want, name)
	}

	outcomes, sum, err := Run(context.Background(), Config{
		InputDir:  in,
		OutputDir: out,
		Workers:   4,
		Rules:     testTable(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(outcomes) != 12 || sum.Total != 12 || sum.Succeeded != 12 {
		t.Fatalf("summary = %+v", sum)
	}
	for i, o := range outcomes {
		if o.Source != want[i] {
			t.Errorf("outcomes[%d] = %q, want %q", i, o.Source, want[i])
		}
		if o.Status != StatusSuccess {
			t.Errorf("%s: status %s (%v)", o.Source, o.Status, o.Err)
		}
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	writeTestPNG(t, filepath.Join(in, "a.png"), 100, 100)
	// Corrupt file with a valid extension.
	if err := os.WriteFile(filepath.Join(in, "b.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeTestPNG(t, filepath.Join(in, "c.png"), 100, 100)

	outcomes, sum, err := Run(context.Background(), Config{
		InputDir: in, OutputDir: out, Workers: 2, Rules: testTable(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Succeeded != 2 || sum.Failed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if outcomes[1].Status != StatusFailed || outcomes[1].Err == nil {
		t.Errorf("outcomes[1] = %+v", outcomes[1])
	}

	m := BuildManifest(outcomes)
	if m.Images.Len() != 2 {
		t.Errorf("manifest has %d entries", m.Images.Len())
	}
	if _, ok := m.Images.Get("b.png"); ok {
		t.Error("failed task leaked into manifest")
	}
	names := m.Images.Names()
	if names[0] != "a.png" || names[1] != "c.png" {
		t.Errorf("manifest order = %v", names)
	}
}

func TestRunStatuses(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	writeTestPNG(t, filepath.Join(in, "good.png"), 100, 100) // 1:1, meets min
	writeTestPNG(t, filepath.Join(in, "small.png"), 60, 60)  // 1:1, below min
	writeTestPNG(t, filepath.Join(in, "odd.png"), 100, 77)   // unsupported ratio
	writeTestPNG(t, filepath.Join(in, "wide.png"), 320, 180) // 16:9, meets min

	outcomes, sum, err := Run(context.Background(), Config{
		InputDir: in, OutputDir: out, Workers: 1, Rules: testTable(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Succeeded != 2 || sum.Failed != 1 || sum.Skipped != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	byName := map[string]Outcome{}
	for _, o := range outcomes {
		byName[o.Source] = o
	}

	if byName["good.png"].Status != StatusSuccess {
		t.Errorf("good.png: %+v", byName["good.png"])
	}
	if o := byName["small.png"]; o.Status != StatusFailed {
		t.Errorf("small.png: %+v", o)
	} else {
		var minErr *policy.MinResolutionError
		if !errors.As(o.Err, &minErr) {
			t.Errorf("small.png err = %v", o.Err)
		}
	}
	if o := byName["odd.png"]; o.Status != StatusSkipped || !errors.Is(o.Err, rules.ErrUnsupportedAspectRatio) {
		t.Errorf("odd.png: %+v", o)
	}
	if o := byName["wide.png"]; o.Ratio != (ratio.Key{W: 16, H: 9}) {
		t.Errorf("wide.png ratio = %v", o.Ratio)
	}
}

func TestRunAcceptAllBypassesMinimums(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeTestPNG(t, filepath.Join(in, "small.png"), 60, 60)

	outcomes, sum, err := Run(context.Background(), Config{
		InputDir: in, OutputDir: out, Workers: 1, Rules: testTable(),
		Thumbnails: true,
		Policy:     &policy.Policy{AcceptAll: true},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 60x60 passes validation but only the 50x50 and 20x20 outputs fit.
	if sum.Succeeded != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	v := outcomes[0].Variants
	if len(v) != 2 {
		t.Fatalf("variants = %+v", v)
	}
	if v[0].Width != 50 || v[0].Type != manifest.TypeStandard {
		t.Errorf("variants[0] = %+v", v[0])
	}
	if v[1].Width != 20 || v[1].Type != manifest.TypeThumbnail {
		t.Errorf("variants[1] = %+v", v[1])
	}
}

func TestRunAcceptAllTooSmallForEverything(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeTestPNG(t, filepath.Join(in, "tiny.png"), 10, 10)

	outcomes, _, err := Run(context.Background(), Config{
		InputDir: in, OutputDir: out, Workers: 1, Rules: testTable(),
		Policy: &policy.Policy{AcceptAll: true},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcomes[0].Status != StatusFailed || !errors.Is(outcomes[0].Err, plan.ErrNoEligibleVariants) {
		t.Errorf("outcome = %+v", outcomes[0])
	}
}

func TestRunRatioRestriction(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeTestPNG(t, filepath.Join(in, "square.png"), 100, 100)
	writeTestPNG(t, filepath.Join(in, "wide.png"), 160, 90)

	wide := ratio.Key{W: 16, H: 9}
	outcomes, sum, err := Run(context.Background(), Config{
		InputDir: in, OutputDir: out, Workers: 1, Rules: testTable(),
		Policy: &policy.Policy{Ratio: &wide},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Succeeded != 1 || sum.Failed != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	byName := map[string]Outcome{}
	for _, o := range outcomes {
		byName[o.Source] = o
	}
	if !errors.Is(byName["square.png"].Err, policy.ErrAspectRatioMismatch) {
		t.Errorf("square.png err = %v", byName["square.png"].Err)
	}
}

func TestRunCustomRatioWithResolutionOverride(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeTestPNG(t, filepath.Join(in, "odd.png"), 200, 154) // 100:77, not in table

	key := ratio.Key{W: 100, H: 77}
	outcomes, _, err := Run(context.Background(), Config{
		InputDir: in, OutputDir: out, Workers: 1, Rules: testTable(),
		Policy: &policy.Policy{Ratio: &key, MinWidth: 200, MinHeight: 154},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	o := outcomes[0]
	if o.Status != StatusSuccess {
		t.Fatalf("outcome = %+v", o)
	}
	if len(o.Variants) == 0 {
		t.Fatal("no variants")
	}
	if want := "custom-100-77/odd/odd-200x154.webp"; o.Variants[0].Path != want {
		t.Errorf("path = %q, want %q", o.Variants[0].Path, want)
	}
}

func TestRunProgressReachesTotal(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	for i := 0; i < 6; i++ {
		writeTestPNG(t, filepath.Join(in, fmt.Sprintf("p%d.png", i)), 100, 100)
	}

	var mu sync.Mutex
	var seen []int
	_, _, err := Run(context.Background(), Config{
		InputDir: in, OutputDir: out, Workers: 3, Rules: testTable(),
		OnProgress: func(done, total int) {
			if total != 6 {
				t.Errorf("total = %d", total)
			}
			mu.Lock()
			seen = append(seen, done)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 6 {
		t.Fatalf("progress calls = %d", len(seen))
	}
	sort.Ints(seen)
	for i, d := range seen {
		if d != i+1 {
			t.Fatalf("progress values = %v", seen)
		}
	}
}

func TestRunConfigErrors(t *testing.T) {
	out := t.TempDir()
	empty := t.TempDir()

	if _, _, err := Run(context.Background(), Config{InputDir: "/does/not/exist", OutputDir: out}); err == nil {
		t.Error("missing input dir accepted")
	}
	if _, _, err := Run(context.Background(), Config{InputDir: empty, OutputDir: out}); err == nil {
		t.Error("empty input dir accepted")
	}

	in := t.TempDir()
	writeTestPNG(t, filepath.Join(in, "a.png"), 100, 100)
	if _, _, err := Run(context.Background(), Config{InputDir: in, OutputDir: out, Workers: 101}); err == nil {
		t.Error("oversized worker count accepted")
	}
	if _, _, err := Run(context.Background(), Config{InputDir: in, OutputDir: out, Workers: -1}); err == nil {
		t.Error("negative worker count accepted")
	}
}

func TestResolveWorkers(t *testing.T) {
	tests := []struct {
		requested, images int
		want              int
		wantErr           bool
	}{
		{1, 10, 1, false},
		{4, 2, 2, false},     // clamped to image count
		{80, 500, 60, false}, // hard cap
		{0, 1, 1, false},
		{101, 10, 0, true},
		{-1, 10, 0, true},
	}
	for _, tt := range tests {
		got, err := resolveWorkers(tt.requested, tt.images)
		if tt.wantErr {
			if err == nil {
				t.Errorf("resolveWorkers(%d, %d): expected error", tt.requested, tt.images)
			}
			continue
		}
		if err != nil {
			t.Errorf("resolveWorkers(%d, %d): %v", tt.requested, tt.images, err)
			continue
		}
		if got != tt.want {
			t.Errorf("resolveWorkers(%d, %d) = %d, want %d", tt.requested, tt.images, got, tt.want)
		}
	}
}

func TestRunCancelledContext(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	for i := 0; i < 4; i++ {
		writeTestPNG(t, filepath.Join(in, fmt.Sprintf("c%d.png", i)), 100, 100)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, sum, err := Run(ctx, Config{
		InputDir: in, OutputDir: out, Workers: 2, Rules: testTable(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// A pre-cancelled context still yields one outcome per input.
	if len(outcomes) != 4 || sum.Failed != 4 {
		t.Errorf("outcomes = %d, summary = %+v", len(outcomes), sum)
	}
}
