package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/SuperGenLabs/img-velocity/internal/fsutil"
	"github.com/SuperGenLabs/img-velocity/internal/manifest"
	"github.com/SuperGenLabs/img-velocity/internal/plan"
	"github.com/SuperGenLabs/img-velocity/internal/policy"
	"github.com/SuperGenLabs/img-velocity/internal/ratio"
	"github.com/SuperGenLabs/img-velocity/internal/render"
	"github.com/SuperGenLabs/img-velocity/internal/rules"
)

// Worker-count policy: auto mode stays within NumCPU capped at 8, explicit
// requests are validated to 1..100, and everything is clamped at 60 (the
// portable process-pool ceiling).
const (
	autoWorkerCap = 8
	hardWorkerCap = 60
	maxWorkers    = 100
)

// Status classifies a task outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Outcome is the terminal result for one input file. Exactly one is
// produced per enumerated source, at the source's input position.
type Outcome struct {
	Source   string
	Status   Status
	Ratio    ratio.Key
	Variants []manifest.Variant
	Err      error
}

// Summary aggregates a run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Variants  int
	Workers   int
	Elapsed   time.Duration
}

// Config holds all parameters for one batch run.
type Config struct {
	InputDir   string
	OutputDir  string
	Thumbnails bool
	// Workers bounds the pool; 0 selects automatically.
	Workers int
	// Limit truncates the enumerated inputs when positive (benchmark mode).
	Limit  int
	Policy *policy.Policy
	Rules  *rules.Table
	Log    zerolog.Logger
	// OnProgress, when set, receives the monotonically increasing count of
	// completed tasks against the fixed total after every completion.
	OnProgress func(done, total int)
}

// Run executes the full pipeline over every image in InputDir and returns
// one Outcome per input in enumeration order. Task-level failures never
// abort the batch; only configuration problems (unreadable input, zero
// inputs, invalid worker count) are returned as errors, before any task
// has started.
func Run(ctx context.Context, cfg Config) ([]Outcome, Summary, error) {
	start := time.Now()
	if cfg.Rules == nil {
		cfg.Rules = rules.Builtin()
	}

	info, err := os.Stat(cfg.InputDir)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("input dir: %w", err)
	}
	if !info.IsDir() {
		return nil, Summary{}, fmt.Errorf("input dir %s is not a directory", cfg.InputDir)
	}

	sources, err := Scan(cfg.InputDir)
	if err != nil {
		return nil, Summary{}, err
	}
	if len(sources) == 0 {
		return nil, Summary{}, fmt.Errorf("no image files found in %s", cfg.InputDir)
	}
	if cfg.Limit > 0 && len(sources) > cfg.Limit {
		sources = sources[:cfg.Limit]
	}

	workers, err := resolveWorkers(cfg.Workers, len(sources))
	if err != nil {
		return nil, Summary{}, err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, Summary{}, fmt.Errorf("create output dir: %w", err)
	}

	cfg.Log.Info().
		Int("images", len(sources)).
		Int("workers", workers).
		Str("overrides", cfg.Policy.String()).
		Msg("starting batch")

	// Outcomes land at each task's input index, so input order survives
	// whatever order tasks complete in.
	results := make([]Outcome, len(sources))
	var wg sync.WaitGroup
	var completed atomic.Int64
	sem := make(chan struct{}, workers)

	for i, src := range sources {
		wg.Add(1)
		go func(idx int, s Source) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			// Cooperative cancellation at task boundaries only; a render
			// already underway always finishes.
			if err := ctx.Err(); err != nil {
				results[idx] = Outcome{Source: s.Name, Status: StatusFailed, Err: err}
			} else {
				results[idx] = ProcessFile(s, cfg)
			}

			done := int(completed.Add(1))
			if cfg.OnProgress != nil {
				cfg.OnProgress(done, len(sources))
			}
		}(i, src)
	}
	wg.Wait()

	sum := Summary{Total: len(sources), Workers: workers, Elapsed: time.Since(start)}
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			sum.Succeeded++
			sum.Variants += len(r.Variants)
		case StatusFailed:
			sum.Failed++
		case StatusSkipped:
			sum.Skipped++
		}
	}
	return results, sum, nil
}

// ProcessFile runs the single-image pipeline to completion:
// probe → classify → validate → plan → render all variants.
func ProcessFile(src Source, cfg Config) Outcome {
	if cfg.Rules == nil {
		cfg.Rules = rules.Builtin()
	}
	log := cfg.Log.With().Str("source", src.Name).Logger()

	width, height, format, err := render.Probe(src.Path)
	if err != nil {
		log.Warn().Err(err).Msg("unreadable image")
		return Outcome{Source: src.Name, Status: StatusFailed, Err: err}
	}
	if !imageExts["."+format] {
		err := fmt.Errorf("unsupported format %q", format)
		log.Warn().Err(err).Msg("skipping")
		return Outcome{Source: src.Name, Status: StatusSkipped, Err: err}
	}

	key, rule, err := cfg.Rules.Classify(width, height)
	if err != nil {
		rescued := false
		if errors.Is(err, rules.ErrUnsupportedAspectRatio) {
			// An override naming this exact ratio, or an accept-all run
			// with an explicit resolution ladder, can process buckets the
			// table does not know.
			p := cfg.Policy
			switch {
			case p != nil && p.Ratio != nil && *p.Ratio == key:
				rule = rules.CustomRule(key)
				rescued = true
			case p != nil && p.AcceptAll && p.HasResolution():
				rule = rules.CustomRule(key)
				rescued = true
			}
		}
		if !rescued {
			log.Debug().Err(err).Msg("skipping")
			return Outcome{Source: src.Name, Status: StatusSkipped, Ratio: key, Err: err}
		}
	}

	if err := policy.Validate(width, height, key, rule, cfg.Policy); err != nil {
		log.Debug().Err(err).Msg("requirements not met")
		return Outcome{Source: src.Name, Status: StatusFailed, Ratio: key, Err: err}
	}

	targets, err := plan.Targets(width, height, rule, cfg.Thumbnails, cfg.Policy)
	if err != nil {
		log.Warn().Err(err).Msg("nothing to render")
		return Outcome{Source: src.Name, Status: StatusFailed, Ratio: key, Err: err}
	}

	img, err := render.Decode(src.Path)
	if err != nil {
		log.Warn().Err(err).Msg("decode failed")
		return Outcome{Source: src.Name, Status: StatusFailed, Ratio: key, Err: err}
	}

	renderer := &render.Renderer{OutputRoot: cfg.OutputDir, Log: log}
	task := render.Task{
		Stem:      fsutil.SanitizeStem(src.Stem),
		Folder:    rule.Folder,
		SrcWidth:  width,
		SrcHeight: height,
	}

	var variants []manifest.Variant
	var lastErr error
	for _, target := range targets {
		v, err := renderer.Render(img, task, target)
		if err != nil {
			// One bad variant doesn't kill the task; it fails only when
			// every render fails.
			log.Warn().Err(err).Msg("variant failed")
			lastErr = err
			continue
		}
		variants = append(variants, v)
	}
	if len(variants) == 0 {
		return Outcome{Source: src.Name, Status: StatusFailed, Ratio: key, Err: lastErr}
	}

	return Outcome{Source: src.Name, Status: StatusSuccess, Ratio: key, Variants: variants}
}

// BuildManifest folds ordered outcomes into a manifest, keeping successes
// only and each task's internal variant order.
func BuildManifest(outcomes []Outcome) *manifest.Manifest {
	m := manifest.New()
	for _, o := range outcomes {
		if o.Status != StatusSuccess {
			continue
		}
		m.Images.Set(o.Source, manifest.Entry{
			AspectRatio: o.Ratio.String(),
			Variants:    o.Variants,
		})
	}
	return m
}

func resolveWorkers(requested, imageCount int) (int, error) {
	if requested < 0 {
		return 0, fmt.Errorf("worker count must be at least 1, got %d", requested)
	}
	if requested > maxWorkers {
		return 0, fmt.Errorf("worker count cannot exceed %d, got %d", maxWorkers, requested)
	}

	w := requested
	if w == 0 {
		w = runtime.NumCPU()
		if w > autoWorkerCap {
			w = autoWorkerCap
		}
	}
	if w > imageCount {
		w = imageCount
	}
	if w > hardWorkerCap {
		w = hardWorkerCap
	}
	if w < 1 {
		w = 1
	}
	return w, nil
}
