package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/SuperGenLabs/img-velocity/internal/batch"
	"github.com/SuperGenLabs/img-velocity/internal/manifest"
	"github.com/SuperGenLabs/img-velocity/internal/policy"
	"github.com/SuperGenLabs/img-velocity/internal/rules"
)

var (
	procThumbnails bool
	procWorkers    int
	procRulesFile  string
	procAcceptAll  bool
	procOnlyRatio  string
	procMinRes     string
)

var processCmd = &cobra.Command{
	Use:   "process <input_dir> <output_dir>",
	Short: "Convert a directory of images into WebP variant sets",
	Long: `Classifies every JPEG/PNG/WebP image in input_dir by aspect ratio,
checks it against per-ratio minimum resolutions, and renders the
configured ladder of WebP variants into output_dir, followed by a
manifest.json indexing all outputs.

Override flags relax or restrict validation for one run:
  --accept-all               process regardless of size requirements
  --only-ratio 16:9          restrict the run to one aspect ratio
  --min-resolution 1920x1080 replace rule minimums; outputs scale
                             down from this size`,
	Args: cobra.ExactArgs(2),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().BoolVarP(&procThumbnails, "thumbnails", "t", false, "generate thumbnail variants")
	processCmd.Flags().IntVarP(&procWorkers, "workers", "w", 0, "parallel workers (0 = auto)")
	processCmd.Flags().StringVar(&procRulesFile, "rules", "", "rule table file replacing the builtin ratios")
	processCmd.Flags().BoolVar(&procAcceptAll, "accept-all", false, "bypass minimum-size checking")
	processCmd.Flags().StringVar(&procOnlyRatio, "only-ratio", "", "accept only this aspect ratio, e.g. 16:9")
	processCmd.Flags().StringVar(&procMinRes, "min-resolution", "", "custom minimum resolution, e.g. 1920x1080")
	rootCmd.AddCommand(processCmd)
}

func runProcess(_ *cobra.Command, args []string) error {
	inputDir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}
	outputDir, err := filepath.Abs(args[1])
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	pol, err := policy.FromFlags(procAcceptAll, procOnlyRatio, procMinRes)
	if err != nil {
		return err
	}

	table := rules.Builtin()
	if procRulesFile != "" {
		if table, err = rules.Load(procRulesFile); err != nil {
			return err
		}
	}

	onProgress, finishBar := progressSink(os.Stderr)
	outcomes, sum, err := batch.Run(context.Background(), batch.Config{
		InputDir:   inputDir,
		OutputDir:  outputDir,
		Thumbnails: procThumbnails,
		Workers:    procWorkers,
		Policy:     pol,
		Rules:      table,
		Log:        logger,
		OnProgress: onProgress,
	})
	if err != nil {
		return err
	}
	finishBar()

	manifestPath := filepath.Join(outputDir, manifest.Filename)
	if err := manifest.WriteJSON(batch.BuildManifest(outcomes), manifestPath); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	printOutcomes(outcomes)
	printSummary(sum, manifestPath)
	return nil
}

// progressSink builds an OnProgress callback that worker goroutines can
// invoke concurrently. The bar is created exactly once, on the first
// completion, and never moves backwards when completions report out of
// order. The second return finalizes the bar if one was drawn.
func progressSink(w io.Writer) (func(done, total int), func()) {
	var (
		mu   sync.Mutex
		bar  *progressbar.ProgressBar
		last int
	)
	report := func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("processing"),
				progressbar.OptionSetWriter(w),
				progressbar.OptionShowCount(),
			)
		}
		if done <= last {
			return
		}
		last = done
		bar.Set(done)
	}
	finish := func() {
		mu.Lock()
		defer mu.Unlock()
		if bar != nil {
			bar.Finish()
			fmt.Fprintln(w)
		}
	}
	return report, finish
}
