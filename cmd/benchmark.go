package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/spf13/cobra"

	"github.com/SuperGenLabs/img-velocity/internal/batch"
	"github.com/SuperGenLabs/img-velocity/internal/policy"
)

const benchmarkSampleSize = 10

var benchThumbnails bool

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark <input_dir>",
	Short: "Time different worker counts and recommend one",
	Long: `Processes up to ten images from input_dir into a temp directory once
per candidate worker count (1, half the CPUs, all CPUs, double) and
reports which count moves the most images per second on this machine.`,
	Args: cobra.ExactArgs(1),
	RunE: runBenchmark,
}

func init() {
	benchmarkCmd.Flags().BoolVarP(&benchThumbnails, "thumbnails", "t", false, "include thumbnail variants")
	rootCmd.AddCommand(benchmarkCmd)
}

type benchResult struct {
	workers      int
	imagesPerSec float64
	elapsed      float64
}

func runBenchmark(_ *cobra.Command, args []string) error {
	inputDir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}

	sources, err := batch.Scan(inputDir)
	if err != nil {
		return err
	}
	if len(sources) < 3 {
		return fmt.Errorf("need at least 3 images to benchmark, found %d", len(sources))
	}

	cpus := runtime.NumCPU()
	candidates := dedupeWorkerCounts([]int{1, cpus / 2, cpus, cpus * 2})

	tempBase, err := os.MkdirTemp("", "img-velocity-benchmark-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tempBase)

	fmt.Printf("\n  Benchmarking with up to %d images, candidates %v\n\n", benchmarkSampleSize, candidates)

	// Benchmarks bypass size requirements so any test corpus works.
	pol := &policy.Policy{AcceptAll: true}

	var results []benchResult
	for _, w := range candidates {
		outDir := filepath.Join(tempBase, fmt.Sprintf("workers-%d", w))
		_, sum, err := batch.Run(context.Background(), batch.Config{
			InputDir:   inputDir,
			OutputDir:  outDir,
			Thumbnails: benchThumbnails,
			Workers:    w,
			Limit:      benchmarkSampleSize,
			Policy:     pol,
			Log:        logger,
		})
		if err != nil {
			logger.Warn().Err(err).Int("workers", w).Msg("benchmark run failed")
			continue
		}
		secs := sum.Elapsed.Seconds()
		if secs <= 0 {
			continue
		}
		results = append(results, benchResult{
			workers:      w,
			imagesPerSec: float64(sum.Total) / secs,
			elapsed:      secs,
		})
		fmt.Printf("  %2d workers: %5.1fs  (%.1f images/sec)\n", w, secs, float64(sum.Total)/secs)
	}

	if len(results) == 0 {
		return fmt.Errorf("every benchmark run failed")
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.imagesPerSec > best.imagesPerSec {
			best = r
		}
	}

	fmt.Printf("\n  Recommendation: --workers %d (%.1f images/sec)\n", best.workers, best.imagesPerSec)
	fmt.Printf("  CPU cores: %d\n\n", cpus)
	return nil
}

func dedupeWorkerCounts(candidates []int) []int {
	seen := map[int]bool{}
	var out []int
	for _, c := range candidates {
		if c < 1 || c > 60 || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}
