package cmd

import (
	"fmt"
	"time"

	"github.com/SuperGenLabs/img-velocity/internal/batch"
)

func printOutcomes(outcomes []batch.Outcome) {
	fmt.Println()
	for _, o := range outcomes {
		switch o.Status {
		case batch.StatusSuccess:
			fmt.Printf("  ✓ %-40s %s  %d variants\n", o.Source, o.Ratio, len(o.Variants))
		case batch.StatusSkipped:
			fmt.Printf("  - %-40s skipped: %v\n", o.Source, o.Err)
		default:
			fmt.Printf("  ✗ %-40s failed: %v\n", o.Source, o.Err)
		}
	}
}

func printSummary(sum batch.Summary, manifestPath string) {
	fmt.Println()
	fmt.Println("  ──────────────────────────────────────────")
	fmt.Printf("  Images found:      %d\n", sum.Total)
	fmt.Printf("  Processed:         %d\n", sum.Succeeded)
	if sum.Failed > 0 {
		fmt.Printf("  Failed:            %d\n", sum.Failed)
	}
	if sum.Skipped > 0 {
		fmt.Printf("  Skipped:           %d\n", sum.Skipped)
	}
	fmt.Printf("  Variants created:  %d\n", sum.Variants)
	fmt.Printf("  Workers:           %d\n", sum.Workers)
	fmt.Printf("  Time:              %s\n", sum.Elapsed.Round(10*time.Millisecond))
	fmt.Printf("  Manifest:          %s\n", manifestPath)
	fmt.Println("  ──────────────────────────────────────────")
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
