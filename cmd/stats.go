package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/SuperGenLabs/img-velocity/internal/manifest"
)

var statsCmd = &cobra.Command{
	Use:   "stats <out_dir_or_manifest>",
	Short: "Summarize a generated manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, args []string) error {
	path := args[0]

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		path = filepath.Join(path, manifest.Filename)
	}

	m, err := manifest.ReadFile(path)
	if err != nil {
		return err
	}

	printManifestStats(m)
	return nil
}

func printManifestStats(m *manifest.Manifest) {
	var variants, thumbs int
	var totalBytes int64
	ratioCount := map[string]int{}

	for _, name := range m.Images.Names() {
		e, _ := m.Images.Get(name)
		ratioCount[e.AspectRatio]++
		for _, v := range e.Variants {
			variants++
			totalBytes += v.Size
			if v.Type == manifest.TypeThumbnail {
				thumbs++
			}
		}
	}

	fmt.Println()
	fmt.Printf("  Manifest version: %s\n", m.Version)
	fmt.Printf("  Images:           %d\n", m.Images.Len())
	fmt.Printf("  Variants:         %d  (%d thumbnails)\n", variants, thumbs)
	fmt.Printf("  Total output:     %s\n", formatBytes(totalBytes))
	fmt.Println()

	if len(ratioCount) > 0 {
		var ratios []string
		for r := range ratioCount {
			ratios = append(ratios, r)
		}
		sort.Strings(ratios)
		fmt.Println("  Aspect ratio breakdown:")
		for _, r := range ratios {
			fmt.Printf("    %-8s %4d images\n", r, ratioCount[r])
		}
		fmt.Println()
	}
}
