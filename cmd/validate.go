package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/SuperGenLabs/img-velocity/internal/hasher"
	"github.com/SuperGenLabs/img-velocity/internal/manifest"
)

var validateCmd = &cobra.Command{
	Use:   "validate <out_dir>",
	Short: "Check a manifest against the output tree",
	Long: `Reads the manifest in out_dir and checks every referenced variant:
the file must exist, its size must match the manifest, and dimensions
must be positive. Byte-identical files under different paths are
reported as duplicates.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, args []string) error {
	outDir := args[0]
	m, err := manifest.ReadFile(filepath.Join(outDir, manifest.Filename))
	if err != nil {
		return err
	}

	problems, dupes := validateTree(m, outDir)

	for _, d := range dupes {
		fmt.Printf("  ~ duplicate content: %s\n", d)
	}
	if len(problems) == 0 {
		var variants int
		for _, name := range m.Images.Names() {
			e, _ := m.Images.Get(name)
			variants += len(e.Variants)
		}
		fmt.Printf("  ✓ manifest valid: %d images, %d variants, all files present\n",
			m.Images.Len(), variants)
		return nil
	}

	for _, p := range problems {
		fmt.Printf("  ✗ %s\n", p)
	}
	return fmt.Errorf("validation failed with %d problem(s)", len(problems))
}

func validateTree(m *manifest.Manifest, outDir string) (problems, dupes []string) {
	if m.Version != manifest.Version {
		problems = append(problems, fmt.Sprintf("unsupported manifest version %q", m.Version))
	}

	hashToPath := map[string]string{}
	seenPaths := map[string]string{}

	for _, name := range m.Images.Names() {
		e, _ := m.Images.Get(name)
		if e.AspectRatio == "" {
			problems = append(problems, fmt.Sprintf("%s: missing aspect ratio", name))
		}
		if len(e.Variants) == 0 {
			problems = append(problems, fmt.Sprintf("%s: no variants", name))
		}
		for i, v := range e.Variants {
			where := fmt.Sprintf("%s variant[%d]", name, i)
			if v.Width <= 0 || v.Height <= 0 {
				problems = append(problems, fmt.Sprintf("%s: invalid dimensions %dx%d", where, v.Width, v.Height))
			}
			if v.Type != manifest.TypeStandard && v.Type != manifest.TypeThumbnail {
				problems = append(problems, fmt.Sprintf("%s: unknown type %q", where, v.Type))
			}
			if v.Path == "" {
				problems = append(problems, fmt.Sprintf("%s: missing path", where))
				continue
			}
			if prev, dup := seenPaths[v.Path]; dup {
				problems = append(problems, fmt.Sprintf("%s: path %q already referenced by %s", where, v.Path, prev))
			}
			seenPaths[v.Path] = where

			full := filepath.Join(outDir, filepath.FromSlash(v.Path))
			info, err := os.Stat(full)
			if err != nil {
				problems = append(problems, fmt.Sprintf("%s: file missing: %s", where, v.Path))
				continue
			}
			if info.Size() != v.Size {
				problems = append(problems, fmt.Sprintf("%s: size mismatch: manifest=%d disk=%d", where, v.Size, info.Size()))
			}

			if sum, err := hashFile(full); err == nil {
				if prev, dup := hashToPath[sum]; dup {
					dupes = append(dupes, fmt.Sprintf("%s == %s", v.Path, prev))
				} else {
					hashToPath[sum] = v.Path
				}
			}
		}
	}
	return problems, dupes
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return hasher.SumReader(f)
}
