package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/SuperGenLabs/img-velocity/internal/batch"
	"github.com/SuperGenLabs/img-velocity/internal/manifest"
	"github.com/SuperGenLabs/img-velocity/internal/policy"
	"github.com/SuperGenLabs/img-velocity/internal/rules"
)

// settleDelay is how long a file must stay quiet after its last write
// event before processing, so half-copied files are not decoded.
const settleDelay = 500 * time.Millisecond

var (
	watchThumbnails bool
	watchRulesFile  string
	watchAcceptAll  bool
	watchOnlyRatio  string
	watchMinRes     string
)

var watchCmd = &cobra.Command{
	Use:   "watch <input_dir> <output_dir>",
	Short: "Process images as they appear in a directory",
	Long: `Watches input_dir and runs the full pipeline on every image that is
created or modified, merging the results into output_dir's manifest
after each file. Stops on interrupt.`,
	Args: cobra.ExactArgs(2),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVarP(&watchThumbnails, "thumbnails", "t", false, "generate thumbnail variants")
	watchCmd.Flags().StringVar(&watchRulesFile, "rules", "", "rule table file replacing the builtin ratios")
	watchCmd.Flags().BoolVar(&watchAcceptAll, "accept-all", false, "bypass minimum-size checking")
	watchCmd.Flags().StringVar(&watchOnlyRatio, "only-ratio", "", "accept only this aspect ratio, e.g. 16:9")
	watchCmd.Flags().StringVar(&watchMinRes, "min-resolution", "", "custom minimum resolution, e.g. 1920x1080")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, args []string) error {
	inputDir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}
	outputDir, err := filepath.Abs(args[1])
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	pol, err := policy.FromFlags(watchAcceptAll, watchOnlyRatio, watchMinRes)
	if err != nil {
		return err
	}
	table := rules.Builtin()
	if watchRulesFile != "" {
		if table, err = rules.Load(watchRulesFile); err != nil {
			return err
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(inputDir); err != nil {
		return fmt.Errorf("watch %s: %w", inputDir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := batch.Config{
		OutputDir:  outputDir,
		Thumbnails: watchThumbnails,
		Policy:     pol,
		Rules:      table,
		Log:        logger,
	}

	// One worker serializes processing and manifest merges; event timers
	// only feed it.
	work := make(chan string, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for path := range work {
			processWatched(path, outputDir, cfg)
		}
	}()

	logger.Info().Str("dir", inputDir).Msg("watching; interrupt to stop")

	var mu sync.Mutex
	timers := map[string]*time.Timer{}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			for _, t := range timers {
				t.Stop()
			}
			mu.Unlock()
			close(work)
			wg.Wait()
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				close(work)
				wg.Wait()
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(ev.Name)
			if strings.HasPrefix(name, ".") || !batch.IsImageFile(name) {
				continue
			}
			path := ev.Name
			mu.Lock()
			if t, ok := timers[path]; ok {
				t.Reset(settleDelay)
			} else {
				timers[path] = time.AfterFunc(settleDelay, func() {
					mu.Lock()
					delete(timers, path)
					mu.Unlock()
					select {
					case work <- path:
					default:
						logger.Warn().Str("path", path).Msg("watch queue full, dropping event")
					}
				})
			}
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				close(work)
				wg.Wait()
				return nil
			}
			logger.Error().Err(err).Msg("watcher error")
		}
	}
}

func processWatched(path, outputDir string, cfg batch.Config) {
	name := filepath.Base(path)
	src := batch.Source{
		Path: path,
		Name: name,
		Stem: strings.TrimSuffix(name, filepath.Ext(name)),
	}

	outcome := batch.ProcessFile(src, cfg)
	switch outcome.Status {
	case batch.StatusSuccess:
		logger.Info().Str("source", name).Int("variants", len(outcome.Variants)).Msg("processed")
	case batch.StatusSkipped:
		logger.Info().Str("source", name).AnErr("reason", outcome.Err).Msg("skipped")
		return
	default:
		logger.Warn().Str("source", name).Err(outcome.Err).Msg("failed")
		return
	}

	manifestPath := filepath.Join(outputDir, manifest.Filename)
	m, err := manifest.ReadFile(manifestPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn().Err(err).Msg("manifest unreadable, starting fresh")
		}
		m = manifest.New()
	}
	m.Images.Set(outcome.Source, manifest.Entry{
		AspectRatio: outcome.Ratio.String(),
		Variants:    outcome.Variants,
	})
	if err := manifest.WriteJSON(m, manifestPath); err != nil {
		logger.Error().Err(err).Msg("manifest write failed")
	}
}
