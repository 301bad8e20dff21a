package cmd

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version  = "0.1.0"
	verbose  bool
	logLevel string

	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "img-velocity",
	Short: "Convert images into responsive WebP variant sets",
	Long: `img-velocity turns a directory of JPEG/PNG/WebP sources into
aspect-ratio-classified WebP variant sets with adaptive sharpening,
plus a manifest.json describing every output.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		setupLogging()
	},
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"img-velocity %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

func setupLogging() {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
}
