package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forPelevin/reelcut/internal/config"
	"github.com/forPelevin/reelcut/internal/logging"
	"github.com/forPelevin/reelcut/internal/pipeline"
	"github.com/forPelevin/reelcut/internal/store"
	"github.com/forPelevin/reelcut/internal/types"
)

const runTimeout = 3 * time.Hour

func run(cmd *cobra.Command, opts *rootOptions, input string) error {
	settings, err := loadSettings(cmd, opts)
	if err != nil {
		return err
	}

	log, closer, err := logging.New(logging.Options{
		Level:      settings.Logging.Level,
		Format:     settings.Logging.Format,
		File:       settings.Logging.File,
		MaxSizeMB:  settings.Logging.MaxSizeMB,
		MaxBackups: settings.Logging.MaxBackups,
		MaxAgeDays: settings.Logging.MaxAgeDays,
		Out:        cmd.ErrOrStderr(),
	})
	if err != nil {
		return types.NewError(types.KindConfiguration, "logging", err)
	}
	defer closer.Close()

	var hist *store.Store
	if settings.Paths.HistoryDB != "" {
		hist, err = store.Open(settings.Paths.HistoryDB)
		if err != nil {
			log.WithError(err).Warn("run history disabled")
			hist = nil
		} else {
			defer hist.Close()
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	rep, err := pipeline.Run(ctx, pipeline.Config{
		Input:    resolveInput(input),
		Settings: *settings,
		Log:      log,
		History:  hist,
	})
	if rep.ManifestPath != "" {
		printReport(cmd.OutOrStdout(), rep, useColor(cmd.OutOrStdout()))
	}
	return err
}

// loadSettings reads the config file and environment, applies explicitly
// set flags on top and validates the result.
func loadSettings(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	settings, _, _, err := config.Load(opts.configPath)
	if err != nil {
		return nil, types.NewError(types.KindConfiguration, "load", err)
	}

	flags := cmd.Flags()
	if flags.Changed("out") {
		settings.Paths.OutDir = opts.out
	}
	if flags.Changed("clips") {
		settings.Selection.Limit = opts.clips
	}
	if flags.Changed("workers") {
		settings.Render.Workers = opts.workers
	}
	if flags.Changed("classifier") {
		settings.Classifier.Backend = strings.ToLower(strings.TrimSpace(opts.classifier))
	}
	if flags.Changed("caption-timing") {
		settings.Captions.Timing = strings.ToLower(strings.TrimSpace(opts.captionTiming))
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// resolveInput makes local paths absolute and leaves URLs untouched.
func resolveInput(input string) string {
	input = strings.TrimSpace(input)
	if strings.Contains(input, "://") {
		return input
	}
	abs, err := filepath.Abs(input)
	if err != nil {
		return input
	}
	return abs
}
