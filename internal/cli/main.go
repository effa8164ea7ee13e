package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootOptions holds flag values. Flags only override the loaded
// configuration when they were set explicitly.
type rootOptions struct {
	configPath    string
	out           string
	clips         int
	workers       int
	classifier    string
	captionTiming string
}

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRootCommand()
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)

	if err := root.ExecuteContext(context.Background()); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "reelcut <input>",
		Short:        "Cut vertical highlight clips from a video file, URL or s3:// object",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args[0])
		},
	}
	root.SilenceErrors = true

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ./reelcut.toml or ~/.config/reelcut/config.toml)")

	root.Flags().StringVar(&opts.out, "out", "out", "Output directory")
	root.Flags().IntVar(&opts.clips, "clips", 3, "Maximum number of clips")
	root.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent renders (0 = number of CPUs)")
	root.Flags().StringVar(&opts.classifier, "classifier", "", "Sentiment backend: lexicon, openrouter or http")
	root.Flags().StringVar(&opts.captionTiming, "caption-timing", "", "Caption timing: exact or whole_seconds")

	root.AddCommand(newHistoryCommand(opts))
	return root
}
