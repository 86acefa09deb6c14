package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(log)

	root := &cobra.Command{
		Use:          "vidnote <url-or-file>",
		Short:        "Turn a video into Markdown notes with key-moment screenshots",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args[0], log)
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	// Visible flags
	root.Flags().String("out", "out", "Output directory")
	root.Flags().Int("moments", 8, "Max key moments to illustrate")
	root.Flags().Int("frames-per-moment", 5, "Candidate frames per moment")
	root.Flags().String("model", "", "Chat model name (default $VIDNOTE_MODEL)")
	root.Flags().String("provider", "", "Provider id for capability caching (default $VIDNOTE_PROVIDER)")

	// Hidden tuning flags (internal)
	root.Flags().String("cache", ".cache", "Artifact cache directory")
	root.Flags().String("whisper-bin", ".cache/bin/whisper.cpp", "whisper.cpp binary")
	root.Flags().String("whisper-model", ".cache/models/ggml-base.bin", "whisper.cpp model path")
	root.Flags().String("history-db", "", "Task history database path")
	for _, f := range []string{"cache", "whisper-bin", "whisper-model", "history-db"} {
		_ = root.Flags().MarkHidden(f)
	}

	root.AddCommand(historyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
