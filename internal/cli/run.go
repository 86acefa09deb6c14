package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vidnote/vidnote/internal/pipeline"
)

func run(cmd *cobra.Command, source string, log *slog.Logger) error {
	outDir, _ := cmd.Flags().GetString("out")
	momentsN, _ := cmd.Flags().GetInt("moments")
	framesN, _ := cmd.Flags().GetInt("frames-per-moment")
	model, _ := cmd.Flags().GetString("model")
	provider, _ := cmd.Flags().GetString("provider")
	cacheDir, _ := cmd.Flags().GetString("cache")
	whisperBin, _ := cmd.Flags().GetString("whisper-bin")
	whisperModel, _ := cmd.Flags().GetString("whisper-model")
	historyDB, _ := cmd.Flags().GetString("history-db")

	apiKey := os.Getenv("VIDNOTE_API_KEY")
	if apiKey == "" {
		return errors.New("VIDNOTE_API_KEY is required (set it in .env)")
	}
	if model == "" {
		model = getenvDefault("VIDNOTE_MODEL", "gpt-4o-mini")
	}
	if provider == "" {
		provider = getenvDefault("VIDNOTE_PROVIDER", "openai")
	}

	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		abs, err := filepath.Abs(source)
		if err != nil {
			return err
		}
		source = abs
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Hour)
	defer cancel()

	cfg := pipeline.Config{
		Source:          source,
		OutDir:          outDir,
		MomentsN:        momentsN,
		FramesPerMoment: framesN,
		CacheDir:        cacheDir,

		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",

		WhisperBin:   whisperBin,
		WhisperModel: whisperModel,

		YtdlpPath: "yt-dlp",

		TesseractPath:  "tesseract",
		TesseractLangs: getenvDefault("VIDNOTE_OCR_LANGS", "eng"),

		ProviderID: provider,
		APIKey:     apiKey,
		BaseURL:    os.Getenv("VIDNOTE_BASE_URL"),
		Model:      model,

		HistoryDB: historyDB,
		Logger:    log,
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	return pipeline.Run(ctx, cfg)
}
