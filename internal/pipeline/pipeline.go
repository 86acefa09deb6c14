package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/vidnote/vidnote/internal/domain/selection"
	"github.com/vidnote/vidnote/internal/ports"
	"github.com/vidnote/vidnote/internal/ports/adapters/ffmpeg"
	"github.com/vidnote/vidnote/internal/ports/adapters/openaichat"
	"github.com/vidnote/vidnote/internal/ports/adapters/tesseract"
	"github.com/vidnote/vidnote/internal/ports/adapters/whispercpp"
	"github.com/vidnote/vidnote/internal/ports/adapters/ytdlp"
	"github.com/vidnote/vidnote/internal/store"
	"github.com/vidnote/vidnote/internal/usecase"
)

type Config struct {
	Source          string
	OutDir          string
	MomentsN        int
	FramesPerMoment int

	// CacheDir is the base directory for local artifacts (downloads, audio,
	// candidate frames). If empty, defaults to ".cache".
	CacheDir string

	FFmpegPath  string
	FFprobePath string

	WhisperBin   string
	WhisperModel string

	YtdlpPath string

	TesseractPath  string
	TesseractLangs string

	ProviderID string
	APIKey     string
	BaseURL    string
	Model      string

	// HistoryDB overrides the task history database path.
	HistoryDB string

	Logger *slog.Logger
}

func (c Config) Validate() error {
	if c.Source == "" {
		return errors.New("source is empty")
	}
	if !isRemote(c.Source) {
		if _, err := os.Stat(c.Source); err != nil {
			return fmt.Errorf("stat source: %w", err)
		}
	}
	if c.MomentsN <= 0 {
		return fmt.Errorf("moments must be > 0")
	}
	if c.FramesPerMoment <= 0 {
		return fmt.Errorf("frames per moment must be > 0")
	}
	if c.WhisperModel == "" {
		return fmt.Errorf("whisper model path is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("api key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model name is required")
	}
	return nil
}

func Run(ctx context.Context, cfg Config) error {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	// adapters
	video := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)
	asr := whispercpp.New(cfg.WhisperBin, cfg.WhisperModel)
	fetcher := ytdlp.New(cfg.YtdlpPath)
	ocr := tesseract.New(cfg.TesseractPath, cfg.TesseractLangs)
	model := openaichat.New(cfg.APIKey, cfg.BaseURL)

	dbPath := cfg.HistoryDB
	if dbPath == "" {
		dbPath = store.DefaultDBPath()
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	jobID := hash(cfg.Source)
	baseCache := cfg.CacheDir
	if baseCache == "" {
		baseCache = ".cache"
	}
	cacheDir := filepath.Join(baseCache, "runs", jobID)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return err
	}
	log.Info("workspace ready", "cache", cacheDir)

	outRoot := cfg.OutDir
	if outRoot == "" {
		outRoot = "out"
	}
	runOutDir := buildRunOutDir(outRoot, cfg.Source, time.Now().UTC())
	if err := os.MkdirAll(runOutDir, 0o755); err != nil {
		return err
	}
	log.Info("output run dir", "dir", runOutDir)

	budget := selection.DetectBudget()
	log.Info("worker budget",
		"ocr_threads", budget.OCRThreads,
		"moment_concurrency", budget.MomentConcurrency,
		"frame_concurrency", budget.FrameConcurrency)

	uc := usecase.New(usecase.Deps{
		Fetcher: fetcher,
		Video:   video,
		ASR:     asr,
		Model:   model,
		Notes:   model,
		OCR:     ocr,
		// Capability records live in the history database so the TTL spans
		// CLI invocations, not just one run.
		Cache: st.CapabilityCache(selection.DefaultTTL),
		Store: st,
		Log:     log,
	})

	res, err := uc.Run(ctx, usecase.Input{
		Source:          cfg.Source,
		OutDir:          runOutDir,
		CacheDir:        cacheDir,
		ProviderID:      cfg.ProviderID,
		Model:           cfg.Model,
		MomentsN:        cfg.MomentsN,
		FramesPerMoment: cfg.FramesPerMoment,
		Budget:          budget,
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range res.Results {
		if r.Failed() {
			failed++
		}
	}
	log.Info("note ready",
		"path", res.NotePath,
		"moments", len(res.Results),
		"failed_moments", failed,
		"task", res.TaskID)
	return nil
}

func buildRunOutDir(outRoot, source string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	name = normalizePathSegment(name)
	if name == "" {
		name = "video"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", source, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// ensure adapters implement ports
var _ ports.VideoTool = (*ffmpeg.Adapter)(nil)
var _ ports.Transcriber = (*whispercpp.Adapter)(nil)
var _ ports.Fetcher = (*ytdlp.Adapter)(nil)
var _ ports.OCREngine = (*tesseract.Adapter)(nil)
var _ ports.ModelClient = (*openaichat.Client)(nil)
var _ ports.NoteAuthor = (*openaichat.Client)(nil)
var _ ports.TaskStore = (*store.Store)(nil)
var _ selection.Cache = (*store.CapabilityCache)(nil)
