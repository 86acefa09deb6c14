package ports

import (
	"context"
	"time"

	"github.com/vidnote/vidnote/internal/types"
)

// Fetcher resolves a source (remote URL) into a local video file under destDir.
type Fetcher interface {
	Fetch(ctx context.Context, source, destDir string) (string, error)
}

type VideoTool interface {
	ExtractAudioMono16k(ctx context.Context, inVideo, outWav string) error
	ProbeDuration(ctx context.Context, inVideo string) (time.Duration, error)
	// GrabCandidates extracts count frames spread around the timestamp (seconds)
	// into outDir, ordered by time. Index 0 is the earliest candidate.
	GrabCandidates(ctx context.Context, inVideo string, at float64, count int, outDir string) ([]types.CandidateFrame, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error)
}

// ModelClient is a chat-completion endpoint. One client instance talks to one
// provider; the provider id used for capability caching travels separately.
type ModelClient interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
	CompleteVision(ctx context.Context, model string, images [][]byte, prompt string) (string, error)
}

// NoteAuthor turns a transcript and its key moments into a Markdown note
// containing one screenshot placeholder per moment.
type NoteAuthor interface {
	Author(ctx context.Context, model string, tr types.Transcript, moments []types.KeyMoment) (string, error)
}

type OCREngine interface {
	Recognize(ctx context.Context, imagePath string) (types.OCRResult, error)
}

type TaskStore interface {
	CreateTask(ctx context.Context, source string) (types.Task, error)
	FinishTask(ctx context.Context, id string, status types.TaskStatus, reason, notePath string) error
	SaveSelections(ctx context.Context, taskID string, moments []types.KeyMoment, results []types.SelectionResult) error
	RecentTasks(ctx context.Context, limit int) ([]types.Task, error)
}
