package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vidnote/vidnote/internal/domain/selection"
	"github.com/vidnote/vidnote/internal/types"
)

type fakeVideo struct{}

func (fakeVideo) ExtractAudioMono16k(ctx context.Context, inVideo, outWav string) error {
	return os.WriteFile(outWav, []byte("wav"), 0o644)
}

func (fakeVideo) ProbeDuration(ctx context.Context, inVideo string) (time.Duration, error) {
	return 5 * time.Minute, nil
}

func (fakeVideo) GrabCandidates(ctx context.Context, inVideo string, at float64, count int, outDir string) ([]types.CandidateFrame, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	frames := make([]types.CandidateFrame, count)
	for i := 0; i < count; i++ {
		p := filepath.Join(outDir, fmt.Sprintf("%02d.jpg", i))
		if err := os.WriteFile(p, []byte("jpeg"), 0o644); err != nil {
			return nil, err
		}
		frames[i] = types.CandidateFrame{Index: i, Path: p}
	}
	return frames, nil
}

type fakeASR struct{ tr types.Transcript }

func (f fakeASR) Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error) {
	return f.tr, nil
}

type fakeModel struct{}

func (fakeModel) Complete(ctx context.Context, model, prompt string) (string, error) {
	return "TEXT-ONLY", nil
}

func (fakeModel) CompleteVision(ctx context.Context, model string, images [][]byte, prompt string) (string, error) {
	return "1", nil
}

type fakeAuthor struct {
	err error
}

func (f fakeAuthor) Author(ctx context.Context, model string, tr types.Transcript, moments []types.KeyMoment) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	var b strings.Builder
	b.WriteString("# Video Notes\n\n")
	for _, m := range moments {
		fmt.Fprintf(&b, "Section about %s.\n\n{{screenshot:%s}}\n\n", m.ID, m.ID)
	}
	return b.String(), nil
}

type fakeOCR struct{}

func (fakeOCR) Recognize(ctx context.Context, imagePath string) (types.OCRResult, error) {
	return types.OCRResult{Text: "terminal output line 42", Confidence: 0.9}, nil
}

type memStore struct {
	mu         sync.Mutex
	tasks      map[string]types.Task
	selections map[string][]types.SelectionResult
}

func newMemStore() *memStore {
	return &memStore{
		tasks:      make(map[string]types.Task),
		selections: make(map[string][]types.SelectionResult),
	}
}

func (s *memStore) CreateTask(ctx context.Context, source string) (types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := types.Task{
		ID:        fmt.Sprintf("task-%d", len(s.tasks)+1),
		Source:    source,
		Status:    types.TaskRunning,
		CreatedAt: time.Now(),
	}
	s.tasks[t.ID] = t
	return t, nil
}

func (s *memStore) FinishTask(ctx context.Context, id string, status types.TaskStatus, reason, notePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tasks[id]
	t.Status = status
	t.Reason = reason
	t.NotePath = notePath
	t.FinishedAt = time.Now()
	s.tasks[id] = t
	return nil
}

func (s *memStore) SaveSelections(ctx context.Context, taskID string, moments []types.KeyMoment, results []types.SelectionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selections[taskID] = results
	return nil
}

func (s *memStore) RecentTasks(ctx context.Context, limit int) ([]types.Task, error) {
	return nil, nil
}

func testTranscript() types.Transcript {
	return types.Transcript{Segments: []types.Segment{
		{Start: 5, End: 12, Text: "First, let's look at the important configuration file"},
		{Start: 40, End: 48, Text: "Step 2 is the key takeaway: remember the 3 flags"},
		{Start: 90, End: 99, Text: "In summary, how to verify the result with example 7"},
	}}
}

func testDeps(t *testing.T, store *memStore, author fakeAuthor) Deps {
	t.Helper()
	return Deps{
		Video: fakeVideo{},
		ASR:   fakeASR{tr: testTranscript()},
		Model: fakeModel{},
		Notes: author,
		OCR:   fakeOCR{},
		Cache: selection.NewMemoryCache(selection.DefaultTTL, nil),
		Store: store,
		Log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestRun_ProducesNoteAndImages(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	u := New(testDeps(t, store, fakeAuthor{}))

	outDir := t.TempDir()
	res, err := u.Run(context.Background(), Input{
		Source:          "lecture.mp4",
		OutDir:          outDir,
		CacheDir:        t.TempDir(),
		ProviderID:      "prov",
		Model:           "mod",
		MomentsN:        3,
		FramesPerMoment: 5,
		Budget:          selection.Budget{OCRThreads: 4, MomentConcurrency: 3, FrameConcurrency: 2},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	note, rerr := os.ReadFile(res.NotePath)
	if rerr != nil {
		t.Fatalf("read note: %v", rerr)
	}
	if strings.Contains(string(note), "{{screenshot:") {
		t.Fatalf("note still contains placeholders:\n%s", note)
	}
	if !strings.Contains(string(note), "images/m001.jpg") {
		t.Fatalf("note missing image reference:\n%s", note)
	}

	if len(res.Results) != 3 {
		t.Fatalf("got %d selection results, want 3", len(res.Results))
	}
	for _, r := range res.Results {
		if r.Failed() {
			t.Fatalf("moment %s failed: %s", r.MomentID, r.Err)
		}
		img := filepath.Join(outDir, "images", r.MomentID+".jpg")
		if _, err := os.Stat(img); err != nil {
			t.Fatalf("missing winning frame %s: %v", img, err)
		}
	}

	task := store.tasks[res.TaskID]
	if task.Status != types.TaskSucceeded {
		t.Fatalf("task status = %q, want succeeded", task.Status)
	}
	if task.NotePath != res.NotePath {
		t.Fatalf("task note path = %q, want %q", task.NotePath, res.NotePath)
	}
	if got := len(store.selections[res.TaskID]); got != 3 {
		t.Fatalf("stored %d selections, want 3", got)
	}
}

func TestRun_AuthorFailureFallsBackToDeterministicNote(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	u := New(testDeps(t, store, fakeAuthor{err: fmt.Errorf("model unavailable")}))

	res, err := u.Run(context.Background(), Input{
		Source:          "lecture.mp4",
		OutDir:          t.TempDir(),
		CacheDir:        t.TempDir(),
		ProviderID:      "prov",
		Model:           "mod",
		MomentsN:        2,
		FramesPerMoment: 3,
		Budget:          selection.Budget{OCRThreads: 4, MomentConcurrency: 3, FrameConcurrency: 2},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	note, rerr := os.ReadFile(res.NotePath)
	if rerr != nil {
		t.Fatalf("read note: %v", rerr)
	}
	if !strings.Contains(string(note), "# lecture") {
		t.Fatalf("fallback note missing title:\n%s", note)
	}
	if strings.Contains(string(note), "{{screenshot:") {
		t.Fatalf("fallback note still contains placeholders:\n%s", note)
	}
	if store.tasks[res.TaskID].Status != types.TaskSucceeded {
		t.Fatalf("a fallback note still counts as success, got %q", store.tasks[res.TaskID].Status)
	}
}

// recordingVideo notes every grab timestamp and reports a fixed duration.
type recordingVideo struct {
	fakeVideo
	dur time.Duration
	mu  sync.Mutex
	ats []float64
}

func (v *recordingVideo) ProbeDuration(ctx context.Context, inVideo string) (time.Duration, error) {
	return v.dur, nil
}

func (v *recordingVideo) GrabCandidates(ctx context.Context, inVideo string, at float64, count int, outDir string) ([]types.CandidateFrame, error) {
	v.mu.Lock()
	v.ats = append(v.ats, at)
	v.mu.Unlock()
	return v.fakeVideo.GrabCandidates(ctx, inVideo, at, count, outDir)
}

func TestRun_ClampsGrabsToVideoDuration(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	deps := testDeps(t, store, fakeAuthor{})
	video := &recordingVideo{dur: 100 * time.Second}
	deps.Video = video
	deps.ASR = fakeASR{tr: types.Transcript{Segments: []types.Segment{
		{Start: 5, End: 12, Text: "First, let's look at the important configuration file"},
		{Start: 99, End: 100, Text: "In summary, the key takeaway is step 3"},
	}}}
	u := New(deps)

	_, err := u.Run(context.Background(), Input{
		Source:          "lecture.mp4",
		OutDir:          t.TempDir(),
		CacheDir:        t.TempDir(),
		ProviderID:      "prov",
		Model:           "mod",
		MomentsN:        2,
		FramesPerMoment: 5,
		Budget:          selection.Budget{OCRThreads: 4, MomentConcurrency: 3, FrameConcurrency: 2},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// 5 frames span at-2s..at+2s; the moment at t=99 of a 100s video must be
	// pulled back so the last offset stays inside the video.
	if len(video.ats) != 2 {
		t.Fatalf("got %d grabs, want 2", len(video.ats))
	}
	if video.ats[0] != 5 {
		t.Fatalf("in-range moment moved: grabbed at %v", video.ats[0])
	}
	if video.ats[1] != 98 {
		t.Fatalf("end-of-video moment not clamped: grabbed at %v, want 98", video.ats[1])
	}
}

type emptyASR struct{}

func (emptyASR) Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error) {
	return types.Transcript{}, nil
}

func TestRun_EmptyTranscriptFailsTask(t *testing.T) {
	t.Parallel()
	store := newMemStore()
	deps := testDeps(t, store, fakeAuthor{})
	deps.ASR = emptyASR{}
	u := New(deps)

	res, err := u.Run(context.Background(), Input{
		Source:          "silent.mp4",
		OutDir:          t.TempDir(),
		CacheDir:        t.TempDir(),
		ProviderID:      "prov",
		Model:           "mod",
		MomentsN:        2,
		FramesPerMoment: 3,
		Budget:          selection.Budget{OCRThreads: 4, MomentConcurrency: 3, FrameConcurrency: 2},
	})
	if err == nil {
		t.Fatal("expected error for empty transcript")
	}
	task := store.tasks[res.TaskID]
	if task.Status != types.TaskFailed {
		t.Fatalf("task status = %q, want failed", task.Status)
	}
	if task.Reason == "" {
		t.Fatal("failed task has empty reason")
	}
}
