package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vidnote/vidnote/internal/domain/moments"
	"github.com/vidnote/vidnote/internal/domain/notes"
	"github.com/vidnote/vidnote/internal/domain/selection"
	"github.com/vidnote/vidnote/internal/ports"
	"github.com/vidnote/vidnote/internal/types"
)

type Deps struct {
	Fetcher ports.Fetcher
	Video   ports.VideoTool
	ASR     ports.Transcriber
	Model   ports.ModelClient
	Notes   ports.NoteAuthor
	OCR     ports.OCREngine
	Cache   selection.Cache
	Store   ports.TaskStore
	Log     *slog.Logger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return Usecase{d: d}
}

type Input struct {
	Source          string
	OutDir          string
	CacheDir        string
	ProviderID      string
	Model           string
	MomentsN        int
	FramesPerMoment int
	Budget          selection.Budget
}

type Result struct {
	TaskID   string
	NotePath string
	Results  []types.SelectionResult
}

// Run drives one source through fetch, transcription, moment extraction,
// frame selection and note rendering. The task row is always finished, even
// on failure.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	task, err := u.d.Store.CreateTask(ctx, in.Source)
	if err != nil {
		return Result{}, err
	}

	res, err := u.run(ctx, task, in)
	if err != nil {
		if ferr := u.d.Store.FinishTask(context.WithoutCancel(ctx), task.ID, types.TaskFailed, err.Error(), ""); ferr != nil {
			u.d.Log.Warn("finish task", "task", task.ID, "err", ferr)
		}
		return Result{TaskID: task.ID}, err
	}

	if ferr := u.d.Store.FinishTask(ctx, task.ID, types.TaskSucceeded, "", res.NotePath); ferr != nil {
		u.d.Log.Warn("finish task", "task", task.ID, "err", ferr)
	}
	res.TaskID = task.ID
	return res, nil
}

func (u Usecase) run(ctx context.Context, task types.Task, in Input) (Result, error) {
	video := in.Source
	if isRemote(in.Source) {
		u.d.Log.Info("fetching source", "source", in.Source)
		local, err := u.d.Fetcher.Fetch(ctx, in.Source, in.CacheDir)
		if err != nil {
			return Result{}, fmt.Errorf("fetch source: %w", err)
		}
		video = local
	}

	wav := filepath.Join(in.CacheDir, "audio.wav")
	if err := u.d.Video.ExtractAudioMono16k(ctx, video, wav); err != nil {
		return Result{}, err
	}

	tr, err := u.d.ASR.Transcribe(ctx, wav, in.CacheDir)
	if err != nil {
		return Result{}, err
	}
	if len(tr.Segments) == 0 {
		return Result{}, fmt.Errorf("empty transcript for %s", video)
	}
	u.d.Log.Info("transcribed", "segments", len(tr.Segments))

	keyMoments := moments.Extract(tr, in.MomentsN)
	u.d.Log.Info("key moments extracted", "count", len(keyMoments))

	candidates := u.grabCandidates(ctx, video, keyMoments, in)

	eng := selection.New(selection.Deps{
		Client: u.d.Model,
		OCR:    u.d.OCR,
		Cache:  u.d.Cache,
		Log:    u.d.Log,
	})
	results, err := eng.Select(ctx, selection.Request{
		ProviderID: in.ProviderID,
		Model:      in.Model,
		Budget:     in.Budget,
		Moments:    candidates,
	})
	if err != nil {
		return Result{}, err
	}

	if serr := u.d.Store.SaveSelections(ctx, task.ID, keyMoments, results); serr != nil {
		u.d.Log.Warn("save selections", "task", task.ID, "err", serr)
	}

	images, err := u.placeImages(in.OutDir, candidates, results)
	if err != nil {
		return Result{}, err
	}

	notePath, err := u.writeNote(ctx, in, video, tr, keyMoments, results, images)
	if err != nil {
		return Result{}, err
	}
	return Result{NotePath: notePath, Results: results}, nil
}

// grabCandidates extracts candidate frames per moment. A failing grab logs a
// warning and leaves the moment with zero frames; the selection engine folds
// that into a per-moment failure without stopping the run. Grab timestamps
// are clamped so the trailing candidate offsets stay inside the video.
func (u Usecase) grabCandidates(ctx context.Context, video string, keyMoments []types.KeyMoment, in Input) []types.MomentCandidates {
	framesDir := filepath.Join(in.CacheDir, "frames")

	maxAt := 0.0
	if dur, err := u.d.Video.ProbeDuration(ctx, video); err != nil {
		u.d.Log.Warn("probe duration, grabbing unclamped", "err", err)
	} else {
		maxAt = dur.Seconds() - float64(in.FramesPerMoment/2)
	}

	out := make([]types.MomentCandidates, 0, len(keyMoments))
	for _, m := range keyMoments {
		at := m.Timestamp
		if maxAt > 0 && at > maxAt {
			at = maxAt
		}
		dir := filepath.Join(framesDir, m.ID)
		frames, err := u.d.Video.GrabCandidates(ctx, video, at, in.FramesPerMoment, dir)
		if err != nil {
			u.d.Log.Warn("grab candidates", "moment", m.ID, "err", err)
			frames = nil
		}
		for i := range frames {
			frames[i].MomentID = m.ID
			frames[i].Index = i
		}
		out = append(out, types.MomentCandidates{Moment: m, Frames: frames})
	}
	return out
}

// placeImages copies each winning frame into OutDir/images/<momentID>.jpg and
// returns the moment id -> relative image path mapping for note rendering.
func (u Usecase) placeImages(outDir string, candidates []types.MomentCandidates, results []types.SelectionResult) (map[string]string, error) {
	imagesDir := filepath.Join(outDir, "images")
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return nil, err
	}

	framesByMoment := make(map[string][]types.CandidateFrame, len(candidates))
	for _, mc := range candidates {
		framesByMoment[mc.Moment.ID] = mc.Frames
	}

	images := make(map[string]string)
	for _, r := range results {
		if r.Failed() {
			continue
		}
		frames := framesByMoment[r.MomentID]
		if r.FrameIndex < 0 || r.FrameIndex >= len(frames) {
			continue
		}
		dst := filepath.Join(imagesDir, r.MomentID+".jpg")
		if err := copyFile(frames[r.FrameIndex].Path, dst); err != nil {
			u.d.Log.Warn("copy frame", "moment", r.MomentID, "err", err)
			continue
		}
		images[r.MomentID] = filepath.ToSlash(filepath.Join("images", r.MomentID+".jpg"))
	}
	return images, nil
}

func (u Usecase) writeNote(ctx context.Context, in Input, video string, tr types.Transcript, keyMoments []types.KeyMoment, results []types.SelectionResult, images map[string]string) (string, error) {
	authored, err := u.d.Notes.Author(ctx, in.Model, tr, keyMoments)
	if err != nil {
		u.d.Log.Warn("note authoring failed, using fallback note", "err", err)
		title := strings.TrimSuffix(filepath.Base(video), filepath.Ext(video))
		authored = notes.Fallback(title, tr, keyMoments)
	}

	rendered := notes.Render(authored, keyMoments, results, func(momentID string) (string, bool) {
		p, ok := images[momentID]
		return p, ok
	})

	notePath := filepath.Join(in.OutDir, "note.md")
	if err := os.WriteFile(notePath, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write note: %w", err)
	}
	u.d.Log.Info("note written", "path", notePath)
	return notePath, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
