// Package selection picks the best screenshot for each key moment of a video,
// either by asking a vision-capable model to compare candidates or, when the
// model cannot see images, by ranking candidates with an OCR text-density
// heuristic.
package selection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/vidnote/vidnote/internal/ports"
	"github.com/vidnote/vidnote/internal/types"
)

// ErrNoCandidates marks a moment that arrived with zero candidate frames.
// It fails that moment only; the run continues.
var ErrNoCandidates = errors.New("no candidate frames for moment")

const defaultVisionTimeout = 90 * time.Second

type Deps struct {
	Client ports.ModelClient
	OCR    ports.OCREngine
	Cache  Cache
	Log    *slog.Logger
}

type Engine struct {
	client        ports.ModelClient
	ocr           ports.OCREngine
	detector      *Detector
	visionTimeout time.Duration
	log           *slog.Logger
}

func New(d Deps) *Engine {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		client:        d.Client,
		ocr:           d.OCR,
		detector:      NewDetector(d.Client, d.Cache, log),
		visionTimeout: defaultVisionTimeout,
		log:           log,
	}
}

type Request struct {
	ProviderID string
	Model      string
	Budget     Budget
	Moments    []types.MomentCandidates
}

// Select resolves capability once, then processes moments concurrently under
// the request budget. Results come back in input order regardless of
// completion order. The returned error is non-nil only when the whole run is
// cancelled or the OCR backend turns out to be unavailable; per-moment
// problems are carried inside the results.
func (e *Engine) Select(ctx context.Context, req Request) ([]types.SelectionResult, error) {
	rec := e.detector.Detect(ctx, req.ProviderID, req.Model)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.log.Info("selection strategy resolved",
		"provider", req.ProviderID,
		"model", req.Model,
		"has_vision", rec.HasVision,
		"confidence", rec.Confidence,
		"moments", len(req.Moments))

	// momentSem gates admission of whole moments; ocrSem is one pool shared by
	// every moment for the lifetime of the run; frameSem bounds image loading
	// on the vision path. Acquire order is always moment first, then
	// frame/OCR, so the tiers cannot deadlock each other.
	momentSem := semaphore.NewWeighted(int64(req.Budget.MomentConcurrency))
	ocrSem := semaphore.NewWeighted(int64(req.Budget.OCRThreads))
	frameSem := semaphore.NewWeighted(int64(req.Budget.FrameConcurrency))

	results := make([]types.SelectionResult, len(req.Moments))

	var (
		wg      sync.WaitGroup
		fatalMu sync.Mutex
		fatal   error
	)
	for i := range req.Moments {
		if err := momentSem.Acquire(ctx, 1); err != nil {
			results[i] = failedResult(req.Moments[i].Moment.ID, err)
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer momentSem.Release(1)
			res, err := e.selectOne(ctx, req.Model, rec.HasVision, req.Moments[i], ocrSem, frameSem)
			results[i] = res
			if err != nil {
				fatalMu.Lock()
				if fatal == nil {
					fatal = err
				}
				fatalMu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, fatal
}

// selectOne resolves one moment. The returned error is non-nil only for the
// run-fatal class (an unavailable OCR backend); everything else is folded
// into the moment's result.
func (e *Engine) selectOne(
	ctx context.Context,
	modelName string,
	hasVision bool,
	mc types.MomentCandidates,
	ocrSem, frameSem *semaphore.Weighted,
) (types.SelectionResult, error) {
	id := mc.Moment.ID
	if len(mc.Frames) == 0 {
		return failedResult(id, ErrNoCandidates), nil
	}

	if hasVision {
		idx, err := e.visionSelect(ctx, modelName, mc.Frames, frameSem)
		if err == nil {
			return types.SelectionResult{MomentID: id, FrameIndex: idx, Method: types.MethodVision}, nil
		}
		if ctx.Err() != nil {
			return failedResult(id, ctx.Err()), nil
		}
		// One vision attempt per moment; a failure degrades to the OCR path.
		e.log.Warn("vision selection failed, falling back to ocr", "moment", id, "error", err)
		idx, err = e.ocrSelect(ctx, mc.Frames, ocrSem)
		if err != nil {
			return failedResult(id, err), runFatal(err)
		}
		return types.SelectionResult{MomentID: id, FrameIndex: idx, Method: types.MethodFallback}, nil
	}

	idx, err := e.ocrSelect(ctx, mc.Frames, ocrSem)
	if err != nil {
		return failedResult(id, err), runFatal(err)
	}
	return types.SelectionResult{MomentID: id, FrameIndex: idx, Method: types.MethodOCR}, nil
}

// runFatal filters an ocrSelect error down to the class that must abort the
// whole run. Cancellation is reported through ctx by Select itself.
func runFatal(err error) error {
	if errors.Is(err, ErrOCRUnavailable) {
		return err
	}
	return nil
}

func failedResult(momentID string, err error) types.SelectionResult {
	return types.SelectionResult{MomentID: momentID, FrameIndex: -1, Err: err.Error()}
}
