package selection

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/vidnote/vidnote/internal/types"
)

// ErrOCRUnavailable marks the OCR backend as unreachable (missing binary).
// Unlike a per-frame recognition failure this aborts the whole run: with no
// working recognizer every frame would score zero and the pick degenerates to
// "always the first frame".
var ErrOCRUnavailable = errors.New("ocr backend unavailable")

// ScoreText rates extracted screenshot text by information density.
// Weights: 40% text density, 30% vocabulary diversity, 20% digit/symbol
// complexity, 10% recognizer confidence. Deterministic for a given input.
func ScoreText(text string, confidence float64) float64 {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0.1 * confidence
	}

	density := float64(n) / 100
	if density > 1 {
		density = 1
	}

	words := strings.Fields(text)
	uniqueRatio := 0.0
	if len(words) > 0 {
		seen := make(map[string]struct{}, len(words))
		for _, w := range words {
			seen[w] = struct{}{}
		}
		uniqueRatio = float64(len(seen)) / float64(len(words))
	}

	digits, special := 0, 0
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsLetter(r), r == '_', unicode.IsSpace(r):
		default:
			special++
		}
	}
	complexity := float64(digits+special) / float64(n)

	return 0.4*density + 0.3*uniqueRatio + 0.2*complexity + 0.1*confidence
}

// ocrSelect scores every candidate on the shared OCR pool and returns the
// index of the best one. A frame whose recognition fails twice scores as a
// zero-information candidate rather than failing the moment. Ties resolve to
// the lower (earlier-in-time) index.
func (e *Engine) ocrSelect(ctx context.Context, frames []types.CandidateFrame, pool *semaphore.Weighted) (int, error) {
	scores := make([]float64, len(frames))

	g, gctx := errgroup.WithContext(ctx)
	for i := range frames {
		g.Go(func() error {
			if err := pool.Acquire(gctx, 1); err != nil {
				return err
			}
			defer pool.Release(1)
			res, err := e.recognize(gctx, frames[i].Path)
			if err != nil {
				return err
			}
			scores[i] = ScoreText(res.Text, res.Confidence)
			return nil
		})
	}
	// An OCR worker surfaces only cancellation or an unavailable backend;
	// ordinary recognition failures have already been folded into zero scores.
	if err := g.Wait(); err != nil {
		return 0, err
	}

	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best, nil
}

// recognize runs OCR with a single retry. Retrying is cheap and local, unlike
// vision calls which are never retried. A missing backend binary is not
// retried either; it is reported as ErrOCRUnavailable.
func (e *Engine) recognize(ctx context.Context, imagePath string) (types.OCRResult, error) {
	res, err := e.ocr.Recognize(ctx, imagePath)
	if err != nil && ctx.Err() == nil && !errors.Is(err, exec.ErrNotFound) {
		e.log.Debug("ocr failed, retrying once", "image", imagePath, "error", err)
		res, err = e.ocr.Recognize(ctx, imagePath)
	}
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return types.OCRResult{}, fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
		}
		e.log.Warn("ocr failed, treating frame as empty", "image", imagePath, "error", err)
		return types.OCRResult{}, nil
	}
	return res, nil
}
