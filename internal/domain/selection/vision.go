package selection

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/vidnote/vidnote/internal/types"
)

func visionPrompt(n int) string {
	return fmt.Sprintf("You are given %d numbered screenshots taken around the same moment of a video. "+
		"Pick the single clearest, most representative screenshot of informative content: readable text, "+
		"slides, code and diagrams rank highest; blurred or transitional frames rank lowest. "+
		"Answer with only the screenshot number (1-%d) and no other text.", n, n)
}

// visionSelect sends all candidates of one moment in a single batched model
// call and parses the chosen number. Image loading is bounded by frameSem;
// the model call itself is always exactly one request.
func (e *Engine) visionSelect(ctx context.Context, modelName string, frames []types.CandidateFrame, frameSem *semaphore.Weighted) (int, error) {
	images := make([][]byte, len(frames))

	g, gctx := errgroup.WithContext(ctx)
	for i := range frames {
		g.Go(func() error {
			if err := frameSem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer frameSem.Release(1)
			b, err := os.ReadFile(frames[i].Path)
			if err != nil {
				return fmt.Errorf("read candidate %d: %w", frames[i].Index, err)
			}
			images[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.visionTimeout)
	defer cancel()

	reply, err := e.client.CompleteVision(reqCtx, modelName, images, visionPrompt(len(frames)))
	if err != nil {
		return 0, fmt.Errorf("vision call: %w", err)
	}
	return parseChosenIndex(reply, len(frames))
}

// parseChosenIndex accepts only a bare 1-based number, tolerating surrounding
// whitespace and trailing punctuation. Chatty replies like "I think it's 3"
// are a parse failure; the caller falls back to OCR.
func parseChosenIndex(reply string, n int) (int, error) {
	t := strings.TrimSpace(reply)
	t = strings.TrimRight(t, ".!")
	if t == "" {
		return 0, fmt.Errorf("empty vision reply")
	}
	v, err := strconv.Atoi(t)
	if err != nil {
		return 0, fmt.Errorf("non-numeric vision reply %q", truncate(reply, 80))
	}
	if v < 1 || v > n {
		return 0, fmt.Errorf("vision reply %d out of range 1-%d", v, n)
	}
	return v - 1, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
