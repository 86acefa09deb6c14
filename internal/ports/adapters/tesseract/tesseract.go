package tesseract

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/vidnote/vidnote/internal/types"
)

type Adapter struct {
	bin   string
	langs string
}

func New(binPath, langs string) *Adapter {
	if binPath == "" {
		binPath = "tesseract"
	}
	if langs == "" {
		langs = "eng"
	}
	return &Adapter{bin: binPath, langs: langs}
}

// Recognize runs tesseract in TSV mode and aggregates word-level results into
// one text plus an average confidence in [0,1].
func (a *Adapter) Recognize(ctx context.Context, imagePath string) (types.OCRResult, error) {
	cmd := exec.CommandContext(ctx, a.bin,
		imagePath,
		"stdout",
		"-l", a.langs,
		"tsv",
	)
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return types.OCRResult{}, fmt.Errorf("tesseract failed: %w\n%s", err, string(ee.Stderr))
		}
		return types.OCRResult{}, fmt.Errorf("tesseract failed: %w", err)
	}
	return parseTSV(string(out)), nil
}

// parseTSV extracts recognized words from tesseract's TSV output. Column 11
// is the word confidence (0-100, -1 for non-word rows), column 12 the text.
func parseTSV(out string) types.OCRResult {
	var (
		words    []string
		confSum  float64
		confSeen int
	)
	for i, line := range strings.Split(out, "\n") {
		if i == 0 { // header row
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 12 {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil || conf < 0 {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		words = append(words, text)
		confSum += conf
		confSeen++
	}

	res := types.OCRResult{Text: strings.Join(words, " ")}
	if confSeen > 0 {
		res.Confidence = confSum / float64(confSeen) / 100
	}
	return res
}
