package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vidnote/vidnote/internal/types"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

func (a *Adapter) ExtractAudioMono16k(ctx context.Context, inVideo, outWav string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", inVideo,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		outWav,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, string(b))
	}
	return nil
}

func (a *Adapter) ProbeDuration(ctx context.Context, inVideo string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inVideo,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w\n%s", err, string(b))
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return time.Duration(sec * float64(time.Second)), nil
}

// GrabCandidates extracts count frames spread one second apart and centered
// on the timestamp, clamped at the start of the video. Offsets that ffmpeg
// cannot seek to (past the end) are skipped; the caller decides whether the
// remaining candidates are enough.
func (a *Adapter) GrabCandidates(ctx context.Context, inVideo string, at float64, count int, outDir string) ([]types.CandidateFrame, error) {
	if count <= 0 {
		return nil, fmt.Errorf("candidate count must be > 0")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	momentID := fmt.Sprintf("t%07.1f", at)
	frames := make([]types.CandidateFrame, 0, count)
	for i := 0; i < count; i++ {
		offset := at + float64(i-count/2)
		if offset < 0 {
			offset = 0
		}
		outPath := filepath.Join(outDir, fmt.Sprintf("%s_%d.jpg", momentID, i))
		cmd := exec.CommandContext(ctx, a.ffmpeg,
			"-y",
			"-ss", fmtSeconds(offset),
			"-i", inVideo,
			"-frames:v", "1",
			"-q:v", "2",
			outPath,
		)
		b, err := cmd.CombinedOutput()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("ffmpeg grab frame at %ss: %w\n%s", fmtSeconds(offset), err, string(b))
		}
		// Seeking past the stream end exits 0 but writes nothing.
		if fi, err := os.Stat(outPath); err != nil || fi.Size() == 0 {
			continue
		}
		frames = append(frames, types.CandidateFrame{Index: len(frames), Path: outPath})
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames extracted at %ss", fmtSeconds(at))
	}
	return frames, nil
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
