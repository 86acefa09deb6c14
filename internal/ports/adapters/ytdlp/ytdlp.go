package ytdlp

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

type Adapter struct {
	bin string
}

func New(binPath string) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &Adapter{bin: binPath}
}

// Fetch downloads the source into destDir and returns the local file path.
// yt-dlp prints the final path itself, which avoids guessing the extension
// the extractor picked.
func (a *Adapter) Fetch(ctx context.Context, source, destDir string) (string, error) {
	cmd := exec.CommandContext(ctx, a.bin,
		"-f", "bv*[ext=mp4]+ba[ext=m4a]/b[ext=mp4]/b",
		"--no-playlist",
		"--no-simulate",
		"--print", "after_move:filepath",
		"-o", filepath.Join(destDir, "%(id)s.%(ext)s"),
		source,
	)
	out, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("yt-dlp failed: %w\n%s", err, string(ee.Stderr))
		}
		return "", fmt.Errorf("yt-dlp failed: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	path := strings.TrimSpace(lines[len(lines)-1])
	if path == "" {
		return "", fmt.Errorf("yt-dlp reported no output file for %s", source)
	}
	return path, nil
}
