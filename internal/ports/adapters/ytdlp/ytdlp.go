package ytdlp

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// DefaultFormat asks for a single progressive mp4 so no muxing step is needed.
const DefaultFormat = "best[ext=mp4]"

type Adapter struct {
	bin    string
	format string
}

func New(binPath, format string) *Adapter {
	if binPath == "" {
		binPath = "yt-dlp"
	}
	if format == "" {
		format = DefaultFormat
	}
	return &Adapter{bin: binPath, format: format}
}

// Acquire downloads url into destDir and returns the path of the media file.
func (a *Adapter) Acquire(ctx context.Context, url, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create download dir")
	}
	cmd := exec.CommandContext(ctx, a.bin, downloadArgs(url, destDir, a.format)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", errors.Errorf("yt-dlp download failed: %s", detail)
	}
	path, err := downloadedPath(stdout.String())
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", errors.Wrapf(err, "yt-dlp reported %s", path)
	}
	return path, nil
}

func downloadArgs(url, destDir, format string) []string {
	return []string{
		"--no-playlist",
		"--no-progress",
		"--quiet",
		"-f", format,
		"-o", filepath.Join(destDir, "source.%(ext)s"),
		"--print", "after_move:filepath",
		"--", url,
	}
}

// downloadedPath takes the last non-empty line printed by --print.
func downloadedPath(stdout string) (string, error) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if p := strings.TrimSpace(lines[i]); p != "" {
			return p, nil
		}
	}
	return "", errors.New("yt-dlp did not report an output file")
}
