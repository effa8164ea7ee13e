package whispercpp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/forPelevin/reelcut/internal/types"
)

type Adapter struct {
	bin      string
	model    string
	language string
	threads  int
}

func New(binPath, modelPath, language string, threads int) *Adapter {
	if language == "" {
		language = "auto"
	}
	return &Adapter{bin: binPath, model: modelPath, language: language, threads: threads}
}

func (a *Adapter) Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error) {
	outPrefix := filepath.Join(cacheDir, "whisper")
	args := []string{
		"-m", a.model,
		"-f", wavPath,
		"-l", a.language,
		"-oj",
		"-of", outPrefix,
	}
	if a.threads > 0 {
		args = append(args, "-t", fmt.Sprint(a.threads))
	}
	cmd := exec.CommandContext(ctx, a.bin, args...)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper.cpp failed: %w\n%s", err, string(b))
	}

	jb, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return types.Transcript{}, err
	}
	return parseOutput(jb)
}

// whisper.cpp -oj writes "transcription" entries with millisecond offsets;
// some builds and wrappers emit a flat "segments" list in seconds instead.
type output struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
	Segments []types.Segment `json:"segments"`
}

func parseOutput(b []byte) (types.Transcript, error) {
	var out output
	if err := json.Unmarshal(b, &out); err != nil {
		return types.Transcript{}, fmt.Errorf("parse whisper output: %w", err)
	}

	var tr types.Transcript
	switch {
	case len(out.Transcription) > 0:
		tr.Segments = make([]types.Segment, 0, len(out.Transcription))
		for _, t := range out.Transcription {
			tr.Segments = append(tr.Segments, types.Segment{
				Start: float64(t.Offsets.From) / 1000,
				End:   float64(t.Offsets.To) / 1000,
				Text:  strings.TrimSpace(t.Text),
			})
		}
	default:
		tr.Segments = out.Segments
		for i := range tr.Segments {
			tr.Segments[i].Text = strings.TrimSpace(tr.Segments[i].Text)
		}
	}
	return tr, nil
}
