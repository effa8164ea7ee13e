package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/forPelevin/reelcut/internal/config"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/store"
	"github.com/forPelevin/reelcut/internal/types"
)

func TestBuildRunOutDir(t *testing.T) {
	now := time.Date(2026, 2, 12, 10, 30, 45, 1234, time.UTC)
	got := buildRunOutDir("out", "/tmp/My Cool.Video.mp4", now)
	base := filepath.Base(got)
	if filepath.Dir(got) != "out" {
		t.Fatalf("unexpected parent dir: %s", got)
	}
	if !strings.HasPrefix(base, "my-cool-video-20260212-103045Z-") {
		t.Fatalf("unexpected run dir format: %s", base)
	}
	if len(base) != len("my-cool-video-20260212-103045Z-")+6 {
		t.Fatalf("unexpected run dir suffix length: %s", base)
	}

	url := filepath.Base(buildRunOutDir("out", "https://example.com/watch/Keynote.mp4", now))
	if !strings.HasPrefix(url, "keynote-20260212-103045Z-") {
		t.Fatalf("unexpected run dir for url: %s", url)
	}
}

func TestNormalizePathSegment(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Video  ": "my-cool-video",
		"___":               "",
		"abc123":            "abc123",
		"Name (v2)!":        "name-v2",
		"Café Olé":          "cafe-ole",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := normalizePathSegment(in); got != want {
				t.Fatalf("normalizePathSegment(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestRunLayout_UniqueNames(t *testing.T) {
	l := newRunLayout("/runs/x")
	a, _ := l.Locate(0, types.ScoredSegment{})
	b, _ := l.Locate(0, types.ScoredSegment{})
	if a.ClipPath == b.ClipPath {
		t.Fatalf("expected unique clip names, got %s twice", a.ClipPath)
	}
	re := regexp.MustCompile(`^001-[0-9a-f]{8}\.mp4$`)
	if !re.MatchString(filepath.Base(a.ClipPath)) {
		t.Fatalf("unexpected clip name %s", a.ClipPath)
	}
	if filepath.Dir(a.ClipPath) != filepath.Join("/runs/x", "clips") || filepath.Ext(a.SubtitlePath) != ".ass" {
		t.Fatalf("unexpected target %+v", a)
	}
}

func TestRun_EndToEndWithFakes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "talk.mp4")
	if err := os.WriteFile(src, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	hist, err := store.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer hist.Close()

	settings := config.Default()
	settings.Paths.OutDir = filepath.Join(dir, "out")
	settings.Paths.CacheDir = filepath.Join(dir, "cache")
	settings.Render.VerifyDuration = false

	asr := &fakeASR{tr: types.Transcript{Segments: []types.Segment{
		{Start: 0, End: 3, Text: "this is amazing"},
		{Start: 3, End: 6, Text: "boring part"},
		{Start: 6, End: 9.5, Text: "amazing finish"},
	}}}
	cfg := Config{
		Input:      src,
		Settings:   settings,
		History:    hist,
		Video:      &fakeVideo{},
		ASR:        asr,
		Classifier: keywordClassifier{},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	rep, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Source != src || rep.Segments != 3 || rep.CachedASR {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if len(rep.Result.Artifacts) != 2 {
		t.Fatalf("expected 2 clips, got %d", len(rep.Result.Artifacts))
	}

	b, err := os.ReadFile(rep.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m types.Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	if len(m.Clips) != 2 || m.Clips[1].Segment != 2 || !strings.HasPrefix(m.Clips[0].File, "clips/001-") {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	if _, err := os.Stat(filepath.Join(rep.RunDir, filepath.FromSlash(m.Clips[0].File))); err != nil {
		t.Fatalf("manifest points at missing clip: %v", err)
	}

	rep2, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !rep2.CachedASR || asr.calls != 1 {
		t.Fatalf("expected cached transcript on second run, cached=%v calls=%d", rep2.CachedASR, asr.calls)
	}

	runs, err := hist.ListRuns(context.Background(), 0)
	if err != nil || len(runs) != 2 {
		t.Fatalf("expected 2 history rows, got %d, %v", len(runs), err)
	}
	if runs[0].Status != store.StatusCompleted || runs[0].ClipCount != 2 {
		t.Fatalf("unexpected history row: %+v", runs[0])
	}
}

func TestRun_AcquisitionIsFatal(t *testing.T) {
	dir := t.TempDir()
	settings := config.Default()
	settings.Paths.OutDir = filepath.Join(dir, "out")
	settings.Paths.CacheDir = filepath.Join(dir, "cache")

	_, err := Run(context.Background(), Config{
		Input:      filepath.Join(dir, "missing.mp4"),
		Settings:   settings,
		Video:      &fakeVideo{},
		ASR:        &fakeASR{},
		Classifier: keywordClassifier{},
	})
	if types.KindOf(err) != types.KindAcquisition {
		t.Fatalf("expected acquisition error, got %v", err)
	}
	if _, statErr := os.Stat(settings.Paths.OutDir); !os.IsNotExist(statErr) {
		t.Fatal("expected no output dir after failed acquisition")
	}
}

func TestRun_TranscriptionIsFatal(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.mp4")
	if err := os.WriteFile(src, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	settings := config.Default()
	settings.Paths.OutDir = filepath.Join(dir, "out")
	settings.Paths.CacheDir = filepath.Join(dir, "cache")

	_, err := Run(context.Background(), Config{
		Input:      src,
		Settings:   settings,
		Video:      &fakeVideo{},
		ASR:        &fakeASR{err: errors.New("model not found")},
		Classifier: keywordClassifier{},
	})
	if types.KindOf(err) != types.KindTranscription || types.StepOf(err) != "asr" {
		t.Fatalf("expected transcription/asr error, got %v", err)
	}
}

type fakeASR struct {
	tr    types.Transcript
	err   error
	calls int
}

func (f *fakeASR) Transcribe(context.Context, string, string) (types.Transcript, error) {
	f.calls++
	return f.tr, f.err
}

type keywordClassifier struct{}

func (keywordClassifier) Classify(_ context.Context, text string) (types.Sentiment, error) {
	if strings.Contains(text, "amazing") {
		return types.Sentiment{Label: "POSITIVE", Score: 0.99}, nil
	}
	return types.Sentiment{Label: "NEGATIVE", Score: 0.8}, nil
}

type fakeVideo struct {
	mu sync.Mutex
}

func (f *fakeVideo) ExtractAudioMono16k(_ context.Context, _, outWav string) error {
	return os.WriteFile(outWav, []byte("wav"), 0o644)
}

func (f *fakeVideo) Probe(context.Context, string) (types.MediaInfo, error) {
	return types.MediaInfo{Width: 1280, Height: 720, Duration: time.Minute}, nil
}

func (f *fakeVideo) RenderClip(_ context.Context, req ports.RenderRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return os.WriteFile(req.OutputPath, []byte("clip"), 0o644)
}
