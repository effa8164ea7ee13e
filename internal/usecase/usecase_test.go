package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/forPelevin/reelcut/internal/domain/highlights"
	"github.com/forPelevin/reelcut/internal/domain/subtitles"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

func TestRun_SelectsFirstThreePassing(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	video := &fakeVideoTool{}
	uc := env.usecase(video, passingClassifier())

	res, err := uc.Run(context.Background(), env.input(fiveSegments(), 3))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Artifacts) != 3 {
		t.Fatalf("expected 3 artifacts, got %d (failures %+v)", len(res.Artifacts), res.Failures)
	}
	wantIdx := []int{0, 2, 3}
	for i, a := range res.Artifacts {
		if a.Segment.Index != wantIdx[i] {
			t.Fatalf("artifact %d: expected segment %d, got %d", i, wantIdx[i], a.Segment.Index)
		}
		if _, err := os.Stat(a.Path); err != nil {
			t.Fatalf("artifact %d missing on disk: %v", i, err)
		}
		if _, err := os.Stat(partialPath(a.Path)); !os.IsNotExist(err) {
			t.Fatalf("partial file left behind for %s", a.Path)
		}
		b, err := os.ReadFile(a.SubtitlePath)
		if err != nil {
			t.Fatalf("read subtitles: %v", err)
		}
		if !strings.Contains(string(b), "Dialogue: 0,0:00:00.00,") {
			t.Fatalf("unexpected subtitle file: %s", b)
		}
	}
	if len(res.Failures) != 0 {
		t.Fatalf("expected no failures, got %+v", res.Failures)
	}
	if got := video.probes(env.source); got != 1 {
		t.Fatalf("expected source probed once, got %d", got)
	}
	if res.Crop.X1 != 657 || res.Crop.X2 != 1264 {
		t.Fatalf("unexpected crop: %+v", res.Crop)
	}
	for _, req := range video.requests() {
		if req.Crop != res.Crop {
			t.Fatalf("expected shared crop geometry, got %+v", req.Crop)
		}
	}
}

func TestRun_RenderFailureIsolated(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	video := &fakeVideoTool{failAt: map[time.Duration]error{10 * time.Second: errors.New("exit status 1")}}
	uc := env.usecase(video, passingClassifier())

	res, err := uc.Run(context.Background(), env.input(fiveSegments(), 3))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Artifacts) != 2 || len(res.Failures) != 1 {
		t.Fatalf("expected 2 artifacts and 1 failure, got %d/%d", len(res.Artifacts), len(res.Failures))
	}
	f := res.Failures[0]
	if f.Segment.Index != 2 || f.Kind != types.KindRender || f.Step != StepEncode {
		t.Fatalf("unexpected failure: %+v", f)
	}
	if res.Artifacts[0].Segment.Index != 0 || res.Artifacts[1].Segment.Index != 3 {
		t.Fatalf("artifacts out of order: %+v", res.Artifacts)
	}
	leftovers, _ := filepath.Glob(filepath.Join(env.out, "clips", "*.partial.mp4"))
	if len(leftovers) != 0 {
		t.Fatalf("partial files left behind: %v", leftovers)
	}
}

func TestRun_NothingPasses(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	video := &fakeVideoTool{}
	uc := env.usecase(video, &fakeClassifier{})

	res, err := uc.Run(context.Background(), env.input(fiveSegments(), 3))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Artifacts) != 0 || len(res.Failures) != 0 || len(res.Scored) != 5 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if video.probes(env.source) != 0 || len(video.requests()) != 0 {
		t.Fatal("expected no media work for an empty selection")
	}
}

func TestRun_ClassificationPolicy(t *testing.T) {
	t.Parallel()
	segs := fiveSegments()

	t.Run("abort", func(t *testing.T) {
		env := newEnv(t)
		c := passingClassifier()
		c.errFor = map[string]error{segs[1].Text: errors.New("503")}
		_, err := env.usecase(&fakeVideoTool{}, c).Run(context.Background(), env.input(segs, 3))
		if types.KindOf(err) != types.KindClassification {
			t.Fatalf("expected classification error, got %v", err)
		}
	})

	t.Run("skip", func(t *testing.T) {
		env := newEnv(t)
		c := passingClassifier()
		c.errFor = map[string]error{segs[0].Text: errors.New("503")}
		in := env.input(segs, 3)
		in.OnClassifyError = highlights.ClassifySkip
		res, err := env.usecase(&fakeVideoTool{}, c).Run(context.Background(), in)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if len(res.Failures) != 1 || res.Failures[0].Kind != types.KindClassification {
			t.Fatalf("expected one classification failure, got %+v", res.Failures)
		}
		if len(res.Artifacts) != 3 || res.Artifacts[0].Segment.Index != 2 {
			t.Fatalf("expected segments 2,3,4 rendered, got %+v", res.Artifacts)
		}
	})
}

func TestRun_ZeroDurationSegment(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	segs := []types.Segment{
		{Start: 5, End: 5, Text: "amazing"},
		{Start: 6, End: 8, Text: "amazing"},
	}
	res, err := env.usecase(&fakeVideoTool{}, passingClassifier()).Run(context.Background(), env.input(segs, 3))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Artifacts) != 1 || len(res.Failures) != 1 || res.Failures[0].Step != StepRange {
		t.Fatalf("expected one range failure, got artifacts=%d failures=%+v", len(res.Artifacts), res.Failures)
	}
}

func TestRun_VerifyDuration(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	video := &fakeVideoTool{renderedDrift: 300 * time.Millisecond}
	in := env.input(fiveSegments()[:1], 1)
	in.VerifyTolerance = 100 * time.Millisecond

	res, err := env.usecase(video, passingClassifier()).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Artifacts) != 0 || len(res.Failures) != 1 || res.Failures[0].Step != StepVerify {
		t.Fatalf("expected verify failure, got %+v", res)
	}
	if _, err := os.Stat(filepath.Join(env.out, "clips", "001.mp4")); !os.IsNotExist(err) {
		t.Fatal("expected no final clip after failed verification")
	}

	video.renderedDrift = 40 * time.Millisecond
	env2 := newEnv(t)
	in2 := env2.input(fiveSegments()[:1], 1)
	in2.VerifyTolerance = 100 * time.Millisecond
	res, err = env2.usecase(video, passingClassifier()).Run(context.Background(), in2)
	if err != nil || len(res.Artifacts) != 1 {
		t.Fatalf("expected clip within tolerance, got %+v, %v", res, err)
	}
}

func TestRun_VerifyDurationSegmentPastSourceEnd(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	video := &fakeVideoTool{sourceDuration: 10 * time.Second}
	in := env.input([]types.Segment{{Start: 8, End: 10.5, Text: "amazing ending"}}, 1)
	in.VerifyTolerance = 100 * time.Millisecond

	res, err := env.usecase(video, passingClassifier()).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Artifacts) != 1 || len(res.Failures) != 0 {
		t.Fatalf("expected the clip cut at the source end to pass verification, got %+v", res)
	}
}

func TestRun_UnorderedInputIsSorted(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	segs := fiveSegments()
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	res, err := env.usecase(&fakeVideoTool{}, passingClassifier()).Run(context.Background(), env.input(segs, 3))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i := 1; i < len(res.Artifacts); i++ {
		if res.Artifacts[i-1].Segment.Start >= res.Artifacts[i].Segment.Start {
			t.Fatalf("artifacts not in transcript order: %+v", res.Artifacts)
		}
	}
}

func TestRun_WorkerBound(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	video := &fakeVideoTool{delay: 20 * time.Millisecond}
	segs := make([]types.Segment, 8)
	for i := range segs {
		segs[i] = types.Segment{Start: float64(i * 10), End: float64(i*10 + 3), Text: "amazing"}
	}
	in := env.input(segs, 8)
	in.Workers = 2
	res, err := env.usecase(video, passingClassifier()).Run(context.Background(), in)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Artifacts) != 8 {
		t.Fatalf("expected 8 artifacts, got %d", len(res.Artifacts))
	}
	if peak := video.maxInFlight.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent renders, saw %d", peak)
	}
}

func TestRun_Cancellation(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	video := &fakeVideoTool{onRender: func() { cancel() }}
	in := env.input(fiveSegments(), 3)
	in.Workers = 1

	res, err := env.usecase(video, passingClassifier()).Run(ctx, in)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(res.Artifacts) != 0 || len(res.Failures) != 3 {
		t.Fatalf("expected 3 cancelled failures, got artifacts=%d failures=%d", len(res.Artifacts), len(res.Failures))
	}
	for _, f := range res.Failures {
		if f.Kind != types.KindCancelled {
			t.Fatalf("expected cancelled failure, got %+v", f)
		}
	}
	if n := len(video.requests()); n != 1 {
		t.Fatalf("expected only the first clip to reach the encoder, got %d", n)
	}
}

func TestRun_InvalidLimit(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	_, err := env.usecase(&fakeVideoTool{}, passingClassifier()).Run(context.Background(), env.input(fiveSegments(), 0))
	if types.KindOf(err) != types.KindConfiguration {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRun_WholeSecondsCaption(t *testing.T) {
	t.Parallel()
	env := newEnv(t)
	in := env.input([]types.Segment{{Start: 1.0, End: 3.7, Text: "\"Amazing\" stuff"}}, 1)
	in.Caption = subtitles.TimingWholeSeconds
	res, err := env.usecase(&fakeVideoTool{}, passingClassifier()).Run(context.Background(), in)
	if err != nil || len(res.Artifacts) != 1 {
		t.Fatalf("run: %+v, %v", res, err)
	}
	b, err := os.ReadFile(res.Artifacts[0].SubtitlePath)
	if err != nil {
		t.Fatalf("read subtitles: %v", err)
	}
	if !strings.Contains(string(b), "Dialogue: 0,0:00:00.00,0:00:02.00,Caption,,0,0,0,,Amazing stuff") {
		t.Fatalf("unexpected cue: %s", b)
	}
}

// fiveSegments has four passing segments: 0, 2, 3, 4.
func fiveSegments() []types.Segment {
	return []types.Segment{
		{Start: 0, End: 4, Text: "this is amazing"},
		{Start: 4, End: 8, Text: "meh"},
		{Start: 10, End: 14, Text: "what an amazing save"},
		{Start: 20, End: 25, Text: "amazing again"},
		{Start: 30, End: 33, Text: "still amazing"},
	}
}

type testEnv struct {
	source string
	out    string
}

func newEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "in.mp4")
	if err := os.WriteFile(src, []byte("source"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return testEnv{source: src, out: filepath.Join(dir, "out")}
}

func (e testEnv) usecase(v ports.VideoTool, c ports.Classifier) Usecase {
	return New(Deps{Video: v, Classifier: c, Locator: dirLocator(e.out)})
}

func (e testEnv) input(segs []types.Segment, limit int) Input {
	return Input{Source: e.source, Segments: segs, Limit: limit, Workers: 2}
}

type dirLocator string

func (d dirLocator) Locate(idx int, _ types.ScoredSegment) (types.OutputTarget, error) {
	id := fmt.Sprintf("%03d", idx+1)
	return types.OutputTarget{
		ClipPath:     filepath.Join(string(d), "clips", id+".mp4"),
		SubtitlePath: filepath.Join(string(d), "subtitles", id+".ass"),
	}, nil
}

type fakeClassifier struct {
	positive map[string]bool
	errFor   map[string]error
}

func passingClassifier() *fakeClassifier {
	return &fakeClassifier{positive: map[string]bool{"amazing": true}}
}

func (f *fakeClassifier) Classify(_ context.Context, text string) (types.Sentiment, error) {
	if err := f.errFor[text]; err != nil {
		return types.Sentiment{}, err
	}
	for word := range f.positive {
		if strings.Contains(strings.ToLower(text), word) {
			return types.Sentiment{Label: "POSITIVE", Score: 0.98}, nil
		}
	}
	return types.Sentiment{Label: "NEGATIVE", Score: 0.7}, nil
}

type fakeVideoTool struct {
	failAt        map[time.Duration]error
	renderedDrift  time.Duration
	sourceDuration time.Duration
	delay          time.Duration
	onRender       func()

	mu       sync.Mutex
	reqs     []ports.RenderRequest
	probeCnt map[string]int
	inFlight atomic.Int32

	maxInFlight atomic.Int32
}

func (f *fakeVideoTool) ExtractAudioMono16k(context.Context, string, string) error { return nil }

func (f *fakeVideoTool) Probe(_ context.Context, in string) (types.MediaInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.probeCnt == nil {
		f.probeCnt = map[string]int{}
	}
	f.probeCnt[in]++
	srcDur := f.sourceDuration
	if srcDur == 0 {
		srcDur = time.Minute
	}
	for _, r := range f.reqs {
		if r.OutputPath == in {
			return types.MediaInfo{Width: 608, Height: 1080, Duration: min(r.End, srcDur) - r.Start + f.renderedDrift}, nil
		}
	}
	return types.MediaInfo{Width: 1920, Height: 1080, Duration: srcDur, FrameRate: 30}, nil
}

func (f *fakeVideoTool) RenderClip(ctx context.Context, req ports.RenderRequest) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if f.onRender != nil {
		f.onRender()
		return ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := f.failAt[req.Start]; err != nil {
		return err
	}
	return os.WriteFile(req.OutputPath, []byte("clip"), 0o644)
}

func (f *fakeVideoTool) probes(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probeCnt[path]
}

func (f *fakeVideoTool) requests() []ports.RenderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.RenderRequest(nil), f.reqs...)
}
