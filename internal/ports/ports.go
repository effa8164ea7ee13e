package ports

import (
	"context"
	"time"

	"github.com/forPelevin/reelcut/internal/types"
)

// Acquirer resolves a locator (local path, URL, s3://...) to a local media file.
type Acquirer interface {
	Acquire(ctx context.Context, locator, destDir string) (string, error)
}

type ASR interface {
	Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error)
}

type Classifier interface {
	Classify(ctx context.Context, text string) (types.Sentiment, error)
}

type VideoTool interface {
	ExtractAudioMono16k(ctx context.Context, inMP4, outWav string) error
	Probe(ctx context.Context, inMP4 string) (types.MediaInfo, error)
	RenderClip(ctx context.Context, req RenderRequest) error
}

type RenderRequest struct {
	Source       string
	Crop         types.CropGeometry
	Start        time.Duration
	End          time.Duration
	SubtitlePath string
	OutputPath   string
}

// OutputLocator decides where the idx-th selected clip is written.
type OutputLocator interface {
	Locate(idx int, seg types.ScoredSegment) (types.OutputTarget, error)
}
