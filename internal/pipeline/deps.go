package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/forPelevin/reelcut/internal/acquire"
	"github.com/forPelevin/reelcut/internal/config"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/reelcut/internal/ports/adapters/lexicon"
	"github.com/forPelevin/reelcut/internal/ports/adapters/openrouter"
	"github.com/forPelevin/reelcut/internal/ports/adapters/s3source"
	"github.com/forPelevin/reelcut/internal/ports/adapters/sentimenthttp"
	"github.com/forPelevin/reelcut/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/reelcut/internal/ports/adapters/ytdlp"
	"github.com/forPelevin/reelcut/internal/types"
)

type deps struct {
	acquirer   ports.Acquirer
	video      ports.VideoTool
	asr        ports.ASR
	classifier ports.Classifier
}

func buildDeps(ctx context.Context, cfg Config) (deps, error) {
	s := cfg.Settings
	d := deps{
		acquirer:   cfg.Acquirer,
		video:      cfg.Video,
		asr:        cfg.ASR,
		classifier: cfg.Classifier,
	}
	if d.video == nil {
		d.video = ffmpeg.New(s.Tools.FFmpeg, s.Tools.FFprobe, ffmpeg.Encoding{
			Preset:       s.Render.Preset,
			CRF:          s.Render.CRF,
			AudioBitrate: s.Render.AudioBitrate,
			Threads:      s.Render.Threads,
		})
	}
	if d.asr == nil {
		d.asr = whispercpp.New(s.Tools.WhisperBin, s.Tools.WhisperModel, s.Tools.WhisperLanguage, s.Tools.WhisperThreads)
	}
	if d.classifier == nil {
		c, err := newClassifier(s)
		if err != nil {
			return deps{}, err
		}
		d.classifier = c
	}
	if d.acquirer == nil {
		r := &acquire.Router{Remote: ytdlp.New(s.Tools.YtDlp, s.Tools.YtDlpFormat)}
		// The AWS config chain is only loaded for s3:// inputs.
		if strings.HasPrefix(strings.ToLower(cfg.Input), "s3://") {
			c, err := s3source.New(ctx, s3source.Config{
				AccessKey: s.S3.AccessKey,
				SecretKey: s.S3.SecretKey,
				Region:    s.S3.Region,
				Endpoint:  s.S3.Endpoint,
			})
			if err != nil {
				return deps{}, types.NewError(types.KindAcquisition, "s3", err)
			}
			r.S3 = c
		}
		d.acquirer = r
	}
	return d, nil
}

func newClassifier(s config.Config) (ports.Classifier, error) {
	switch s.Classifier.Backend {
	case config.BackendLexicon, "":
		return lexicon.New(), nil
	case config.BackendOpenRouter:
		return openrouter.New(s.OpenRouter.APIKey, s.OpenRouter.Model, s.OpenRouter.BaseURL), nil
	case config.BackendHTTP:
		return sentimenthttp.New(sentimenthttp.Options{
			URL:               s.SentimentAPI.URL,
			APIKey:            s.SentimentAPI.APIKey,
			Timeout:           time.Duration(s.SentimentAPI.TimeoutSeconds) * time.Second,
			RequestsPerMinute: s.SentimentAPI.RequestsPerMinute,
		}), nil
	default:
		return nil, types.Configf("unknown classifier backend %q", s.Classifier.Backend)
	}
}

// ensure adapters implement ports
var _ ports.VideoTool = (*ffmpeg.Adapter)(nil)
var _ ports.ASR = (*whispercpp.Adapter)(nil)
var _ ports.Classifier = (*openrouter.Adapter)(nil)
var _ ports.Classifier = (*sentimenthttp.Adapter)(nil)
var _ ports.Classifier = (*lexicon.Classifier)(nil)
var _ ports.Acquirer = (*ytdlp.Adapter)(nil)
var _ ports.Acquirer = (*s3source.Client)(nil)
var _ ports.Acquirer = (*acquire.Router)(nil)
