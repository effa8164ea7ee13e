package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/forPelevin/reelcut/internal/config"
	"github.com/forPelevin/reelcut/internal/domain/highlights"
	"github.com/forPelevin/reelcut/internal/domain/subtitles"
	"github.com/forPelevin/reelcut/internal/logging"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/store"
	"github.com/forPelevin/reelcut/internal/types"
	"github.com/forPelevin/reelcut/internal/usecase"
)

// Config is one run_pipeline invocation. Collaborators left nil are built
// from Settings.
type Config struct {
	Input    string
	Settings config.Config
	Log      logrus.FieldLogger
	History  *store.Store
	Now      func() time.Time

	Acquirer   ports.Acquirer
	Video      ports.VideoTool
	ASR        ports.ASR
	Classifier ports.Classifier
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Input) == "" {
		return types.Configf("input is empty")
	}
	return c.Settings.Validate()
}

// Report describes a finished (possibly partial) run.
type Report struct {
	RunID        string
	RunDir       string
	ManifestPath string
	Source       string
	Segments     int
	CachedASR    bool
	Result       usecase.Result
}

// Run acquires the source, transcribes it (reusing the per-source cache),
// renders the highlight clips and writes manifest.json. Acquisition and
// transcription failures abort the run; per-clip failures are reported in
// the manifest and the returned Report.
func Run(ctx context.Context, cfg Config) (Report, error) {
	log := cfg.Log
	if log == nil {
		log = logging.Discard()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := cfg.Settings
	rep := Report{RunID: uuid.NewString()}
	started := now().UTC()
	log = log.WithField("run", rep.RunID[:8])

	rep, err := run(ctx, cfg, log, now, rep)
	if cfg.History != nil {
		if herr := cfg.History.RecordRun(context.WithoutCancel(ctx), historyRecord(cfg, s, rep, started, now().UTC(), err)); herr != nil {
			log.WithError(herr).Warn("record run history")
		}
	}
	return rep, err
}

func run(ctx context.Context, cfg Config, log logrus.FieldLogger, now func() time.Time, rep Report) (Report, error) {
	s := cfg.Settings
	d, err := buildDeps(ctx, cfg)
	if err != nil {
		return rep, err
	}

	downloads := filepath.Join(s.Paths.CacheDir, "downloads", hash(cfg.Input))
	log.WithField("input", cfg.Input).Info("acquiring source")
	src, err := d.acquirer.Acquire(ctx, cfg.Input, downloads)
	if err != nil {
		if types.KindOf(err) == types.KindUnknown {
			err = types.NewError(types.KindAcquisition, "", err)
		}
		return rep, err
	}
	rep.Source = src
	log.WithField("source", src).Info("source ready")

	tr, cached, err := transcribe(ctx, d.video, d.asr, src, s.Paths.CacheDir, log)
	if err != nil {
		return rep, err
	}
	rep.Segments = len(tr.Segments)
	rep.CachedASR = cached
	log.WithFields(logrus.Fields{"segments": len(tr.Segments), "cached": cached}).Info("transcript ready")

	rep.RunDir = buildRunOutDir(s.Paths.OutDir, cfg.Input, now())
	if err := os.MkdirAll(rep.RunDir, 0o755); err != nil {
		return rep, types.NewError(types.KindRender, "", fmt.Errorf("create run dir: %w", err))
	}
	log.WithField("dir", rep.RunDir).Info("output run dir")

	uc := usecase.New(usecase.Deps{
		Video:      d.video,
		Classifier: d.classifier,
		Locator:    newRunLayout(rep.RunDir),
		Log:        log,
	})
	res, runErr := uc.Run(ctx, usecase.Input{
		Source:   src,
		Segments: tr.Segments,
		Limit:    s.Selection.Limit,
		Workers:  s.Render.Workers,
		Caption:  subtitles.Timing(s.Captions.Timing),
		Style: subtitles.Style{
			FontName: s.Captions.FontName,
			FontSize: s.Captions.FontSize,
			MarginV:  s.Captions.MarginV,
		},
		OnClassifyError: highlights.ClassifyPolicy(s.Selection.ClassifyFailure),
		VerifyTolerance: s.VerifyTolerance(),
	})
	rep.Result = res

	m := buildManifest(cfg.Input, src, rep.RunDir, res)
	path, err := writeManifest(rep.RunDir, m)
	if err != nil {
		return rep, errors.Join(runErr, err)
	}
	rep.ManifestPath = path
	log.WithFields(logrus.Fields{
		"clips":    len(m.Clips),
		"failures": len(m.Failures),
		"file":     path,
	}).Info("manifest written")
	return rep, runErr
}

func historyRecord(cfg Config, s config.Config, rep Report, started, finished time.Time, err error) store.Run {
	r := store.Run{
		ID:         rep.RunID,
		Input:      cfg.Input,
		SourcePath: rep.Source,
		OutDir:     rep.RunDir,
		Limit:      s.Selection.Limit,
		Segments:   rep.Segments,
		StartedAt:  started,
		FinishedAt: finished,
	}
	for i, a := range rep.Result.Artifacts {
		r.Clips = append(r.Clips, store.Clip{
			Position: i,
			Segment:  a.Segment.Index,
			StartSec: a.Segment.Start,
			EndSec:   a.Segment.End,
			Score:    a.Segment.Score,
			Path:     a.Path,
			Text:     a.Segment.Text,
		})
	}
	for _, f := range rep.Result.Failures {
		r.Failures = append(r.Failures, store.Failure{
			Segment: f.Segment.Index,
			Kind:    f.Kind.String(),
			Step:    f.Step,
			Reason:  f.Reason,
		})
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.Status = store.StatusCancelled
		r.Error = err.Error()
	case err != nil:
		r.Status = store.StatusFailed
		r.Error = err.Error()
	case len(r.Failures) > 0:
		r.Status = store.StatusPartial
	default:
		r.Status = store.StatusCompleted
	}
	return r
}
