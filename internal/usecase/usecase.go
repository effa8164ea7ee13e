package usecase

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/reelcut/internal/domain/highlights"
	"github.com/forPelevin/reelcut/internal/domain/reframe"
	"github.com/forPelevin/reelcut/internal/domain/subtitles"
	"github.com/forPelevin/reelcut/internal/logging"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

type Deps struct {
	Video      ports.VideoTool
	Classifier ports.Classifier
	Locator    ports.OutputLocator
	Log        logrus.FieldLogger
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Log == nil {
		d.Log = logging.Discard()
	}
	return Usecase{d: d}
}

// Input describes one orchestration. Zero Style fields keep the default
// caption font; a positive VerifyTolerance enables the post-render duration
// check.
type Input struct {
	Source          string
	Segments        []types.Segment
	Limit           int
	Workers         int
	Caption         subtitles.Timing
	Style           subtitles.Style
	OnClassifyError highlights.ClassifyPolicy
	VerifyTolerance time.Duration
}

type Result struct {
	Media     types.MediaInfo
	Crop      types.CropGeometry
	Scored    []types.ScoredSegment
	Selection types.Selection
	Artifacts []types.ClipArtifact
	Failures  []types.SegmentFailure
}

// Run scores the transcript, selects up to Limit highlights and renders them
// concurrently. Per-segment render failures are collected in Result.Failures
// and do not fail the run. A classification failure under the abort policy
// and context cancellation are returned as errors; on cancellation the
// partial result is returned as well.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	log := u.d.Log
	var res Result

	if in.Limit <= 0 {
		return res, types.Configf("clip limit must be > 0, got %d", in.Limit)
	}
	timing := in.Caption
	if timing == "" {
		timing = subtitles.TimingExact
	}
	if !timing.Valid() {
		return res, types.Configf("unknown caption timing %q", in.Caption)
	}
	policy := in.OnClassifyError
	if policy == "" {
		policy = highlights.ClassifyAbort
	}

	segs, reordered := highlights.EnsureOrdered(in.Segments)
	if reordered {
		log.Warn("transcript segments were out of order; sorted by start time")
	}

	scored, failures, err := highlights.ScoreAll(ctx, segs, u.d.Classifier, policy)
	res.Scored = scored
	res.Failures = failures
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, err
	}
	for _, f := range failures {
		log.WithFields(logrus.Fields{"segment": f.Segment.Index, "reason": f.Reason}).Warn("classification failed; segment skipped")
	}

	sel := highlights.Select(scored, in.Limit)
	res.Selection = sel
	log.WithFields(logrus.Fields{
		"segments": len(segs),
		"selected": len(sel),
		"limit":    in.Limit,
	}).Info("highlights selected")
	if len(sel) == 0 {
		return res, nil
	}

	media, err := u.d.Video.Probe(ctx, in.Source)
	if err == nil {
		res.Media = media
		res.Crop, err = reframe.ComputeCrop(media.Width, media.Height)
	}
	if err != nil {
		if ctx.Err() != nil {
			res.Failures = append(res.Failures, cancelAll(sel, ctx.Err())...)
			return res, ctx.Err()
		}
		// Without geometry no clip can be cut; every selected segment fails at open.
		log.WithError(err).Error("probe source")
		for _, s := range sel {
			res.Failures = append(res.Failures, failureOf(s, types.SegmentError(types.KindRender, StepOpen, s.Index, err)))
		}
		return res, nil
	}
	log.WithFields(logrus.Fields{
		"src":  fmt.Sprintf("%dx%d", media.Width, media.Height),
		"crop": reframe.Filter(res.Crop),
	}).Debug("crop computed")

	style := subtitles.DefaultStyle(reframe.ScaledWidth(res.Crop), res.Crop.OutputHeight)
	if in.Style.FontName != "" {
		style.FontName = in.Style.FontName
	}
	if in.Style.FontSize > 0 {
		style.FontSize = in.Style.FontSize
	}
	if in.Style.MarginV > 0 {
		style.MarginV = in.Style.MarginV
	}

	workers := in.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(sel))

	r := renderer{video: u.d.Video, tolerance: in.VerifyTolerance}
	arts := make([]types.ClipArtifact, len(sel))
	errs := make([]error, len(sel))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, s := range sel {
		i, s := i, s
		if err := ctx.Err(); err != nil {
			errs[i] = types.SegmentError(types.KindCancelled, StepOpen, s.Index, err)
			continue
		}
		target, err := u.d.Locator.Locate(i, s)
		if err != nil {
			errs[i] = types.SegmentError(types.KindRender, StepOpen, s.Index, err)
			continue
		}
		job := clipJob{
			source:  in.Source,
			media:   media,
			crop:    res.Crop,
			seg:     s,
			caption: subtitles.BuildCaption(s, timing),
			style:   style,
			target:  target,
		}
		g.Go(func() error {
			l := log.WithFields(logrus.Fields{"segment": s.Index, "start": s.Start, "end": s.End})
			l.Info("rendering clip")
			arts[i], errs[i] = r.render(ctx, job)
			if errs[i] != nil {
				l.WithError(errs[i]).Warn("clip failed")
			} else {
				l.WithField("file", arts[i].Path).Info("clip written")
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, s := range sel {
		if errs[i] != nil {
			res.Failures = append(res.Failures, failureOf(s, errs[i]))
			continue
		}
		res.Artifacts = append(res.Artifacts, arts[i])
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func cancelAll(sel types.Selection, err error) []types.SegmentFailure {
	out := make([]types.SegmentFailure, 0, len(sel))
	for _, s := range sel {
		out = append(out, failureOf(s, types.SegmentError(types.KindCancelled, StepOpen, s.Index, err)))
	}
	return out
}
