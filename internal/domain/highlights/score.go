package highlights

import (
	"context"
	"errors"
	"strings"

	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

const (
	// PassThreshold is the classifier confidence a POSITIVE verdict must
	// strictly exceed for a segment to count as a highlight.
	PassThreshold = 0.9

	LabelPositive = "POSITIVE"
)

// ClassifyPolicy decides what happens when the classifier fails on one segment.
type ClassifyPolicy string

const (
	ClassifyAbort ClassifyPolicy = "abort"
	ClassifySkip  ClassifyPolicy = "skip"
)

// Score grades one segment. Empty text fails without calling the classifier.
func Score(ctx context.Context, seg types.Segment, idx int, c ports.Classifier) (types.ScoredSegment, error) {
	out := types.ScoredSegment{Segment: seg, Index: idx}
	text := strings.TrimSpace(seg.Text)
	if text == "" {
		return out, nil
	}
	if c == nil {
		return out, types.SegmentError(types.KindClassification, "classify", idx, errors.New("no classifier configured"))
	}

	res, err := c.Classify(ctx, text)
	if err != nil {
		return out, types.SegmentError(types.KindClassification, "classify", idx, err)
	}

	label := strings.ToUpper(strings.TrimSpace(res.Label))
	conf := clamp(res.Score, 0, 1)
	out.Label = label
	if label == LabelPositive {
		out.Score = conf
		out.Passes = conf > PassThreshold
	} else {
		out.Score = 1 - conf
	}
	return out, nil
}

// ScoreAll grades every segment in order. Under ClassifySkip a classifier
// failure marks the segment as failing and records it; under ClassifyAbort
// (the default) the first failure is returned.
func ScoreAll(
	ctx context.Context,
	segs []types.Segment,
	c ports.Classifier,
	policy ClassifyPolicy,
) ([]types.ScoredSegment, []types.SegmentFailure, error) {
	scored := make([]types.ScoredSegment, 0, len(segs))
	var failures []types.SegmentFailure
	for i, seg := range segs {
		if err := ctx.Err(); err != nil {
			return scored, failures, types.NewError(types.KindCancelled, "classify", err)
		}
		s, err := Score(ctx, seg, i, c)
		if err != nil {
			if policy != ClassifySkip || ctx.Err() != nil {
				return scored, failures, err
			}
			failures = append(failures, types.SegmentFailure{
				Segment: s,
				Kind:    types.KindClassification,
				Step:    "classify",
				Reason:  err.Error(),
			})
		}
		scored = append(scored, s)
	}
	return scored, failures, nil
}

func clamp(x, a, b float64) float64 {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
