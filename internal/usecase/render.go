package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forPelevin/reelcut/internal/domain/subtitles"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

// Render steps reported on KindRender failures, in pipeline order.
const (
	StepOpen     = "open"
	StepRange    = "range"
	StepCaption  = "caption"
	StepEncode   = "encode"
	StepVerify   = "verify"
	StepFinalize = "finalize"
)

// clipJob is everything needed to produce one clip.
type clipJob struct {
	source  string
	media   types.MediaInfo
	crop    types.CropGeometry
	seg     types.ScoredSegment
	caption types.CaptionSpec
	style   subtitles.Style
	target  types.OutputTarget
}

type renderer struct {
	video     ports.VideoTool
	tolerance time.Duration
}

// render writes the caption file, renders into a .partial file and renames
// it into place. On any failure nothing is left at the target paths.
func (r renderer) render(ctx context.Context, j clipJob) (types.ClipArtifact, error) {
	idx := j.seg.Index
	fail := func(step string, err error) (types.ClipArtifact, error) {
		kind := types.KindRender
		if ctx.Err() != nil {
			kind = types.KindCancelled
			err = ctx.Err()
		}
		return types.ClipArtifact{}, types.SegmentError(kind, step, idx, err)
	}

	if err := ctx.Err(); err != nil {
		return fail(StepOpen, err)
	}
	if _, err := os.Stat(j.source); err != nil {
		return fail(StepOpen, err)
	}

	start, end := seconds(j.seg.Start), seconds(j.seg.End)
	if j.seg.Start < 0 || end <= start {
		return fail(StepRange, fmt.Errorf("empty or inverted range [%.3f, %.3f)", j.seg.Start, j.seg.End))
	}
	if j.media.Duration > 0 && start >= j.media.Duration {
		return fail(StepRange, fmt.Errorf("start %.3fs is past source duration %s", j.seg.Start, j.media.Duration))
	}

	if err := os.MkdirAll(filepath.Dir(j.target.ClipPath), 0o755); err != nil {
		return fail(StepOpen, err)
	}
	if j.target.SubtitlePath != "" {
		if err := os.MkdirAll(filepath.Dir(j.target.SubtitlePath), 0o755); err != nil {
			return fail(StepCaption, err)
		}
		ass := subtitles.RenderASS(j.caption, j.style)
		if err := os.WriteFile(j.target.SubtitlePath, []byte(ass), 0o644); err != nil {
			return fail(StepCaption, err)
		}
	}

	partial := partialPath(j.target.ClipPath)
	cleanup := func() {
		_ = os.Remove(partial)
		if j.target.SubtitlePath != "" {
			_ = os.Remove(j.target.SubtitlePath)
		}
	}

	err := r.video.RenderClip(ctx, ports.RenderRequest{
		Source:       j.source,
		Crop:         j.crop,
		Start:        start,
		End:          end,
		SubtitlePath: j.target.SubtitlePath,
		OutputPath:   partial,
	})
	if err != nil {
		cleanup()
		return fail(StepEncode, err)
	}

	if r.tolerance > 0 {
		info, err := r.video.Probe(ctx, partial)
		if err != nil {
			cleanup()
			return fail(StepVerify, err)
		}
		// ffmpeg stops at the end of the source, so a segment running past
		// it yields a shorter clip.
		want := end - start
		if j.media.Duration > 0 {
			want = min(end, j.media.Duration) - start
		}
		if diff := absDuration(info.Duration - want); diff > r.tolerance {
			cleanup()
			return fail(StepVerify, fmt.Errorf("rendered duration %s differs from %s by %s (tolerance %s)",
				info.Duration, want, diff, r.tolerance))
		}
	}

	if err := os.Rename(partial, j.target.ClipPath); err != nil {
		cleanup()
		return fail(StepFinalize, err)
	}

	return types.ClipArtifact{
		Path:         j.target.ClipPath,
		SubtitlePath: j.target.SubtitlePath,
		Segment:      j.seg,
	}, nil
}

// partialPath keeps the container extension last so muxers that sniff it
// still work: clip.mp4 -> clip.partial.mp4.
func partialPath(p string) string {
	ext := filepath.Ext(p)
	return strings.TrimSuffix(p, ext) + ".partial" + ext
}

func seconds(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second)).Round(time.Millisecond)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func failureOf(seg types.ScoredSegment, err error) types.SegmentFailure {
	f := types.SegmentFailure{
		Segment: seg,
		Kind:    types.KindOf(err),
		Step:    types.StepOf(err),
		Reason:  err.Error(),
	}
	var te *types.Error
	if errors.As(err, &te) && te.Err != nil {
		f.Reason = te.Err.Error()
	}
	return f
}
