// Package reframe computes the 9:16 crop window applied to every clip of a
// source video. The math depends only on the source frame size.
package reframe

import (
	"fmt"

	"github.com/forPelevin/reelcut/internal/types"
)

const (
	// TargetHeight is the delivered clip height regardless of source resolution.
	TargetHeight = 1080

	aspectW = 9
	aspectH = 16
)

// ComputeCrop centers a window of width floor(h*9/16) on the source frame
// and clamps each edge to [0, srcW] on its own. A source narrower than the
// window therefore yields a narrower crop rather than a shifted one.
func ComputeCrop(srcW, srcH int) (types.CropGeometry, error) {
	if srcW <= 0 || srcH <= 0 {
		return types.CropGeometry{}, types.Configf("invalid source dimensions %dx%d", srcW, srcH)
	}
	w := srcH * aspectW / aspectH
	center := srcW / 2
	x1 := center - w/2
	x2 := x1 + w
	if x1 < 0 {
		x1 = 0
	}
	if x2 > srcW {
		x2 = srcW
	}
	if x2 <= x1 {
		return types.CropGeometry{}, types.Configf("empty crop window for %dx%d", srcW, srcH)
	}
	return types.CropGeometry{
		X1:           x1,
		X2:           x2,
		OutputHeight: TargetHeight,
		SourceWidth:  srcW,
		SourceHeight: srcH,
	}, nil
}

// ScaledWidth is the output width after scaling the crop to OutputHeight,
// rounded to the nearest even number as yuv420p requires.
func ScaledWidth(g types.CropGeometry) int {
	if g.SourceHeight <= 0 {
		return 0
	}
	exact := float64(g.Width()) * float64(g.OutputHeight) / float64(g.SourceHeight)
	w := int(exact/2+0.5) * 2
	if w < 2 {
		w = 2
	}
	return w
}

// Filter renders the geometry as an ffmpeg filter chain: crop first, then
// scale to the target height with the width derived from the crop aspect.
func Filter(g types.CropGeometry) string {
	return fmt.Sprintf("crop=%d:%d:%d:0,scale=%d:%d",
		g.Width(), g.SourceHeight, g.X1, ScaledWidth(g), g.OutputHeight)
}
