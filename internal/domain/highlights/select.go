package highlights

import (
	"sort"

	"github.com/forPelevin/reelcut/internal/types"
)

// DefaultLimit is the number of clips produced per run.
const DefaultLimit = 3

// Select keeps the first limit passing segments in transcript order and
// stops scanning once the bound is reached. It never pads with failing
// segments.
func Select(scored []types.ScoredSegment, limit int) types.Selection {
	if limit <= 0 {
		return nil
	}
	out := make(types.Selection, 0, limit)
	for _, s := range scored {
		if !s.Passes {
			continue
		}
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

// EnsureOrdered returns segs sorted by start time. The input is returned
// as-is when already ordered; otherwise a stable-sorted copy is returned
// and reordered is true.
func EnsureOrdered(segs []types.Segment) (out []types.Segment, reordered bool) {
	if sort.SliceIsSorted(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start }) {
		return segs, false
	}
	out = make([]types.Segment, len(segs))
	copy(out, segs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, true
}
