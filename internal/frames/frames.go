package frames

import (
	"fmt"

	"blenderer/internal/faults"
)

// Range is an inclusive frame interval assigned to one worker.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of frames covered by the range.
func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Validate rejects spans that cannot give every worker at least one frame.
func Validate(total, workers int) error {
	if workers < 1 {
		return faults.Wrap(faults.ErrConfiguration, "validate", "worker count", fmt.Sprintf("workers must be at least 1, got %d", workers), nil)
	}
	if total < 1 {
		return faults.Wrap(faults.ErrConfiguration, "validate", "frame count", fmt.Sprintf("scene must contain at least 1 frame, got %d", total), nil)
	}
	if total < workers {
		return faults.Wrap(faults.ErrNotEnoughUnits, "validate", "frame count", fmt.Sprintf("%d frames for %d workers, at least %d needed", total, workers, workers), nil)
	}
	return nil
}

// Partition divides [start, start+total) into exactly workers contiguous ranges.
// Each range holds ceil(total/workers) frames except the trailing ones, which are
// clamped to the overall end. Callers must run Validate first.
func Partition(start, total, workers int) []Range {
	if workers < 1 {
		return nil
	}
	chunk := (total + workers - 1) / workers
	last := start + total - 1

	ranges := make([]Range, workers)
	for i := range ranges {
		lo := start + i*chunk
		hi := lo + chunk - 1
		if hi > last {
			hi = last
		}
		if lo > last {
			lo = last
		}
		ranges[i] = Range{Start: lo, End: hi}
	}
	return ranges
}

// Span returns the range covering every frame in ranges, assuming partition order.
func Span(ranges []Range) Range {
	if len(ranges) == 0 {
		return Range{}
	}
	return Range{Start: ranges[0].Start, End: ranges[len(ranges)-1].End}
}

// Effective drops trailing ranges that collapsed onto frames already covered by
// an earlier range, so no frame is rendered twice. The result is a prefix of
// ranges and keeps partition order.
func Effective(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}
	out := make([]Range, 0, len(ranges))
	out = append(out, ranges[0])
	for _, r := range ranges[1:] {
		if r.Start <= out[len(out)-1].End {
			break
		}
		out = append(out, r)
	}
	return out
}
