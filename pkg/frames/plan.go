// Package frames plans and runs uniform or prefix frame extraction from a
// video file into a numbered JPEG sequence.
package frames

import (
	"math"
)

// maxInterval caps the stride for vanishingly small percentages; it still
// selects at most the first frame of any real video.
const maxInterval = math.MaxInt32

// SamplingPlan is the stride and bound of one extraction.
type SamplingPlan struct {
	// FrameInterval is the stride between kept frame indices, always >= 1.
	FrameInterval int
	// EffectiveMaxFrames bounds the number of frames written. Zero means no
	// known bound, in which case ffmpeg scans the whole stream.
	EffectiveMaxFrames int
}

// Plan computes the sampling plan for a video of totalFrames frames.
//
// The interval is max(1, round(100/percentage)). The uncapped bound is
// ceil(totalFrames/interval); maxFrames > 0 caps it, maxFrames <= 0 means no cap.
// Percentages above 100 are accepted and sample every frame.
func Plan(totalFrames int, percentage float64, maxFrames int) (SamplingPlan, error) {
	interval, err := intervalFor(percentage)
	if err != nil {
		return SamplingPlan{}, err
	}
	if totalFrames < 0 {
		totalFrames = 0
	}

	effective := totalFrames / interval
	if totalFrames%interval != 0 {
		effective++
	}
	if maxFrames > 0 && maxFrames < effective {
		effective = maxFrames
	}
	return SamplingPlan{FrameInterval: interval, EffectiveMaxFrames: effective}, nil
}

// PlanUnknownTotal is Plan for a video whose frame count could not be probed.
// The only bound available is the explicit cap.
func PlanUnknownTotal(percentage float64, maxFrames int) (SamplingPlan, error) {
	interval, err := intervalFor(percentage)
	if err != nil {
		return SamplingPlan{}, err
	}
	if maxFrames < 0 {
		maxFrames = 0
	}
	return SamplingPlan{FrameInterval: interval, EffectiveMaxFrames: maxFrames}, nil
}

func intervalFor(percentage float64) (int, error) {
	if math.IsNaN(percentage) || math.IsInf(percentage, 0) || percentage <= 0 {
		return 0, ErrInvalidPercentage
	}
	q := math.Round(100 / percentage)
	switch {
	case q >= maxInterval:
		return maxInterval, nil
	case q < 1:
		return 1, nil
	}
	return int(q), nil
}
