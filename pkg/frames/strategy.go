package frames

import (
	"fmt"

	"thirdcoast.systems/framegrab/pkg/ffmpeg"
)

// Strategy selects which decoded frames are written to disk.
//
// UniformSample and Prefix are the two implementations; they are different
// algorithms and neither is a special case of the other.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string
	// Limit is the hard -vframes cap passed to ffmpeg, 0 for none.
	Limit() int
	// Options returns the frame-selection options for the ffmpeg command.
	Options() []ffmpeg.Option
}

// UniformSample keeps every Interval-th frame (by zero-based decode index),
// stopping after MaxFrames frames when MaxFrames > 0.
type UniformSample struct {
	Interval  int
	MaxFrames int
}

// NewUniformSample builds the strategy for a plan.
func NewUniformSample(plan SamplingPlan) UniformSample {
	return UniformSample{Interval: plan.FrameInterval, MaxFrames: plan.EffectiveMaxFrames}
}

func (u UniformSample) Name() string {
	return fmt.Sprintf("uniform(every=%d,max=%d)", u.interval(), u.MaxFrames)
}

func (u UniformSample) Limit() int {
	if u.MaxFrames < 0 {
		return 0
	}
	return u.MaxFrames
}

func (u UniformSample) Options() []ffmpeg.Option {
	var opts []ffmpeg.Option
	if limit := u.Limit(); limit > 0 {
		opts = append(opts, ffmpeg.Frames(limit))
	}
	return append(opts, ffmpeg.SelectEvery(u.interval()))
}

func (u UniformSample) interval() int {
	if u.Interval < 1 {
		return 1
	}
	return u.Interval
}

// Prefix keeps the first Frames frames of the stream and nothing else.
type Prefix struct {
	Frames int
}

func (p Prefix) Name() string {
	return fmt.Sprintf("prefix(first=%d)", p.Frames)
}

func (p Prefix) Limit() int {
	return p.Frames
}

func (p Prefix) Options() []ffmpeg.Option {
	return []ffmpeg.Option{ffmpeg.Frames(p.Frames)}
}
