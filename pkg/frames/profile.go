package frames

import (
	"fmt"

	"thirdcoast.systems/framegrab/pkg/ffmpeg"
)

const (
	// DefaultServerFrames is the prefix length used for uploads.
	DefaultServerFrames = 200
	// DefaultPercentage samples every frame.
	DefaultPercentage = 100
)

// Profile turns probed metadata into a selection Strategy.
type Profile interface {
	Name() string
	// NeedsFrameCount reports whether Strategy uses info.TotalFrames.
	NeedsFrameCount() bool
	// Strategy picks frames for a video. frameCountKnown is false when the
	// prober could not report a frame count.
	Strategy(info ffmpeg.VideoInfo, frameCountKnown bool) (Strategy, error)
}

// FixedProfile is the upload policy: the first Frames frames, regardless of
// the video's length or any percentage.
type FixedProfile struct {
	Frames int
}

// ServerProfile returns the fixed 200-frame prefix profile.
func ServerProfile() FixedProfile {
	return FixedProfile{Frames: DefaultServerFrames}
}

func (p FixedProfile) Name() string          { return "fixed" }
func (p FixedProfile) NeedsFrameCount() bool { return false }

func (p FixedProfile) Strategy(ffmpeg.VideoInfo, bool) (Strategy, error) {
	if p.Frames < 1 {
		return nil, fmt.Errorf("frames: fixed profile needs at least 1 frame, got %d", p.Frames)
	}
	return Prefix{Frames: p.Frames}, nil
}

// PercentageProfile is the CLI policy: keep Percentage percent of frames,
// uniformly spaced, and at most MaxFrames when MaxFrames > 0.
type PercentageProfile struct {
	Percentage float64
	MaxFrames  int
}

func (p PercentageProfile) Name() string          { return "percentage" }
func (p PercentageProfile) NeedsFrameCount() bool { return true }

func (p PercentageProfile) Strategy(info ffmpeg.VideoInfo, frameCountKnown bool) (Strategy, error) {
	var (
		plan SamplingPlan
		err  error
	)
	if frameCountKnown {
		plan, err = Plan(info.TotalFrames, p.Percentage, p.MaxFrames)
	} else {
		plan, err = PlanUnknownTotal(p.Percentage, p.MaxFrames)
	}
	if err != nil {
		return nil, err
	}
	return NewUniformSample(plan), nil
}
