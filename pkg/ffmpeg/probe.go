package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// maxProbeOutput bounds how much ffprobe stdout is buffered. The payload for a
// single stream with two entries is a few hundred bytes.
const maxProbeOutput = 1 << 20

// ErrUnknownFrameCount reports that ffprobe did not give an integer nb_frames
// for the video stream (missing, empty or "N/A", common for mkv/webm).
var ErrUnknownFrameCount = errors.New("ffprobe: frame count not reported")

// Rational is a frame rate as ffprobe reports it, e.g. 30000/1001.
type Rational struct {
	Num int64
	Den int64
}

// Float returns Num/Den.
func (r Rational) Float() float64 {
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return strconv.FormatInt(r.Num, 10) + "/" + strconv.FormatInt(r.Den, 10)
}

// ParseRational parses "num/den" and requires a positive rate. A zero
// denominator, a zero numerator or a negative value is an error.
func ParseRational(s string) (Rational, error) {
	numStr, denStr, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rational{}, fmt.Errorf("frame rate %q: want num/den", s)
	}
	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("frame rate %q: numerator: %w", s, err)
	}
	den, err := strconv.ParseInt(denStr, 10, 64)
	if err != nil {
		return Rational{}, fmt.Errorf("frame rate %q: denominator: %w", s, err)
	}
	if den == 0 {
		return Rational{}, fmt.Errorf("frame rate %q: zero denominator", s)
	}
	if den < 0 {
		num, den = -num, -den
	}
	if num <= 0 {
		return Rational{}, fmt.Errorf("frame rate %q: must be positive", s)
	}
	return Rational{Num: num, Den: den}, nil
}

// VideoInfo is the metadata of the first video stream.
type VideoInfo struct {
	FrameRate   Rational
	TotalFrames int
}

// DurationSeconds estimates the stream length from frame count and rate.
// It is zero when either is unknown.
func (v VideoInfo) DurationSeconds() float64 {
	if v.TotalFrames <= 0 || v.FrameRate.Den == 0 {
		return 0
	}
	fps := v.FrameRate.Float()
	if fps <= 0 {
		return 0
	}
	return float64(v.TotalFrames) / fps
}

// ProbeError is returned when ffprobe fails or its output cannot be used.
type ProbeError struct {
	Path string
	// ExitCode is the ffprobe exit status; 0 when the process succeeded but the
	// output was unusable, -1 when it never exited normally.
	ExitCode int
	Err      error
}

func (e *ProbeError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("probe %s: exit code %d: %v", e.Path, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// probeOutput matches ffprobe JSON for -show_entries stream=nb_frames,r_frame_rate.
type probeOutput struct {
	Streams []struct {
		NbFrames   string `json:"nb_frames"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

// ProbeArgs returns the ffprobe arguments used by Probe.
func ProbeArgs(path string) []string {
	return []string{
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=nb_frames,r_frame_rate",
		"-of", "json",
		path,
	}
}

// Probe runs ffprobe on path and returns the frame rate and frame count of its
// first video stream.
//
// When the stream does not report a frame count, Probe returns the parsed
// frame rate together with a *ProbeError wrapping ErrUnknownFrameCount.
func (r *Runner) Probe(ctx context.Context, path string) (VideoInfo, error) {
	stdout := &cappedBuffer{limit: maxProbeOutput}
	logger := r.Logger.With("path", path)

	proc, err := r.StartFFprobe(ctx, ProbeArgs(path), StartOptions{
		Stdout: stdout,
		OnStderrLine: func(line string) {
			logger.Warn("ffprobe stderr", "line", line)
		},
	})
	if err != nil {
		return VideoInfo{}, &ProbeError{Path: path, ExitCode: -1, Err: err}
	}
	if err := proc.Wait(); err != nil {
		return VideoInfo{}, &ProbeError{Path: path, ExitCode: ExitCode(err), Err: err}
	}
	if stdout.overflow {
		return VideoInfo{}, &ProbeError{Path: path, Err: fmt.Errorf("output exceeds %d bytes", maxProbeOutput)}
	}

	info, err := ParseProbeOutput(stdout.Bytes())
	if err != nil {
		return info, &ProbeError{Path: path, Err: err}
	}
	return info, nil
}

// ParseProbeOutput decodes the JSON payload produced by ProbeArgs.
func ParseProbeOutput(data []byte) (VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return VideoInfo{}, fmt.Errorf("failed to parse output: %w", err)
	}
	if len(out.Streams) == 0 {
		return VideoInfo{}, errors.New("no video stream")
	}
	stream := out.Streams[0]

	rate, err := ParseRational(stream.RFrameRate)
	if err != nil {
		return VideoInfo{}, err
	}
	info := VideoInfo{FrameRate: rate}

	frames, err := strconv.Atoi(strings.TrimSpace(stream.NbFrames))
	if err != nil || frames < 0 {
		return info, fmt.Errorf("%w: nb_frames=%q", ErrUnknownFrameCount, stream.NbFrames)
	}
	info.TotalFrames = frames
	return info, nil
}

// cappedBuffer keeps at most limit bytes and silently drops the rest, so the
// reader keeps draining the pipe.
type cappedBuffer struct {
	bytes.Buffer
	limit    int
	overflow bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.Len()
	if room < len(p) {
		b.overflow = true
		if room > 0 {
			b.Buffer.Write(p[:room])
		}
		return len(p), nil
	}
	return b.Buffer.Write(p)
}
