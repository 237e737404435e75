// Package ffmpeg provides a composable API for building and executing ffmpeg
// and ffprobe commands.
package ffmpeg

import (
	"context"
	"strconv"
	"strings"
)

// Command represents an ffmpeg command being built.
type Command struct {
	input      string
	output     string
	postInput  []string // args after -i, before filters
	filters    []string // collected -vf filters
	outputOpts []string // muxer args, right before the output
}

// Option modifies a Command. Options are composable and order-independent
// (ffmpeg will receive args in correct order regardless of option order).
type Option interface {
	Apply(cmd *Command)
}

// OptionFunc is a function that implements Option.
type OptionFunc func(cmd *Command)

// Apply implements Option.
func (f OptionFunc) Apply(cmd *Command) { f(cmd) }

// NewCommand creates a command with input/output and applies options.
func NewCommand(input, output string, opts ...Option) *Command {
	cmd := &Command{
		input:  input,
		output: output,
	}
	for _, opt := range opts {
		opt.Apply(cmd)
	}
	return cmd
}

// Build returns the complete ffmpeg argument list.
func (c *Command) Build() []string {
	args := []string{"-hide_banner", "-y"}
	args = append(args, "-i", c.input)
	args = append(args, c.postInput...)

	if len(c.filters) > 0 {
		args = append(args, "-vf", strings.Join(c.filters, ","))
	}

	args = append(args, c.outputOpts...)
	args = append(args, c.output)

	return args
}

// Start starts the command on r. The caller must call Wait on the returned
// Process; cancelling ctx kills it.
func (c *Command) Start(ctx context.Context, r *Runner, opts StartOptions) (*Process, error) {
	return r.StartFFmpeg(ctx, c.Build(), opts)
}

// --- Frame selection ---

// Frames caps the number of video frames written (-vframes).
func Frames(n int) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.postInput = append(cmd.postInput, "-vframes", itoa(n))
	})
}

// Filter adds a video filter to the filter chain.
func Filter(f string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.filters = append(cmd.filters, f)
	})
}

// SelectEvery keeps frames whose zero-based index is a multiple of interval.
func SelectEvery(interval int) Option {
	return Filter("select='not(mod(n," + itoa(interval) + "))'")
}

// --- Output Options ---

// VSync sets the video sync method (-vsync). "0" passes frames through
// without duplicating or dropping them to match a frame rate.
func VSync(mode string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.outputOpts = append(cmd.outputOpts, "-vsync", mode)
	})
}

// FramePTS makes the image2 muxer number files by frame timestamp (-frame_pts 1).
var FramePTS Option = OptionFunc(func(cmd *Command) {
	cmd.outputOpts = append(cmd.outputOpts, "-frame_pts", "1")
})

// Format forces the output container format (-f).
func Format(name string) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.outputOpts = append(cmd.outputOpts, "-f", name)
	})
}

// Quality sets the output quality for images (-q:v).
func Quality(q int) Option {
	return OptionFunc(func(cmd *Command) {
		cmd.outputOpts = append(cmd.outputOpts, "-q:v", itoa(q))
	})
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
