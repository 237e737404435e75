package frames

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"thirdcoast.systems/framegrab/pkg/ffmpeg"
)

// FramePattern is the image2 output name; ffmpeg fills %d with the frame's
// presentation index because of -frame_pts 1.
const FramePattern = "frame_%d.jpg"

// Request is one extraction run. It is owned by a single call and not reused.
type Request struct {
	InputPath string
	OutputDir string
	Strategy  Strategy
	// Quality is the JPEG -q:v value (2 best, 31 worst). Zero leaves ffmpeg's default.
	Quality int
}

// Extractor drives ffmpeg to write selected frames as JPEGs.
type Extractor struct {
	runner *ffmpeg.Runner
	logger *slog.Logger
}

// NewExtractor returns an Extractor running ffmpeg through runner.
func NewExtractor(runner *ffmpeg.Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{runner: runner, logger: logger}
}

// OutputPattern is the image2 output path for dir. A literal '%' in dir is
// doubled so ffmpeg only expands the frame number.
func OutputPattern(dir string) string {
	return filepath.Join(strings.ReplaceAll(dir, "%", "%%"), FramePattern)
}

// Args returns the ffmpeg arguments for req.
func Args(req Request) []string {
	return command(req).Build()
}

func command(req Request) *ffmpeg.Command {
	opts := append([]ffmpeg.Option{}, req.Strategy.Options()...)
	opts = append(opts,
		ffmpeg.VSync("0"),
		ffmpeg.FramePTS,
		ffmpeg.Format("image2"),
	)
	if req.Quality > 0 {
		opts = append(opts, ffmpeg.Quality(req.Quality))
	}
	return ffmpeg.NewCommand(req.InputPath, OutputPattern(req.OutputDir), opts...)
}

// Extract creates req.OutputDir if needed and runs ffmpeg until it exits.
// ffmpeg's stderr is logged line by line at debug level as it arrives; only
// the exit status decides success.
func (e *Extractor) Extract(ctx context.Context, req Request) error {
	if req.Strategy == nil {
		return errors.New("frames: request has no strategy")
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return &FilesystemError{Op: "create output dir", Path: req.OutputDir, Err: err}
	}

	logger := e.logger.With("input", req.InputPath, "strategy", req.Strategy.Name())
	cmd := command(req)
	logger.Debug("starting ffmpeg", "args", cmd.Build())

	var stats ffmpeg.StatsTracker
	proc, err := cmd.Start(ctx, e.runner, ffmpeg.StartOptions{
		OnStderrLine: func(line string) {
			if s, ok := stats.Observe(line); ok {
				logger.Debug("ffmpeg progress", "frame", s.Frame, "fps", s.FPS, "time", s.Time, "speed", s.Speed)
				return
			}
			logger.Debug("ffmpeg", "line", line)
		},
	})
	if err != nil {
		return &ExtractionError{Input: req.InputPath, ExitCode: -1, Err: err}
	}
	logger = logger.With("pid", proc.PID())
	if err := proc.Wait(); err != nil {
		var ffErr *ffmpeg.Error
		if errors.As(err, &ffErr) {
			logger.Debug("ffmpeg failed", "command", ffErr.Command(), "stderr", proc.Stderr())
		}
		return &ExtractionError{Input: req.InputPath, ExitCode: ffmpeg.ExitCode(err), Err: err}
	}
	if last, ok := stats.Last(); ok {
		logger.Debug("ffmpeg finished", "frames_written", last.Frame, "speed", last.Speed)
	}
	return nil
}
