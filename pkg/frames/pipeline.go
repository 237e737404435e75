package frames

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"thirdcoast.systems/framegrab/pkg/ffmpeg"
	"thirdcoast.systems/framegrab/pkg/utils/format"
)

// Prober reads stream metadata from a video file.
type Prober interface {
	Probe(ctx context.Context, path string) (ffmpeg.VideoInfo, error)
}

// FrameExtractor writes the frames selected by a request's strategy.
type FrameExtractor interface {
	Extract(ctx context.Context, req Request) error
}

// Pipeline runs probe, plan and extract for one video at a time. It holds no
// per-run state and is safe for concurrent use.
type Pipeline struct {
	prober    Prober
	extractor FrameExtractor
	logger    *slog.Logger
	timeout   time.Duration
	quality   int
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithTimeout bounds each ffprobe and ffmpeg invocation. Zero disables the deadline.
func WithTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.timeout = d }
}

// WithQuality sets the JPEG quality passed to every extraction.
func WithQuality(q int) PipelineOption {
	return func(p *Pipeline) { p.quality = q }
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline wires a prober and an extractor.
func NewPipeline(prober Prober, extractor FrameExtractor, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		prober:    prober,
		extractor: extractor,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewRunnerPipeline is NewPipeline backed by a single ffmpeg.Runner.
func NewRunnerPipeline(r *ffmpeg.Runner, opts ...PipelineOption) *Pipeline {
	p := NewPipeline(r, nil, opts...)
	p.extractor = NewExtractor(r, p.logger)
	return p
}

// Run extracts frames from input into outputDir according to profile and
// reports what was written.
//
// A video whose frame count cannot be probed is still extracted: the profile
// is told the count is unknown and the run is bounded only by explicit caps.
func (p *Pipeline) Run(ctx context.Context, input, outputDir string, profile Profile) (*Result, error) {
	start := time.Now()
	logger := p.logger.With("input", input, "output_dir", outputDir, "profile", profile.Name())

	info, known, err := p.probe(ctx, input)
	if err != nil {
		return nil, err
	}
	if !known {
		logger.Warn("frame count unknown, extraction bounded only by explicit cap",
			"needs_frame_count", profile.NeedsFrameCount())
	}
	logger.Info("probed video",
		"frame_rate", info.FrameRate.Float(),
		"total_frames", info.TotalFrames,
		"duration", format.Timecode(info.DurationSeconds()),
		"frame_count_known", known,
	)

	strategy, err := profile.Strategy(info, known)
	if err != nil {
		return nil, err
	}

	before, err := SnapshotFrames(outputDir)
	if err != nil {
		return nil, err
	}
	if len(before) > 0 {
		logger.Warn("output directory already holds frames; only frames written by this run are reported",
			"existing", humanize.Comma(int64(len(before))))
	}

	extractCtx, cancel := p.withDeadline(ctx)
	defer cancel()
	if err := p.extractor.Extract(extractCtx, Request{
		InputPath: input,
		OutputDir: outputDir,
		Strategy:  strategy,
		Quality:   p.quality,
	}); err != nil {
		logger.Error("frame extraction failed", "strategy", strategy.Name(), "error", err)
		return nil, err
	}

	frames, stale, err := CollectNewFrames(outputDir, before)
	if err != nil {
		return nil, err
	}

	result := &Result{
		OutputDir: outputDir,
		Frames:    frames,
		Stale:     stale,
		Strategy:  strategy.Name(),
		Elapsed:   time.Since(start),
	}
	if len(frames) == 0 {
		logger.Warn("ffmpeg succeeded but wrote no frames", "strategy", strategy.Name())
	}
	logger.Info("frames extracted",
		"strategy", strategy.Name(),
		"count", humanize.Comma(int64(result.Count())),
		"stale", result.Stale,
		"size", humanize.Bytes(totalSize(frames)),
		"elapsed", format.Elapsed(result.Elapsed),
	)
	return result, nil
}

func (p *Pipeline) probe(ctx context.Context, input string) (ffmpeg.VideoInfo, bool, error) {
	probeCtx, cancel := p.withDeadline(ctx)
	defer cancel()

	info, err := p.prober.Probe(probeCtx, input)
	switch {
	case err == nil:
		return info, true, nil
	case errors.Is(err, ffmpeg.ErrUnknownFrameCount):
		return info, false, nil
	default:
		return ffmpeg.VideoInfo{}, false, err
	}
}

func (p *Pipeline) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func totalSize(paths []string) uint64 {
	var total uint64
	for _, path := range paths {
		if fi, err := os.Stat(path); err == nil {
			total += uint64(fi.Size())
		}
	}
	return total
}
