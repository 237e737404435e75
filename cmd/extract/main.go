// Command extract samples frames from a local video file into a directory of
// JPEG images.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"thirdcoast.systems/framegrab/internal/application"
	"thirdcoast.systems/framegrab/pkg/ffmpeg"
	"thirdcoast.systems/framegrab/pkg/frames"
	"thirdcoast.systems/framegrab/pkg/utils/format"
)

const envPrefix = "FRAMEGRAB"

type options struct {
	Input      string        `mapstructure:"input" validate:"required"`
	Output     string        `mapstructure:"output" validate:"required"`
	Percentage float64       `mapstructure:"percentage" validate:"gt=0"`
	MaxFrames  int           `mapstructure:"maxFrames" validate:"min=0"`
	Quality    int           `mapstructure:"quality" validate:"omitempty,min=2,max=31"`
	Timeout    time.Duration `mapstructure:"timeout"`
	FFmpeg     string        `mapstructure:"ffmpeg" validate:"required"`
	FFprobe    string        `mapstructure:"ffprobe" validate:"required"`
	Verbose    bool          `mapstructure:"verbose"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	logger, err := application.NewLogger(stderr, level, "text")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	runner := ffmpeg.NewRunner(opts.FFmpeg, opts.FFprobe, logger)
	pipeline := frames.NewRunnerPipeline(runner, frames.WithLogger(logger), frames.WithTimeout(opts.Timeout), frames.WithQuality(opts.Quality))

	res, err := pipeline.Run(ctx, opts.Input, opts.Output, frames.PercentageProfile{
		Percentage: opts.Percentage,
		MaxFrames:  opts.MaxFrames,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Extracted %s frames to %s (%s, %s)\n",
		humanize.Comma(int64(res.Count())), res.OutputDir, res.Strategy, format.Elapsed(res.Elapsed))
	return 0
}

func parseOptions(args []string, usageOut io.Writer) (*options, error) {
	fs := pflag.NewFlagSet("extract", pflag.ContinueOnError)
	fs.SetOutput(usageOut)
	fs.StringP("input", "i", "", "input video file (required)")
	fs.StringP("output", "o", "./frames", "output directory for frame_<n>.jpg files")
	fs.Float64P("percentage", "p", frames.DefaultPercentage, "percentage of frames to keep")
	fs.IntP("maxFrames", "m", 0, "maximum number of frames to write (0 = no cap)")
	fs.IntP("quality", "q", 0, "JPEG quality, 2 (best) to 31 (0 = ffmpeg default)")
	fs.Duration("timeout", 0, "deadline for each ffprobe/ffmpeg run (0 = none)")
	fs.String("ffmpeg", "ffmpeg", "ffmpeg binary")
	fs.String("ffprobe", "ffprobe", "ffprobe binary")
	fs.BoolP("verbose", "v", false, "log subprocess output")
	fs.Usage = func() {
		fmt.Fprintf(usageOut, "Usage: extract --input <video> [flags]\n\nFlags:\n%s\nEvery flag can also be set as %s_<NAME>.\n",
			fs.FlagUsages(), envPrefix)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	opts := &options{}
	if err := v.Unmarshal(opts); err != nil {
		return nil, fmt.Errorf("read options: %w", err)
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("mapstructure")
	})
	if err := validate.Struct(opts); err != nil {
		return nil, optionsError(err)
	}
	return opts, nil
}

// optionsError rewrites validator output in terms of flag names.
func optionsError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	flag := "--" + fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", flag)
	case "gt":
		return fmt.Errorf("%s must be greater than %s", flag, fe.Param())
	case "min":
		return fmt.Errorf("%s must be at least %s", flag, fe.Param())
	case "max":
		return fmt.Errorf("%s must be at most %s", flag, fe.Param())
	default:
		return fmt.Errorf("invalid %s", flag)
	}
}
