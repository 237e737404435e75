package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"thirdcoast.systems/framegrab/cmd/server/internal/web"
	"thirdcoast.systems/framegrab/internal/application"
	"thirdcoast.systems/framegrab/internal/config"
	"thirdcoast.systems/framegrab/internal/jobs"
	"thirdcoast.systems/framegrab/pkg/ffmpeg"
	"thirdcoast.systems/framegrab/pkg/frames"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting frame extraction server")

	conf, err := config.LoadConfig(ctx)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := application.InitLogging(os.Stderr, conf.LogLevel, conf.LogFormat)
	if err != nil {
		slog.Error("failed to configure logging", "error", err)
		os.Exit(1)
	}

	if err := application.EnsureDirectories(conf.UploadDir, conf.FramesDir); err != nil {
		slog.Error("failed to prepare directories", "error", err)
		os.Exit(1)
	}

	if _, err := application.VerifyTools(ctx, conf.FFmpegPath, conf.FFprobePath); err != nil {
		// Uploads still work without the tools; extractions will fail and be logged.
		slog.Warn("ffmpeg tools unavailable", "error", err)
	}

	runner := ffmpeg.NewRunner(conf.FFmpegPath, conf.FFprobePath, logger)
	pipeline := frames.NewRunnerPipeline(runner, frames.WithLogger(logger), frames.WithQuality(conf.JPEGQuality))

	dispatcher := jobs.NewDispatcher(ctx, pipeline, jobs.Options{
		Workers: conf.ExtractionWorkers,
		Queue:   conf.ExtractionQueue,
		Timeout: conf.ExtractionTimeout,
		Logger:  logger,
	})

	e, err := web.NewWebserver(conf, dispatcher)
	if err != nil {
		slog.Error("failed to create webserver", "error", err)
		os.Exit(1)
	}

	addr := ":" + strconv.Itoa(conf.WebServerPort)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	slog.Info("Listening", "addr", addr)
	err = e.Start(addr)
	if err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		slog.Error("server failed", "error", err)
		stop()
		_ = dispatcher.Close()
		os.Exit(1)
	}

	slog.Info("Waiting for extractions to stop", "pending", dispatcher.Pending())
	_ = dispatcher.Close()
	slog.Info("Server stopped")
}
