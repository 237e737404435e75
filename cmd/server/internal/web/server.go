package web

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"thirdcoast.systems/framegrab/cmd/server/handlers/health"
	"thirdcoast.systems/framegrab/cmd/server/handlers/upload"
	"thirdcoast.systems/framegrab/internal/config"
	"thirdcoast.systems/framegrab/pkg/frames"
)

type Webserver struct {
	*echo.Echo
	conf      *config.Config
	submitter upload.Submitter
}

func NewWebserver(conf *config.Config, submitter upload.Submitter) (*Webserver, error) {
	webserver := &Webserver{
		Echo:      echo.New(),
		conf:      conf,
		submitter: submitter,
	}

	if err := webserver.setupMiddleware(); err != nil {
		return nil, err
	}

	if err := webserver.registerRoutes(); err != nil {
		return nil, err
	}

	return webserver, nil
}

func (s *Webserver) registerRoutes() error {
	s.GET("/health", health.HandleHealth())
	s.POST("/upload", upload.HandleUpload(upload.Options{
		UploadDir: s.conf.UploadDir,
		FramesDir: s.conf.FramesDir,
		MaxBytes:  s.conf.UploadMaxBytes,
		Profile:   frames.FixedProfile{Frames: s.conf.ServerFrameCount},
	}, s.submitter))
	return nil
}

func (s *Webserver) setupMiddleware() error {
	s.HideBanner = true
	s.HidePort = true
	s.Use(middleware.Recover())
	s.Use(middleware.RequestID())
	s.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.conf.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))
	s.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
			}
			slog.Info("request", fields...)
			return nil
		},
	}))
	return nil
}
