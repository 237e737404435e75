package config

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	// WebServer Configuration
	WebServerPort      int      `mapstructure:"WEBSERVER_PORT" validate:"min=1,max=65535"`
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS" validate:"min=1"`

	// Storage
	UploadDir     string `mapstructure:"UPLOAD_DIR" validate:"required"`
	FramesDir     string `mapstructure:"FRAMES_DIR" validate:"required"`
	UploadMaxSize string `mapstructure:"UPLOAD_MAX_SIZE" validate:"required"`

	// Extraction
	FFmpegPath        string        `mapstructure:"FFMPEG_PATH" validate:"required"`
	FFprobePath       string        `mapstructure:"FFPROBE_PATH" validate:"required"`
	ExtractionWorkers int           `mapstructure:"EXTRACTION_WORKERS" validate:"min=1"`
	ExtractionQueue   int           `mapstructure:"EXTRACTION_QUEUE" validate:"min=1"`
	ExtractionTimeout time.Duration `mapstructure:"EXTRACTION_TIMEOUT"`
	ServerFrameCount  int           `mapstructure:"SERVER_FRAME_COUNT" validate:"min=1"`
	JPEGQuality       int           `mapstructure:"JPEG_QUALITY" validate:"min=0,max=31"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"oneof=text json"`

	// UploadMaxBytes is UploadMaxSize parsed, e.g. "1GiB" -> 1073741824.
	UploadMaxBytes int64 `mapstructure:"-"`
}

// use reflect to bind environment variables based on mapstructure tags
func bindEnv(c Config) {
	val := reflect.ValueOf(c)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := val.Field(i)
		tag := field.Tag.Get("mapstructure")

		if tag != "" && tag != "-" {
			viper.BindEnv(tag)
		}

		// Handle nested structs
		if field.Type.Kind() == reflect.Struct && tag == "" {
			nestedTyp := fieldVal.Type()
			for j := 0; j < fieldVal.NumField(); j++ {
				nestedField := nestedTyp.Field(j)
				nestedTag := nestedField.Tag.Get("mapstructure")
				if nestedTag != "" && nestedTag != "-" {
					viper.BindEnv(nestedTag)
				}
			}
		}
	}
	slog.Debug("Environment variables bound", "config", c)
}

func setDefaults() {
	viper.SetDefault("WEBSERVER_PORT", 3000)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("UPLOAD_DIR", "./uploads")
	viper.SetDefault("FRAMES_DIR", "./frames")
	viper.SetDefault("UPLOAD_MAX_SIZE", "1GiB")
	viper.SetDefault("FFMPEG_PATH", "ffmpeg")
	viper.SetDefault("FFPROBE_PATH", "ffprobe")
	viper.SetDefault("EXTRACTION_WORKERS", 2)
	viper.SetDefault("EXTRACTION_QUEUE", 32)
	viper.SetDefault("EXTRACTION_TIMEOUT", 30*time.Minute)
	viper.SetDefault("SERVER_FRAME_COUNT", 200)
	viper.SetDefault("JPEG_QUALITY", 0)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
}

func LoadConfig(ctx context.Context) (*Config, error) {
	bindEnv(Config{})
	viper.AutomaticEnv()
	setDefaults()

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	maxBytes, err := humanize.ParseBytes(cfg.UploadMaxSize)
	if err != nil {
		return nil, fmt.Errorf("parse UPLOAD_MAX_SIZE %q: %w", cfg.UploadMaxSize, err)
	}
	if maxBytes == 0 {
		return nil, fmt.Errorf("UPLOAD_MAX_SIZE must be greater than zero")
	}
	cfg.UploadMaxBytes = int64(maxBytes)

	slog.Info("Loaded configuration", "config", cfg)

	return &cfg, nil
}
