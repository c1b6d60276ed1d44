package config

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the service logger from the logging section. The returned closer
// flushes the rotating file writer and must be called on shutdown.
func NewLogger(cfg LoggingConfig) (zerolog.Logger, io.Closer) {
	var writers []io.Writer
	var closer io.Closer = io.NopCloser(nil)

	if cfg.Output == "stdout" || cfg.Output == "both" || cfg.Output == "" {
		var out io.Writer = os.Stdout
		if cfg.Format == "text" {
			out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		}
		writers = append(writers, out)
	}
	if (cfg.Output == "file" || cfg.Output == "both") && cfg.FilePath != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		writers = append(writers, rotating)
		closer = rotating
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp()
	if cfg.EnableCaller {
		ctx = ctx.Caller()
	}
	return ctx.Logger(), closer
}
