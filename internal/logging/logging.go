package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"authcore/internal/config"
)

// Setup builds the process logger from config and installs it as the slog
// default. The returned closer flushes and closes the rotating file writer
// when file logging is enabled.
func Setup(cfg config.LogConfig) (*slog.Logger, func(), error) {
	out := io.Writer(os.Stdout)
	closer := func() {}

	if cfg.File != "" {
		rw, err := NewRotatingWriter(cfg.File, cfg.MaxSizeMB, cfg.MaxBackups)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(os.Stdout, rw)
		closer = func() { _ = rw.Close() }
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closer, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
