package logging

import (
	"io"
	"log/slog"
	"os"

	"pelorus/internal/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the process logger. With LOG_FILE set the stream goes through
// a size-rotated file, otherwise to stderr.
func New(cfg config.Config) *slog.Logger {
	var writer io.Writer = os.Stderr
	if cfg.LogFile != "" {
		writer = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
	}
	opts := slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	return slog.New(slog.NewJSONHandler(writer, &opts))
}

func parseLevel(level string) slog.Level {
	switch level {
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
