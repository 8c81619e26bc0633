package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/loamdb/loam/internal/config"
)

// Setup initializes the logger. Records go to stderr so command
// output on stdout stays clean; a non-empty file path duplicates them
// there for long-running deployments.
func Setup(level, file string) (*slog.Logger, error) {
	var writer io.Writer = os.Stderr

	if file != "" {
		f, err := os.OpenFile(config.ExpandHome(file), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		writer = io.MultiWriter(os.Stderr, f)
	}

	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler), nil
}
