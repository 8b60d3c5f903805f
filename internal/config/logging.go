package config

import (
	"io"
	"log/slog"
	"os"
)

// SetupLogging configures the global slog logger. In TUI mode logs go only
// to the optional log file (stderr would corrupt the display); in JSON mode
// logs go to stderr as JSON so stdout stays clean for data. Returns the log
// file handle (caller must close it) or nil if no file.
func SetupLogging(args Args) (*os.File, error) {
	var logFile *os.File
	if args.Log != "" {
		f, err := os.OpenFile(args.Log, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		logFile = f
	}

	var output io.Writer
	switch {
	case args.Json && logFile != nil:
		output = io.MultiWriter(logFile, os.Stderr)
	case args.Json:
		output = os.Stderr
	case logFile != nil:
		output = logFile
	default:
		output = io.Discard
	}

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(args.LogLevel),
	}
	if opts.Level == slog.LevelDebug {
		opts.AddSource = true
	}

	var handler slog.Handler
	if args.Json {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	slog.SetDefault(slog.New(handler))

	return logFile, nil
}

// parseLogLevel converts string to slog.Level
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
