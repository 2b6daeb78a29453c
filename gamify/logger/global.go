package logger

import (
	"log/slog"
	"time"
)

// LogEvent logs a processed business event
func LogEvent(kind string, userID string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "event"),
		slog.String("kind", kind),
		slog.String("user_id", userID),
		slog.Duration("took", duration),
	}

	if err != nil {
		slog.Error("Event failed", append(attrs, slog.Any("error", err))...)
	} else {
		slog.Info("Event applied", attrs...)
	}
}

// LogJob logs a background job run
func LogJob(name string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "job"),
		slog.String("job", name),
		slog.Duration("took", duration),
	}

	if err != nil {
		slog.Error("Job run failed", append(attrs, slog.Any("error", err))...)
	} else {
		slog.Info("Job run complete", attrs...)
	}
}

// LogSystem logs system events
func LogSystem(msg string, attrs ...any) {
	baseAttrs := []any{slog.String("type", "sys")}
	slog.Info(msg, append(baseAttrs, attrs...)...)
}

// LogError logs error events
func LogError(msg string, err error, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}
	slog.Error(msg, append(baseAttrs, attrs...)...)
}
