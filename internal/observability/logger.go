package observability

import (
	"log/slog"
	"os"
)

// NewLogger returns a JSON logger stamped with the service name. Records
// logged with a span in context carry trace_id and span_id.
func NewLogger(env, service string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewTraceHandler(handler)).With("service", service)
}
