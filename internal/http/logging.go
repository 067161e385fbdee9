package http

import (
	"log/slog"
	"net/http"
)

// handlerLogger returns the request scoped logger annotated with the handler
// name and the matched route pattern.
func handlerLogger(r *http.Request, fallback *slog.Logger, handlerName string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(r.Context())
	if logger == nil {
		logger = fallback
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"handler", handlerName}
	if r.Pattern != "" {
		pairs = append(pairs, "route", r.Pattern)
	}
	pairs = append(pairs, attrs...)
	return logger.With(pairs...)
}
