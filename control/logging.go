// control/logging.go
// Author: momentics <momentics@gmail.com>
//
// Structured logger construction.

package control

import (
	"io"
	"log/slog"
	"strings"
)

// ParseLevel maps a config level name to slog. Unknown names report ok=false.
func ParseLevel(name string) (level slog.Level, ok bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// NewLogger builds a JSON or text logger writing to w. An unknown level falls
// back to info and is reported on the returned logger.
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	lvl, ok := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	log := slog.New(h)
	if !ok {
		log.Warn("invalid log level configured, using default level",
			"configured_level", level, "default_level", "info")
	}
	return log
}
