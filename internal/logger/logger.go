package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/consultation-booking/internal/config"
)

// NewLogger creates and configures a new slog.Logger writing JSON to stdout
func NewLogger(cfg *config.Config) *slog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := parseLevel(cfg.Logging.Level)

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source code location to log output
		AddSource: level == slog.LevelDebug,
	}

	logger := slog.New(slog.NewJSONHandler(w, opts)).With("app", cfg.Application.Name, "env", cfg.Application.Env)

	logger.Info("logger initialized", "level", level)

	return logger
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
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

// MaskEmail keeps the first two characters of the local part, e.g. "ja***@example.com".
// Customer addresses are logged through this helper only.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "***"
	}
	local, domain := email[:at], email[at:]
	if len(local) > 2 {
		local = local[:2]
	}
	return local + "***" + domain
}
