package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the global logger writing to w.
func Setup(level string, w io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLevel(level))
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// SetupFile directs logs to <dataDir>/polychat.log. The TUI owns the terminal,
// so log lines must not reach stdout while it is running. Falls back to stderr
// when the file cannot be opened.
func SetupFile(dataDir, level string) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		Setup(level, os.Stderr)
		return
	}
	path := filepath.Join(dataDir, "polychat.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		Setup(level, os.Stderr)
		return
	}
	Setup(level, f)
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
