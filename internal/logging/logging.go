package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"serialplotter/internal/config"
)

const (
	EnvLogLevel   = "SERIALPLOTTER_LOG_LEVEL"
	EnvLogNoColor = "SERIALPLOTTER_LOG_NOCOLOR"
)

// New builds the process logger from cfg and installs it as the zerolog
// global logger. SERIALPLOTTER_LOG_LEVEL overrides cfg.Level.
func New(app string, cfg config.Logging) zerolog.Logger {
	return NewWithWriter(app, cfg, os.Stdout)
}

func NewWithWriter(app string, cfg config.Logging, w io.Writer) zerolog.Logger {
	level, ok := ParseLevel(os.Getenv(EnvLogLevel))
	if !ok {
		level, _ = ParseLevel(cfg.Level)
	}

	out := w
	if strings.ToLower(cfg.Format) != "json" {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    os.Getenv(EnvLogNoColor) != "",
		}
	}
	logger := zerolog.New(out).Level(level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// ParseLevel maps a config level name to a zerolog level. The second result
// is false for empty or unknown names, in which case InfoLevel is returned.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
