package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"worksync/internal/config"
)

// Setup configures the global zerolog logger: console output outside production,
// JSON lines in production, level from LOG_LEVEL.
func Setup(cfg config.Config) {
	SetupTo(cfg, os.Stderr)
}

func SetupTo(cfg config.Config, out io.Writer) {
	if cfg.Production() {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	}

	levelStr := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if levelStr == "" {
		if cfg.Production() {
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
		return
	}
	if levelStr == "warning" {
		levelStr = "warn"
	}
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Warn().Msgf("unknown LOG_LEVEL %q, defaulting to info", levelStr)
		return
	}
	zerolog.SetGlobalLevel(level)
}
