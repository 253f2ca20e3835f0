package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/raywall/spec-emulator/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Configure inicializa o logger global a partir da seção server.logging.
// verbose força o nível debug (flag --verbose da CLI).
func Configure(cfg config.LoggingConf, verbose bool) zerolog.Logger {
	return ConfigureOutput(cfg, verbose, os.Stdout)
}

// ConfigureOutput é Configure com destino explícito.
func ConfigureOutput(cfg config.LoggingConf, verbose bool, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	output := out
	if !cfg.Enabled {
		output = io.Discard
	} else if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		Logger()
	log.Logger = logger

	return logger
}

// WithCorrelation devolve um contexto com um logger filho marcado com o correlation id.
func WithCorrelation(ctx context.Context, corrID string) (context.Context, zerolog.Logger) {
	logger := log.With().Str("correlation_id", corrID).Logger()
	return logger.WithContext(ctx), logger
}
