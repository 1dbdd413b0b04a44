// Package logging configures the process-wide zerolog logger used by every
// other package via github.com/rs/zerolog/log.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup points the global zerolog logger at a human-readable console
// writer and applies levelStr (one of zerolog's level names, e.g. "debug",
// "info", "warn"); an unrecognized level falls back to info.
func Setup(levelStr string) {
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Caller().
		Logger()
}
