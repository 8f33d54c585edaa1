// Package logging adapts zerolog to the logger interfaces of the storage
// engines, so that every component writes to the logger given to Open.
package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// Engine wraps a zerolog.Logger and satisfies badger.Logger and
// pebble.Logger.
type Engine struct {
	l zerolog.Logger
}

func NewEngine(l zerolog.Logger, engine string) *Engine {
	return &Engine{l: l.With().Str("component", "engine").Str("engine", engine).Logger()}
}

func (e *Engine) Errorf(format string, args ...interface{}) {
	e.l.Error().Msgf(trim(format), args...)
}

func (e *Engine) Warningf(format string, args ...interface{}) {
	e.l.Warn().Msgf(trim(format), args...)
}

func (e *Engine) Infof(format string, args ...interface{}) {
	e.l.Info().Msgf(trim(format), args...)
}

func (e *Engine) Debugf(format string, args ...interface{}) {
	e.l.Debug().Msgf(trim(format), args...)
}

// Fatalf logs and exits the process, which is what pebble expects of it.
func (e *Engine) Fatalf(format string, args ...interface{}) {
	e.l.Fatal().Msgf(trim(format), args...)
}

// engines terminate most of their messages with a newline
func trim(format string) string {
	return strings.TrimRight(format, "\n")
}
