// Package logging adapts zerolog to the peerchat.Logger interface.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/coregx/peerchat"
)

// Zerolog implements peerchat.Logger on top of a zerolog.Logger.
type Zerolog struct {
	log zerolog.Logger
}

// NewZerolog wraps an existing zerolog.Logger.
func NewZerolog(log zerolog.Logger) *Zerolog {
	return &Zerolog{log: log}
}

// New builds a timestamped logger writing to w. Development mode uses the
// human-readable console writer; otherwise lines are JSON.
func New(w io.Writer, development bool) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	if development {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// Debugf implements peerchat.Logger.
func (z *Zerolog) Debugf(format string, args ...interface{}) {
	z.log.Debug().Msg(fmt.Sprintf(format, args...))
}

// Infof implements peerchat.Logger.
func (z *Zerolog) Infof(format string, args ...interface{}) {
	z.log.Info().Msg(fmt.Sprintf(format, args...))
}

// Warnf implements peerchat.Logger.
func (z *Zerolog) Warnf(format string, args ...interface{}) {
	z.log.Warn().Msg(fmt.Sprintf(format, args...))
}

// Errorf implements peerchat.Logger.
func (z *Zerolog) Errorf(format string, args ...interface{}) {
	z.log.Error().Msg(fmt.Sprintf(format, args...))
}

// Info implements peerchat.Logger.
func (z *Zerolog) Info(message string) {
	z.log.Info().Msg(message)
}

var _ peerchat.Logger = (*Zerolog)(nil)
