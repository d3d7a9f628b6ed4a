package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog logger so that callers can write
// l.Error().Caller().Msgf(...) without threading zerolog options around.
type Logger struct {
	logger *zerolog.Logger
}

func New(isDebug bool, output io.Writer) *Logger {
	logLevel := zerolog.InfoLevel

	if isDebug {
		logLevel = zerolog.DebugLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339

	l := zerolog.New(output).With().Timestamp().Logger().Level(logLevel)

	return &Logger{logger: &l}
}

func NewConsole(isDebug bool) *Logger {
	return New(isDebug, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
}

func NewErrorConsole(isDebug bool) *Logger {
	return New(isDebug, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// NewNop returns a logger that discards everything, used by tests.
func NewNop() *Logger {
	l := zerolog.Nop()

	return &Logger{logger: &l}
}

// With returns a child logger carrying the given component name.
func (l *Logger) With(component string) *Logger {
	child := l.logger.With().Str("component", component).Logger()

	return &Logger{logger: &child}
}

func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

func (l *Logger) Fatal() *zerolog.Event {
	return l.logger.Fatal()
}
