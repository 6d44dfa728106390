package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
)

const (
	FormatText = iota
	FormatJSON
)

type Config struct {
	Level  int
	Format int
	Output io.Writer
}

// Logger is a thin wrapper around zerolog so that callers do not need to
// depend on the logging backend directly.
type Logger struct {
	logger zerolog.Logger
}

func NewLogger(config Config) *Logger {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	if config.Format == FormatText {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	return &Logger{
		logger: zerolog.New(out).Level(level(config.Level)).With().Timestamp().Logger(),
	}
}

func level(l int) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithComponent returns a child logger tagged with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{logger: l.logger.With().Str("component", name).Logger()}
}

func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.logger
}

func (l *Logger) Debugf(format string, args ...any) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.logger.Info().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logger.Error().Msgf(format, args...)
}
