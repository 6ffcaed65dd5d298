// Package logging sets up the process logger: colored console output plus an
// optional rotated plain-text file.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"gravitylevel/internal/config"
)

var stdout io.Writer = os.Stdout

// ParseLevel maps a config level name onto zerolog.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel, nil
	case "DEBUG":
		return zerolog.DebugLevel, nil
	case "", "INFO":
		return zerolog.InfoLevel, nil
	case "WARN":
		return zerolog.WarnLevel, nil
	case "ERROR":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("logging: unknown level %q", s)
	}
}

// Setup builds the root logger. Extra writers get the same plain-text lines
// as the log file. The returned closer releases the log file and is never nil.
func Setup(cfg config.LogConfig, extra ...io.Writer) (zerolog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	zerolog.TimestampFunc = func() time.Time {
		return time.Now().UTC()
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: stdout, TimeFormat: time.RFC3339},
	}
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		writers = append(writers, zerolog.ConsoleWriter{Out: lj, TimeFormat: time.RFC3339, NoColor: true})
		closer = lj
	}
	for _, w := range extra {
		writers = append(writers, zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true})
	}

	log := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().Timestamp().Logger()
	log.Info().Str("loglevel", lvl.String()).Str("file", cfg.File).Msg("logging set up")
	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// EchoSink forwards the leveler's status lines to the log.
type EchoSink struct {
	Logger zerolog.Logger
}

func NewEchoSink(log zerolog.Logger) EchoSink {
	return EchoSink{Logger: log.With().Str("component", "echo").Logger()}
}

func (s EchoSink) Echo(msg string) {
	s.Logger.Info().Msg(msg)
}
