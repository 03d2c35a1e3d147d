// Package logger builds the process-wide zerolog logger. Components derive
// sub-loggers with Component so every line carries its origin.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	once sync.Once
	base zerolog.Logger
)

type Options struct {
	// Level is a zerolog level name ("debug", "info", ...). Empty means info.
	Level string
	// File enables a rotated log file in addition to stderr.
	File string
	// Pretty switches stderr output to the human readable console writer.
	Pretty bool
	// Service is stamped on every event.
	Service string
}

// Init configures the base logger. Only the first call has an effect.
func Init(opts Options) zerolog.Logger {
	once.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano

		var out io.Writer = os.Stderr
		if opts.Pretty {
			out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		}
		if opts.File != "" {
			fileLogger := &lumberjack.Logger{
				Filename:   opts.File,
				MaxSize:    100,
				MaxBackups: 3,
				Compress:   false,
			}
			out = zerolog.MultiLevelWriter(out, fileLogger)
		}

		level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil || opts.Level == "" {
			level = zerolog.InfoLevel
		}

		service := opts.Service
		if service == "" {
			service = "studyhub"
		}

		base = zerolog.New(out).
			Level(level).
			With().
			Timestamp().
			Str("service", service).
			Logger()
	})
	return base
}

// Get returns the base logger, initialising it with defaults if needed.
func Get() zerolog.Logger {
	return Init(Options{})
}

// Component returns a sub-logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// Nop is handy for tests that do not care about log output.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
