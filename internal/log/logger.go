// Package log provides structured logging for the agent's own goroutines.
//
// Most log lines come from the sender and eviction goroutines. Reporting
// calls from application code log on the caller's goroutine only when they
// reject an invalid argument (a warning) or fail to register a session; the
// write is synchronous on that goroutine.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level  string    // optional log level ("debug", "info", ...)
	Output io.Writer // optional writer (defaults to os.Stdout)
	Agent  string    // optional agent/application name attached to every entry
}

var (
	once sync.Once
	base zerolog.Logger
)

// Configure initializes the global zerolog logger exactly once.
func Configure(cfg Config) {
	once.Do(func() {
		level := zerolog.InfoLevel
		if cfg.Level != "" {
			if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
				level = parsed
			}
		} else if env := os.Getenv("OPENKIT_LOG_LEVEL"); env != "" {
			if parsed, err := zerolog.ParseLevel(env); err == nil {
				level = parsed
			}
		}
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = time.RFC3339

		writer := cfg.Output
		if writer == nil {
			writer = os.Stdout
		}

		agent := cfg.Agent
		if agent == "" {
			agent = "openkit"
		}

		base = zerolog.New(writer).With().
			Timestamp().
			Str("agent", agent).
			Logger()
	})
}

func logger() zerolog.Logger {
	Configure(Config{})
	return base
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) *zerolog.Logger {
	l := logger().With().Str("component", component).Logger()
	return &l
}
