// Package log provides the structured logger used across tally.
package log

import "context"

// Logger is a leveled, structured logger. keysAndValues are alternating
// keys and values, e.g. ("account", id, "count", n).
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	// WithKV returns a logger that adds key=value to every message.
	WithKV(key string, value any) Logger
	// WithName returns a logger scoped to a component name.
	WithName(name string) Logger
	Name() string
}

// Level is the minimum severity a logger emits.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config selects the encoder, level and destination. Values come from
// tally.yaml and may be overridden by the environment.
type Config struct {
	Format string `yaml:"format" env:"TALLY_LOG_FORMAT" env-default:"console" validate:"oneof=console logfmt json"`
	Level  Level  `yaml:"level" env:"TALLY_LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	Output string `yaml:"output" env:"TALLY_LOG_OUTPUT" env-default:"stderr"` // stderr, stdout or a file path
}

type contextKey struct{}

// WithLogger attaches lg to ctx.
func WithLogger(ctx context.Context, lg Logger) context.Context {
	if lg == nil {
		lg = NewNoopLogger()
	}
	return context.WithValue(ctx, contextKey{}, lg)
}

// FromContext returns the logger attached to ctx, or a NoopLogger.
func FromContext(ctx context.Context) Logger {
	if lg, ok := ctx.Value(contextKey{}).(Logger); ok {
		return lg
	}
	return NewNoopLogger()
}

var _ Logger = NoopLogger{}

// NoopLogger discards everything.
type NoopLogger struct{}

func NewNoopLogger() Logger { return NoopLogger{} }

func (NoopLogger) Debug(string, ...any)      {}
func (NoopLogger) Info(string, ...any)       {}
func (NoopLogger) Warn(string, ...any)       {}
func (NoopLogger) Error(string, ...any)      {}
func (n NoopLogger) WithKV(string, any) Logger { return n }
func (n NoopLogger) WithName(string) Logger    { return n }
func (NoopLogger) Name() string              { return "noop" }
