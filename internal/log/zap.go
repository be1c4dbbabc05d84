package log

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Logger = &ZapLogger{}

// ZapLogger is a Logger backed by a zap SugaredLogger.
type ZapLogger struct {
	lg *zap.SugaredLogger
	// nameField adds the logger name as a field; the logfmt encoder drops it.
	nameField bool
}

// NewZapLogger builds a logger from conf. Extra write syncers receive a copy
// of every message, which tests use to capture output.
func NewZapLogger(conf Config, extraWriters ...zapcore.WriteSyncer) (Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = func(ts time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(ts.UTC().Format(time.RFC3339))
	}

	var encoder zapcore.Encoder
	nameField := false
	switch conf.Format {
	case "logfmt":
		encCfg.NameKey = ""
		encoder = zaplogfmt.NewEncoder(encCfg)
		nameField = true
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	var ws zapcore.WriteSyncer
	switch conf.Output {
	case "", "stderr":
		ws = zapcore.Lock(os.Stderr)
	case "stdout":
		ws = zapcore.Lock(os.Stdout)
	case "discard":
		ws = zapcore.AddSync(nopWriter{})
	default:
		if err := os.MkdirAll(filepath.Dir(conf.Output), 0o755); err != nil {
			return nil, fmt.Errorf("creating log dir: %w", err)
		}
		f, err := os.OpenFile(conf.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		ws = zapcore.AddSync(f)
	}
	wss := zapcore.NewMultiWriteSyncer(append(extraWriters, ws)...)

	core := zapcore.NewCore(encoder, wss, toZapLevel(conf.Level))
	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	return &ZapLogger{lg: zl, nameField: nameField}, nil
}

func (l *ZapLogger) Debug(msg string, keysAndValues ...any) { l.lg.Debugw(msg, l.kv(keysAndValues)...) }
func (l *ZapLogger) Info(msg string, keysAndValues ...any)  { l.lg.Infow(msg, l.kv(keysAndValues)...) }
func (l *ZapLogger) Warn(msg string, keysAndValues ...any)  { l.lg.Warnw(msg, l.kv(keysAndValues)...) }
func (l *ZapLogger) Error(msg string, keysAndValues ...any) { l.lg.Errorw(msg, l.kv(keysAndValues)...) }

func (l *ZapLogger) kv(keysAndValues []any) []any {
	if !l.nameField {
		return keysAndValues
	}
	name := l.Name()
	if name == "" {
		return keysAndValues
	}
	return append(keysAndValues[:len(keysAndValues):len(keysAndValues)], "logger", name)
}

func (l *ZapLogger) WithKV(key string, value any) Logger {
	return &ZapLogger{lg: l.lg.With(key, value), nameField: l.nameField}
}

func (l *ZapLogger) WithName(name string) Logger {
	return &ZapLogger{lg: l.lg.Named(name), nameField: l.nameField}
}

func (l *ZapLogger) Name() string {
	return l.lg.Desugar().Name()
}

// Sync flushes buffered output.
func (l *ZapLogger) Sync() error {
	return l.lg.Sync()
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
