// Package zaplog adapts a *zap.Logger to errmon.Logger.
package zaplog

import (
	"fmt"
	"slices"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/strongdm/ai-errmon/pkg/errmon"
)

// Field names used for the fixed parts of every entry.
const (
	OperationKey  = "operation"
	StackTraceKey = "stack_trace"
)

// Logger writes monitor log lines to zap. Caller fields are emitted in
// sorted key order after the operation tag.
type Logger struct {
	zl *zap.Logger
}

var _ errmon.Logger = (*Logger)(nil)

// New wraps zl. A nil zl yields a no-op logger.
func New(zl *zap.Logger) *Logger {
	if zl == nil {
		zl = zap.NewNop()
	}
	return &Logger{zl: zl}
}

// Info implements errmon.Logger.
func (l *Logger) Info(message, operation string, fields map[string]any) {
	l.zl.Info(message, l.fields(operation, nil, "", fields)...)
}

// Error implements errmon.Logger.
func (l *Logger) Error(message, operation string, err error, stackTrace string, fields map[string]any) {
	l.zl.Error(message, l.fields(operation, err, stackTrace, fields)...)
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

func (l *Logger) fields(operation string, err error, stackTrace string, fields map[string]any) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+3)
	out = append(out, zap.String(OperationKey, operation))
	if err != nil {
		out = append(out, zap.Error(err))
	}
	if stackTrace != "" {
		out = append(out, zap.String(StackTraceKey, stackTrace))
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

// Build creates a process logger. Production mode writes JSON at info level
// to the given output paths (stderr when empty); development mode writes
// colored console output. level is one of debug, info, warn, error.
func Build(production bool, level string, outputPaths ...string) (*zap.Logger, error) {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
		if len(outputPaths) > 0 {
			cfg.OutputPaths = outputPaths
			cfg.ErrorOutputPaths = outputPaths
		}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}
