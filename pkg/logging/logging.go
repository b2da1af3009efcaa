// Package logging builds the process logger: a zap core exposed as a
// *slog.Logger through zapr and logr.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// slog.LevelDebug reaches zap as level -4, below zap's own DebugLevel.
const debugLevel = zapcore.Level(slog.LevelDebug)

// Options configures New.
type Options struct {
	Level  string // debug, info or error
	Format string // console or json
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New creates a logger writing to opts.Output.
func New(opts Options) (*slog.Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var enc zapcore.Encoder
	switch opts.Format {
	case "json":
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = levelEncoder(zapcore.LowercaseLevelEncoder)
		enc = zapcore.NewJSONEncoder(cfg)
	case "console", "":
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		cfg.EncodeLevel = levelEncoder(zapcore.CapitalLevelEncoder)
		cfg.CallerKey = ""
		enc = zapcore.NewConsoleEncoder(cfg)
	default:
		return nil, fmt.Errorf("logging: unsupported format %q", opts.Format)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(out), zap.NewAtomicLevelAt(level))
	return FromZap(zap.New(core)), nil
}

// FromZap exposes zl as a *slog.Logger.
func FromZap(zl *zap.Logger) *slog.Logger {
	return slog.New(logr.ToSlogHandler(zapr.NewLogger(zl)))
}

func parseLevel(s string) (zapcore.Level, error) {
	switch s {
	case "debug":
		return debugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("logging: unsupported level %q", s)
	}
}

// levelEncoder renders the verbosity levels slog debug records arrive with as
// plain debug.
func levelEncoder(base zapcore.LevelEncoder) zapcore.LevelEncoder {
	return func(l zapcore.Level, pae zapcore.PrimitiveArrayEncoder) {
		if l < zapcore.DebugLevel {
			l = zapcore.DebugLevel
		}
		base(l, pae)
	}
}
