// Package log wraps Uber's Zap logging library and installs it as the
// log/slog default. Components log through a *slog.Logger obtained from New
// or FromContext.
//
// See the Zap docs for more details: https://pkg.go.dev/go.uber.org/zap
package log

import (
	golog "log"
	"log/slog"
	"strings"

	"github.com/blendle/zapdriver"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// LoggingEnv is used to represent a specific configuration used by a given
// environment.
type LoggingEnv string

// String implements the Stringer interface.
func (e LoggingEnv) String() string {
	return string(e)
}

const (
	LoggingEnvDev  LoggingEnv = "dev"
	LoggingEnvProd LoggingEnv = "prod"
)

// Options select the encoder and minimum level of the logger.
type Options struct {
	Env    string
	Silent bool // warnings and errors only
	Debug  bool // takes precedence over Silent
}

// Level maps the options onto a zap level.
func (o Options) Level() zapcore.Level {
	switch {
	case o.Debug:
		return zapcore.DebugLevel
	case o.Silent:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// SlogLevel is Level expressed as a slog level.
func (o Options) SlogLevel() slog.Level {
	switch o.Level() {
	case zapcore.DebugLevel:
		return slog.LevelDebug
	case zapcore.WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// Initialize builds the zap logger described by opts and makes slog.Default
// write to it.
//
// "prod" uses zapdriver's production configuration (JSON, Stackdriver
// field names); anything else uses zap's development console encoder.
func Initialize(opts Options) *zap.Logger {
	var (
		config zap.Config
		logger *zap.Logger
		err    error
	)
	switch strings.ToLower(opts.Env) {
	case LoggingEnvProd.String():
		config = zapdriver.NewProductionConfig()
		// Make sure sampling is disabled.
		config.Sampling = nil
		config.Level = zap.NewAtomicLevelAt(opts.Level())
		logger, err = config.Build(zapdriver.WrapCore())
	case LoggingEnvDev.String():
		fallthrough
	default:
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(opts.Level())
		// Stage failures are expected outcomes, not programming errors.
		config.DisableStacktrace = true
		logger, err = config.Build()
	}
	if err != nil {
		golog.Panic(err)
	}
	zap.RedirectStdLog(logger)

	slog.SetDefault(slog.New(zapslog.NewHandler(logger.Core(), zapslog.WithCaller(opts.Debug))))

	return logger
}
