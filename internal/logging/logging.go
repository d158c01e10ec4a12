// Package logging builds the process-wide structured logger. Only
// cmd/transformat-worker builds it; every other package receives a
// *zap.Logger as an injected dependency,
// matching the teacher's field-injection idiom (see
// internal/app/agent/executor.go in the retrieval pack) rather than a
// global logger singleton.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger from LOG_LEVEL/LOG_FORMAT/LOG_OUTPUT style
// configuration. format "console" (case-insensitive) uses the
// human-readable console encoder; any other value, including the
// default "json", uses zap's production JSON encoder.
func New(level, format, output string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.Set(strings.ToLower(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	if strings.EqualFold(format, "console") {
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	if output != "" {
		cfg.OutputPaths = []string{output}
		cfg.ErrorOutputPaths = []string{output}
	}
	return cfg.Build()
}
