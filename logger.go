package main

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global logger
var logger *zap.SugaredLogger

// initLogger replaces the global logger with one built from config. Bad
// values degrade to sane defaults; a proxy must not refuse to start over a
// logging knob.
func initLogger(cfg LoggingConfig) {
	level := zap.InfoLevel
	if cfg.Level != "" {
		if parsed, err := zapcore.ParseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}

	encoding := "console"
	if strings.EqualFold(cfg.Format, "json") {
		encoding = "json"
	}

	output := cfg.OutputPath
	if output == "" {
		output = "stderr"
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    !cfg.Caller,
	}

	var options []zap.Option
	if cfg.Caller {
		options = append(options, zap.AddCallerSkip(1))
	}

	built, err := zapCfg.Build(options...)
	if err != nil {
		// Unopenable output path; fall back to plain production logging
		built = zap.Must(zap.NewProduction())
		built.Sugar().Warnf("logging config rejected, using defaults: %v", err)
	}

	logger = built.Sugar()
}
