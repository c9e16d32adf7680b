// Package logger builds the zap loggers used across the decode pipeline.
// Decoders log at Debug only, so a nop logger keeps the hot path silent.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewProduction returns a JSON logger suited for services embedding the
// decode pipeline
func NewProduction() (*zap.Logger, error) {

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// NewDevelopment returns a console friendly logger with Debug enabled,
// useful when tuning decoder thresholds
func NewDevelopment() (*zap.Logger, error) {

	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// Nop returns a logger that discards everything, the default for decoders
// constructed without a logger
func Nop() *zap.Logger {
	return zap.NewNop()
}
