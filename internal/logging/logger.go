// Package logging builds the base zap logger shared by every command.
// Subsystems scope themselves off it with Named ("session", "frontier",
// "harvest", "checkpoint", ...), so the base logger carries no name.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the base logger. Development mode uses a colored console
// encoder for watching a run live; production emits JSON with stacktraces
// kept on errors so failed checkpoints stay diagnosable after the fact.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.DisableStacktrace = false
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
