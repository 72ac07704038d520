// Package logging builds the zap loggers used by the CLI and its detached
// helper processes.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DebugEnv is the environment variable that enables debug logging.
const DebugEnv = "DESKCTL_DEBUG"

// KeepKilledEnv, when set, makes killed sessions keep their directories
// for inspection.
const KeepKilledEnv = "DESKCTL_KEEP_KILLED"

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	OutputPaths []string
}

// CLIConfig returns the configuration for interactive commands. Output goes
// to stderr so that stdout stays clean for tables and JSON.
func CLIConfig(debug bool) Config {
	if debug {
		return Config{Level: "debug", Development: true, OutputPaths: []string{"stderr"}}
	}
	return Config{Level: "warn", OutputPaths: []string{"stderr"}}
}

// HelperConfig returns the configuration for a detached helper writing to
// its own log file.
func HelperConfig(path string) Config {
	level := "info"
	if DebugEnabled() {
		level = "debug"
	}
	return Config{Level: level, OutputPaths: []string{path}}
}

// New creates a new logger with the provided configuration.
func New(cfg Config) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          "console",
		EncoderConfig:     encoderConfig(cfg.Development),
		OutputPaths:       cfg.OutputPaths,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.Development,
		DisableStacktrace: !cfg.Development,
	}

	return zapCfg.Build()
}

// NewCLI creates the logger for interactive commands, falling back to a
// no-op logger if zap cannot be configured.
func NewCLI(debug bool) *zap.Logger {
	logger, err := New(CLIConfig(debug))
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// DebugEnabled reports whether DESKCTL_DEBUG is set to a non-empty value.
func DebugEnabled() bool {
	return os.Getenv(DebugEnv) != ""
}

// KeepKilled reports whether DESKCTL_KEEP_KILLED is set to a non-empty value.
func KeepKilled() bool {
	return os.Getenv(KeepKilledEnv) != ""
}

func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, err
	}
	return l, nil
}

func encoderConfig(development bool) zapcore.EncoderConfig {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		CallerKey:      "C",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "M",
		StacktraceKey:  "S",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if development {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg
}
