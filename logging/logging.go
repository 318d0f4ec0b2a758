// Package logging builds the zap loggers used across the benchmark and
// names the structured fields they carry.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys. Hierarchical so log lines can be filtered by prefix.
const (
	DatasetKey   = "dataset.name"
	SamplesKey   = "data.samples"
	FeaturesKey  = "data.features"
	TargetsKey   = "data.targets"
	TaskKey      = "probe.task"
	SeedKey      = "probe.seed"
	AlphaKey     = "probe.alpha"
	PartitionKey = "split.partition"
	PolicyKey    = "split.policy"
	GroupingKey  = "split.grouping"
	GroupsKey    = "split.groups"
	EdgesKey     = "homology.edges"
	DurationKey  = "duration"
)

// Config selects the level and encoding of a logger.
type Config struct {
	Level string // debug, info, warn, error; defaults to info
	JSON  bool   // JSON lines instead of console encoding
}

// New returns a logger that writes errors to stderr and everything else to
// stdout, with RFC3339 timestamps and caller information.
func New(cfg Config) *zap.Logger {
	floor := parseLevel(cfg.Level)

	isErrorLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel && lvl >= floor
	})
	isInfoLevel := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl < zapcore.ErrorLevel && lvl >= floor
	})

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	var encoder zapcore.Encoder
	if cfg.JSON {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), isErrorLevel),
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), isInfoLevel),
	)
	return zap.New(core, zap.AddCaller())
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func parseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil || s == "" {
		return zapcore.InfoLevel
	}
	return lvl
}
