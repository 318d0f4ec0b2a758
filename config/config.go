// Package config loads benchmark run configuration from YAML.
package config

import (
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"mrnabench/bencherr"
	"mrnabench/logging"
	"mrnabench/probe"
	"mrnabench/split"
)

var validate = validator.New()

// Config describes one probing run over a dataset and its embeddings.
type Config struct {
	// Model and Overlap describe the embeddings; they only name result files.
	Model   string `yaml:"model"`
	Overlap int    `yaml:"overlap" validate:"min=0"`

	Task         string `yaml:"task" validate:"required,oneof=regression reg_ridge reg_lin classification multilabel"`
	TargetColumn string `yaml:"target_column"`

	Split SplitConfig `yaml:"split"`
	Probe ProbeConfig `yaml:"probe"`

	Seeds        []int64 `yaml:"seeds" validate:"min=1"`
	SplitPerSeed bool    `yaml:"split_per_seed"` // rebuild the split for every seed
	Workers      int     `yaml:"workers" validate:"min=0"`
	CIMultiplier float64 `yaml:"ci_multiplier" validate:"gt=0"`

	// ResultsDir, when set, receives per-seed and aggregate result files.
	ResultsDir string `yaml:"results_dir"`

	Log LogConfig `yaml:"log"`
}

// SplitConfig mirrors split.Config.
type SplitConfig struct {
	Policy          string         `yaml:"policy" validate:"oneof=random homology predefined"`
	Grouping        string         `yaml:"grouping" validate:"omitempty,oneof=none by-gene by-homology"`
	Ratios          RatioConfig    `yaml:"ratios"`
	RequireNonEmpty []string       `yaml:"require_non_empty" validate:"dive,oneof=train val validation test"`
	Homology        HomologyConfig `yaml:"homology"`
}

// RatioConfig holds target partition fractions.
type RatioConfig struct {
	Train float64 `yaml:"train" validate:"gte=0,lte=1"`
	Val   float64 `yaml:"val" validate:"gte=0,lte=1"`
	Test  float64 `yaml:"test" validate:"gte=0,lte=1"`
}

// HomologyConfig mirrors split.HomologyOptions.
type HomologyConfig struct {
	Method    string  `yaml:"method" validate:"oneof=kmer levenshtein"`
	K         int     `yaml:"k" validate:"min=1,max=31"`
	Threshold float64 `yaml:"threshold" validate:"gt=0,lte=1"`
	LinkGenes bool    `yaml:"link_genes"`
	Workers   int     `yaml:"workers" validate:"min=0"`
}

// ProbeConfig mirrors probe.Hyperparameters.
type ProbeConfig struct {
	Alphas      []float64 `yaml:"alphas" validate:"min=1,dive,gt=0"`
	Folds       int       `yaml:"folds" validate:"min=2"`
	C           float64   `yaml:"c" validate:"gt=0"`
	MaxIter     int       `yaml:"max_iter" validate:"min=1"`
	Tol         float64   `yaml:"tol" validate:"gt=0"`
	Threshold   float64   `yaml:"threshold" validate:"gt=0,lt=1"`
	EvalSplits  []string  `yaml:"eval_splits" validate:"min=1,dive,oneof=train val validation test"`
	DropMissing bool      `yaml:"drop_missing"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
}

// DefaultSeed is the seed used when none are configured.
const DefaultSeed = 2541

// Default returns a homology-split regression run with the standard probe
// grid and a single seed. Each seed gets its own split.
func Default() Config {
	return Config{
		Task: string(probe.TaskRegression),
		Split: SplitConfig{
			Policy:          string(split.PolicyHomology),
			Grouping:        string(split.GroupNone),
			Ratios:          RatioConfig{Train: 0.7, Val: 0.15, Test: 0.15},
			RequireNonEmpty: []string{"train", "test"},
			Homology: HomologyConfig{
				Method:    string(split.MethodKmer),
				K:         7,
				Threshold: 0.5,
			},
		},
		Probe: ProbeConfig{
			Alphas:      append([]float64(nil), probe.DefaultAlphas...),
			Folds:       probe.DefaultFolds,
			C:           probe.DefaultC,
			MaxIter:     probe.DefaultMaxIter,
			Tol:         probe.DefaultTol,
			Threshold:   0.5,
			EvalSplits:  []string{"test"},
			DropMissing: true,
		},
		Seeds:        []int64{DefaultSeed},
		SplitPerSeed: true,
		CIMultiplier: probe.DefaultCIMultiplier,
		Log:          LogConfig{Level: "info"},
	}
}

// Load reads and validates a YAML file on top of Default.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "open config %s", path)
	}
	defer f.Close()
	cfg, err := Parse(f)
	return cfg, errors.WithMessagef(err, "config %s", path)
}

// Parse decodes YAML on top of Default, rejecting unknown keys, and
// validates the result. An empty document yields the defaults.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, bencherr.Configuration("decode config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return bencherr.Configuration("invalid config: %v", err)
	}
	if _, err := c.SplitConfig(0); err != nil {
		return err
	}
	if c.ResultsDir != "" && (c.Model == "" || c.TargetColumn == "") {
		return bencherr.Configuration("results_dir needs model and target_column to name result files")
	}
	return nil
}

func parsePartitions(names []string) ([]split.Partition, error) {
	out := make([]split.Partition, 0, len(names))
	for _, n := range names {
		p, err := split.ParsePartition(n)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// SplitConfig converts the split section for one seed.
func (c Config) SplitConfig(seed int64) (split.Config, error) {
	req, err := parsePartitions(c.Split.RequireNonEmpty)
	if err != nil {
		return split.Config{}, err
	}
	sc := split.Config{
		Policy:   split.Policy(c.Split.Policy),
		Grouping: split.Mode(c.Split.Grouping),
		Ratios: split.Ratios{
			Train: c.Split.Ratios.Train,
			Val:   c.Split.Ratios.Val,
			Test:  c.Split.Ratios.Test,
		},
		Seed: seed,
		Homology: split.HomologyOptions{
			Method:    split.Method(c.Split.Homology.Method),
			Threshold: c.Split.Homology.Threshold,
			K:         c.Split.Homology.K,
			LinkGenes: c.Split.Homology.LinkGenes,
			Workers:   c.Split.Homology.Workers,
		},
		RequireNonEmpty: req,
	}
	if sc.Policy != split.PolicyPredefined {
		if err := sc.Ratios.Validate(); err != nil {
			return split.Config{}, err
		}
	}
	return sc, nil
}

// Hyperparameters converts the probe section.
func (c Config) Hyperparameters() (probe.Hyperparameters, error) {
	eval, err := parsePartitions(c.Probe.EvalSplits)
	if err != nil {
		return probe.Hyperparameters{}, err
	}
	return probe.Hyperparameters{
		Alphas:      append([]float64(nil), c.Probe.Alphas...),
		Folds:       c.Probe.Folds,
		C:           c.Probe.C,
		MaxIter:     c.Probe.MaxIter,
		Tol:         c.Probe.Tol,
		Threshold:   c.Probe.Threshold,
		EvalOn:      eval,
		DropMissing: c.Probe.DropMissing,
	}, nil
}

// Logging converts the log section.
func (c Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, JSON: c.Log.JSON}
}

// SplitType names the split in result files: the policy, qualified by the
// grouping for random splits.
func (c Config) SplitType() string {
	if c.Split.Policy == string(split.PolicyRandom) && c.Split.Grouping != "" && c.Split.Grouping != string(split.GroupNone) {
		return c.Split.Policy + "-" + strings.ReplaceAll(c.Split.Grouping, "by-", "")
	}
	return c.Split.Policy
}
