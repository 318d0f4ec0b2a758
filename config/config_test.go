package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrnabench/bencherr"
	"mrnabench/probe"
	"mrnabench/split"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	hp, err := cfg.Hyperparameters()
	require.NoError(t, err)
	assert.Equal(t, probe.DefaultAlphas, hp.Alphas)
	assert.Equal(t, []split.Partition{split.Test}, hp.EvalOn)
	assert.True(t, hp.DropMissing)
	assert.True(t, cfg.SplitPerSeed)

	sc, err := cfg.SplitConfig(9)
	require.NoError(t, err)
	assert.Equal(t, split.PolicyHomology, sc.Policy)
	assert.Equal(t, int64(9), sc.Seed)
	assert.Equal(t, []split.Partition{split.Train, split.Test}, sc.RequireNonEmpty)
	assert.Equal(t, "homology", cfg.SplitType())
}

func TestParseEmptyYieldsDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseOverrides(t *testing.T) {
	doc := `
model: orthrus
overlap: 0
task: multilabel
target_column: target
split:
  policy: random
  grouping: by-gene
  ratios: {train: 0.6, val: 0.0, test: 0.4}
  require_non_empty: [train, test]
probe:
  alphas: [0.1, 1]
  c: 0.5
  eval_splits: [val, test]
  drop_missing: false
seeds: [1, 2, 3]
split_per_seed: true
workers: 4
results_dir: /tmp/lp
log:
  level: debug
  json: true
`
	cfg, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, "multilabel", cfg.Task)
	assert.Equal(t, []int64{1, 2, 3}, cfg.Seeds)
	assert.True(t, cfg.SplitPerSeed)
	assert.Equal(t, "random-gene", cfg.SplitType())
	// untouched fields keep their defaults
	assert.Equal(t, probe.DefaultFolds, cfg.Probe.Folds)
	assert.Equal(t, 7, cfg.Split.Homology.K)

	hp, err := cfg.Hyperparameters()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 1}, hp.Alphas)
	assert.Equal(t, 0.5, hp.C)
	assert.Equal(t, []split.Partition{split.Validation, split.Test}, hp.EvalOn)
	assert.False(t, hp.DropMissing)

	sc, err := cfg.SplitConfig(3)
	require.NoError(t, err)
	assert.Equal(t, split.GroupByGene, sc.Grouping)
	assert.Equal(t, split.Ratios{Train: 0.6, Val: 0, Test: 0.4}, sc.Ratios)

	lc := cfg.Logging()
	assert.Equal(t, "debug", lc.Level)
	assert.True(t, lc.JSON)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown task", "task: clustering"},
		{"unknown key", "tasks: regression"},
		{"bad policy", "split: {policy: stratified}"},
		{"ratio sum", "split: {ratios: {train: 0.5, val: 0.1, test: 0.1}}"},
		{"negative ratio", "split: {ratios: {train: 1.2, val: -0.2, test: 0}}"},
		{"bad method", "split: {homology: {method: blast}}"},
		{"k too large", "split: {homology: {k: 40}}"},
		{"zero threshold", "split: {homology: {threshold: 0}}"},
		{"bad partition", "split: {require_non_empty: [dev]}"},
		{"no seeds", "seeds: []"},
		{"negative alpha", "probe: {alphas: [-1]}"},
		{"one fold", "probe: {folds: 1}"},
		{"bad eval split", "probe: {eval_splits: [holdout]}"},
		{"bad log level", "log: {level: loud}"},
		{"results without naming", "results_dir: out"},
		{"type mismatch", "workers: many"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.True(t, bencherr.IsConfiguration(err), err.Error())
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("task: reg_lin\nseeds: [5]\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, string(probe.TaskLinear), cfg.Task)

	require.NoError(t, os.WriteFile(path, []byte("split_per_seed: false\n"), 0o644))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.SplitPerSeed)

	require.NoError(t, os.WriteFile(path, []byte("task: nope\n"), 0o644))
	_, err = Load(path)
	assert.True(t, bencherr.IsConfiguration(err))
	assert.Contains(t, err.Error(), path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
