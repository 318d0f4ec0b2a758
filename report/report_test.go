package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrnabench/bencherr"
	"mrnabench/metrics"
	"mrnabench/probe"
)

var meta = Meta{
	Dataset:      "go-mf",
	Model:        "orthrus",
	Overlap:      0,
	Task:         "multilabel",
	TargetColumn: "target",
	SplitType:    "homology",
}

func TestFilename(t *testing.T) {
	assert.Equal(t,
		"result_lp_go-mf_orthrus_o0_multilabel_tcol-target_split-homology_rs-2541.json",
		Filename(meta, SeedName(2541)))
	assert.Equal(t,
		"result_lp_go-mf_orthrus_o0_multilabel_tcol-target_split-homology_rs-all.json",
		Filename(meta, AllSeeds))
}

func TestSaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "lp_results")
	set := metrics.Set{"test_micro_auroc": 0.91, "test_macro_auroc": math.NaN()}

	path, err := Save(dir, meta, 7, set)
	require.NoError(t, err)
	assert.Equal(t, Filename(meta, "7"), filepath.Base(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"test_macro_auroc": null`)

	rec, err := Load(path)
	require.NoError(t, err)
	_, err = uuid.Parse(rec.RunID)
	assert.NoError(t, err)
	assert.Equal(t, meta, rec.Meta)
	assert.Equal(t, "7", rec.Seed)

	got := rec.Set()
	assert.Equal(t, 0.91, got["test_micro_auroc"])
	assert.True(t, math.IsNaN(got["test_macro_auroc"]))
}

func TestSaveSummaryAndLoadSeeds(t *testing.T) {
	dir := t.TempDir()
	var results []probe.Result
	for i, v := range []float64{0.8, 0.9} {
		seed := int64(i + 1)
		_, err := Save(dir, meta, seed, metrics.Set{"test_mse": v})
		require.NoError(t, err)
		results = append(results, probe.Result{Seed: seed, Metrics: metrics.Set{"test_mse": v}})
	}

	loaded, err := LoadSeeds(dir, meta, []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, 0.9, loaded[1].Metrics["test_mse"])

	summary := probe.Summarize(loaded, probe.DefaultCIMultiplier)
	assert.Equal(t, probe.Summarize(results, probe.DefaultCIMultiplier), summary)

	path, err := SaveSummary(dir, meta, summary)
	require.NoError(t, err)
	rec, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, AllSeeds, rec.Seed)
	assert.InDelta(t, 0.85, float64(rec.Metrics["test_mse"]), 1e-12)
	assert.True(t, strings.HasPrefix(rec.Summary["test_mse"], "0.85"))
	assert.Contains(t, rec.Summary["test_mse"], " ± ")

	_, err = LoadSeeds(dir, meta, []int64{3})
	assert.Error(t, err)
}

func TestSaveRejectsBadMeta(t *testing.T) {
	bad := meta
	bad.Dataset = ""
	_, err := Save(t.TempDir(), bad, 1, metrics.Set{})
	assert.True(t, bencherr.IsConfiguration(err))

	bad = meta
	bad.Model = "a/b"
	_, err = Save(t.TempDir(), bad, 1, metrics.Set{})
	assert.True(t, bencherr.IsConfiguration(err))
}

func TestWriteTable(t *testing.T) {
	results := []probe.Result{
		{Seed: 1, Metrics: metrics.Set{"test_mse": 0.1, "test_pearson": 0.9}},
		{Seed: 2, Metrics: metrics.Set{"test_mse": 0.3, "test_pearson": 0.7}},
	}
	res := probe.MultiResult{PerSeed: results, Summary: probe.Summarize(results, probe.DefaultCIMultiplier)}

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, meta, res))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "go-mf / orthrus")
	assert.Regexp(t, `^METRIC\s+MEAN\s+STD\s+CI\s+rs-1\s+rs-2$`, lines[1])
	assert.Regexp(t, `^test_mse\s+0\.2000\s+0\.1000\s+`, lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "test_pearson"))
}
