// Package report persists probe results as JSON records and renders them as
// text tables.
package report

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"mrnabench/bencherr"
	"mrnabench/metrics"
	"mrnabench/probe"
)

var validate = validator.New()

// Meta identifies one probing configuration; it names the result files.
type Meta struct {
	Dataset      string `json:"dataset" validate:"required,excludes=/"`
	Model        string `json:"model" validate:"required,excludes=/"`
	Overlap      int    `json:"overlap" validate:"min=0"`
	Task         string `json:"task" validate:"required"`
	TargetColumn string `json:"target_column" validate:"required,excludes=/"`
	SplitType    string `json:"split_type" validate:"required"`
}

func (m Meta) check() error {
	if err := validate.Struct(m); err != nil {
		return bencherr.Configuration("result metadata: %v", err)
	}
	return nil
}

// AllSeeds labels the aggregated multi-seed record.
const AllSeeds = "all"

// Filename is the result file name for one seed, or for the aggregate
// when seed is AllSeeds.
func Filename(m Meta, seed string) string {
	return fmt.Sprintf("result_lp_%s_%s_o%d_%s_tcol-%s_split-%s_rs-%s.json",
		m.Dataset, m.Model, m.Overlap, m.Task, m.TargetColumn, m.SplitType, seed)
}

// SeedName formats a numeric seed for Filename.
func SeedName(seed int64) string { return strconv.FormatInt(seed, 10) }

// Value is a metric that encodes NaN as JSON null.
type Value float64

func (v Value) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Value(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Value(f)
	return nil
}

// Record is one persisted result file.
type Record struct {
	RunID   string           `json:"run_id"`
	Created time.Time        `json:"created"`
	Meta    Meta             `json:"meta"`
	Seed    string           `json:"seed"`
	Metrics map[string]Value `json:"metrics"`

	// Summary holds "mean ± ci" strings on aggregate records.
	Summary map[string]string `json:"summary,omitempty"`
}

// Set converts the record's metrics back to a metrics.Set.
func (r Record) Set() metrics.Set {
	out := make(metrics.Set, len(r.Metrics))
	for k, v := range r.Metrics {
		out[k] = float64(v)
	}
	return out
}

func toValues(s metrics.Set) map[string]Value {
	out := make(map[string]Value, len(s))
	for k, v := range s {
		out[k] = Value(v)
	}
	return out
}

// Save writes the metrics of one seed to dir and returns the file path.
func Save(dir string, m Meta, seed int64, set metrics.Set) (string, error) {
	return write(dir, Record{Meta: m, Seed: SeedName(seed), Metrics: toValues(set)})
}

// SaveSummary writes the aggregate record: per-metric means plus the
// formatted "mean ± ci" strings.
func SaveSummary(dir string, m Meta, summary map[string]probe.Summary) (string, error) {
	rec := Record{
		Meta:    m,
		Seed:    AllSeeds,
		Metrics: make(map[string]Value, len(summary)),
		Summary: make(map[string]string, len(summary)),
	}
	for k, s := range summary {
		rec.Metrics[k] = Value(s.Mean)
		rec.Summary[k] = s.String()
	}
	return write(dir, rec)
}

func write(dir string, rec Record) (string, error) {
	if err := rec.Meta.check(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create results dir %s", dir)
	}
	rec.RunID = uuid.NewString()
	rec.Created = time.Now().UTC()

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encode result")
	}
	path := filepath.Join(dir, Filename(rec.Meta, rec.Seed))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}

// Load reads one result file.
func Load(path string) (Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Record{}, errors.Wrapf(err, "read %s", path)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, errors.Wrapf(err, "decode %s", path)
	}
	return rec, nil
}

// LoadSeeds reads the per-seed records of m from dir, one per seed, and
// rebuilds probe results from them.
func LoadSeeds(dir string, m Meta, seeds []int64) ([]probe.Result, error) {
	out := make([]probe.Result, 0, len(seeds))
	for _, seed := range seeds {
		rec, err := Load(filepath.Join(dir, Filename(m, SeedName(seed))))
		if err != nil {
			return nil, err
		}
		out = append(out, probe.Result{Seed: seed, Task: probe.Task(m.Task), Metrics: rec.Set()})
	}
	return out, nil
}
