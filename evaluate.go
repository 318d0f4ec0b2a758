// Package mrnabench evaluates frozen sequence embeddings with linear probes
// under leakage-aware train/validation/test splits.
//
// A run loads a dataset and its row-aligned embeddings, derives groups
// (by gene or by sequence homology), partitions the samples, fits a linear
// probe on the train partition for every seed and reports held-out metrics
// with their mean and confidence interval across seeds.
package mrnabench

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"mrnabench/config"
	"mrnabench/dataset"
	"mrnabench/logging"
	"mrnabench/probe"
	"mrnabench/report"
	"mrnabench/split"
)

// Outcome is everything one Evaluate call produced.
type Outcome struct {
	Inspection dataset.Report
	// Splits holds one assignment per seed; entries are shared when the
	// split is built once.
	Splits []split.Assignment
	Result probe.MultiResult
	Files  []string // written result and split files, when persisting
}

type evalOptions struct {
	log     *zap.Logger
	grouper *split.Grouper
}

// Option configures Evaluate.
type Option func(*evalOptions)

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *evalOptions) { o.log = l }
}

// WithGrouper reuses a Grouper, and with it its k-mer profile cache, across
// calls.
func WithGrouper(g *split.Grouper) Option {
	return func(o *evalOptions) { o.grouper = g }
}

// Evaluate runs cfg over ds and emb. The inputs are read-only; results are
// written to cfg.ResultsDir only when it is set.
func Evaluate(ctx context.Context, ds *dataset.Dataset, emb *dataset.Embeddings, cfg config.Config, opts ...Option) (Outcome, error) {
	var o evalOptions
	for _, opt := range opts {
		opt(&o)
	}
	log := logging.OrNop(o.log)
	start := time.Now()

	if err := cfg.Validate(); err != nil {
		return Outcome{}, err
	}
	if emb == nil {
		return Outcome{}, errors.New("evaluate: nil embeddings")
	}
	out := Outcome{Inspection: dataset.Inspect(ds, emb)}
	if err := out.Inspection.Check(); err != nil {
		return out, err
	}

	g := o.grouper
	if g == nil {
		var err error
		if g, err = split.NewGrouper(split.WithLogger(log)); err != nil {
			return out, err
		}
	}

	splits, err := buildSplits(g, ds, cfg)
	if err != nil {
		return out, err
	}
	out.Splits = splits

	hp, err := cfg.Hyperparameters()
	if err != nil {
		return out, err
	}
	engine, err := probe.New(probe.Task(cfg.Task), hp, probe.WithLogger(log))
	if err != nil {
		return out, err
	}
	res, err := engine.RunAssignments(ctx, emb.Matrix(), ds.Targets(), splits, cfg.Seeds, cfg.Workers)
	if err != nil {
		return out, err
	}
	res.Summary = probe.Summarize(res.PerSeed, cfg.CIMultiplier)
	out.Result = res

	if cfg.ResultsDir != "" {
		files, err := persist(ds, cfg, out)
		out.Files = files
		if err != nil {
			return out, err
		}
	}

	log.Info("evaluation complete",
		zap.String(logging.DatasetKey, ds.Name),
		zap.String(logging.TaskKey, cfg.Task),
		zap.Int(logging.SamplesKey, ds.Len()),
		zap.Int(logging.FeaturesKey, emb.Dims()),
		zap.Int("probe.seeds", len(cfg.Seeds)),
		zap.Duration(logging.DurationKey, time.Since(start)),
	)
	return out, nil
}

// buildSplits returns one assignment per seed: rebuilt for each seed when
// SplitPerSeed is set, otherwise built once from the first seed.
func buildSplits(g *split.Grouper, ds *dataset.Dataset, cfg config.Config) ([]split.Assignment, error) {
	out := make([]split.Assignment, len(cfg.Seeds))
	for i, seed := range cfg.Seeds {
		if i > 0 && !cfg.SplitPerSeed {
			out[i] = out[0]
			continue
		}
		sc, err := cfg.SplitConfig(seed)
		if err != nil {
			return nil, err
		}
		if out[i], err = g.Split(ds, sc); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func persist(ds *dataset.Dataset, cfg config.Config, out Outcome) ([]string, error) {
	meta := report.Meta{
		Dataset:      ds.Name,
		Model:        cfg.Model,
		Overlap:      cfg.Overlap,
		Task:         cfg.Task,
		TargetColumn: cfg.TargetColumn,
		SplitType:    cfg.SplitType(),
	}
	var files []string
	for _, r := range out.Result.PerSeed {
		path, err := report.Save(cfg.ResultsDir, meta, r.Seed, r.Metrics)
		if err != nil {
			return files, err
		}
		files = append(files, path)
	}
	path, err := report.SaveSummary(cfg.ResultsDir, meta, out.Result.Summary)
	if err != nil {
		return files, err
	}
	files = append(files, path)

	for i, a := range out.Splits {
		if i > 0 && !cfg.SplitPerSeed {
			break
		}
		path, err := writeSplit(cfg.ResultsDir, meta, cfg.Seeds[i], a)
		if err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

// SplitFilename names the persisted assignment for one seed.
func SplitFilename(m report.Meta, seed int64) string {
	return fmt.Sprintf("split_%s_%s_rs-%d.csv", m.Dataset, m.SplitType, seed)
}

func writeSplit(dir string, m report.Meta, seed int64, a split.Assignment) (string, error) {
	path := filepath.Join(dir, SplitFilename(m, seed))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", path)
	}
	if err := a.WriteCSV(f); err != nil {
		f.Close()
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, errors.Wrapf(f.Close(), "close %s", path)
}
