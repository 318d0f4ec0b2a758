// Package split derives leakage-preventing groups over Samples and
// partitions a dataset into train/validation/test under a chosen policy.
package split

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"mrnabench/bencherr"
	"mrnabench/dataset"
	"mrnabench/logging"
)

// Mode selects how samples are grouped before splitting.
type Mode string

const (
	GroupNone       Mode = "none"
	GroupByGene     Mode = "by-gene"
	GroupByHomology Mode = "by-homology"
)

// DefaultKmerCacheSize bounds the number of memoised k-mer profiles.
const DefaultKmerCacheSize = 1 << 14

// Grouper computes group keys. It owns a k-mer profile cache keyed by
// sequence content, so repeated homology groupings over the same dataset
// (different thresholds, different seeds) do not re-tokenise sequences.
// A Grouper is safe for concurrent use.
type Grouper struct {
	log   *zap.Logger
	kmers *lru.Cache
}

// Option configures a Grouper.
type Option func(*groupOptions)

type groupOptions struct {
	log       *zap.Logger
	cacheSize int
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *groupOptions) { o.log = l }
}

// WithCacheSize sets the k-mer profile cache capacity.
func WithCacheSize(n int) Option {
	return func(o *groupOptions) { o.cacheSize = n }
}

// NewGrouper builds a Grouper.
func NewGrouper(opts ...Option) (*Grouper, error) {
	o := groupOptions{cacheSize: DefaultKmerCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cacheSize <= 0 {
		return nil, bencherr.Configuration("k-mer cache size must be positive, got %d", o.cacheSize)
	}
	cache, err := lru.New(o.cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "k-mer cache")
	}
	return &Grouper{log: logging.OrNop(o.log), kmers: cache}, nil
}

// Groups derives group keys with a Grouper that uses default options.
func Groups(ds *dataset.Dataset, mode Mode, h HomologyOptions) ([]string, error) {
	g, err := NewGrouper()
	if err != nil {
		return nil, err
	}
	return g.Groups(ds, mode, h)
}

// Groups returns one group key per sample, positionally aligned with
// ds.Samples. Samples sharing a key must never be split apart.
func (g *Grouper) Groups(ds *dataset.Dataset, mode Mode, h HomologyOptions) ([]string, error) {
	switch mode {
	case GroupNone, "":
		return ds.IDs(), nil

	case GroupByGene:
		if !ds.HasGenes() {
			return nil, bencherr.Configuration("%s: by-gene grouping requested but the dataset has no gene annotations", ds.Name)
		}
		keys := make([]string, ds.Len())
		for i, s := range ds.Samples {
			if s.Gene != "" {
				keys[i] = "gene:" + s.Gene
			} else {
				keys[i] = "id:" + s.ID
			}
		}
		return keys, nil

	case GroupByHomology:
		return g.homologyGroups(ds, h)
	}
	return nil, bencherr.Configuration("unknown grouping mode %q", mode)
}
