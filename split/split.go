package split

import (
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"go.uber.org/zap"

	"mrnabench/bencherr"
	"mrnabench/dataset"
	"mrnabench/logging"
)

// Partition is one side of a split.
type Partition uint8

const (
	Train Partition = iota
	Validation
	Test
)

// Partitions lists every partition in canonical order.
var Partitions = []Partition{Train, Validation, Test}

func (p Partition) String() string {
	switch p {
	case Train:
		return "train"
	case Validation:
		return "val"
	case Test:
		return "test"
	}
	return "unknown"
}

// ParsePartition accepts train, val/valid/validation and test.
func ParsePartition(s string) (Partition, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "train":
		return Train, nil
	case "val", "valid", "validation":
		return Validation, nil
	case "test":
		return Test, nil
	}
	return 0, bencherr.Configuration("unknown partition %q", s)
}

// Policy selects how the assignment is produced.
type Policy string

const (
	PolicyRandom     Policy = "random"
	PolicyHomology   Policy = "homology"
	PolicyPredefined Policy = "predefined"
)

// RatioTolerance is how far train+val+test may drift from 1.
const RatioTolerance = 1e-6

// Ratios are target partition fractions.
type Ratios struct {
	Train, Val, Test float64
}

// Validate rejects negative fractions and sums away from 1.
func (r Ratios) Validate() error {
	if r.Train < 0 || r.Val < 0 || r.Test < 0 ||
		math.IsNaN(r.Train) || math.IsNaN(r.Val) || math.IsNaN(r.Test) {
		return bencherr.Configuration("split ratios must be non-negative, got %v", r)
	}
	if sum := r.Train + r.Val + r.Test; math.Abs(sum-1) > RatioTolerance {
		return bencherr.Configuration("split ratios must sum to 1, got %v (sum %.6f)", r, sum)
	}
	return nil
}

// Of returns the fraction for p.
func (r Ratios) Of(p Partition) float64 {
	switch p {
	case Train:
		return r.Train
	case Validation:
		return r.Val
	case Test:
		return r.Test
	}
	return 0
}

// Config is one split configuration.
type Config struct {
	Policy   Policy
	Grouping Mode // random policy only; homology forces by-homology
	Ratios   Ratios
	Seed     int64
	Homology HomologyOptions

	// RequireNonEmpty lists partitions that must receive at least one sample.
	RequireNonEmpty []Partition
}

// Split partitions ds with a Grouper that uses default options.
func Split(ds *dataset.Dataset, cfg Config) (Assignment, error) {
	g, err := NewGrouper()
	if err != nil {
		return Assignment{}, err
	}
	return g.Split(ds, cfg)
}

// Split partitions ds under cfg. Identical (ds, cfg) always produce an
// identical Assignment.
func (g *Grouper) Split(ds *dataset.Dataset, cfg Config) (Assignment, error) {
	var (
		parts  []Partition
		groups []string
		err    error
	)
	switch cfg.Policy {
	case PolicyPredefined:
		parts, err = predefined(ds)
		groups = ds.IDs()

	case PolicyRandom, PolicyHomology:
		if err = cfg.Ratios.Validate(); err != nil {
			return Assignment{}, err
		}
		mode := cfg.Grouping
		if cfg.Policy == PolicyHomology {
			mode = GroupByHomology
		}
		groups, err = g.Groups(ds, mode, cfg.Homology)
		if err != nil {
			return Assignment{}, err
		}
		parts = groupedShuffle(groups, cfg.Ratios, cfg.Seed)

	default:
		return Assignment{}, bencherr.Configuration("unknown split policy %q", cfg.Policy)
	}
	if err != nil {
		return Assignment{}, err
	}

	a := newAssignment(ds.IDs(), parts, groups, cfg)
	counts := a.Counts()
	for _, p := range cfg.RequireNonEmpty {
		if counts[p] == 0 {
			return Assignment{}, bencherr.Configuration("%s split of %s has an empty %s partition (ratios %v, seed %d)",
				cfg.Policy, ds.Name, p, cfg.Ratios, cfg.Seed)
		}
	}

	g.log.Debug("split built",
		zap.String(logging.DatasetKey, ds.Name),
		zap.String(logging.PolicyKey, string(cfg.Policy)),
		zap.String(logging.GroupingKey, string(cfg.Grouping)),
		zap.Int64(logging.SeedKey, cfg.Seed),
		zap.Ints("split.counts", counts[:]),
	)
	return a, nil
}

func predefined(ds *dataset.Dataset) ([]Partition, error) {
	parts := make([]Partition, ds.Len())
	for i, s := range ds.Samples {
		if s.Split == "" {
			return nil, bencherr.Configuration("%s: sample %q has no predefined split", ds.Name, s.ID)
		}
		p, err := ParsePartition(s.Split)
		if err != nil {
			return nil, bencherr.Configuration("%s: sample %q has predefined split %q", ds.Name, s.ID, s.Split)
		}
		parts[i] = p
	}
	return parts, nil
}

// splitStream decorrelates the split generator from any other PCG stream
// seeded with the same value.
const splitStream = 0x6d524e41 // "mRNA"

// groupedShuffle shuffles whole groups and walks them in order, placing each
// group by where its midpoint falls against the cumulative train and
// train+val boundaries. No group ever straddles two partitions.
func groupedShuffle(groups []string, r Ratios, seed int64) []Partition {
	n := len(groups)
	members := make(map[string][]int)
	for i, key := range groups {
		members[key] = append(members[key], i)
	}
	keys := make([]string, 0, len(members))
	for k := range members {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rng := rand.New(rand.NewPCG(uint64(seed), splitStream))
	rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })

	trainEnd := r.Train * float64(n)
	valEnd := (r.Train + r.Val) * float64(n)

	parts := make([]Partition, n)
	cum := 0
	for _, k := range keys {
		idx := members[k]
		mid := float64(cum) + float64(len(idx))/2
		p := Test
		switch {
		case mid < trainEnd:
			p = Train
		case mid < valEnd:
			p = Validation
		}
		for _, i := range idx {
			parts[i] = p
		}
		cum += len(idx)
	}
	return parts
}
