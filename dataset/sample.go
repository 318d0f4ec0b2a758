// Package dataset holds the row-wise records the benchmark core works on:
// Samples (one transcript each), the Dataset that orders them, and the
// Embeddings matrix aligned with them by position.
package dataset

import (
	"math"
)

// TargetKind describes how Sample.Target is laid out.
type TargetKind int

const (
	// TargetScalar: Target has length 1 and holds a real value.
	TargetScalar TargetKind = iota
	// TargetCategorical: Target has length 1 and holds a class index into
	// Dataset.Classes.
	TargetCategorical
	// TargetVector: Target is a fixed-length vector (multilabel 0/1 flags).
	TargetVector
)

func (k TargetKind) String() string {
	switch k {
	case TargetScalar:
		return "scalar"
	case TargetCategorical:
		return "categorical"
	case TargetVector:
		return "vector"
	}
	return "unknown"
}

// Sample is one transcript/sequence row.
type Sample struct {
	ID       string
	Sequence string
	Gene     string // empty when unannotated
	Split    string // predefined split ("train", "val", "test"); empty when absent

	// Target is never nil for a loaded sample. A NaN in any position marks
	// the label as missing.
	Target []float64
}

// HasTarget reports whether the sample carries a usable label.
func (s Sample) HasTarget() bool {
	if len(s.Target) == 0 {
		return false
	}
	for _, v := range s.Target {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Dataset is an ordered, read-only collection of Samples.
type Dataset struct {
	Name         string
	Species      []string
	TargetColumn string
	Kind         TargetKind
	Classes      []string // class names for TargetCategorical, index-aligned
	Samples      []Sample
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.Samples) }

// IDs returns the sample identifiers in dataset order.
func (d *Dataset) IDs() []string {
	out := make([]string, len(d.Samples))
	for i, s := range d.Samples {
		out[i] = s.ID
	}
	return out
}

// Sequences returns the sequence strings in dataset order.
func (d *Dataset) Sequences() []string {
	out := make([]string, len(d.Samples))
	for i, s := range d.Samples {
		out[i] = s.Sequence
	}
	return out
}

// Genes returns the gene identifiers in dataset order ("" when missing).
func (d *Dataset) Genes() []string {
	out := make([]string, len(d.Samples))
	for i, s := range d.Samples {
		out[i] = s.Gene
	}
	return out
}

// Splits returns the predefined split column in dataset order.
func (d *Dataset) Splits() []string {
	out := make([]string, len(d.Samples))
	for i, s := range d.Samples {
		out[i] = s.Split
	}
	return out
}

// Targets returns the target rows in dataset order. Rows are copies.
func (d *Dataset) Targets() [][]float64 {
	out := make([][]float64, len(d.Samples))
	for i, s := range d.Samples {
		out[i] = append([]float64(nil), s.Target...)
	}
	return out
}

// HasGenes reports whether at least one sample carries a gene annotation.
func (d *Dataset) HasGenes() bool {
	for _, s := range d.Samples {
		if s.Gene != "" {
			return true
		}
	}
	return false
}

// HasSplits reports whether every sample carries a predefined split.
func (d *Dataset) HasSplits() bool {
	if len(d.Samples) == 0 {
		return false
	}
	for _, s := range d.Samples {
		if s.Split == "" {
			return false
		}
	}
	return true
}

// TargetWidth returns the length of the target vectors (0 for an empty
// dataset).
func (d *Dataset) TargetWidth() int {
	if len(d.Samples) == 0 {
		return 0
	}
	return len(d.Samples[0].Target)
}
