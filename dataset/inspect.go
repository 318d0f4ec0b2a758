package dataset

import (
	"fmt"
	"io"
	"math"
	"sort"
	"text/tabwriter"

	"mrnabench/bencherr"
)

// Report is a structural summary of a dataset and its embeddings.
type Report struct {
	Name    string
	Samples int

	WithGene     int
	Genes        int
	MaxGeneSize  int
	WithTarget   int
	TargetWidth  int
	Classes      int
	SplitCounts  map[string]int // predefined split column; empty when absent
	MinSeqLen    int
	MaxSeqLen    int
	MeanSeqLen   float64
	EmptySeqs    int
	EmbedRows    int
	EmbedDims    int
	NonFiniteRow int // embedding rows containing NaN or Inf
}

// Inspect summarises ds and emb. emb may be nil.
func Inspect(ds *Dataset, emb *Embeddings) Report {
	rep := Report{
		Name:        ds.Name,
		Samples:     ds.Len(),
		TargetWidth: ds.TargetWidth(),
		Classes:     len(ds.Classes),
		SplitCounts: make(map[string]int),
	}

	geneSizes := make(map[string]int)
	var totalLen int
	for i, s := range ds.Samples {
		if s.Gene != "" {
			rep.WithGene++
			geneSizes[s.Gene]++
		}
		if s.HasTarget() {
			rep.WithTarget++
		}
		if s.Split != "" {
			rep.SplitCounts[s.Split]++
		}

		l := len(s.Sequence)
		if l == 0 {
			rep.EmptySeqs++
		}
		if i == 0 || l < rep.MinSeqLen {
			rep.MinSeqLen = l
		}
		if l > rep.MaxSeqLen {
			rep.MaxSeqLen = l
		}
		totalLen += l
	}
	rep.Genes = len(geneSizes)
	for _, n := range geneSizes {
		if n > rep.MaxGeneSize {
			rep.MaxGeneSize = n
		}
	}
	if rep.Samples > 0 {
		rep.MeanSeqLen = float64(totalLen) / float64(rep.Samples)
	}

	if emb != nil {
		rep.EmbedRows = emb.Rows()
		rep.EmbedDims = emb.Dims()
		for i := 0; i < rep.EmbedRows; i++ {
			for _, v := range emb.Row(i) {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					rep.NonFiniteRow++
					break
				}
			}
		}
	}
	return rep
}

// Check returns a DataMismatchError when the embeddings are not row-aligned
// with the samples or contain non-finite values.
func (r Report) Check() error {
	if r.EmbedRows != r.Samples {
		return bencherr.DataMismatch("%s: %d embedding rows for %d samples", r.Name, r.EmbedRows, r.Samples)
	}
	if r.NonFiniteRow > 0 {
		return bencherr.DataMismatch("%s: %d embedding rows contain NaN or Inf", r.Name, r.NonFiniteRow)
	}
	return nil
}

// Print writes the report as an aligned two-column table.
func (r Report) Print(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tVALUE")
	fmt.Fprintln(w, "-----\t-----")
	fmt.Fprintf(w, "dataset\t%s\n", r.Name)
	fmt.Fprintf(w, "samples\t%d\n", r.Samples)
	fmt.Fprintf(w, "with_target\t%d\n", r.WithTarget)
	fmt.Fprintf(w, "target_width\t%d\n", r.TargetWidth)
	if r.Classes > 0 {
		fmt.Fprintf(w, "classes\t%d\n", r.Classes)
	}
	fmt.Fprintf(w, "with_gene\t%d\n", r.WithGene)
	fmt.Fprintf(w, "genes\t%d (largest %d)\n", r.Genes, r.MaxGeneSize)
	fmt.Fprintf(w, "seq_len\tmin=%d max=%d mean=%.1f empty=%d\n", r.MinSeqLen, r.MaxSeqLen, r.MeanSeqLen, r.EmptySeqs)

	splits := make([]string, 0, len(r.SplitCounts))
	for k := range r.SplitCounts {
		splits = append(splits, k)
	}
	sort.Strings(splits)
	for _, k := range splits {
		fmt.Fprintf(w, "split[%s]\t%d\n", k, r.SplitCounts[k])
	}

	fmt.Fprintf(w, "embeddings\t%dx%d\n", r.EmbedRows, r.EmbedDims)
	fmt.Fprintf(w, "non_finite_rows\t%d\n", r.NonFiniteRow)
	return w.Flush()
}
