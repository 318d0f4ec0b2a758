package split

import (
	"io"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"mrnabench/bencherr"
)

// Assignment maps every sample to exactly one partition. It is positional:
// entry i belongs to Dataset.Samples[i]. Assignments are immutable; every
// accessor returns a copy.
type Assignment struct {
	ids      []string
	parts    []Partition
	groups   []string
	byID     map[string]int
	achieved Ratios
	config   Config
}

func newAssignment(ids []string, parts []Partition, groups []string, cfg Config) Assignment {
	a := Assignment{
		ids:    ids,
		parts:  parts,
		groups: groups,
		byID:   make(map[string]int, len(ids)),
		config: cfg,
	}
	a.config.RequireNonEmpty = append([]Partition(nil), cfg.RequireNonEmpty...)
	for i, id := range ids {
		a.byID[id] = i
	}
	if n := len(parts); n > 0 {
		c := a.Counts()
		a.achieved = Ratios{
			Train: float64(c[Train]) / float64(n),
			Val:   float64(c[Validation]) / float64(n),
			Test:  float64(c[Test]) / float64(n),
		}
	}
	return a
}

// FromParts builds an Assignment directly from positional partitions, for
// callers that already hold a split. Every sample is its own group.
func FromParts(ids []string, parts []Partition) Assignment {
	return newAssignment(
		append([]string(nil), ids...),
		append([]Partition(nil), parts...),
		append([]string(nil), ids...),
		Config{Policy: PolicyPredefined},
	)
}

// Len returns the number of assigned samples.
func (a Assignment) Len() int { return len(a.parts) }

// Part returns the partition of the sample at position i.
func (a Assignment) Part(i int) Partition { return a.parts[i] }

// Parts returns a copy of the positional partitions.
func (a Assignment) Parts() []Partition { return append([]Partition(nil), a.parts...) }

// IDs returns a copy of the positional sample IDs.
func (a Assignment) IDs() []string { return append([]string(nil), a.ids...) }

// Groups returns a copy of the positional group keys used to build the split.
func (a Assignment) Groups() []string { return append([]string(nil), a.groups...) }

// Of returns the partition of the sample with the given ID.
func (a Assignment) Of(id string) (Partition, bool) {
	i, ok := a.byID[id]
	if !ok {
		return 0, false
	}
	return a.parts[i], true
}

// Indices returns the positions assigned to p, ascending.
func (a Assignment) Indices(p Partition) []int {
	var out []int
	for i, q := range a.parts {
		if q == p {
			out = append(out, i)
		}
	}
	return out
}

// Counts returns the number of samples per partition, indexed by Partition.
func (a Assignment) Counts() [3]int {
	var c [3]int
	for _, p := range a.parts {
		c[p]++
	}
	return c
}

// Achieved returns the realised partition fractions, which differ from the
// requested ratios when group sizes are uneven.
func (a Assignment) Achieved() Ratios { return a.achieved }

// Config returns the configuration that produced the assignment.
func (a Assignment) Config() Config {
	c := a.config
	c.RequireNonEmpty = append([]Partition(nil), a.config.RequireNonEmpty...)
	return c
}

// Equal reports whether two assignments place the same IDs in the same
// partitions in the same order.
func (a Assignment) Equal(b Assignment) bool {
	if len(a.parts) != len(b.parts) {
		return false
	}
	for i := range a.parts {
		if a.parts[i] != b.parts[i] || a.ids[i] != b.ids[i] {
			return false
		}
	}
	return true
}

type assignmentRow struct {
	ID    string `csv:"id"`
	Split string `csv:"split"`
	Group string `csv:"group"`
}

// WriteCSV writes "id,split,group" rows in dataset order.
func (a Assignment) WriteCSV(w io.Writer) error {
	rows := make([]*assignmentRow, len(a.parts))
	for i := range a.parts {
		rows[i] = &assignmentRow{ID: a.ids[i], Split: a.parts[i].String(), Group: a.groups[i]}
	}
	return errors.Wrap(gocsv.Marshal(&rows, w), "write split assignment")
}

// ReadCSV parses rows written by WriteCSV back into partitions aligned with
// ids. Unknown IDs and missing rows are configuration errors.
func ReadCSV(r io.Reader, ids []string) (Assignment, error) {
	var rows []*assignmentRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return Assignment{}, errors.Wrap(err, "read split assignment")
	}
	byID := make(map[string]*assignmentRow, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	parts := make([]Partition, len(ids))
	groups := make([]string, len(ids))
	for i, id := range ids {
		row, ok := byID[id]
		if !ok {
			return Assignment{}, bencherr.Configuration("split file has no row for sample %q", id)
		}
		p, err := ParsePartition(row.Split)
		if err != nil {
			return Assignment{}, err
		}
		parts[i] = p
		groups[i] = row.Group
		if groups[i] == "" {
			groups[i] = id
		}
	}
	return newAssignment(append([]string(nil), ids...), parts, groups, Config{Policy: PolicyPredefined}), nil
}
