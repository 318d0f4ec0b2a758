package dataset

import (
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"mrnabench/bencherr"
)

// Default column names of the tabular dataset.
const (
	ColumnID       = "id"
	ColumnSequence = "sequence"
	ColumnGene     = "gene"
	ColumnSplit    = "split"
)

// LoadOptions describes which columns of a CSV table hold what.
type LoadOptions struct {
	Name    string
	Species []string

	IDColumn       string // defaults to "id"; row index when the column is absent
	SequenceColumn string // defaults to "sequence"
	GeneColumn     string // defaults to "gene"; optional
	SplitColumn    string // defaults to "split"; optional
	TargetColumn   string // required
	Kind           TargetKind
}

func (o *LoadOptions) defaults() {
	if o.IDColumn == "" {
		o.IDColumn = ColumnID
	}
	if o.SequenceColumn == "" {
		o.SequenceColumn = ColumnSequence
	}
	if o.GeneColumn == "" {
		o.GeneColumn = ColumnGene
	}
	if o.SplitColumn == "" {
		o.SplitColumn = ColumnSplit
	}
}

// LoadCSVFile opens path and calls LoadCSV.
func LoadCSVFile(path string, opts LoadOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %s", path)
	}
	defer f.Close()
	return LoadCSV(f, opts)
}

// LoadCSV reads a header-first CSV table into a Dataset.
func LoadCSV(r io.Reader, opts LoadOptions) (*Dataset, error) {
	opts.defaults()
	if opts.TargetColumn == "" {
		return nil, bencherr.Configuration("target column must be named")
	}

	rows, err := gocsv.CSVToMaps(r)
	if err != nil {
		return nil, errors.Wrap(err, "read dataset csv")
	}

	ds := &Dataset{
		Name:         opts.Name,
		Species:      opts.Species,
		TargetColumn: opts.TargetColumn,
		Kind:         opts.Kind,
		Samples:      make([]Sample, 0, len(rows)),
	}
	if len(rows) == 0 {
		return ds, nil
	}

	first := rows[0]
	if _, ok := first[opts.SequenceColumn]; !ok {
		return nil, bencherr.Configuration("dataset has no %q column", opts.SequenceColumn)
	}
	if _, ok := first[opts.TargetColumn]; !ok {
		return nil, bencherr.Configuration("dataset has no target column %q", opts.TargetColumn)
	}
	_, hasID := first[opts.IDColumn]

	raw := make([]string, len(rows))
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		id := strconv.Itoa(i)
		if hasID {
			id = strings.TrimSpace(row[opts.IDColumn])
		}
		if id == "" {
			return nil, bencherr.Configuration("row %d has an empty %q", i, opts.IDColumn)
		}
		if prev, dup := seen[id]; dup {
			return nil, bencherr.Configuration("duplicate sample id %q (rows %d and %d)", id, prev, i)
		}
		seen[id] = i

		ds.Samples = append(ds.Samples, Sample{
			ID:       id,
			Sequence: strings.TrimSpace(row[opts.SequenceColumn]),
			Gene:     strings.TrimSpace(row[opts.GeneColumn]),
			Split:    strings.ToLower(strings.TrimSpace(row[opts.SplitColumn])),
		})
		raw[i] = strings.TrimSpace(row[opts.TargetColumn])
	}

	switch opts.Kind {
	case TargetScalar:
		err = fillScalar(ds, raw)
	case TargetCategorical:
		fillCategorical(ds, raw)
	case TargetVector:
		err = fillVector(ds, raw)
	default:
		err = bencherr.Configuration("unknown target kind %d", int(opts.Kind))
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func isMissing(s string) bool {
	switch strings.ToLower(s) {
	case "", "nan", "na", "null", "none":
		return true
	}
	return false
}

func fillScalar(ds *Dataset, raw []string) error {
	for i, s := range raw {
		if isMissing(s) {
			ds.Samples[i].Target = []float64{math.NaN()}
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return bencherr.Configuration("row %d: target %q is not numeric", i, s)
		}
		ds.Samples[i].Target = []float64{v}
	}
	return nil
}

func fillCategorical(ds *Dataset, raw []string) {
	set := make(map[string]struct{})
	for _, s := range raw {
		if !isMissing(s) {
			set[s] = struct{}{}
		}
	}
	classes := make([]string, 0, len(set))
	for c := range set {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	ds.Classes = classes
	for i, s := range raw {
		if isMissing(s) {
			ds.Samples[i].Target = []float64{math.NaN()}
			continue
		}
		ds.Samples[i].Target = []float64{float64(index[s])}
	}
}

// fillVector accepts "0;1;0", "[0, 1, 0]", "0 1 0" and "0,1,0".
func fillVector(ds *Dataset, raw []string) error {
	width := -1
	parsed := make([][]float64, len(raw))
	for i, s := range raw {
		if isMissing(s) {
			continue
		}
		fields := strings.FieldsFunc(strings.Trim(s, "[]() "), func(r rune) bool {
			return r == ';' || r == ',' || r == ' ' || r == '\t'
		})
		vec := make([]float64, len(fields))
		for j, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return bencherr.Configuration("row %d: target element %q is not numeric", i, f)
			}
			vec[j] = v
		}
		if width < 0 {
			width = len(vec)
		} else if len(vec) != width {
			return bencherr.DataMismatch("row %d: target has %d elements, expected %d", i, len(vec), width)
		}
		parsed[i] = vec
	}
	if width < 0 {
		width = 1
	}
	for i := range parsed {
		if parsed[i] == nil {
			missing := make([]float64, width)
			for j := range missing {
				missing[j] = math.NaN()
			}
			parsed[i] = missing
		}
		ds.Samples[i].Target = parsed[i]
	}
	return nil
}
