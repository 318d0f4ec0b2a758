package dataset

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"mrnabench/bencherr"
)

// EmbeddingArrayName is the array holding embeddings inside an .npz file.
const EmbeddingArrayName = "embedding"

// Embeddings is an N×D matrix whose row i belongs to Dataset.Samples[i].
type Embeddings struct {
	m *mat.Dense
}

// NewEmbeddings copies rows into a new matrix. All rows must share a width.
func NewEmbeddings(rows [][]float64) (*Embeddings, error) {
	if len(rows) == 0 {
		return nil, bencherr.DataMismatch("no embedding rows")
	}
	d := len(rows[0])
	if d == 0 {
		return nil, bencherr.DataMismatch("embedding rows have zero width")
	}
	data := make([]float64, 0, len(rows)*d)
	for i, r := range rows {
		if len(r) != d {
			return nil, bencherr.DataMismatch("embedding row %d has %d dims, expected %d", i, len(r), d)
		}
		data = append(data, r...)
	}
	return &Embeddings{m: mat.NewDense(len(rows), d, data)}, nil
}

// EmbeddingsFromDense wraps m without copying. The caller must not mutate m
// afterwards.
func EmbeddingsFromDense(m *mat.Dense) *Embeddings {
	return &Embeddings{m: m}
}

// Rows returns the number of embedded samples.
func (e *Embeddings) Rows() int {
	r, _ := e.m.Dims()
	return r
}

// Dims returns the embedding width.
func (e *Embeddings) Dims() int {
	_, c := e.m.Dims()
	return c
}

// Matrix exposes the embeddings as a read-only gonum matrix.
func (e *Embeddings) Matrix() mat.Matrix { return e.m }

// Row returns a copy of row i.
func (e *Embeddings) Row(i int) []float64 {
	return mat.Row(nil, i, e.m)
}

// ---------------------- file loading ----------------------

// LoadEmbeddings reads a .npy array, or the "embedding" array of an .npz
// archive, into memory.
func LoadEmbeddings(p string) (*Embeddings, error) {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".npy":
		f, err := os.Open(p)
		if err != nil {
			return nil, errors.Wrapf(err, "open embeddings %s", p)
		}
		defer f.Close()
		return readNPY(f)
	case ".npz":
		return readNPZ(p, EmbeddingArrayName)
	}
	return nil, bencherr.Configuration("unsupported embedding file %s (want .npy or .npz)", p)
}

// An .npz file is a zip archive of .npy members named "<array>.npy".
func readNPZ(p, array string) (*Embeddings, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, errors.Wrapf(err, "open embeddings %s", p)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if strings.TrimSuffix(path.Base(zf.Name), ".npy") != array {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "open %s in %s", zf.Name, p)
		}
		defer rc.Close()
		return readNPY(rc)
	}
	return nil, bencherr.DataMismatch("%s has no %q array", p, array)
}

func readNPY(r io.Reader) (*Embeddings, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "read npy header")
	}
	descr := nr.Header.Descr
	if len(descr.Shape) != 2 {
		return nil, bencherr.DataMismatch("embedding array has shape %v, want 2 dimensions", descr.Shape)
	}
	rows, cols := descr.Shape[0], descr.Shape[1]

	var data []float64
	switch strings.TrimLeft(descr.Type, "<>|=") {
	case "f8":
		if err := nr.Read(&data); err != nil {
			return nil, errors.Wrap(err, "read npy float64 data")
		}
	case "f4":
		var f32 []float32
		if err := nr.Read(&f32); err != nil {
			return nil, errors.Wrap(err, "read npy float32 data")
		}
		data = make([]float64, len(f32))
		for i, v := range f32 {
			data[i] = float64(v)
		}
	default:
		return nil, bencherr.Configuration("unsupported embedding dtype %q", descr.Type)
	}
	if len(data) != rows*cols {
		return nil, bencherr.DataMismatch("npy payload has %d values, header says %dx%d", len(data), rows, cols)
	}

	if descr.Fortran {
		// Column-major on disk.
		m := mat.NewDense(cols, rows, data)
		var t mat.Dense
		t.CloneFrom(m.T())
		return &Embeddings{m: &t}, nil
	}
	return &Embeddings{m: mat.NewDense(rows, cols, data)}, nil
}

// ---------------------- file naming ----------------------

// EmbeddingPath returns the standard embedding file stem
// "<dir>/<dataset>_<model>_o<overlap>", with a "_<chunk>-<chunkMax>" suffix
// when the dataset was embedded in chunks. Model and dataset names must not
// contain underscores.
func EmbeddingPath(dir, datasetName, model string, overlap, chunk, chunkMax int) string {
	stem := fmt.Sprintf("%s_%s_o%d", datasetName, model, overlap)
	if chunkMax != 0 {
		stem += fmt.Sprintf("_%d-%d", chunk, chunkMax)
	}
	return filepath.Join(dir, stem)
}

// ParseEmbeddingName splits an embedding file name produced by EmbeddingPath
// back into its dataset, model and overlap.
func ParseEmbeddingName(name string) (datasetName, model string, overlap int, err error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	parts := strings.Split(base, "_")
	if len(parts) < 3 || !strings.HasPrefix(parts[2], "o") {
		return "", "", 0, bencherr.Configuration("embedding name %q is not <dataset>_<model>_o<overlap>", name)
	}
	overlap, err = strconv.Atoi(parts[2][1:])
	if err != nil {
		return "", "", 0, bencherr.Configuration("embedding name %q has a bad overlap", name)
	}
	return parts[0], parts[1], overlap, nil
}
