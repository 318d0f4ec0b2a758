package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrnabench/bencherr"
)

const scalarCSV = `id,sequence,gene,split,half_life
t1,ACGUACGU,GENE1,train,1.5
t2,ACGUACGA,GENE1,train,2.5
t3,UUUUGGGG,GENE2,test,
t4,CCCCAAAA,,val,NaN
t5,GGGGCCCC,GENE3,test,-0.25
`

func TestLoadCSV_Scalar(t *testing.T) {
	ds, err := LoadCSV(strings.NewReader(scalarCSV), LoadOptions{
		Name:         "rnahl-human",
		TargetColumn: "half_life",
		Kind:         TargetScalar,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, ds.Len())
	assert.Equal(t, []string{"t1", "t2", "t3", "t4", "t5"}, ds.IDs())
	assert.Equal(t, []string{"GENE1", "GENE1", "GENE2", "", "GENE3"}, ds.Genes())
	assert.Equal(t, []string{"train", "train", "test", "val", "test"}, ds.Splits())
	assert.True(t, ds.HasGenes())
	assert.True(t, ds.HasSplits())

	assert.Equal(t, []float64{1.5}, ds.Samples[0].Target)
	assert.True(t, math.IsNaN(ds.Samples[2].Target[0]))
	assert.True(t, math.IsNaN(ds.Samples[3].Target[0]))
	assert.False(t, ds.Samples[3].HasTarget())
	assert.True(t, ds.Samples[4].HasTarget())
}

func TestLoadCSV_Categorical(t *testing.T) {
	in := "sequence,label\nAAA,nucleus\nCCC,cytosol\nGGG,nucleus\nUUU,\n"
	ds, err := LoadCSV(strings.NewReader(in), LoadOptions{TargetColumn: "label", Kind: TargetCategorical})
	require.NoError(t, err)

	assert.Equal(t, []string{"cytosol", "nucleus"}, ds.Classes)
	assert.Equal(t, []string{"0", "1", "2", "3"}, ds.IDs(), "row index stands in for a missing id column")
	assert.Equal(t, 1.0, ds.Samples[0].Target[0])
	assert.Equal(t, 0.0, ds.Samples[1].Target[0])
	assert.False(t, ds.Samples[3].HasTarget())
	assert.False(t, ds.HasGenes())
}

func TestLoadCSV_Vector(t *testing.T) {
	in := "id,sequence,go\n" +
		"a,AAA,\"[0, 1, 1]\"\n" +
		"b,CCC,1;0;0\n" +
		"c,GGG,\n"
	ds, err := LoadCSV(strings.NewReader(in), LoadOptions{TargetColumn: "go", Kind: TargetVector})
	require.NoError(t, err)

	assert.Equal(t, 3, ds.TargetWidth())
	assert.Equal(t, []float64{0, 1, 1}, ds.Samples[0].Target)
	assert.Equal(t, []float64{1, 0, 0}, ds.Samples[1].Target)
	assert.Len(t, ds.Samples[2].Target, 3)
	assert.False(t, ds.Samples[2].HasTarget())
}

func TestLoadCSV_Errors(t *testing.T) {
	_, err := LoadCSV(strings.NewReader(scalarCSV), LoadOptions{Kind: TargetScalar})
	assert.True(t, bencherr.IsConfiguration(err), "missing target column name")

	_, err = LoadCSV(strings.NewReader(scalarCSV), LoadOptions{TargetColumn: "mrl", Kind: TargetScalar})
	assert.True(t, bencherr.IsConfiguration(err), "absent target column")

	_, err = LoadCSV(strings.NewReader("id,sequence,y\na,AAA,1\na,CCC,2\n"), LoadOptions{TargetColumn: "y"})
	assert.True(t, bencherr.IsConfiguration(err), "duplicate ids")

	_, err = LoadCSV(strings.NewReader("id,sequence,y\na,AAA,abc\n"), LoadOptions{TargetColumn: "y"})
	assert.True(t, bencherr.IsConfiguration(err), "non-numeric scalar")

	_, err = LoadCSV(strings.NewReader("id,sequence,y\na,AAA,1;0\nb,CCC,1;0;1\n"), LoadOptions{TargetColumn: "y", Kind: TargetVector})
	assert.True(t, bencherr.IsDataMismatch(err), "ragged vectors")
}

func TestTargetsAreCopies(t *testing.T) {
	ds, err := LoadCSV(strings.NewReader(scalarCSV), LoadOptions{TargetColumn: "half_life"})
	require.NoError(t, err)

	y := ds.Targets()
	y[0][0] = 99
	assert.Equal(t, 1.5, ds.Samples[0].Target[0])
}

// npyBytes encodes a row-major float64 matrix as NumPy format 1.0.
func npyBytes(t *testing.T, rows, cols int, data []float64) []byte {
	t.Helper()
	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d, %d), }", rows, cols)
	pad := 64 - (10+len(header)+1)%64
	header += strings.Repeat(" ", pad) + "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint16(len(header))))
	buf.WriteString(header)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, data))
	return buf.Bytes()
}

func TestLoadEmbeddings_NPYAndNPZ(t *testing.T) {
	dir := t.TempDir()
	data := []float64{1, 2, 3, 4, 5, 6}
	raw := npyBytes(t, 2, 3, data)

	npyPath := filepath.Join(dir, "prot-loc_rnafm_o0.npy")
	require.NoError(t, os.WriteFile(npyPath, raw, 0o644))

	emb, err := LoadEmbeddings(npyPath)
	require.NoError(t, err)
	assert.Equal(t, 2, emb.Rows())
	assert.Equal(t, 3, emb.Dims())
	assert.Equal(t, []float64{4, 5, 6}, emb.Row(1))

	npzPath := filepath.Join(dir, "prot-loc_rnafm_o0.npz")
	f, err := os.Create(npzPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	member, err := zw.Create("embedding.npy")
	require.NoError(t, err)
	_, err = member.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	emb, err = LoadEmbeddings(npzPath)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, emb.Row(0))

	_, err = LoadEmbeddings(filepath.Join(dir, "x.parquet"))
	assert.True(t, bencherr.IsConfiguration(err))
}

func TestNewEmbeddings_Ragged(t *testing.T) {
	_, err := NewEmbeddings([][]float64{{1, 2}, {3}})
	assert.True(t, bencherr.IsDataMismatch(err))

	emb, err := NewEmbeddings([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, 2, emb.Dims())
}

func TestEmbeddingNaming(t *testing.T) {
	p := EmbeddingPath("/data/emb", "go-mf", "rnafm", 0, 0, 0)
	assert.Equal(t, filepath.Join("/data/emb", "go-mf_rnafm_o0"), p)
	assert.Equal(t, filepath.Join("/data/emb", "go-mf_rnafm_o2_1-4"), EmbeddingPath("/data/emb", "go-mf", "rnafm", 2, 1, 4))

	ds, model, overlap, err := ParseEmbeddingName("go-mf_rnafm_o2.npz")
	require.NoError(t, err)
	assert.Equal(t, "go-mf", ds)
	assert.Equal(t, "rnafm", model)
	assert.Equal(t, 2, overlap)

	_, _, _, err = ParseEmbeddingName("embeddings.npz")
	assert.True(t, bencherr.IsConfiguration(err))
}

func TestInspect(t *testing.T) {
	ds, err := LoadCSV(strings.NewReader(scalarCSV), LoadOptions{Name: "rnahl-human", TargetColumn: "half_life"})
	require.NoError(t, err)

	rows := make([][]float64, 5)
	for i := range rows {
		rows[i] = []float64{float64(i), 1}
	}
	rows[2][1] = math.Inf(1)
	emb, err := NewEmbeddings(rows)
	require.NoError(t, err)

	rep := Inspect(ds, emb)
	assert.Equal(t, 5, rep.Samples)
	assert.Equal(t, 4, rep.WithGene)
	assert.Equal(t, 3, rep.Genes)
	assert.Equal(t, 2, rep.MaxGeneSize)
	assert.Equal(t, 3, rep.WithTarget)
	assert.Equal(t, 2, rep.SplitCounts["train"])
	assert.Equal(t, 8, rep.MinSeqLen)
	assert.Equal(t, 1, rep.NonFiniteRow)
	assert.True(t, bencherr.IsDataMismatch(rep.Check()))

	var out bytes.Buffer
	require.NoError(t, rep.Print(&out))
	assert.Contains(t, out.String(), "rnahl-human")
	assert.Contains(t, out.String(), "split[test]")

	short, err := NewEmbeddings([][]float64{{1}, {2}})
	require.NoError(t, err)
	assert.True(t, bencherr.IsDataMismatch(Inspect(ds, short).Check()))
}
