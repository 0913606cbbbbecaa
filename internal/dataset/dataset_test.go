package dataset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `# metadata line 1
# metadata line 2
# metadata line 3
kepid,koi_disposition,koi_period,koi_teq_err1,koi_depth,koi_fpflag_nt
1,CONFIRMED,9.48,,615.8,0
2,FALSE POSITIVE,19.89,,,1
3,CANDIDATE,1.73,,1150.2,0
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "koi.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCSV_SkipsMetadataRows(t *testing.T) {
	table, err := LoadCSV(writeFile(t, sampleCSV), 3)
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len(), "rows = source rows - skipped - header")
	assert.Equal(t, []string{"kepid", "koi_disposition", "koi_period", "koi_teq_err1", "koi_depth", "koi_fpflag_nt"}, table.Columns())
	assert.True(t, table.HasColumn("koi_period"))
	assert.False(t, table.HasColumn("koi_prad"))

	col, err := table.Column("koi_disposition")
	require.NoError(t, err)
	assert.Equal(t, []string{"CONFIRMED", "FALSE POSITIVE", "CANDIDATE"}, col)
}

func TestLoadCSV_MissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTrainingData))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		skip    int
	}{
		{"too few metadata rows", "# a\n# b\n", 5},
		{"missing header", "# a\n", 1},
		{"ragged record", "a,b\n1,2\n3\n", 0},
		{"duplicate header", "a,a\n1,2\n", 0},
		{"empty header name", "a,\n1,2\n", 0},
		{"unterminated quote", "a,b\n\"1,2\n", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.content), tt.skip)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrTrainingData))
		})
	}
}

func TestTable_Drop(t *testing.T) {
	table, err := ReadCSV(strings.NewReader(sampleCSV), 3)
	require.NoError(t, err)

	dropped, missing := table.Drop("koi_teq_err1", "koi_teq_err2")
	assert.Equal(t, []string{"koi_teq_err2"}, missing)
	assert.False(t, dropped.HasColumn("koi_teq_err1"))
	assert.True(t, table.HasColumn("koi_teq_err1"), "original table is untouched")
	assert.Equal(t, table.Len(), dropped.Len())

	depth, err := dropped.Column("koi_depth")
	require.NoError(t, err)
	assert.Equal(t, []string{"615.8", "", "1150.2"}, depth)
}

func TestSplit_SelectsByName(t *testing.T) {
	table, err := ReadCSV(strings.NewReader(sampleCSV), 3)
	require.NoError(t, err)

	// Requested order differs from file order.
	samples, err := Split(table, SplitOptions{
		Features: []string{"koi_depth", "koi_period", "koi_fpflag_nt"},
		Flags:    []string{"koi_fpflag_nt"},
		Target:   "koi_disposition",
		Drop:     []string{"koi_teq_err1", "koi_teq_err2"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, samples.Len())
	assert.Equal(t, []string{"koi_depth", "koi_period", "koi_fpflag_nt"}, samples.Features)
	assert.Equal(t, []float64{615.8, 9.48, 0}, samples.X[0])
	assert.True(t, math.IsNaN(samples.X[1][0]), "empty numeric cell becomes NaN")
	assert.Equal(t, 19.89, samples.X[1][1])
	assert.Equal(t, 1.0, samples.X[1][2])
	assert.Equal(t, []string{"CONFIRMED", "FALSE POSITIVE", "CANDIDATE"}, samples.Labels)
}

func TestSplit_KeepsOutOfRangeFlags(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("y,a,f\nX,1,0\nY,2,465\nX,3,1\n"), 0)
	require.NoError(t, err)

	samples, err := Split(table, SplitOptions{Features: []string{"a", "f"}, Flags: []string{"f"}, Target: "y"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 465, 1}, []float64{samples.X[0][1], samples.X[1][1], samples.X[2][1]})
}

func TestSplit_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		opts    SplitOptions
		wantMsg string
	}{
		{
			name:    "missing feature column",
			content: "y,a\nX,1\n",
			opts:    SplitOptions{Features: []string{"a", "b"}, Target: "y"},
			wantMsg: `missing column "b"`,
		},
		{
			name:    "missing target column",
			content: "a\n1\n",
			opts:    SplitOptions{Features: []string{"a"}, Target: "y"},
			wantMsg: `missing column "y"`,
		},
		{
			name:    "non-numeric feature",
			content: "y,a\nX,abc\n",
			opts:    SplitOptions{Features: []string{"a"}, Target: "y"},
			wantMsg: `row 1 column "a"`,
		},
		{
			name:    "empty flag",
			content: "y,f\nX,\n",
			opts:    SplitOptions{Features: []string{"f"}, Flags: []string{"f"}, Target: "y"},
			wantMsg: "missing flag value",
		},
		{
			name:    "empty label",
			content: "y,a\nX,1\n ,2\n",
			opts:    SplitOptions{Features: []string{"a"}, Target: "y"},
			wantMsg: "empty label",
		},
		{
			name:    "no rows",
			content: "y,a\n",
			opts:    SplitOptions{Features: []string{"a"}, Target: "y"},
			wantMsg: "empty label set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ReadCSV(strings.NewReader(tt.content), 0)
			require.NoError(t, err)

			_, err = Split(table, tt.opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrTrainingData))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSplit_NoFeatures(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("y\nX\n"), 0)
	require.NoError(t, err)

	_, err = Split(table, SplitOptions{Target: "y"})
	assert.Error(t, err)
}
