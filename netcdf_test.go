package sstdiag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, f *Field) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "field.nc")
	w, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.WriteNetCDF(w))
	require.NoError(t, w.Close())
	return path
}

func readTemp(t *testing.T, path string) (*Field, error) {
	t.Helper()
	r, err := os.Open(path)
	require.NoError(t, err)
	defer r.Close()
	return ReadNetCDF(r)
}

func TestNetCDFRoundTrip(t *testing.T) {
	f := constantField("HadGEM2-ES", Celsius, 0, 2, testLats, testLons)
	for i := range f.Data.Elements {
		f.Data.Elements[i] = 20 + float64(i)/7
	}
	f.Mask[5] = true
	f.Attributes["project"] = "CMIP5"
	require.NoError(t, f.Coord(LatitudeDim).GuessBounds())

	g, err := readTemp(t, writeTemp(t, f))
	require.NoError(t, err)
	assert.Equal(t, f, g)
}

func TestNetCDFRoundTripLabels(t *testing.T) {
	a := latLonField("a", []float64{0, 1}, []float64{0, 1}, func(j, i int) float64 { return 1 })
	b := latLonField("b", []float64{0, 1}, []float64{0, 1}, func(j, i int) float64 { return 2 })
	m, err := MergeModels([]*Field{a, b})
	require.NoError(t, err)

	g, err := readTemp(t, writeTemp(t, m))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, g.Coord(ModelDim).Labels)
	assert.Equal(t, m.Data.Elements, g.Data.Elements)
}

func TestReadNetCDFCorrupt(t *testing.T) {
	f := constantField("m", Celsius, 1, 2, testLats, testLons)
	path := writeTemp(t, f)
	b, err := os.ReadFile(path)
	require.NoError(t, err)

	truncated := filepath.Join(t.TempDir(), "truncated.nc")
	require.NoError(t, os.WriteFile(truncated, b[:len(b)/2], 0644))
	_, err = readTemp(t, truncated)
	assert.Error(t, err)

	garbage := filepath.Join(t.TempDir(), "garbage.nc")
	require.NoError(t, os.WriteFile(garbage, []byte("not a netcdf file"), 0644))
	_, err = readTemp(t, garbage)
	assert.Error(t, err)
}
