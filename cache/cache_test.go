package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spatialmodel/sstdiag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testField(model string) *sstdiag.Field {
	f := sstdiag.NewField("tos", sstdiag.Celsius,
		sstdiag.Coord{Name: sstdiag.LatitudeDim, Units: "degrees_north", Points: []float64{-10, 0, 10}},
	)
	f.LongName = "Zonal mean SST error"
	f.Attributes["model"] = model
	for i := range f.Data.Elements {
		f.Data.Elements[i] = float64(i) - 0.25
	}
	f.Mask[2] = true
	return f
}

func TestMemory(t *testing.T) {
	m := NewMemory(2)
	_, ok := m.Get("tos_clim", "a")
	assert.False(t, ok)

	fa, fb, fc := testField("a"), testField("b"), testField("c")
	require.NoError(t, m.Put("tos_clim", "a", fa))
	require.NoError(t, m.Put("tos_clim", "b", fb))
	got, ok := m.Get("tos_clim", "a")
	require.True(t, ok)
	assert.Same(t, fa, got)

	// "b" is now the least recently used entry.
	require.NoError(t, m.Put("tos_clim", "c", fc))
	assert.Equal(t, 2, m.Len())
	_, ok = m.Get("tos_clim", "b")
	assert.False(t, ok)

	assert.Error(t, m.Put("tos_clim", "d", nil))
}

func TestDiskRoundTrip(t *testing.T) {
	d := NewDisk(t.TempDir(), nil)
	_, ok := d.Get("tos_zonal-mean", "HadGEM2-ES")
	assert.False(t, ok)

	f := testField("HadGEM2-ES")
	require.NoError(t, d.Put("tos_zonal-mean", "HadGEM2-ES", f))
	assert.FileExists(t, filepath.Join(d.Dir, "tos_zonal-mean", "HadGEM2-ES.nc"))

	g, ok := d.Get("tos_zonal-mean", "HadGEM2-ES")
	require.True(t, ok)
	assert.Equal(t, f, g)

	entries, err := os.ReadDir(d.StepDir("tos_zonal-mean"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files should be removed")
}

func TestDiskCorruptIsMiss(t *testing.T) {
	logger, hook := test.NewNullLogger()
	d := NewDisk(t.TempDir(), logger)
	path := d.Location("tos_clim", "bad/model")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), os.ModePerm))
	require.NoError(t, os.WriteFile(path, []byte("CDF\x01 truncated"), 0644))

	_, ok := d.Get("tos_clim", "bad/model")
	assert.False(t, ok)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	// Storing a new field replaces the corrupt artifact.
	require.NoError(t, d.Put("tos_clim", "bad/model", testField("bad/model")))
	_, ok = d.Get("tos_clim", "bad/model")
	assert.True(t, ok)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "tos_clim", sanitize("tos/clim"))
	assert.Equal(t, "CESM1_CAM5", sanitize("CESM1 CAM5"))
}
