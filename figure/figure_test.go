package figure

import (
	"bytes"
	"image"
	_ "image/png"
	"math"
	"path/filepath"
	"testing"

	"github.com/spatialmodel/sstdiag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"
)

func profile(model, dim string, points []float64, fn func(i int) float64) *sstdiag.Field {
	f := sstdiag.NewField("tos", sstdiag.Celsius,
		sstdiag.Coord{Name: dim, Points: append([]float64(nil), points...)})
	for i := range f.Data.Elements {
		f.Data.Elements[i] = fn(i)
	}
	f.Attributes["model"] = model
	return f
}

func testData() *Data {
	lats := []float64{-60, -30, 0, 30, 60}
	lons := []float64{-150, -90, -30, 30, 90, 105, 150}
	d := &Data{Project: "CMIP5", Reference: "HadISST", Models: []string{"A", "B", "C"}}
	for j, m := range d.Models {
		off := float64(j) - 1
		d.ZonalMeanErrors = append(d.ZonalMeanErrors, profile(m, sstdiag.LatitudeDim, lats,
			func(i int) float64 { return off + math.Sin(lats[i]*math.Pi/180) }))
		e := profile(m, sstdiag.LongitudeDim, lons, func(i int) float64 { return off })
		e.Mask[5] = true
		d.EquatorialErrors = append(d.EquatorialErrors, e)
		q := profile(m, sstdiag.LongitudeDim, lons, func(i int) float64 { return 27 + off })
		q.Mask[5] = true
		d.Equatorials = append(d.Equatorials, q)
	}
	d.RefEquatorial = profile("HadISST", sstdiag.LongitudeDim, lons, func(i int) float64 { return 27.5 })
	d.RefEquatorial.Mask[5] = true
	return d
}

func TestPlot(t *testing.T) {
	o := DefaultOptions()
	o.Width, o.Height = 6*vg.Inch, 5*vg.Inch
	f, err := Plot(testData(), o)
	require.NoError(t, err)

	var labels []string
	for _, e := range f.Legend {
		labels = append(labels, e.Label)
	}
	assert.Equal(t, []string{"HadISST", EnsembleLabel, "A", "B", "C"}, labels)
	assert.Equal(t, "(a) Zonal mean SST error CMIP5", f.Panels[0][0].Plot.Title.Text)
	assert.Equal(t, "(d) Equatorial SST CMIP5", f.Panels[1][1].Plot.Title.Text)
	assert.Equal(t, 22., f.Panels[1][1].Plot.Y.Min)
	assert.Equal(t, 360., f.Panels[0][1].Plot.X.Max)

	path := filepath.Join(t.TempDir(), "fig.png")
	require.NoError(t, f.Save(path))
	assert.FileExists(t, path)

	var b bytes.Buffer
	require.NoError(t, f.WriteTo(&b, "png"))
	img, _, err := image.Decode(&b)
	require.NoError(t, err)
	assert.Equal(t, 6*96, img.Bounds().Dx())
}

func TestPlotFormats(t *testing.T) {
	f, err := New(2*vg.Inch, 2*vg.Inch, 72)
	require.NoError(t, err)
	f.Draw()
	for _, format := range []string{"png", ".jpg", "jpeg", "tif", "TIFF"} {
		var b bytes.Buffer
		assert.NoError(t, f.WriteTo(&b, format), format)
		assert.NotZero(t, b.Len(), format)
	}
	assert.Error(t, f.WriteTo(&bytes.Buffer{}, "bmp"))
}

func TestPlotErrors(t *testing.T) {
	d := testData()
	d.Models = nil
	_, err := Plot(d, DefaultOptions())
	assert.Error(t, err)

	d = testData()
	d.Equatorials = d.Equatorials[:2]
	_, err = Plot(d, DefaultOptions())
	assert.Error(t, err)

	d = testData()
	d.ZonalMeanErrors[1] = d.EquatorialErrors[1]
	_, err = Plot(d, DefaultOptions())
	assert.Error(t, err, "profile along the wrong dimension")
}

func TestSegments(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4, 5}
	y := []float64{1, 1, math.NaN(), 1, 1, 1}
	valid := []bool{true, true, true, true, false, true}
	segs := segments(x, y, valid)
	require.Len(t, segs, 3)
	assert.Len(t, segs[0], 2)
	assert.Len(t, segs[1], 1)
	assert.Equal(t, 5., segs[2][0].X)
}

func TestProfileAxis(t *testing.T) {
	f := profile("m", sstdiag.LongitudeDim, []float64{-170, -10, 0, 10, 170}, func(i int) float64 { return float64(i) })
	x, idx, err := profileAxis(f, sstdiag.LongitudeDim)
	require.NoError(t, err)
	assert.Equal(t, []float64{170, 190, 350, 360, 370}, x)
	assert.Equal(t, []int{4, 0, 1, 2, 3}, idx)
}

func TestTicks(t *testing.T) {
	tk := ticks(-90, 90, 30, 10, latitudeLabel)
	assert.Len(t, tk, 19)
	assert.Equal(t, "90°S", tk[0].Label)
	assert.Equal(t, "", tk[1].Label)
	assert.Equal(t, "0°", tk[9].Label)
	assert.Equal(t, "30°N", tk[12].Label)

	tk = ticks(25, 360, 60, 30, longitudeLabel)
	assert.Equal(t, 30., tk[0].Value)
	assert.Equal(t, "", tk[0].Label)
	assert.Equal(t, "60°E", tk[1].Label)
	assert.Equal(t, "180°", tk[5].Label)
	assert.Equal(t, "120°W", tk[7].Label)
	assert.Equal(t, "0°", tk[len(tk)-1].Label)
}
