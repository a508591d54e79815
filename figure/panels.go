/*
Copyright © 2018 the sstdiag authors.
This file is part of sstdiag.

sstdiag is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

sstdiag is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with sstdiag.  If not, see <http://www.gnu.org/licenses/>.
*/

package figure

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/spatialmodel/sstdiag"
	"github.com/spatialmodel/sstdiag/chain"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// EnsembleLabel is the legend label of the ensemble mean.
const EnsembleLabel = "ensemble mean"

// Data holds the fields drawn in the figure. The per-model slices are
// in the same order as Models and never include the reference.
type Data struct {
	// Project names the model ensemble in the panel titles, e.g. "CMIP5".
	Project string

	Reference string
	Models    []string

	ZonalMeanErrors  []*sstdiag.Field
	EquatorialErrors []*sstdiag.Field
	Equatorials      []*sstdiag.Field

	// RefEquatorial is the equatorial mean of the reference dataset.
	RefEquatorial *sstdiag.Field
}

// FromTable selects the fields to plot from the result table t.
func FromTable(t *chain.Table, project string) (*Data, error) {
	d := &Data{Project: project, Models: t.Models(false)}
	ref := t.Reference()
	if ref == nil {
		return nil, fmt.Errorf("figure: result table has no reference")
	}
	d.Reference = ref.Model
	var ok bool
	d.RefEquatorial, ok = ref.Cells[chain.Column(chain.EquatorialPrefix)]
	if !ok {
		return nil, fmt.Errorf("figure: result table has no %s column", chain.Column(chain.EquatorialPrefix))
	}
	var err error
	if d.ZonalMeanErrors, err = t.Column(chain.Column(chain.ZonalMeanErrorPrefix)); err != nil {
		return nil, err
	}
	if d.EquatorialErrors, err = t.Column(chain.Column(chain.EquatorialErrorPrefix)); err != nil {
		return nil, err
	}
	if d.Equatorials, err = t.Column(chain.Column(chain.EquatorialPrefix)); err != nil {
		return nil, err
	}
	return d, nil
}

// Options control the appearance of the figure.
type Options struct {
	// RefLineStyle is used for the ensemble mean. The reference is drawn
	// with the same width and dashes, in black.
	RefLineStyle draw.LineStyle

	Width, Height vg.Length
	DPI           int
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		RefLineStyle: draw.LineStyle{Color: color.NRGBA{R: 214, G: 39, B: 40, A: 255}, Width: vg.Points(3)},
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		DPI:          DefaultDPI,
	}
}

// Axis ranges.
const (
	latMin, latMax = -90., 90.
	lonMin, lonMax = 25., 360.
	errMin, errMax = -5., 5.
	sstMin, sstMax = 22., 31.
)

// Plot draws the zonal mean and equatorial SST errors of each model,
// their ensemble mean and spread, and the equatorial SST of the reference,
// on a new figure.
func Plot(d *Data, o Options) (*Figure, error) {
	n := len(d.Models)
	if n == 0 {
		return nil, fmt.Errorf("figure: no models to plot")
	}
	if len(d.ZonalMeanErrors) != n || len(d.EquatorialErrors) != n || len(d.Equatorials) != n {
		return nil, fmt.Errorf("figure: %d models but %d zonal mean errors, %d equatorial errors and %d equatorial means",
			n, len(d.ZonalMeanErrors), len(d.EquatorialErrors), len(d.Equatorials))
	}
	if d.RefEquatorial == nil {
		return nil, fmt.Errorf("figure: no reference equatorial mean")
	}
	f, err := New(o.Width, o.Height, o.DPI)
	if err != nil {
		return nil, err
	}
	colors := modelColors(n)
	modelStyles := make([]draw.LineStyle, n)
	for i, c := range colors {
		modelStyles[i] = draw.LineStyle{Color: c, Width: vg.Points(1)}
	}
	refStyle := o.RefLineStyle
	refStyle.Color = color.Black

	a := f.Panels[0][0].Plot
	setupAxes(a, "(a) Zonal mean SST error "+d.Project, "SST error (°C)", latitudeAxis, errMin, errMax)
	if err := plotModels(a, d.ZonalMeanErrors, sstdiag.LatitudeDim, modelStyles, o.RefLineStyle); err != nil {
		return nil, err
	}

	b := f.Panels[0][1].Plot
	setupAxes(b, "(b) Equatorial SST error "+d.Project, "SST error (°C)", longitudeAxis, errMin, errMax)
	if err := plotModels(b, d.EquatorialErrors, sstdiag.LongitudeDim, modelStyles, o.RefLineStyle); err != nil {
		return nil, err
	}

	c := f.Panels[1][0].Plot
	setupAxes(c, "(c) Zonal mean SST error "+d.Project, "SST error (°C)", latitudeAxis, errMin, errMax)
	if err := plotSpread(c, d.ZonalMeanErrors, sstdiag.LatitudeDim, o.RefLineStyle); err != nil {
		return nil, err
	}

	e := f.Panels[1][1].Plot
	setupAxes(e, "(d) Equatorial SST "+d.Project, "SST (°C)", longitudeAxis, sstMin, sstMax)
	if err := plotSpread(e, d.Equatorials, sstdiag.LongitudeDim, o.RefLineStyle); err != nil {
		return nil, err
	}
	x, idx, err := profileAxis(d.RefEquatorial, sstdiag.LongitudeDim)
	if err != nil {
		return nil, err
	}
	vals, ok := d.RefEquatorial.Values()
	if err := addLines(e, x, permute(vals, idx), permuteBool(ok, idx), refStyle); err != nil {
		return nil, err
	}

	f.AddLegend(d.Reference, lineThumb{refStyle})
	f.AddLegend(EnsembleLabel, lineThumb{o.RefLineStyle})
	for i, m := range d.Models {
		f.AddLegend(m, lineThumb{modelStyles[i]})
	}
	f.Draw()
	return f, nil
}

type axisKind int

const (
	latitudeAxis axisKind = iota
	longitudeAxis
)

func setupAxes(p *plot.Plot, title, ylabel string, x axisKind, ymin, ymax float64) {
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	p.Y.Min, p.Y.Max = ymin, ymax
	p.Y.Tick.Marker = ticks(ymin, ymax, 2, 0.5, valueLabel)
	switch x {
	case latitudeAxis:
		p.X.Label.Text = "Latitude"
		p.X.Min, p.X.Max = latMin, latMax
		p.X.Tick.Marker = ticks(latMin, latMax, 30, 10, latitudeLabel)
	case longitudeAxis:
		p.X.Label.Text = "Longitude"
		p.X.Min, p.X.Max = lonMin, lonMax
		p.X.Tick.Marker = ticks(lonMin, lonMax, 60, 30, longitudeLabel)
	}
	p.Add(plotter.NewGrid())
}

// plotModels draws one line for each field and a line for their
// ensemble mean.
func plotModels(p *plot.Plot, fields []*sstdiag.Field, dim string, styles []draw.LineStyle, meanStyle draw.LineStyle) error {
	for i, fld := range fields {
		x, idx, err := profileAxis(fld, dim)
		if err != nil {
			return err
		}
		vals, ok := fld.Values()
		if err := addLines(p, x, permute(vals, idx), permuteBool(ok, idx), styles[i]); err != nil {
			return err
		}
	}
	mean, err := sstdiag.EnsembleMean(fields)
	if err != nil {
		return fmt.Errorf("figure: %w", err)
	}
	x, idx, err := profileAxis(mean, dim)
	if err != nil {
		return err
	}
	vals, ok := mean.Values()
	return addLines(p, x, permute(vals, idx), permuteBool(ok, idx), meanStyle)
}

// plotSpread draws the ensemble mean of fields with a shaded band one
// standard deviation to either side of it.
func plotSpread(p *plot.Plot, fields []*sstdiag.Field, dim string, meanStyle draw.LineStyle) error {
	mean, std, valid, err := sstdiag.EnsembleStats(fields)
	if err != nil {
		return fmt.Errorf("figure: %w", err)
	}
	x, idx, err := profileAxis(fields[0], dim)
	if err != nil {
		return err
	}
	mean, std, valid = permute(mean, idx), permute(std, idx), permuteBool(valid, idx)
	lo := make([]float64, len(mean))
	hi := make([]float64, len(mean))
	for i := range mean {
		lo[i], hi[i] = mean[i]-std[i], mean[i]+std[i]
	}
	if err := addBand(p, x, lo, hi, valid, bandColor); err != nil {
		return err
	}
	return addLines(p, x, mean, valid, meanStyle)
}

var bandColor = color.NRGBA{R: 31, G: 119, B: 180, A: 128}

// profileAxis returns the coordinate values of one-dimensional field f,
// which must lie along dim, in increasing order, together with the
// element index of each. Longitudes are converted to the range (25, 385]
// so that the profile is continuous across the plotted range.
func profileAxis(f *sstdiag.Field, dim string) (x []float64, idx []int, err error) {
	if dims := f.Dims(); len(dims) != 1 || dims[0] != dim {
		return nil, nil, fmt.Errorf("figure: model %s: expected a profile along %s but dimensions are %v",
			f.Model(), dim, dims)
	}
	pts := f.Coords[0].Points
	x = make([]float64, len(pts))
	idx = make([]int, len(pts))
	for i, v := range pts {
		if dim == sstdiag.LongitudeDim {
			v = math.Mod(v-lonMin, 360)
			if v <= 0 {
				v += 360
			}
			v += lonMin
		}
		x[i] = v
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return x[idx[i]] < x[idx[j]] })
	sorted := make([]float64, len(x))
	for i, j := range idx {
		sorted[i] = x[j]
	}
	return sorted, idx, nil
}

func permute(v []float64, idx []int) []float64 {
	o := make([]float64, len(idx))
	for i, j := range idx {
		o[i] = v[j]
	}
	return o
}

func permuteBool(v []bool, idx []int) []bool {
	o := make([]bool, len(idx))
	for i, j := range idx {
		o[i] = v[j]
	}
	return o
}

// runs returns the [start, end) index ranges of consecutive valid values.
func runs(y []float64, valid []bool) [][2]int {
	var o [][2]int
	start := -1
	for i := range y {
		if valid[i] && !math.IsNaN(y[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			o = append(o, [2]int{start, i})
			start = -1
		}
	}
	if start >= 0 {
		o = append(o, [2]int{start, len(y)})
	}
	return o
}

// segments splits the points into runs of consecutive valid values.
func segments(x, y []float64, valid []bool) []plotter.XYs {
	var o []plotter.XYs
	for _, r := range runs(y, valid) {
		seg := make(plotter.XYs, 0, r[1]-r[0])
		for i := r[0]; i < r[1]; i++ {
			seg = append(seg, plotter.XY{X: x[i], Y: y[i]})
		}
		o = append(o, seg)
	}
	return o
}

func addLines(p *plot.Plot, x, y []float64, valid []bool, style draw.LineStyle) error {
	for _, seg := range segments(x, y, valid) {
		l, err := plotter.NewLine(seg)
		if err != nil {
			return fmt.Errorf("figure: %v", err)
		}
		l.LineStyle = style
		p.Add(l)
	}
	return nil
}

// addBand shades the area between lo and hi, leaving gaps where the
// values are not valid.
func addBand(p *plot.Plot, x, lo, hi []float64, valid []bool, fill color.Color) error {
	for _, r := range runs(lo, valid) {
		if r[1]-r[0] < 2 {
			continue
		}
		ring := make(plotter.XYs, 0, 2*(r[1]-r[0]))
		for i := r[0]; i < r[1]; i++ {
			ring = append(ring, plotter.XY{X: x[i], Y: lo[i]})
		}
		for i := r[1] - 1; i >= r[0]; i-- {
			ring = append(ring, plotter.XY{X: x[i], Y: hi[i]})
		}
		poly, err := plotter.NewPolygon(ring)
		if err != nil {
			return fmt.Errorf("figure: %v", err)
		}
		poly.Color = fill
		poly.LineStyle.Width = 0
		p.Add(poly)
	}
	return nil
}

// modelColors returns n distinguishable colors.
func modelColors(n int) []color.Color {
	cm := moreland.ExtendedKindlmann()
	cm.SetMin(0)
	cm.SetMax(1)
	o := make([]color.Color, n)
	for i := range o {
		v := 0.15
		if n > 1 {
			v += 0.65 * float64(i) / float64(n-1)
		}
		c, err := cm.At(v)
		if err != nil {
			c = color.Gray{Y: 128}
		}
		o[i] = c
	}
	return o
}

// lineThumb draws a legend thumbnail for a line.
type lineThumb struct {
	draw.LineStyle
}

func (l lineThumb) Thumbnail(c *draw.Canvas) {
	y := c.Center().Y
	c.StrokeLine2(l.LineStyle, c.Min.X, y, c.Max.X, y)
}
