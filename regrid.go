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

package sstdiag

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// gridCell is a source grid cell stored in the regridding index.
type gridCell struct {
	geom.Polygon
	j, i int // latitude and longitude indices
}

type overlap struct {
	src    int // flattened horizontal index in the source grid
	weight float64
}

func rect(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0},
		{X: x1, Y: y0},
		{X: x1, Y: y1},
		{X: x0, Y: y1},
	}}
}

func span(a [2]float64) (lo, hi float64) {
	if a[0] > a[1] {
		return a[1], a[0]
	}
	return a[0], a[1]
}

// intersection returns the overlap of two axis-aligned rectangles.
// The result is empty, with Max less than Min, when they do not overlap.
func intersection(a, b *geom.Bounds) *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: math.Max(a.Min.X, b.Min.X), Y: math.Max(a.Min.Y, b.Min.Y)},
		Max: geom.Point{X: math.Min(a.Max.X, b.Max.X), Y: math.Min(a.Max.Y, b.Max.Y)},
	}
}

// sphericalArea returns the area on the unit sphere of the
// longitude-latitude rectangle with bounds b, in degrees.
func sphericalArea(b *geom.Bounds) float64 {
	const deg2rad = math.Pi / 180
	if b.Max.X <= b.Min.X || b.Max.Y <= b.Min.Y {
		return 0
	}
	dx := (b.Max.X - b.Min.X) * deg2rad
	return dx * (math.Sin(b.Max.Y*deg2rad) - math.Sin(b.Min.Y*deg2rad))
}

// horizontal checks that latitude and longitude are the last two
// dimensions of f and returns the number of leading elements.
func (f *Field) horizontal() (lead int, err error) {
	n := len(f.Coords)
	if n < 2 || f.Coords[n-2].Name != LatitudeDim || f.Coords[n-1].Name != LongitudeDim {
		return 0, fmt.Errorf("%w: field %s of model %s has dimensions %v; "+
			"latitude and longitude must be the last two", ErrGridMismatch, f.Name, f.Model(), f.Dims())
	}
	lead = 1
	for _, s := range f.Data.Shape[:n-2] {
		lead *= s
	}
	return lead, nil
}

// horizontalMask returns, for each horizontal cell of f, whether f is
// masked at every one of its lead leading indices.
func (f *Field) horizontalMask(lead int) []bool {
	horiz := len(f.Mask) / lead
	masked := make([]bool, horiz)
	for k := range masked {
		masked[k] = true
		for l := 0; l < lead; l++ {
			if !f.Mask[l*horiz+k] {
				masked[k] = false
				break
			}
		}
	}
	return masked
}

// Regrid remaps f onto the horizontal grid of target using first-order
// conservative remapping with spherical cell-area weights. Longitudes
// are matched modulo 360. Target cells with no valid overlapping source
// cell are masked, as are target cells that are masked at every
// leading index of target. Dimensions other than latitude and
// longitude are carried over from f.
func Regrid(f, target *Field) (*Field, error) {
	srcLead, err := f.horizontal()
	if err != nil {
		return nil, fmt.Errorf("sstdiag: regridding: %w", err)
	}
	tgtLead, err := target.horizontal()
	if err != nil {
		return nil, fmt.Errorf("sstdiag: regridding: %w", err)
	}
	src := f.Copy()
	if err := src.ensureHorizontalBounds(); err != nil {
		return nil, fmt.Errorf("sstdiag: regridding model %s: %w", f.Model(), err)
	}
	tgt := target.Copy()
	if err := tgt.ensureHorizontalBounds(); err != nil {
		return nil, fmt.Errorf("sstdiag: regridding onto model %s: %w", target.Model(), err)
	}
	sLat, sLon := src.Coord(LatitudeDim), src.Coord(LongitudeDim)
	tLat, tLon := tgt.Coord(LatitudeDim), tgt.Coord(LongitudeDim)
	snx := sLon.Len()
	sHoriz := sLat.Len() * snx
	tnx := tLon.Len()
	tHoriz := tLat.Len() * tnx

	index := rtree.NewTree(25, 50)
	for j, lb := range sLat.Bounds {
		y0, y1 := span(lb)
		for i, xb := range sLon.Bounds {
			x0, x1 := span(xb)
			for _, shift := range []float64{-360, 0, 360} {
				index.Insert(gridCell{
					Polygon: rect(x0+shift, y0, x1+shift, y1),
					j:       j,
					i:       i,
				})
			}
		}
	}

	weights := make([][]overlap, tHoriz)
	for j, lb := range tLat.Bounds {
		y0, y1 := span(lb)
		for i, xb := range tLon.Bounds {
			x0, x1 := span(xb)
			p := rect(x0, y0, x1, y1)
			for _, cI := range index.SearchIntersect(p.Bounds()) {
				c := cI.(gridCell)
				w := sphericalArea(intersection(p.Bounds(), c.Bounds()))
				if w <= 0 {
					continue
				}
				weights[j*tnx+i] = append(weights[j*tnx+i], overlap{src: c.j*snx + c.i, weight: w})
			}
		}
	}

	tgtMasked := target.horizontalMask(tgtLead)

	coords := make([]Coord, len(f.Coords))
	for i, c := range src.Coords[:len(src.Coords)-2] {
		coords[i] = c.copy()
	}
	coords[len(coords)-2] = tLat.copy()
	coords[len(coords)-1] = tLon.copy()
	o := f.newLike(coords)

	for l := 0; l < srcLead; l++ {
		for k := 0; k < tHoriz; k++ {
			ko := l*tHoriz + k
			if tgtMasked[k] {
				o.Mask[ko] = true
				continue
			}
			var sum, wsum float64
			for _, ov := range weights[k] {
				ks := l*sHoriz + ov.src
				if f.Mask[ks] {
					continue
				}
				sum += f.Data.Elements[ks] * ov.weight
				wsum += ov.weight
			}
			if wsum == 0 {
				o.Mask[ko] = true
				continue
			}
			o.Data.Elements[ko] = sum / wsum
		}
	}
	return o, nil
}
