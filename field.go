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

// Package sstdiag computes zonal-mean and equatorial sea-surface temperature
// errors of climate models relative to an observational reference.
package sstdiag

import (
	"errors"
	"fmt"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Version gives the version number of this package.
const Version = "0.1.0"

// Names of the dimensions that the reductions operate on.
const (
	TimeDim      = "time"
	LatitudeDim  = "latitude"
	LongitudeDim = "longitude"
	ModelDim     = "model"
)

// coordTolerance is the tolerance used when comparing coordinate values
// of two grids.
const coordTolerance = 1.e-6

// ErrGridMismatch is returned when two fields that are required to share
// a grid do not.
var ErrGridMismatch = errors.New("sstdiag: fields are not on the same grid")

// Coord holds the coordinate information for one dimension of a Field.
type Coord struct {
	Name  string
	Units string

	// Points are the coordinate values at the cell centers.
	Points []float64

	// Bounds are the lower and upper cell edges for each point.
	// Bounds is nil when the edges are not known.
	Bounds [][2]float64

	// Labels optionally name each point, e.g. for the model dimension.
	Labels []string
}

// Len returns the number of points in the coordinate.
func (c *Coord) Len() int { return len(c.Points) }

func (c Coord) copy() Coord {
	o := Coord{Name: c.Name, Units: c.Units}
	o.Points = append([]float64(nil), c.Points...)
	if c.Bounds != nil {
		o.Bounds = append([][2]float64(nil), c.Bounds...)
	}
	if c.Labels != nil {
		o.Labels = append([]string(nil), c.Labels...)
	}
	return o
}

// subset returns a copy of c holding only the points at indices.
func (c Coord) subset(indices []int) Coord {
	o := Coord{Name: c.Name, Units: c.Units, Points: make([]float64, len(indices))}
	if c.Bounds != nil {
		o.Bounds = make([][2]float64, len(indices))
	}
	if c.Labels != nil {
		o.Labels = make([]string, len(indices))
	}
	for i, j := range indices {
		o.Points[i] = c.Points[j]
		if c.Bounds != nil {
			o.Bounds[i] = c.Bounds[j]
		}
		if c.Labels != nil {
			o.Labels[i] = c.Labels[j]
		}
	}
	return o
}

// Field is a gridded variable with named dimensions, units, and a
// per-element validity mask. Operations on a Field return new Fields;
// a Field is not modified after it has been handed to another step.
type Field struct {
	Name     string // short variable name, e.g. "tos"
	LongName string
	Units    string

	// Coords describes each dimension of Data, in order.
	Coords []Coord

	// Data holds the values, with Data.Shape matching Coords.
	Data *sparse.DenseArray

	// Mask is true for elements that are not valid. It has the same
	// length as Data.Elements.
	Mask []bool

	// Attributes holds metadata such as the model identifier.
	Attributes map[string]string
}

// NewField creates a zero-valued, unmasked Field with the given coordinates.
func NewField(name, units string, coords ...Coord) *Field {
	shape := make([]int, len(coords))
	for i, c := range coords {
		shape[i] = c.Len()
	}
	f := &Field{
		Name:       name,
		Units:      units,
		Coords:     coords,
		Data:       sparse.ZerosDense(shape...),
		Attributes: make(map[string]string),
	}
	f.Mask = make([]bool, len(f.Data.Elements))
	return f
}

// newLike creates a Field with the metadata of f but with new coordinates.
func (f *Field) newLike(coords []Coord) *Field {
	o := NewField(f.Name, f.Units, coords...)
	o.LongName = f.LongName
	for k, v := range f.Attributes {
		o.Attributes[k] = v
	}
	return o
}

// Copy returns a deep copy of f.
func (f *Field) Copy() *Field {
	coords := make([]Coord, len(f.Coords))
	for i, c := range f.Coords {
		coords[i] = c.copy()
	}
	o := f.newLike(coords)
	copy(o.Data.Elements, f.Data.Elements)
	copy(o.Mask, f.Mask)
	return o
}

// Model returns the identifier of the model that f belongs to.
func (f *Field) Model() string { return f.Attributes["model"] }

// Dims returns the dimension names of f.
func (f *Field) Dims() []string {
	o := make([]string, len(f.Coords))
	for i, c := range f.Coords {
		o[i] = c.Name
	}
	return o
}

// Shape returns the length of each dimension of f.
func (f *Field) Shape() []int { return f.Data.Shape }

// Dim returns the index of the named dimension, or -1 if f has no such
// dimension.
func (f *Field) Dim(name string) int {
	for i, c := range f.Coords {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Coord returns the coordinate for the named dimension, or nil if
// there is no such dimension. Modifying the returned Coord modifies f.
func (f *Field) Coord(name string) *Coord {
	if i := f.Dim(name); i >= 0 {
		return &f.Coords[i]
	}
	return nil
}

// Valid returns whether element i of the flattened data is unmasked.
func (f *Field) Valid(i int) bool { return !f.Mask[i] }

// Values returns the flattened data with masked elements replaced by
// ok == false.
func (f *Field) Values() (vals []float64, ok []bool) {
	vals = make([]float64, len(f.Data.Elements))
	ok = make([]bool, len(f.Data.Elements))
	for i, v := range f.Data.Elements {
		vals[i] = v
		ok[i] = !f.Mask[i]
	}
	return vals, ok
}

// SameGrid returns whether f and o have the same dimensions with the
// same coordinate values.
func (f *Field) SameGrid(o *Field) bool {
	if len(f.Coords) != len(o.Coords) {
		return false
	}
	for i, c := range f.Coords {
		oc := o.Coords[i]
		if c.Name != oc.Name || c.Len() != oc.Len() {
			return false
		}
		if !floats.EqualApprox(c.Points, oc.Points, coordTolerance) {
			return false
		}
	}
	return true
}

// axis returns the number of elements before, along, and after
// dimension d in the flattened data.
func (f *Field) axis(d int) (outer, n, inner int) {
	outer, inner = 1, 1
	for i, s := range f.Data.Shape {
		switch {
		case i < d:
			outer *= s
		case i > d:
			inner *= s
		}
	}
	return outer, f.Data.Shape[d], inner
}

// CollapseMean returns a new Field where dimension dim has been removed
// by taking the arithmetic mean of the valid elements along it. Output
// elements with no valid input are masked.
func (f *Field) CollapseMean(dim string) (*Field, error) {
	d := f.Dim(dim)
	if d < 0 {
		return nil, fmt.Errorf("sstdiag: collapsing %s: field %s has no dimension %q (dimensions are %v)",
			dim, f.Name, dim, f.Dims())
	}
	if len(f.Coords) == 1 {
		return nil, fmt.Errorf("sstdiag: collapsing %s: it is the only dimension of field %s", dim, f.Name)
	}
	coords := make([]Coord, 0, len(f.Coords)-1)
	for i, c := range f.Coords {
		if i != d {
			coords = append(coords, c.copy())
		}
	}
	o := f.newLike(coords)

	outer, n, inner := f.axis(d)
	buf := make([]float64, 0, n)
	for io := 0; io < outer; io++ {
		for ii := 0; ii < inner; ii++ {
			buf = buf[:0]
			for j := 0; j < n; j++ {
				k := (io*n+j)*inner + ii
				if !f.Mask[k] {
					buf = append(buf, f.Data.Elements[k])
				}
			}
			ko := io*inner + ii
			if len(buf) == 0 {
				o.Mask[ko] = true
				continue
			}
			o.Data.Elements[ko] = stat.Mean(buf, nil)
		}
	}
	return o, nil
}

// Extract returns a new Field holding only the points along dimension
// dim for which keep returns true.
func (f *Field) Extract(dim string, keep func(point float64) bool) (*Field, error) {
	d := f.Dim(dim)
	if d < 0 {
		return nil, fmt.Errorf("sstdiag: extracting from %s: field %s has no dimension %q", dim, f.Name, dim)
	}
	var indices []int
	for i, p := range f.Coords[d].Points {
		if keep(p) {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("sstdiag: extracting from %s: no points selected in field %s (model %s)",
			dim, f.Name, f.Model())
	}
	coords := make([]Coord, len(f.Coords))
	for i, c := range f.Coords {
		if i == d {
			coords[i] = c.subset(indices)
		} else {
			coords[i] = c.copy()
		}
	}
	o := f.newLike(coords)

	outer, n, inner := f.axis(d)
	m := len(indices)
	for io := 0; io < outer; io++ {
		for jo, j := range indices {
			for ii := 0; ii < inner; ii++ {
				k := (io*n+j)*inner + ii
				ko := (io*m+jo)*inner + ii
				o.Data.Elements[ko] = f.Data.Elements[k]
				o.Mask[ko] = f.Mask[k]
			}
		}
	}
	return o, nil
}
