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

	"gonum.org/v1/gonum/stat"
)

// MergeModels stacks fields from different models along a new leading
// "model" dimension whose labels are the model identifiers. All fields
// must be on the same grid.
func MergeModels(fields []*Field) (*Field, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("sstdiag: merging models: no fields")
	}
	first := fields[0]
	model := Coord{
		Name:   ModelDim,
		Points: make([]float64, len(fields)),
		Labels: make([]string, len(fields)),
	}
	for i, f := range fields {
		if !f.SameGrid(first) {
			return nil, fmt.Errorf("sstdiag: merging model %s with %s: %w", f.Model(), first.Model(), ErrGridMismatch)
		}
		model.Points[i] = float64(i)
		model.Labels[i] = f.Model()
	}
	coords := make([]Coord, 0, len(first.Coords)+1)
	coords = append(coords, model)
	for _, c := range first.Coords {
		coords = append(coords, c.copy())
	}
	o := first.newLike(coords)
	delete(o.Attributes, "model")
	n := len(first.Data.Elements)
	for i, f := range fields {
		copy(o.Data.Elements[i*n:(i+1)*n], f.Data.Elements)
		copy(o.Mask[i*n:(i+1)*n], f.Mask)
	}
	return o, nil
}

// EnsembleMean returns the mean across models of the given fields.
func EnsembleMean(fields []*Field) (*Field, error) {
	m, err := MergeModels(fields)
	if err != nil {
		return nil, err
	}
	o, err := m.CollapseMean(ModelDim)
	if err != nil {
		return nil, err
	}
	o.Attributes["model"] = "ensemble mean"
	return o, nil
}

// EnsembleStats returns, for each element of the given same-grid fields,
// the mean and the population standard deviation across the valid
// members. valid is false where no member is valid.
func EnsembleStats(fields []*Field) (mean, std []float64, valid []bool, err error) {
	m, err := MergeModels(fields)
	if err != nil {
		return nil, nil, nil, err
	}
	n := len(fields[0].Data.Elements)
	mean = make([]float64, n)
	std = make([]float64, n)
	valid = make([]bool, n)
	buf := make([]float64, 0, len(fields))
	for k := 0; k < n; k++ {
		buf = buf[:0]
		for i := range fields {
			if !m.Mask[i*n+k] {
				buf = append(buf, m.Data.Elements[i*n+k])
			}
		}
		if len(buf) == 0 {
			continue
		}
		valid[k] = true
		mean[k] = stat.Mean(buf, nil)
		std[k] = math.Sqrt(stat.MomentAbout(2, buf, mean[k], nil))
	}
	return mean, std, valid, nil
}
