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
	"errors"
	"fmt"
	"math"
)

// ErrNoBounds is returned when cell bounds are missing and cannot be
// inferred from the coordinate points.
var ErrNoBounds = errors.New("sstdiag: cannot infer coordinate bounds")

// GuessBounds sets the cell bounds of c to the midpoints between adjacent
// points, extending the first and last cells by half of the neighboring
// cell width. Latitude bounds are clipped to [-90, 90]. At least two
// strictly monotonic points are required.
func (c *Coord) GuessBounds() error {
	n := c.Len()
	if n < 2 {
		return fmt.Errorf("%w: coordinate %s has %d point(s)", ErrNoBounds, c.Name, n)
	}
	increasing := c.Points[1] > c.Points[0]
	for i := 1; i < n; i++ {
		d := c.Points[i] - c.Points[i-1]
		if d == 0 || (d > 0) != increasing || math.IsNaN(d) {
			return fmt.Errorf("%w: coordinate %s is not strictly monotonic at index %d", ErrNoBounds, c.Name, i)
		}
	}
	b := make([][2]float64, n)
	for i := 0; i < n; i++ {
		var lo, hi float64
		if i == 0 {
			lo = c.Points[0] - (c.Points[1]-c.Points[0])/2
		} else {
			lo = (c.Points[i-1] + c.Points[i]) / 2
		}
		if i == n-1 {
			hi = c.Points[n-1] + (c.Points[n-1]-c.Points[n-2])/2
		} else {
			hi = (c.Points[i] + c.Points[i+1]) / 2
		}
		b[i] = [2]float64{lo, hi}
	}
	if c.Name == LatitudeDim {
		for i := range b {
			b[i][0] = math.Max(-90, math.Min(90, b[i][0]))
			b[i][1] = math.Max(-90, math.Min(90, b[i][1]))
		}
	}
	c.Bounds = b
	return nil
}

// HasBounds returns whether c carries one pair of bounds per point.
func (c *Coord) HasBounds() bool {
	return c.Bounds != nil && len(c.Bounds) == c.Len()
}

// ensureHorizontalBounds guesses latitude and longitude bounds where
// they are missing. It modifies f.
func (f *Field) ensureHorizontalBounds() error {
	for _, dim := range []string{LatitudeDim, LongitudeDim} {
		c := f.Coord(dim)
		if c == nil {
			return fmt.Errorf("%w: field %s has no %s dimension", ErrNoBounds, f.Name, dim)
		}
		if c.HasBounds() {
			continue
		}
		if err := c.GuessBounds(); err != nil {
			return err
		}
	}
	return nil
}
