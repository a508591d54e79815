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

	"github.com/sirupsen/logrus"
)

// Log receives messages from the reductions. It can be replaced
// to redirect or silence them.
var Log logrus.FieldLogger = logrus.StandardLogger()

// Reduction is a processing step that derives a new field from f.
// ref is the corresponding field of the reference dataset; reductions
// that do not need it ignore it.
type Reduction func(f, ref *Field) (*Field, error)

// Limits of the equatorial band and of the Maritime Continent, in degrees.
const (
	EquatorSouth = -5.
	EquatorNorth = 5.

	MaritimeContinentWest = 98.
	MaritimeContinentEast = 121.
)

// Climatology averages f over time and converts it to degrees Celsius.
// Missing latitude and longitude bounds are guessed. If ref is not nil
// and is on a different grid, the result is regridded onto the grid
// of ref. Either way, cells where ref is masked at every time step are
// masked in the result.
func Climatology(f, ref *Field) (*Field, error) {
	clim := f
	if f.Dim(TimeDim) >= 0 {
		var err error
		clim, err = f.CollapseMean(TimeDim)
		if err != nil {
			return nil, err
		}
	}
	clim, err := ToCelsius(clim)
	if err != nil {
		return nil, err
	}
	if err := clim.ensureHorizontalBounds(); err != nil {
		Log.WithFields(logrus.Fields{
			"model":    f.Model(),
			"variable": f.Name,
		}).Errorf("bounds missing from grid and cannot be guessed: %v", err)
		return nil, fmt.Errorf("sstdiag: climatology of model %s: %w", f.Model(), err)
	}
	if ref == nil {
		return clim, nil
	}
	lead, err := clim.horizontal()
	if err != nil {
		return nil, fmt.Errorf("sstdiag: climatology of model %s: %w", f.Model(), err)
	}
	if lead == 1 && sameHorizontalGrid(clim, ref) {
		// Cells where the reference has no data are dropped, as Regrid
		// does on other grids.
		refLead, err := ref.horizontal()
		if err != nil {
			return nil, fmt.Errorf("sstdiag: climatology of model %s: %w", f.Model(), err)
		}
		for k, m := range ref.horizontalMask(refLead) {
			if m {
				clim.Mask[k] = true
			}
		}
		return clim, nil
	}
	out, err := Regrid(clim, ref)
	if err != nil {
		return nil, fmt.Errorf("sstdiag: climatology of model %s: %w", f.Model(), err)
	}
	return out, nil
}

// sameHorizontalGrid returns whether f and ref have the same latitude
// and longitude points.
func sameHorizontalGrid(f, ref *Field) bool {
	for _, dim := range []string{LatitudeDim, LongitudeDim} {
		a, b := f.Coord(dim), ref.Coord(dim)
		if a == nil || b == nil || a.Len() != b.Len() {
			return false
		}
		for i, p := range a.Points {
			if math.Abs(p-b.Points[i]) > coordTolerance {
				return false
			}
		}
	}
	return true
}

// ZonalMean averages f over longitude. ref is ignored.
func ZonalMean(f, _ *Field) (*Field, error) {
	o, err := f.CollapseMean(LongitudeDim)
	if err != nil {
		return nil, err
	}
	o.LongName = "Zonal mean SST"
	return o, nil
}

// normalizeLongitude returns lon in the range [0, 360).
func normalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	return lon
}

// EquatorialMean averages f over the latitudes within the equatorial
// band and masks the longitudes of the Maritime Continent. ref is ignored.
func EquatorialMean(f, _ *Field) (*Field, error) {
	band, err := f.Extract(LatitudeDim, func(lat float64) bool {
		return lat >= EquatorSouth && lat <= EquatorNorth
	})
	if err != nil {
		return nil, err
	}
	o, err := band.CollapseMean(LatitudeDim)
	if err != nil {
		return nil, err
	}
	o.LongName = "Equatorial SST"

	d := o.Dim(LongitudeDim)
	if d < 0 {
		return nil, fmt.Errorf("sstdiag: equatorial mean of model %s: no longitude dimension", f.Model())
	}
	outer, n, inner := o.axis(d)
	for i, lon := range o.Coords[d].Points {
		lon = normalizeLongitude(lon)
		if lon < MaritimeContinentWest || lon > MaritimeContinentEast {
			continue
		}
		for io := 0; io < outer; io++ {
			for ii := 0; ii < inner; ii++ {
				o.Mask[(io*n+i)*inner+ii] = true
			}
		}
	}
	return o, nil
}

// Error returns f - ref. The two fields must be on the same grid.
// An element of the result is masked where either input is masked.
func Error(f, ref *Field) (*Field, error) {
	if ref == nil {
		return nil, fmt.Errorf("sstdiag: error of model %s: no reference field", f.Model())
	}
	if !f.SameGrid(ref) {
		return nil, fmt.Errorf("sstdiag: error of model %s relative to %s: %w (dimensions %v%v, reference %v%v)",
			f.Model(), ref.Model(), ErrGridMismatch, f.Dims(), f.Shape(), ref.Dims(), ref.Shape())
	}
	o := f.Copy()
	o.LongName = f.LongName + " error"
	for i, v := range f.Data.Elements {
		if f.Mask[i] || ref.Mask[i] {
			o.Mask[i] = true
			o.Data.Elements[i] = 0
			continue
		}
		o.Data.Elements[i] = v - ref.Data.Elements[i]
	}
	return o, nil
}
