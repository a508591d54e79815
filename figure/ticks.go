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
	"math"

	"gonum.org/v1/plot"
)

// ticks returns major ticks, labeled with label, at the multiples of
// major between min and max, and unlabeled minor ticks at the remaining
// multiples of minor.
func ticks(min, max, major, minor float64, label func(float64) string) plot.ConstantTicks {
	var t plot.ConstantTicks
	const eps = 1e-9
	for i := math.Ceil(min/minor - eps); i*minor <= max+eps; i++ {
		v := i * minor
		if v == 0 {
			v = 0 // not -0
		}
		if r := math.Mod(math.Abs(v), major); r < eps || major-r < eps {
			t = append(t, plot.Tick{Value: v, Label: label(v)})
		} else {
			t = append(t, plot.Tick{Value: v})
		}
	}
	return t
}

func latitudeLabel(lat float64) string {
	switch {
	case lat > 0:
		return fmt.Sprintf("%g°N", lat)
	case lat < 0:
		return fmt.Sprintf("%g°S", -lat)
	}
	return "0°"
}

func longitudeLabel(lon float64) string {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	switch {
	case lon == 0 || lon == 180:
		return fmt.Sprintf("%g°", lon)
	case lon < 180:
		return fmt.Sprintf("%g°E", lon)
	}
	return fmt.Sprintf("%g°W", 360-lon)
}

func valueLabel(v float64) string {
	return fmt.Sprintf("%g", v)
}
