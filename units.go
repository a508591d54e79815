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
	"strings"

	"github.com/ctessum/unit"
)

// Celsius is the units string of fields in degrees Celsius.
const Celsius = "degC"

// ErrUnknownUnits is returned when a temperature cannot be converted
// because its units are not recognized.
var ErrUnknownUnits = errors.New("sstdiag: unknown temperature units")

// zeroCelsius is 0 °C expressed in kelvin.
var zeroCelsius = unit.New(273.15, unit.Kelvin)

// toKelvin returns a function converting values in the given units to
// kelvin.
func toKelvin(units string) (func(float64) *unit.Unit, error) {
	switch strings.ToLower(strings.TrimSpace(units)) {
	case "k", "kelvin", "degk", "deg_k", "degrees_k", "degree_kelvin":
		return func(v float64) *unit.Unit { return unit.New(v, unit.Kelvin) }, nil
	case "degc", "deg_c", "degrees_c", "degree_c", "celsius", "c", "°c":
		return func(v float64) *unit.Unit {
			return unit.Add(unit.New(v, unit.Kelvin), zeroCelsius)
		}, nil
	case "degf", "deg_f", "degrees_f", "degree_f", "fahrenheit", "f", "°f":
		return func(v float64) *unit.Unit {
			return unit.Add(unit.New((v-32)*5/9, unit.Kelvin), zeroCelsius)
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownUnits, units)
}

func isCelsius(units string) bool {
	switch strings.ToLower(strings.TrimSpace(units)) {
	case "degc", "deg_c", "degrees_c", "degree_c", "celsius", "c", "°c":
		return true
	}
	return false
}

// ToCelsius returns a copy of f with its values converted to degrees
// Celsius. Masked values are carried over unchanged.
func ToCelsius(f *Field) (*Field, error) {
	conv, err := toKelvin(f.Units)
	if err != nil {
		return nil, fmt.Errorf("sstdiag: converting %s of model %s: %w", f.Name, f.Model(), err)
	}
	o := f.Copy()
	o.Units = Celsius
	if isCelsius(f.Units) {
		return o, nil
	}
	for i, v := range f.Data.Elements {
		if f.Mask[i] {
			continue
		}
		o.Data.Elements[i] = unit.Sub(conv(v), zeroCelsius).Value()
	}
	return o, nil
}
