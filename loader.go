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
	"context"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/sirupsen/logrus"
)

// Dataset identifies one model or observational dataset.
type Dataset struct {
	// Name is the model identifier, e.g. "HadGEM2-ES".
	Name string

	// File is the path to the netcdf file holding the data.
	File string

	Project    string
	Experiment string
	Ensemble   string
}

// Constraint selects a variable from a dataset.
type Constraint struct {
	// Variable is the short variable name, e.g. "tos".
	Variable string

	// StandardName optionally matches the CF standard_name attribute
	// when no variable is called Variable.
	StandardName string
}

// VarConstraint returns a constraint selecting the named variable.
// The sea surface temperature standard name is also accepted for "tos".
func VarConstraint(name string) Constraint {
	c := Constraint{Variable: name}
	if name == "tos" {
		c.StandardName = "sea_surface_temperature"
	}
	return c
}

// Match returns whether a variable with the given name and standard name
// satisfies c.
func (c Constraint) Match(name, standardName string) bool {
	if name == c.Variable {
		return true
	}
	return c.StandardName != "" && standardName == c.StandardName
}

// Loader loads the field that satisfies a constraint from a dataset.
type Loader interface {
	Load(ctx context.Context, d Dataset, c Constraint) (*Field, error)
}

// NetCDFLoader loads fields from netcdf-3 or netcdf-4 files.
type NetCDFLoader struct {
	Log logrus.FieldLogger
}

// dimAliases maps common coordinate names to the names used by Field.
var dimAliases = map[string]string{
	"lat":       LatitudeDim,
	"latitude":  LatitudeDim,
	"nav_lat":   LatitudeDim,
	"lon":       LongitudeDim,
	"longitude": LongitudeDim,
	"nav_lon":   LongitudeDim,
	"time":      TimeDim,
	"t":         TimeDim,
}

// Load implements Loader.
func (l NetCDFLoader) Load(ctx context.Context, d Dataset, c Constraint) (*Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := l.Log
	if log == nil {
		log = Log
	}
	nc, err := netcdf.Open(d.File)
	if err != nil {
		return nil, fmt.Errorf("sstdiag: loading model %s: %v", d.Name, err)
	}
	defer nc.Close()

	name, v, err := findVariable(nc, c)
	if err != nil {
		return nil, fmt.Errorf("sstdiag: loading model %s from %s: %v", d.Name, d.File, err)
	}
	vals, shape, err := flatten(v.Values)
	if err != nil {
		return nil, fmt.Errorf("sstdiag: loading %s of model %s: %v", name, d.Name, err)
	}
	if len(shape) != len(v.Dimensions) {
		return nil, fmt.Errorf("sstdiag: loading %s of model %s: %d dimensions but data have rank %d",
			name, d.Name, len(v.Dimensions), len(shape))
	}

	coords := make([]Coord, len(v.Dimensions))
	for i, dim := range v.Dimensions {
		coords[i], err = loadCoord(nc, dim, shape[i])
		if err != nil {
			return nil, fmt.Errorf("sstdiag: loading %s of model %s: %v", name, d.Name, err)
		}
	}

	f := NewField(c.Variable, stringAttr(v.Attributes, "units"), coords...)
	f.LongName = stringAttr(v.Attributes, "long_name")
	f.Attributes["model"] = d.Name
	f.Attributes["project"] = d.Project
	f.Attributes["experiment"] = d.Experiment
	f.Attributes["ensemble"] = d.Ensemble
	f.Attributes["source_file"] = d.File
	if sn := stringAttr(v.Attributes, "standard_name"); sn != "" {
		f.Attributes["standard_name"] = sn
	}

	fill, hasFill := floatAttr(v.Attributes, "_FillValue")
	missing, hasMissing := floatAttr(v.Attributes, "missing_value")
	scale, hasScale := floatAttr(v.Attributes, "scale_factor")
	offset, _ := floatAttr(v.Attributes, "add_offset")
	if !hasScale {
		scale = 1
	}
	nMasked := 0
	for i, x := range vals {
		if math.IsNaN(x) || (hasFill && x == fill) || (hasMissing && x == missing) {
			f.Mask[i] = true
			nMasked++
			continue
		}
		f.Data.Elements[i] = x*scale + offset
	}
	log.WithFields(logrus.Fields{
		"model":    d.Name,
		"variable": name,
		"file":     d.File,
		"shape":    shape,
		"masked":   nMasked,
	}).Debug("loaded dataset")
	return f, nil
}

func findVariable(nc api.Group, c Constraint) (string, *api.Variable, error) {
	if v, err := nc.GetVariable(c.Variable); err == nil {
		return c.Variable, v, nil
	}
	for _, name := range nc.ListVariables() {
		v, err := nc.GetVariable(name)
		if err != nil {
			continue
		}
		if c.Match(name, stringAttr(v.Attributes, "standard_name")) {
			return name, v, nil
		}
	}
	return "", nil, fmt.Errorf("no variable matches %q", c.Variable)
}

// loadCoord reads the coordinate variable for dimension dim, if there is
// one, along with its bounds.
func loadCoord(nc api.Group, dim string, n int) (Coord, error) {
	name := dim
	if alias, ok := dimAliases[strings.ToLower(dim)]; ok {
		name = alias
	}
	c := Coord{Name: name}
	v, err := nc.GetVariable(dim)
	if err != nil {
		c.Points = make([]float64, n)
		for i := range c.Points {
			c.Points[i] = float64(i)
		}
		return c, nil
	}
	pts, _, err := flatten(v.Values)
	if err != nil {
		return c, fmt.Errorf("coordinate %s: %v", dim, err)
	}
	if len(pts) != n {
		return c, fmt.Errorf("coordinate %s has %d points; expected %d", dim, len(pts), n)
	}
	c.Points = pts
	c.Units = stringAttr(v.Attributes, "units")

	bname := stringAttr(v.Attributes, "bounds")
	if bname == "" {
		return c, nil
	}
	bv, err := nc.GetVariable(bname)
	if err != nil {
		return c, fmt.Errorf("bounds %s of coordinate %s: %v", bname, dim, err)
	}
	b, shape, err := flatten(bv.Values)
	if err != nil {
		return c, fmt.Errorf("bounds %s of coordinate %s: %v", bname, dim, err)
	}
	if len(shape) != 2 || shape[0] != n || shape[1] != 2 {
		return c, fmt.Errorf("bounds %s of coordinate %s have shape %v; expected [%d 2]", bname, dim, shape, n)
	}
	c.Bounds = make([][2]float64, n)
	for i := range c.Bounds {
		c.Bounds[i] = [2]float64{b[2*i], b[2*i+1]}
	}
	return c, nil
}

// flatten converts nested numeric slices into a single slice in
// row-major order and returns the shape of the input.
func flatten(v interface{}) ([]float64, []int, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, nil, fmt.Errorf("no data")
	}
	var shape []int
	for t := rv; ; {
		if t.Kind() != reflect.Slice {
			break
		}
		shape = append(shape, t.Len())
		if t.Len() == 0 {
			break
		}
		t = t.Index(0)
	}
	n := 1
	for _, s := range shape {
		n *= s
	}
	o := make([]float64, 0, n)
	var walk func(x reflect.Value, depth int) error
	walk = func(x reflect.Value, depth int) error {
		if depth < len(shape) {
			if x.Kind() != reflect.Slice || x.Len() != shape[depth] {
				return fmt.Errorf("ragged array")
			}
			for i := 0; i < x.Len(); i++ {
				if err := walk(x.Index(i), depth+1); err != nil {
					return err
				}
			}
			return nil
		}
		switch x.Kind() {
		case reflect.Float32, reflect.Float64:
			o = append(o, x.Float())
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
			o = append(o, float64(x.Int()))
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
			o = append(o, float64(x.Uint()))
		default:
			return fmt.Errorf("unsupported data type %s", x.Type())
		}
		return nil
	}
	if err := walk(rv, 0); err != nil {
		return nil, nil, err
	}
	return o, shape, nil
}

func stringAttr(a api.AttributeMap, key string) string {
	if a == nil {
		return ""
	}
	v, ok := a.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func floatAttr(a api.AttributeMap, key string) (float64, bool) {
	if a == nil {
		return 0, false
	}
	v, ok := a.Get(key)
	if !ok {
		return 0, false
	}
	vals, _, err := flatten(v)
	if err != nil || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}
