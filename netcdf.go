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
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ctessum/cdf"
)

// Global attribute names used by the field file format.
const (
	attrVariable    = "sstdiag_variable"
	attrVersion     = "sstdiag_version"
	attrLabelPrefix = "sstdiag_labels_"
	boundsDim       = "bnds"
	boundsSuffix    = "_bnds"
	maskSuffix      = "_mask"
)

// WriteNetCDF writes f to netcdf file w. The data are stored at double
// precision together with a byte variable holding the mask, so that
// ReadNetCDF returns an identical field.
func (f *Field) WriteNetCDF(w *os.File) error {
	if f.Data == nil || len(f.Mask) != len(f.Data.Elements) {
		return fmt.Errorf("sstdiag: writing %s to netcdf file: mask does not match data", f.Name)
	}
	dims := f.Dims()
	lengths := append([]int(nil), f.Data.Shape...)
	hasBounds := false
	for _, c := range f.Coords {
		if c.Bounds != nil {
			hasBounds = true
		}
	}
	if hasBounds {
		dims = append(dims, boundsDim)
		lengths = append(lengths, 2)
	}
	h := cdf.NewHeader(dims, lengths)
	h.AddAttribute("", "comment", "sstdiag processed field")
	h.AddAttribute("", attrVariable, f.Name)
	h.AddAttribute("", attrVersion, Version)

	// Sort the names so they write in the same order every time.
	keys := make([]string, 0, len(f.Attributes))
	for k := range f.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if f.Attributes[k] != "" {
			h.AddAttribute("", k, f.Attributes[k])
		}
	}

	for _, c := range f.Coords {
		h.AddVariable(c.Name, []string{c.Name}, []float64{0})
		if c.Units != "" {
			h.AddAttribute(c.Name, "units", c.Units)
		}
		if c.Bounds != nil {
			h.AddAttribute(c.Name, "bounds", c.Name+boundsSuffix)
			h.AddVariable(c.Name+boundsSuffix, []string{c.Name, boundsDim}, []float64{0})
		}
		if c.Labels != nil {
			b, err := json.Marshal(c.Labels)
			if err != nil {
				return fmt.Errorf("sstdiag: writing %s labels to netcdf file: %v", c.Name, err)
			}
			h.AddAttribute("", attrLabelPrefix+c.Name, string(b))
		}
	}
	h.AddVariable(f.Name, f.Dims(), []float64{0})
	if f.LongName != "" {
		h.AddAttribute(f.Name, "long_name", f.LongName)
	}
	if f.Units != "" {
		h.AddAttribute(f.Name, "units", f.Units)
	}
	h.AddVariable(f.Name+maskSuffix, f.Dims(), []uint8{0})
	h.AddAttribute(f.Name+maskSuffix, "long_name", "mask, 1 where "+f.Name+" is not valid")
	h.Define()

	ff, err := cdf.Create(w, h) // writes the header to ff
	if err != nil {
		return err
	}
	for _, c := range f.Coords {
		if err := writeNCF(ff, c.Name, c.Points); err != nil {
			return fmt.Errorf("sstdiag: writing coordinate %s to netcdf file: %v", c.Name, err)
		}
		if c.Bounds != nil {
			b := make([]float64, 0, 2*len(c.Bounds))
			for _, bb := range c.Bounds {
				b = append(b, bb[0], bb[1])
			}
			if err := writeNCF(ff, c.Name+boundsSuffix, b); err != nil {
				return fmt.Errorf("sstdiag: writing bounds of %s to netcdf file: %v", c.Name, err)
			}
		}
	}
	if err := writeNCF(ff, f.Name, f.Data.Elements); err != nil {
		return fmt.Errorf("sstdiag: writing variable %s to netcdf file: %v", f.Name, err)
	}
	mask := make([]uint8, len(f.Mask))
	for i, m := range f.Mask {
		if m {
			mask[i] = 1
		}
	}
	if err := writeNCF(ff, f.Name+maskSuffix, mask); err != nil {
		return fmt.Errorf("sstdiag: writing mask of %s to netcdf file: %v", f.Name, err)
	}
	return cdf.UpdateNumRecs(w)
}

func writeNCF(f *cdf.File, v string, data interface{}) error {
	end := f.Header.Lengths(v)
	start := make([]int, len(end))
	w := f.Writer(v, start, end)
	_, err := w.Write(data)
	return err
}

func readNCF(f *cdf.File, v string) (interface{}, error) {
	r := f.Reader(v, nil, nil)
	if r == nil {
		return nil, fmt.Errorf("variable %s not found", v)
	}
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading %s: %v", v, err)
	}
	return buf, nil
}

func readFloats(f *cdf.File, v string) ([]float64, error) {
	d, err := readNCF(f, v)
	if err != nil {
		return nil, err
	}
	o, ok := d.([]float64)
	if !ok {
		return nil, fmt.Errorf("variable %s has type %T; expected []float64", v, d)
	}
	return o, nil
}

func stringAttribute(h *cdf.Header, v, a string) string {
	s, _ := h.GetAttribute(v, a).(string)
	return s
}

// ReadNetCDF reads a field written by WriteNetCDF. A file that is
// truncated or otherwise malformed results in an error.
func ReadNetCDF(rw cdf.ReaderWriterAt) (fld *Field, err error) {
	// The cdf package panics on some malformed headers.
	defer func() {
		if r := recover(); r != nil {
			fld = nil
			err = fmt.Errorf("sstdiag: reading netcdf field: malformed file: %v", r)
		}
	}()
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("sstdiag: reading netcdf field: %v", err)
	}
	h := f.Header
	name := stringAttribute(h, "", attrVariable)
	if name == "" {
		return nil, fmt.Errorf("sstdiag: reading netcdf field: missing %s attribute", attrVariable)
	}
	dims := h.Dimensions(name)
	lengths := h.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("sstdiag: reading netcdf field: variable %s not found", name)
	}

	coords := make([]Coord, len(dims))
	for i, d := range dims {
		c := Coord{Name: d, Units: stringAttribute(h, d, "units")}
		if c.Points, err = readFloats(f, d); err != nil {
			return nil, fmt.Errorf("sstdiag: reading netcdf field %s: %v", name, err)
		}
		if len(c.Points) != lengths[i] {
			return nil, fmt.Errorf("sstdiag: reading netcdf field %s: coordinate %s has %d points; expected %d",
				name, d, len(c.Points), lengths[i])
		}
		if bv := stringAttribute(h, d, "bounds"); bv != "" {
			b, err := readFloats(f, bv)
			if err != nil {
				return nil, fmt.Errorf("sstdiag: reading netcdf field %s: %v", name, err)
			}
			if len(b) != 2*len(c.Points) {
				return nil, fmt.Errorf("sstdiag: reading netcdf field %s: bounds of %s have wrong length", name, d)
			}
			c.Bounds = make([][2]float64, len(c.Points))
			for j := range c.Bounds {
				c.Bounds[j] = [2]float64{b[2*j], b[2*j+1]}
			}
		}
		if l := stringAttribute(h, "", attrLabelPrefix+d); l != "" {
			if err := json.Unmarshal([]byte(l), &c.Labels); err != nil {
				return nil, fmt.Errorf("sstdiag: reading netcdf field %s: labels of %s: %v", name, d, err)
			}
		}
		coords[i] = c
	}

	o := NewField(name, stringAttribute(h, name, "units"), coords...)
	o.LongName = stringAttribute(h, name, "long_name")
	for _, a := range h.Attributes("") {
		if a == "comment" || strings.HasPrefix(a, "sstdiag_") {
			continue
		}
		if s, ok := h.GetAttribute("", a).(string); ok {
			o.Attributes[a] = s
		}
	}

	data, err := readFloats(f, name)
	if err != nil {
		return nil, fmt.Errorf("sstdiag: reading netcdf field %s: %v", name, err)
	}
	if len(data) != len(o.Data.Elements) {
		return nil, fmt.Errorf("sstdiag: reading netcdf field %s: dims are %d but array length is %d",
			name, len(o.Data.Elements), len(data))
	}
	copy(o.Data.Elements, data)

	md, err := readNCF(f, name+maskSuffix)
	if err != nil {
		return nil, fmt.Errorf("sstdiag: reading netcdf field %s: %v", name, err)
	}
	mask, ok := md.([]uint8)
	if !ok || len(mask) != len(o.Mask) {
		return nil, fmt.Errorf("sstdiag: reading netcdf field %s: invalid mask", name)
	}
	for i, m := range mask {
		o.Mask[i] = m != 0
	}
	return o, nil
}
