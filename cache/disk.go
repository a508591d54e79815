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

package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sstdiag"
)

// Disk is a Store that keeps each field in a netcdf file at
// <Dir>/<step>/<model>.nc.
//
// An artifact that cannot be read, for example because a previous run
// was interrupted while writing it, is logged and treated as missing,
// so the step is recomputed and the artifact replaced. Artifacts are
// written to a temporary file that is renamed into place once complete.
type Disk struct {
	Dir string
	Log logrus.FieldLogger
}

// NewDisk returns a Disk store rooted at dir.
func NewDisk(dir string, log logrus.FieldLogger) *Disk {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Disk{Dir: dir, Log: log}
}

func (d *Disk) log() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.StandardLogger()
	}
	return d.Log
}

// StepDir returns the directory holding the artifacts of step.
func (d *Disk) StepDir(step string) string {
	return filepath.Join(d.Dir, sanitize(step))
}

// Location returns the path of the artifact for the given step and model.
func (d *Disk) Location(step, model string) string {
	return filepath.Join(d.StepDir(step), sanitize(model)+".nc")
}

// Get implements Store.
func (d *Disk) Get(step, model string) (*sstdiag.Field, bool) {
	path := d.Location(step, model)
	r, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			d.log().WithFields(logrus.Fields{
				"step":  step,
				"model": model,
				"path":  path,
			}).Warnf("cannot open cached field, recomputing: %v", err)
		}
		return nil, false
	}
	defer r.Close()
	f, err := sstdiag.ReadNetCDF(r)
	if err != nil {
		d.log().WithFields(logrus.Fields{
			"step":  step,
			"model": model,
			"path":  path,
		}).Warnf("corrupt cached field, recomputing: %v", err)
		return nil, false
	}
	return f, true
}

// Put implements Store.
func (d *Disk) Put(step, model string, f *sstdiag.Field) error {
	if f == nil {
		return fmt.Errorf("cache: storing nil field for step %s, model %s", step, model)
	}
	dir := d.StepDir(step)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("cache: creating %s: %v", dir, err)
	}
	path := d.Location(step, model)
	w, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("cache: storing step %s, model %s: %v", step, model, err)
	}
	tmp := w.Name()
	if err := f.WriteNetCDF(w); err != nil {
		w.Close()
		os.Remove(tmp)
		return fmt.Errorf("cache: storing step %s, model %s: %v", step, model, err)
	}
	if err := w.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: storing step %s, model %s: %v", step, model, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cache: storing step %s, model %s: %v", step, model, err)
	}
	d.log().WithFields(logrus.Fields{
		"step":  step,
		"model": model,
		"path":  path,
	}).Debug("stored field")
	return nil
}
