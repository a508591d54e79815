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

// Package provenance records how an output file was produced, in a
// TOML file next to it.
package provenance

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Tags describing the SST error figure.
const (
	// Domains.
	TagGlobal   = "DM_global"
	TagTropical = "DM_trop"

	// Plot types.
	TagZonal   = "PT_zonal"
	TagProfile = "PT_pro"

	// Statistics.
	TagDifference  = "ST_diff"
	TagMean        = "ST_mean"
	TagStdDev      = "ST_stddev"
	TagClimatology = "ST_clim"
)

// Identifiers of the people, diagnostic, and project behind the figure.
const (
	DefaultAuthor = "A_zimm_kl"
	Diagnostic    = "D_flato13ipcc"
	Project       = "P_crescendo"
)

// Caption describes the SST error figure.
const Caption = "SST error as both zonal and equatorial mean. Similar to Flato et al. 2013, fig. 9.14."

// Record is the provenance of one output file.
type Record struct {
	File        string    `toml:"file"`
	Caption     string    `toml:"caption"`
	Authors     []string  `toml:"authors"`
	Diagnostics []string  `toml:"diagnostics"`
	Projects    []string  `toml:"projects"`
	Tags        []string  `toml:"tags"`
	Ancestors   []string  `toml:"ancestors"`
	Digest      string    `toml:"config_digest"`
	Created     time.Time `toml:"created"`
}

// SSTError returns the record for the SST error figure written to file
// and computed from the ancestor files. If author is empty, DefaultAuthor
// is used.
func SSTError(file, author, digest string, ancestors []string) *Record {
	if author == "" {
		author = DefaultAuthor
	}
	return &Record{
		File:        file,
		Caption:     Caption,
		Authors:     []string{author},
		Diagnostics: []string{Diagnostic},
		Projects:    []string{Project},
		Tags: []string{
			TagGlobal, TagTropical,
			TagZonal, TagProfile,
			TagDifference, TagMean, TagStdDev, TagClimatology,
		},
		Ancestors: append([]string(nil), ancestors...),
		Digest:    digest,
		Created:   time.Now().UTC().Truncate(time.Second),
	}
}

// Path returns the path of the provenance file for the given output file.
func Path(file string) string { return file + ".provenance.toml" }

// Write writes r to the provenance file of r.File.
func (r *Record) Write() error {
	if r.File == "" {
		return fmt.Errorf("provenance: record has no file")
	}
	w, err := os.Create(Path(r.File))
	if err != nil {
		return fmt.Errorf("provenance: %v", err)
	}
	if err := toml.NewEncoder(w).Encode(r); err != nil {
		w.Close()
		return fmt.Errorf("provenance: writing %s: %v", Path(r.File), err)
	}
	return w.Close()
}

// Read reads the provenance file of the given output file.
func Read(file string) (*Record, error) {
	r := new(Record)
	if _, err := toml.DecodeFile(Path(file), r); err != nil {
		return nil, fmt.Errorf("provenance: reading %s: %v", Path(file), err)
	}
	return r, nil
}
