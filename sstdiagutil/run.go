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

package sstdiagutil

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sstdiag"
	"github.com/spatialmodel/sstdiag/cache"
	"github.com/spatialmodel/sstdiag/chain"
	"github.com/spatialmodel/sstdiag/figure"
	"github.com/spatialmodel/sstdiag/internal/hash"
	"github.com/spatialmodel/sstdiag/provenance"
)

// Result is the output of a diagnostic run.
type Result struct {
	// Table holds the output of the terminal steps for every model.
	Table *chain.Table

	// Figure is the path of the figure, or empty if no figure was drawn.
	Figure string

	// Provenance describes how Figure was made. It is nil if no figure
	// was drawn.
	Provenance *provenance.Record
}

// Main runs the SST error diagnostic described by p: it builds the
// processing chain, runs it for every model, and, if p.WritePlots is
// true, draws the figure and writes its provenance.
func Main(ctx context.Context, p *ProjectInfo, log logrus.FieldLogger) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("diagnostic", p.DiagScriptName)

	c, err := chain.BuildChain(p.Variable, sstdiag.VarConstraint(p.Variable), p.DataDir())
	if err != nil {
		return nil, err
	}
	r := &chain.Runner{
		Chain:   c,
		Loader:  sstdiag.NetCDFLoader{Log: log},
		Store:   cache.NewDisk(p.DataDir(), log),
		Workers: p.Workers,
		Log:     log,
	}
	t, err := r.Run(ctx, p.Datasets(), p.Reference)
	if err != nil {
		return nil, err
	}
	res := &Result{Table: t}
	if !p.WritePlots {
		log.Info("not drawing the figure")
		return res, nil
	}

	d, err := figure.FromTable(t, p.Project)
	if err != nil {
		return nil, err
	}
	o := figure.DefaultOptions()
	if o.RefLineStyle, err = p.RefLineStyle.Draw(); err != nil {
		return nil, err
	}
	f, err := figure.Plot(d, o)
	if err != nil {
		return nil, err
	}
	path := p.OutputPath()
	if err = chain.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	if err = f.Save(path); err != nil {
		return nil, err
	}
	rec := provenance.SSTError(path, p.Author, hash.Digest(p), t.Artifacts())
	if err = rec.Write(); err != nil {
		return nil, err
	}
	log.WithField("file", path).Info("wrote figure")
	res.Figure = path
	res.Provenance = rec
	return res, nil
}
