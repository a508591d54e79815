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

package chain

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sstdiag"
	"github.com/spatialmodel/sstdiag/cache"
	"golang.org/x/sync/errgroup"
)

// Runner runs a chain for a collection of datasets.
type Runner struct {
	Chain  *Chain
	Loader sstdiag.Loader

	// Store holds the output of each (step, model) pair. Output found
	// in Store is not recomputed. Store may be nil.
	Store cache.Store

	// Workers is the number of datasets that are processed at the same
	// time. Values less than one mean one.
	Workers int

	// MemoryEntries is the number of results of each step that are
	// kept in memory. Zero means a default of 100.
	MemoryEntries int

	Log logrus.FieldLogger

	initOnce sync.Once
	caches   map[string]*requestcache.Cache
}

// stepRequest is the payload of a request for the output of one
// step for one dataset.
type stepRequest struct {
	step    *Step
	dataset sstdiag.Dataset
	input   *sstdiag.Field
	ref     *sstdiag.Field
}

func (r *Runner) log() logrus.FieldLogger {
	if r.Log == nil {
		return logrus.StandardLogger()
	}
	return r.Log
}

func (r *Runner) workers() int {
	if r.Workers < 1 {
		return 1
	}
	return r.Workers
}

func (r *Runner) init() {
	r.initOnce.Do(func() {
		n := r.MemoryEntries
		if n == 0 {
			n = 100
		}
		r.caches = make(map[string]*requestcache.Cache)
		for _, s := range r.Chain.Steps() {
			// Failed requests are not remembered, so a later Run retries
			// them. Keys are unique within a run, so nothing needs
			// deduplicating.
			r.caches[s.Name] = requestcache.NewCache(r.process, r.workers(),
				requestcache.Memory(n))
		}
	})
}

// process computes, or retrieves from the store, the output of one
// step for one dataset.
func (r *Runner) process(ctx context.Context, payload interface{}) (interface{}, error) {
	req := payload.(*stepRequest)
	s := req.step
	model := req.dataset.Name
	log := r.log().WithFields(logrus.Fields{
		"step":  s.Name,
		"model": model,
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.IsLoad() {
		log.Info("loading dataset")
		f, err := r.Loader.Load(ctx, req.dataset, *s.Constraint)
		if err != nil {
			return nil, err
		}
		if f.Attributes == nil {
			f.Attributes = make(map[string]string)
		}
		if f.Model() == "" {
			f.Attributes["model"] = model
		}
		return f, nil
	}
	if r.Store != nil {
		if f, ok := r.Store.Get(s.Key(), model); ok {
			log.Debug("using cached output")
			return f, nil
		}
	}
	log.Info("computing")
	f, err := s.Func(req.input, req.ref)
	if err != nil {
		log.WithError(err).Error("step failed")
		return nil, fmt.Errorf("chain: step %s for model %s: %w", s.Name, model, err)
	}
	if f.Attributes == nil {
		f.Attributes = make(map[string]string)
	}
	f.Attributes["model"] = model
	if r.Store != nil {
		if err := r.Store.Put(s.Key(), model, f); err != nil {
			return nil, fmt.Errorf("chain: caching step %s for model %s: %w", s.Name, model, err)
		}
	}
	return f, nil
}

// runDataset runs the steps in order for dataset d. refOut holds the
// output of each step for the reference dataset; when it is nil, d is
// the reference and its own output is used instead.
func (r *Runner) runDataset(ctx context.Context, order []*Step, d sstdiag.Dataset, refOut map[string]*sstdiag.Field) (map[string]*sstdiag.Field, error) {
	out := make(map[string]*sstdiag.Field, len(order))
	for _, s := range order {
		req := &stepRequest{step: s, dataset: d}
		if !s.IsLoad() {
			req.input = out[s.Source]
			if refOut != nil {
				req.ref = refOut[s.Source]
			} else {
				req.ref = req.input
			}
		}
		res, err := r.caches[s.Name].NewRequest(ctx, req, s.Key()+"/"+d.Name).Result()
		if err != nil {
			return nil, err
		}
		out[s.Name] = res.(*sstdiag.Field)
	}
	return out, nil
}

// Run runs the terminal steps of every variable in the chain, and the
// steps they depend on, for each dataset. reference names the dataset
// that the others are compared against; it is processed first, after
// which the other datasets are processed in parallel.
func (r *Runner) Run(ctx context.Context, datasets []sstdiag.Dataset, reference string) (*Table, error) {
	if r.Chain == nil || r.Loader == nil {
		return nil, fmt.Errorf("chain: runner needs a chain and a loader")
	}
	var ref *sstdiag.Dataset
	seen := make(map[string]bool)
	for i, d := range datasets {
		if seen[d.Name] {
			return nil, fmt.Errorf("chain: dataset %s is listed more than once", d.Name)
		}
		seen[d.Name] = true
		if d.Name == reference {
			ref = &datasets[i]
		}
	}
	if ref == nil {
		return nil, fmt.Errorf("chain: reference dataset %q is not among the datasets", reference)
	}
	terminals := r.Chain.AllTerminals()
	order, err := r.Chain.Order(terminals...)
	if err != nil {
		return nil, err
	}
	r.init()

	results := make(map[string]map[string]*sstdiag.Field, len(datasets))
	refOut, err := r.runDataset(ctx, order, *ref, nil)
	if err != nil {
		return nil, err
	}
	results[ref.Name] = refOut

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())
	for _, d := range datasets {
		if d.Name == reference {
			continue
		}
		d := d
		g.Go(func() error {
			out, err := r.runDataset(gctx, order, d, refOut)
			if err != nil {
				return err
			}
			mu.Lock()
			results[d.Name] = out
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t := newTable()
	for _, name := range terminals {
		s, _ := r.Chain.Step(name)
		t.columns = append(t.columns, s.Column())
	}
	locator, _ := r.Store.(cache.Locator)
	for _, d := range datasets {
		row := &Row{
			Model:     d.Name,
			IsRef:     d.Name == reference,
			Cells:     make(map[string]*sstdiag.Field),
			Artifacts: make(map[string]string),
		}
		for _, name := range terminals {
			s, _ := r.Chain.Step(name)
			row.Cells[s.Column()] = results[d.Name][name]
			if locator != nil {
				row.Artifacts[s.Column()] = locator.Location(s.Key(), d.Name)
			}
		}
		t.add(row)
	}
	return t, nil
}

// RunChain runs c for each dataset, loading data with loader and
// caching step output in store, which may be nil.
func RunChain(ctx context.Context, c *Chain, loader sstdiag.Loader, store cache.Store, datasets []sstdiag.Dataset, reference string) (*Table, error) {
	r := &Runner{Chain: c, Loader: loader, Store: store}
	return r.Run(ctx, datasets, reference)
}

// Row holds the results for one dataset.
type Row struct {
	Model string
	IsRef bool

	// Cells holds the output of each terminal step, keyed by column name.
	Cells map[string]*sstdiag.Field

	// Artifacts holds the cache location of each cell, when known.
	Artifacts map[string]string
}

// Table holds the output of the terminal steps for every dataset.
// Exactly one row belongs to the reference dataset.
type Table struct {
	rows    []*Row
	index   map[string]int
	columns []string
}

func newTable() *Table {
	return &Table{index: make(map[string]int)}
}

func (t *Table) add(r *Row) {
	t.index[r.Model] = len(t.rows)
	t.rows = append(t.rows, r)
}

// Columns returns the column names.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// Rows returns every row, including the reference, in dataset order.
func (t *Table) Rows() []*Row { return append([]*Row(nil), t.rows...) }

// Reference returns the row of the reference dataset.
func (t *Table) Reference() *Row {
	for _, r := range t.rows {
		if r.IsRef {
			return r
		}
	}
	return nil
}

// Models returns the names of the comparison models, in dataset order.
// The reference is included first if includeRef is true.
func (t *Table) Models(includeRef bool) []string {
	var o []string
	if includeRef {
		if r := t.Reference(); r != nil {
			o = append(o, r.Model)
		}
	}
	for _, r := range t.rows {
		if !r.IsRef {
			o = append(o, r.Model)
		}
	}
	return o
}

// Column returns the named column for the comparison models, in
// dataset order. The reference is never included.
func (t *Table) Column(col string) ([]*sstdiag.Field, error) {
	var o []*sstdiag.Field
	for _, r := range t.rows {
		if r.IsRef {
			continue
		}
		f, ok := r.Cells[col]
		if !ok {
			return nil, fmt.Errorf("chain: result table has no column %s", col)
		}
		o = append(o, f)
	}
	return o, nil
}

// Get returns the cell for the given model and column.
func (t *Table) Get(model, col string) (*sstdiag.Field, bool) {
	i, ok := t.index[model]
	if !ok {
		return nil, false
	}
	f, ok := t.rows[i].Cells[col]
	return f, ok
}

// Artifacts returns the sorted cache locations of every cell.
func (t *Table) Artifacts() []string {
	set := make(map[string]bool)
	for _, r := range t.rows {
		for _, a := range r.Artifacts {
			set[a] = true
		}
	}
	o := make([]string, 0, len(set))
	for a := range set {
		o = append(o, a)
	}
	sort.Strings(o)
	return o
}
