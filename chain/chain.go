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

// Package chain assembles the sstdiag reductions into a dependency graph
// of processing steps and runs it for a collection of datasets.
package chain

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spatialmodel/sstdiag"
)

// Step is a node in a processing chain.
type Step struct {
	// Name uniquely identifies the step within its chain,
	// e.g. "tos/zonal-mean".
	Name string

	// Variable is the physical variable that the step operates on.
	Variable string

	// Prefix names the output of the step, e.g. "zonal-mean-error".
	Prefix string

	// Func computes the output of the step from the output of Source.
	// It is nil for load steps.
	Func sstdiag.Reduction

	// Source is the name of the step whose output is the input of
	// this one. It is empty for load steps.
	Source string

	// Constraint selects the variable to load. It is only set for
	// load steps.
	Constraint *sstdiag.Constraint
}

// IsLoad returns whether s loads data rather than transforming it.
func (s *Step) IsLoad() bool { return s.Constraint != nil }

// Column returns the name of the result table column holding the
// output of s.
func (s *Step) Column() string { return Column(s.Prefix) }

// Column returns the name of the result table column holding the
// output of steps with the given prefix.
func Column(prefix string) string { return prefix + "_cube" }

// Key identifies the output of s in a cache.
func (s *Step) Key() string { return s.Variable + "_" + s.Prefix }

// Chain is a directed acyclic graph of processing steps. Each step
// refers to its source by name.
type Chain struct {
	// DataDir is the directory holding a cache subdirectory for each step.
	DataDir string

	steps     map[string]*Step
	names     []string // in the order added
	terminals map[string][]string
	variables []string
}

// New creates an empty chain whose steps cache their output under dataDir.
func New(dataDir string) *Chain {
	return &Chain{
		DataDir:   dataDir,
		steps:     make(map[string]*Step),
		terminals: make(map[string][]string),
	}
}

// Add adds s to c. Its source does not need to have been added yet.
func (c *Chain) Add(s *Step) error {
	if s.Name == "" {
		return fmt.Errorf("chain: step has no name")
	}
	if _, ok := c.steps[s.Name]; ok {
		return fmt.Errorf("chain: duplicate step %s", s.Name)
	}
	switch {
	case s.IsLoad() && s.Source != "":
		return fmt.Errorf("chain: load step %s cannot have a source", s.Name)
	case !s.IsLoad() && (s.Func == nil || s.Source == ""):
		return fmt.Errorf("chain: step %s needs a reduction and a source", s.Name)
	}
	c.steps[s.Name] = s
	c.names = append(c.names, s.Name)
	return nil
}

// Step returns the named step.
func (c *Chain) Step(name string) (*Step, bool) {
	s, ok := c.steps[name]
	return s, ok
}

// Steps returns all steps in the order they were added.
func (c *Chain) Steps() []*Step {
	o := make([]*Step, len(c.names))
	for i, n := range c.names {
		o[i] = c.steps[n]
	}
	return o
}

// AddTerminal registers the named step as one whose output is used
// for plotting the given variable.
func (c *Chain) AddTerminal(variable, step string) error {
	if _, ok := c.steps[step]; !ok {
		return fmt.Errorf("chain: terminal step %s has not been added", step)
	}
	if _, ok := c.terminals[variable]; !ok {
		c.variables = append(c.variables, variable)
	}
	c.terminals[variable] = append(c.terminals[variable], step)
	return nil
}

// Terminals returns the terminal steps of variable.
func (c *Chain) Terminals(variable string) []*Step {
	names := c.terminals[variable]
	o := make([]*Step, len(names))
	for i, n := range names {
		o[i] = c.steps[n]
	}
	return o
}

// Variables returns the variables that have terminal steps.
func (c *Chain) Variables() []string {
	return append([]string(nil), c.variables...)
}

// AllTerminals returns the names of the terminal steps of every variable.
func (c *Chain) AllTerminals() []string {
	var o []string
	for _, v := range c.variables {
		o = append(o, c.terminals[v]...)
	}
	return o
}

// Dir returns the cache directory of s.
func (c *Chain) Dir(s *Step) string {
	return filepath.Join(c.DataDir, s.Key())
}

// Order returns the named steps and every step they depend on, sorted
// so that each step comes after its source. Steps that do not depend on
// one another keep the order in which they were added.
func (c *Chain) Order(names ...string) ([]*Step, error) {
	needed := make(map[string]bool)
	var visit func(name, from string) error
	visit = func(name, from string) error {
		if needed[name] {
			return nil
		}
		s, ok := c.steps[name]
		if !ok {
			if from == "" {
				return fmt.Errorf("chain: unknown step %s", name)
			}
			return fmt.Errorf("chain: step %s has unknown source %s", from, name)
		}
		needed[name] = true
		if s.Source != "" {
			return visit(s.Source, name)
		}
		return nil
	}
	for _, n := range names {
		if err := visit(n, ""); err != nil {
			return nil, err
		}
	}

	// Kahn's algorithm.
	indegree := make(map[string]int)
	dependents := make(map[string][]string)
	for _, n := range c.names {
		if !needed[n] {
			continue
		}
		s := c.steps[n]
		if s.Source != "" {
			indegree[n]++
			dependents[s.Source] = append(dependents[s.Source], n)
		}
	}
	var queue []string
	for _, n := range c.names {
		if needed[n] && indegree[n] == 0 {
			queue = append(queue, n)
		}
	}
	o := make([]*Step, 0, len(needed))
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		o = append(o, c.steps[n])
		for _, d := range dependents[n] {
			indegree[d]--
			if indegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}
	if len(o) != len(needed) {
		var cycle []string
		for n := range needed {
			if indegree[n] > 0 {
				cycle = append(cycle, n)
			}
		}
		sort.Strings(cycle)
		return nil, fmt.Errorf("chain: dependency cycle among steps %s", strings.Join(cycle, ", "))
	}
	return o, nil
}

// EnsureDir creates directory path and any missing parents. A directory
// that already exists is not an error.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, os.ModePerm); err != nil && !os.IsExist(err) {
		return fmt.Errorf("chain: creating directory %s: %v", path, err)
	}
	return nil
}

// Registry maps reduction names to reductions.
type Registry map[string]sstdiag.Reduction

// DefaultRegistry returns the reductions available to BuildChain.
func DefaultRegistry() Registry {
	return Registry{
		"climatology": sstdiag.Climatology,
		"zonal-mean":  sstdiag.ZonalMean,
		"equatorial":  sstdiag.EquatorialMean,
		"error":       sstdiag.Error,
	}
}

// Lookup returns the named reduction.
func (r Registry) Lookup(name string) (sstdiag.Reduction, error) {
	f, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("chain: no reduction named %q", name)
	}
	return f, nil
}

// Output prefixes of the steps created by BuildChain.
const (
	LoadPrefix            = "load"
	ClimatologyPrefix     = "clim"
	ZonalMeanPrefix       = "zonal-mean"
	EquatorialPrefix      = "equatorial"
	ZonalMeanErrorPrefix  = "zonal-mean-error"
	EquatorialErrorPrefix = "equatorial-error"
)

// StepName returns the name of the step of variable with the given prefix.
func StepName(variable, prefix string) string { return variable + "/" + prefix }

// BuildChain returns the chain for variable, where the data are selected
// from each dataset with constraint and step output is cached in
// subdirectories of dataDir, which are created if necessary.
//
// The chain loads the data, computes the climatology and, from it, the
// zonal and equatorial means, and then the error of each mean relative to
// the reference. The zonal mean error, equatorial mean and equatorial
// error are the terminal steps.
func BuildChain(variable string, constraint sstdiag.Constraint, dataDir string) (*Chain, error) {
	return BuildChainWith(DefaultRegistry(), variable, constraint, dataDir)
}

// BuildChainWith is like BuildChain but takes the reductions from reg.
func BuildChainWith(reg Registry, variable string, constraint sstdiag.Constraint, dataDir string) (*Chain, error) {
	if variable == "" {
		return nil, fmt.Errorf("chain: no variable")
	}
	c := New(dataDir)
	name := func(prefix string) string { return StepName(variable, prefix) }
	cons := constraint
	if err := c.Add(&Step{Name: name(LoadPrefix), Variable: variable, Prefix: LoadPrefix, Constraint: &cons}); err != nil {
		return nil, err
	}
	for _, s := range []struct {
		prefix, reduction, source string
	}{
		{ClimatologyPrefix, "climatology", LoadPrefix},
		{ZonalMeanPrefix, "zonal-mean", ClimatologyPrefix},
		{EquatorialPrefix, "equatorial", ClimatologyPrefix},
		{ZonalMeanErrorPrefix, "error", ZonalMeanPrefix},
		{EquatorialErrorPrefix, "error", EquatorialPrefix},
	} {
		f, err := reg.Lookup(s.reduction)
		if err != nil {
			return nil, err
		}
		err = c.Add(&Step{
			Name:     name(s.prefix),
			Variable: variable,
			Prefix:   s.prefix,
			Func:     f,
			Source:   name(s.source),
		})
		if err != nil {
			return nil, err
		}
	}
	for _, p := range []string{ZonalMeanErrorPrefix, EquatorialPrefix, EquatorialErrorPrefix} {
		if err := c.AddTerminal(variable, name(p)); err != nil {
			return nil, err
		}
	}
	for _, s := range c.Steps() {
		if s.IsLoad() {
			continue
		}
		if err := EnsureDir(c.Dir(s)); err != nil {
			return nil, err
		}
	}
	return c, nil
}
