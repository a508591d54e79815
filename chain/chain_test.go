package chain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spatialmodel/sstdiag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(f, _ *sstdiag.Field) (*sstdiag.Field, error) { return f.Copy(), nil }

func stepNames(steps []*Step) []string {
	o := make([]string, len(steps))
	for i, s := range steps {
		o[i] = s.Name
	}
	return o
}

func TestOrder(t *testing.T) {
	c := New(t.TempDir())
	// Steps are added before their sources to check that the order does
	// not depend on it.
	for _, s := range []*Step{
		{Name: "d", Prefix: "d", Func: identity, Source: "b"},
		{Name: "b", Prefix: "b", Func: identity, Source: "a"},
		{Name: "c", Prefix: "c", Func: identity, Source: "a"},
		{Name: "a", Prefix: "a", Constraint: &sstdiag.Constraint{Variable: "tos"}},
		{Name: "unused", Prefix: "unused", Func: identity, Source: "a"},
	} {
		require.NoError(t, c.Add(s))
	}
	order, err := c.Order("d", "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, stepNames(order))

	order, err = c.Order("c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, stepNames(order))
}

func TestOrderErrors(t *testing.T) {
	c := New(t.TempDir())
	require.NoError(t, c.Add(&Step{Name: "x", Func: identity, Source: "y"}))
	require.NoError(t, c.Add(&Step{Name: "y", Func: identity, Source: "x"}))
	require.NoError(t, c.Add(&Step{Name: "z", Func: identity, Source: "missing"}))

	_, err := c.Order("x")
	assert.EqualError(t, err, "chain: dependency cycle among steps x, y")

	_, err = c.Order("z")
	assert.EqualError(t, err, "chain: step z has unknown source missing")

	_, err = c.Order("nope")
	assert.EqualError(t, err, "chain: unknown step nope")
}

func TestAddErrors(t *testing.T) {
	c := New(t.TempDir())
	assert.Error(t, c.Add(&Step{Func: identity, Source: "a"}), "no name")
	assert.Error(t, c.Add(&Step{Name: "a"}), "no reduction")
	assert.Error(t, c.Add(&Step{Name: "a", Constraint: &sstdiag.Constraint{}, Source: "b"}), "load with source")
	require.NoError(t, c.Add(&Step{Name: "a", Constraint: &sstdiag.Constraint{}}))
	assert.Error(t, c.Add(&Step{Name: "a", Constraint: &sstdiag.Constraint{}}), "duplicate")
	assert.Error(t, c.AddTerminal("tos", "b"))
}

func TestBuildChain(t *testing.T) {
	dir := t.TempDir()
	c, err := BuildChain("tos", sstdiag.VarConstraint("tos"), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"tos"}, c.Variables())
	assert.Equal(t, []string{"tos/zonal-mean-error", "tos/equatorial", "tos/equatorial-error"}, c.AllTerminals())
	var cols []string
	for _, s := range c.Terminals("tos") {
		cols = append(cols, s.Column())
	}
	assert.Equal(t, []string{"zonal-mean-error_cube", "equatorial_cube", "equatorial-error_cube"}, cols)

	order, err := c.Order(c.AllTerminals()...)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"tos/load", "tos/clim", "tos/zonal-mean", "tos/equatorial",
		"tos/zonal-mean-error", "tos/equatorial-error",
	}, stepNames(order))

	s, ok := c.Step("tos/zonal-mean")
	require.True(t, ok)
	assert.Equal(t, "tos/clim", s.Source)
	assert.Equal(t, "tos_zonal-mean", s.Key())

	for _, s := range c.Steps() {
		_, err := os.Stat(c.Dir(s))
		if s.IsLoad() {
			assert.True(t, os.IsNotExist(err), "load steps have no cache directory")
			continue
		}
		assert.NoError(t, err, s.Name)
	}

	// Building the chain again with the directories in place succeeds.
	_, err = BuildChain("tos", sstdiag.VarConstraint("tos"), dir)
	assert.NoError(t, err)
}

func TestBuildChainErrors(t *testing.T) {
	_, err := BuildChain("", sstdiag.VarConstraint("tos"), t.TempDir())
	assert.Error(t, err)

	reg := DefaultRegistry()
	delete(reg, "equatorial")
	_, err = BuildChainWith(reg, "tos", sstdiag.VarConstraint("tos"), t.TempDir())
	assert.EqualError(t, err, `chain: no reduction named "equatorial"`)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = BuildChain("tos", sstdiag.VarConstraint("tos"), file)
	assert.Error(t, err, "data directory below a regular file")
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
