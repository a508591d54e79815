package hash

import (
	"math"
	"testing"
)

type settings struct {
	Dir     string
	Workers int
	Models  []string
}

func TestDigest(t *testing.T) {
	a := Digest(settings{Dir: "work", Workers: 2, Models: []string{"A", "B"}})
	b := Digest(settings{Dir: "work", Workers: 2, Models: []string{"A", "B"}})
	c := Digest(settings{Dir: "work", Workers: 2, Models: []string{"B", "A"}})
	if a != b {
		t.Errorf("equal values have different digests: %s, %s", a, b)
	}
	if a == c {
		t.Errorf("different values have the same digest %s", a)
	}
	if len(a) != 32 {
		t.Errorf("digest %s has length %d; want 32", a, len(a))
	}
}

func TestDigestFallback(t *testing.T) {
	// gob cannot encode interface values of unregistered types.
	v := struct {
		V interface{}
		X float64
	}{V: settings{Dir: "a"}, X: math.NaN()}
	d := Digest(v)
	if len(d) != 32 {
		t.Errorf("digest %s has length %d; want 32", d, len(d))
	}
	if d != Digest(v) {
		t.Error("digest is not deterministic")
	}
}
