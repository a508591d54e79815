package sstdiag

import (
	"errors"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestZonalMean(t *testing.T) {
	lats := []float64{-45, 0, 45}
	lons := []float64{0, 90, 180, 270}
	f := latLonField("m", lats, lons, func(j, i int) float64 { return float64(j*100 + i) })
	o, err := ZonalMean(f, nil)
	if err != nil {
		t.Fatal(err)
	}
	if o.LongName != "Zonal mean SST" {
		t.Errorf("long name: %q", o.LongName)
	}
	if len(o.Data.Elements) != len(lats) {
		t.Fatalf("length: have %d, want %d", len(o.Data.Elements), len(lats))
	}
	for j := range lats {
		want := float64(j*100) + 1.5
		if o.Data.Elements[j] != want || o.Mask[j] {
			t.Errorf("latitude %g: have %g, want %g", lats[j], o.Data.Elements[j], want)
		}
	}
}

func TestEquatorialMean(t *testing.T) {
	lats := []float64{-10, -5, 0, 5, 10}
	lons := []float64{90, 98, 110, 121, 130, 470}
	f := latLonField("m", lats, lons, func(j, i int) float64 {
		if math.Abs(lats[j]) > 5 {
			return 1000
		}
		return float64(i) + lats[j]
	})
	o, err := EquatorialMean(f, nil)
	if err != nil {
		t.Fatal(err)
	}
	if o.LongName != "Equatorial SST" {
		t.Errorf("long name: %q", o.LongName)
	}
	if d := o.Dims(); len(d) != 1 || d[0] != LongitudeDim {
		t.Fatalf("dimensions: %v", d)
	}
	// 470 is 110 after normalization.
	wantMasked := []bool{false, true, true, true, false, true}
	for i, w := range wantMasked {
		if o.Mask[i] != w {
			t.Errorf("longitude %g: masked %v, want %v", lons[i], o.Mask[i], w)
		}
		if !w && o.Data.Elements[i] != float64(i) {
			t.Errorf("longitude %g: have %g, want %g", lons[i], o.Data.Elements[i], float64(i))
		}
	}
}

func TestEquatorialMeanIgnoresMaskedBand(t *testing.T) {
	f := constantField("m", Celsius, 25, 1, testLats, testLons)
	clim, err := f.CollapseMean(TimeDim)
	if err != nil {
		t.Fatal(err)
	}
	base, err := EquatorialMean(clim, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Mask the whole 7.5° band.
	masked := clim.Copy()
	for i := range testLons {
		masked.Mask[3*len(testLons)+i] = true
	}
	o, err := EquatorialMean(masked, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range base.Data.Elements {
		if o.Data.Elements[i] != base.Data.Elements[i] || o.Mask[i] != base.Mask[i] {
			t.Errorf("longitude %g changed: %g vs %g", testLons[i], o.Data.Elements[i], base.Data.Elements[i])
		}
	}
}

func TestClimatologyUnits(t *testing.T) {
	for _, tt := range []struct {
		units string
		in    float64
		want  float64
	}{
		{units: "K", in: 293.15, want: 20},
		{units: "degC", in: 20, want: 20},
		{units: "degF", in: 68, want: 20},
		{units: "kelvin", in: 273.15, want: 0},
	} {
		t.Run(tt.units, func(t *testing.T) {
			f := constantField("m", tt.units, tt.in, 3, testLats, testLons)
			o, err := Climatology(f, nil)
			if err != nil {
				t.Fatal(err)
			}
			if o.Units != Celsius {
				t.Errorf("units: %q", o.Units)
			}
			if o.Dim(TimeDim) >= 0 {
				t.Error("time dimension should be removed")
			}
			for i, v := range o.Data.Elements {
				if math.Abs(v-tt.want) > 1e-9 {
					t.Fatalf("element %d: have %g, want %g", i, v, tt.want)
				}
			}
			if !o.Coord(LatitudeDim).HasBounds() || !o.Coord(LongitudeDim).HasBounds() {
				t.Error("bounds should be guessed")
			}
		})
	}
}

func TestClimatologyUnknownUnits(t *testing.T) {
	f := constantField("m", "furlongs", 1, 1, testLats, testLons)
	_, err := Climatology(f, nil)
	if !errors.Is(err, ErrUnknownUnits) {
		t.Errorf("have %v, want ErrUnknownUnits", err)
	}
}

func TestClimatologyBoundsFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	oldLog := Log
	Log = logger
	defer func() { Log = oldLog }()

	f := constantField("BadModel", Celsius, 1, 1, []float64{0}, testLons)
	_, err := Climatology(f, nil)
	if !errors.Is(err, ErrNoBounds) {
		t.Fatalf("have %v, want ErrNoBounds", err)
	}
	e := hook.LastEntry()
	if e == nil || e.Level != logrus.ErrorLevel {
		t.Fatal("expected an error log entry")
	}
	if e.Data["model"] != "BadModel" {
		t.Errorf("log entry model: %v", e.Data["model"])
	}
}

func TestClimatologyRegrid(t *testing.T) {
	ref := constantField("ref", "K", 290, 2, []float64{-45, 45}, []float64{90, 270})
	// The reference is missing at every time in one cell.
	ref.Mask[0*4+1] = true
	ref.Mask[1*4+1] = true

	f := constantField("m", Celsius, 20, 3, []float64{-67.5, -22.5, 22.5, 67.5}, []float64{45, 135, 225, 315})
	o, err := Climatology(f, ref)
	if err != nil {
		t.Fatal(err)
	}
	if !o.SameGrid(mustCollapse(t, ref, TimeDim)) {
		t.Fatalf("result is not on the reference grid: %v %v", o.Dims(), o.Shape())
	}
	for i, v := range o.Data.Elements {
		if i == 1 {
			if !o.Mask[i] {
				t.Error("cell masked in the reference should be masked")
			}
			continue
		}
		if o.Mask[i] || math.Abs(v-20) > 1e-9 {
			t.Errorf("cell %d: have %g (masked %v), want 20", i, v, o.Mask[i])
		}
	}
}

func TestClimatologySameGridMasksReference(t *testing.T) {
	lats, lons := []float64{-45, 45}, []float64{90, 270}
	ref := constantField("ref", "K", 290, 2, lats, lons)
	ref.Mask[0*4+1] = true
	ref.Mask[1*4+1] = true
	// Missing at only one time: kept.
	ref.Mask[0*4+2] = true

	same := constantField("m", Celsius, 20, 2, lats, lons)
	shifted := constantField("m", Celsius, 20, 2, []float64{-45.001, 44.999}, []float64{90.001, 270.001})
	for name, f := range map[string]*Field{"same grid": same, "shifted grid": shifted} {
		o, err := Climatology(f, ref)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		for i, v := range o.Data.Elements {
			if i == 1 {
				if !o.Mask[i] {
					t.Errorf("%s: cell masked in the reference should be masked", name)
				}
				continue
			}
			if o.Mask[i] || math.Abs(v-20) > 1e-9 {
				t.Errorf("%s: cell %d: have %g (masked %v), want 20", name, i, v, o.Mask[i])
			}
		}
	}
}

func mustCollapse(t *testing.T, f *Field, dim string) *Field {
	o, err := f.CollapseMean(dim)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestRegridConservesMean(t *testing.T) {
	src := latLonField("m", []float64{-0.5, 0.5}, []float64{0.5, 1.5, 2.5, 3.5}, func(j, i int) float64 {
		return float64(i)
	})
	tgt := latLonField("ref", []float64{0}, []float64{1, 3}, func(j, i int) float64 { return 0 })
	tgt.Coords[0].Bounds = [][2]float64{{-1, 1}}
	o, err := Regrid(src, tgt)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.5, 2.5}
	for i, w := range want {
		if math.Abs(o.Data.Elements[i]-w) > 1e-9 {
			t.Errorf("cell %d: have %g, want %g", i, o.Data.Elements[i], w)
		}
	}
}

func TestRegridWrapsLongitude(t *testing.T) {
	src := latLonField("m", []float64{-0.5, 0.5}, []float64{-1.5, -0.5, 0.5, 1.5}, func(j, i int) float64 {
		return float64(i)
	})
	tgt := latLonField("ref", []float64{0}, []float64{1, 359}, func(j, i int) float64 { return 0 })
	tgt.Coords[0].Bounds = [][2]float64{{-1, 1}}
	tgt.Coords[1].Bounds = [][2]float64{{0, 2}, {358, 360}}
	o, err := Regrid(src, tgt)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{2.5, 0.5}
	for i, w := range want {
		if o.Mask[i] || math.Abs(o.Data.Elements[i]-w) > 1e-9 {
			t.Errorf("cell %d: have %g (masked %v), want %g", i, o.Data.Elements[i], o.Mask[i], w)
		}
	}
}

func TestRegridNoOverlap(t *testing.T) {
	src := latLonField("m", []float64{-0.5, 0.5}, []float64{0.5, 1.5}, func(j, i int) float64 { return 1 })
	tgt := latLonField("ref", []float64{-60, 60}, []float64{100, 200}, func(j, i int) float64 { return 0 })
	o, err := Regrid(src, tgt)
	if err != nil {
		t.Fatal(err)
	}
	for i, m := range o.Mask {
		if !m {
			t.Errorf("cell %d should be masked", i)
		}
	}
}

func TestRegridRequiresHorizontalDims(t *testing.T) {
	src := latLonField("m", []float64{0, 1}, []float64{0, 1}, func(j, i int) float64 { return 1 })
	zm, err := ZonalMean(src, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Regrid(zm, src); !errors.Is(err, ErrGridMismatch) {
		t.Errorf("have %v, want ErrGridMismatch", err)
	}
}

func TestErrorSelf(t *testing.T) {
	f := constantField("m", Celsius, 0, 1, testLats, testLons)
	for i := range f.Data.Elements {
		f.Data.Elements[i] = float64(i) * 1.7
	}
	f.Mask[3] = true
	o, err := Error(f, f)
	if err != nil {
		t.Fatal(err)
	}
	if o.LongName != f.LongName+" error" {
		t.Errorf("long name: %q", o.LongName)
	}
	for i, v := range o.Data.Elements {
		if v != 0 {
			t.Errorf("element %d: have %g, want 0", i, v)
		}
	}
	if !o.Mask[3] {
		t.Error("mask should be kept")
	}
}

func TestErrorMaskUnion(t *testing.T) {
	f := constantField("m", Celsius, 22, 1, testLats, testLons)
	ref := constantField("ref", Celsius, 21, 1, testLats, testLons)
	f.Mask[0] = true
	ref.Mask[5] = true
	o, err := Error(f, ref)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range o.Data.Elements {
		switch i {
		case 0, 5:
			if !o.Mask[i] {
				t.Errorf("element %d should be masked", i)
			}
		default:
			if o.Mask[i] || v != 1 {
				t.Errorf("element %d: have %g, want 1", i, v)
			}
		}
	}
}

func TestErrorGridMismatch(t *testing.T) {
	f := constantField("m", Celsius, 22, 1, testLats, testLons)
	ref := constantField("ref", Celsius, 21, 1, testLats, []float64{0, 1, 2, 3})
	if _, err := Error(f, ref); !errors.Is(err, ErrGridMismatch) {
		t.Errorf("have %v, want ErrGridMismatch", err)
	}
}
