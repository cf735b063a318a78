/*
Copyright © 2024 the rex authors.
This file is part of rex.

rex is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

rex is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with rex.  If not, see <http://www.gnu.org/licenses/>.
*/

package rex

import (
	"errors"
	"io/ioutil"
	"os"
	"testing"
)

func TestConvertPressure(t *testing.T) {
	pa := fill(24, 3, func(tt, s int) float64 { return 101325 - 100*float64(s) + 10*float64(tt) })
	raw := pa.Copy()
	units, err := ConvertUnits("pressure", "Pa", pa)
	if err != nil {
		t.Fatal(err)
	}
	if units != "atm" {
		t.Errorf("units: have %s, want atm", units)
	}
	for i, v := range pa.Elements {
		if want := raw.Elements[i] * 9.86923e-6; v != want {
			t.Errorf("%d: have %g, want %g", i, v, want)
		}
	}

	// Ten times too large values are clipped to the upper bound.
	for i := range pa.Elements {
		pa.Elements[i] *= 10
	}
	rng, ok := DefaultRanges().For(Windpower, "pressure")
	if !ok {
		t.Fatal("no pressure range")
	}
	EnforceRange(pa, rng)
	for i, v := range pa.Elements {
		if v != rng.Max {
			t.Errorf("%d: have %g, want %g", i, v, rng.Max)
		}
	}
}

func TestConvertInferredUnits(t *testing.T) {
	for _, test := range []struct {
		value, want float64
	}{
		{101325, 101325 * atmPerPa},
		{15000, 15000 * atmPerPa},
		{2500, 2500 * atmPerPa},
		{1100, 1100 * atmPerPa * 100},
		{110, 110 * atmPerPa * 1000},
		{1013.25, 1013.25 * atmPerPa * 100},
		{101.325, 101.325 * atmPerPa * 1000},
		{1, 1},
	} {
		a := fill(2, 2, func(int, int) float64 { return test.value })
		if _, err := ConvertUnits("pressure", "", a); err != nil {
			t.Fatal(err)
		}
		if different(a.Elements[0], test.want, 1e-12) {
			t.Errorf("%g: have %g, want %g", test.value, a.Elements[0], test.want)
		}
	}
}

func TestConvertTemperature(t *testing.T) {
	a := fill(1, 1, func(int, int) float64 { return 300 })
	if _, err := ConvertUnits("temperature", "K", a); err != nil {
		t.Fatal(err)
	}
	if different(a.Elements[0], 26.85, 1e-12) {
		t.Errorf("have %g, want 26.85", a.Elements[0])
	}
	b := fill(1, 1, func(int, int) float64 { return 30 })
	if _, err := ConvertUnits("surface_pressure", "kPa", b); err != nil {
		t.Fatal(err)
	}
	if b.Elements[0] != 300 {
		t.Errorf("surface pressure: have %g, want 300", b.Elements[0])
	}
	_, err := ConvertUnits("temperature", "F", a)
	var ve *ResourceValueError
	if !errors.As(err, &ve) {
		t.Errorf("want ResourceValueError, have %v", err)
	}
}

func TestEnforceRange(t *testing.T) {
	a := fill(4, 1, func(tt, _ int) float64 { return []float64{-5, 50, 150, 120}[tt] })
	EnforceRange(a, Range{Min: 0, Max: 120})
	want := []float64{0, 50, 120, 120}
	for i, v := range a.Elements {
		if v != want[i] {
			t.Errorf("%d: have %g, want %g", i, v, want[i])
		}
	}
}

func TestLoadRanges(t *testing.T) {
	f, err := ioutil.TempFile("", "rex_ranges*.toml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	if _, err = f.WriteString("[wind]\nwindspeed = [0.0, 80.0]\n\n[solar]\nghi = [0.0, 1500.0]\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	r, err := LoadRanges(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	if rng, _ := r.For(Windpower, "windspeed"); rng.Max != 80 {
		t.Errorf("windspeed: have %+v", rng)
	}
	if rng, _ := r.For(PVWattsV7, "ghi"); rng.Max != 1500 {
		t.Errorf("ghi: have %+v", rng)
	}
	if rng, _ := r.For(Windpower, "pressure"); rng.Min != 0.5 || rng.Max != 1.099 {
		t.Errorf("pressure: have %+v", rng)
	}
	if rng, _ := DefaultRanges().For(Windpower, "windspeed"); rng.Max != 120 {
		t.Errorf("defaults were modified: %+v", rng)
	}
}
