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
	"io/ioutil"
	"math"
	"os"
	"testing"
	"time"

	"github.com/ctessum/sparse"
)

// different returns whether a and b differ by more than the relative
// tolerance.
func different(a, b, tolerance float64) bool {
	if a == b {
		return false
	}
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

// hourly returns n hourly times starting at the beginning of 2012 UTC.
func hourly(n int) []time.Time {
	o := make([]time.Time, n)
	t0 := time.Date(2012, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := range o {
		o[i] = t0.Add(time.Duration(i) * time.Hour)
	}
	return o
}

// testSites returns n sites on a diagonal line near Denver. Every other
// site is in the central time zone.
func testSites(n int) []Site {
	o := make([]Site, n)
	for i := range o {
		tz := -7
		if i%2 == 1 {
			tz = -6
		}
		o[i] = Site{
			GID:       i,
			Latitude:  39.5 + 0.1*float64(i),
			Longitude: -105.5 + 0.1*float64(i),
			Timezone:  tz,
			Elevation: 1600 + 10*float64(i),
			Extra:     map[string]float64{"offshore": float64(i % 3 / 2)},
		}
	}
	return o
}

// fill returns an [nt × ns] array with values f(t, s).
func fill(nt, ns int, f func(t, s int) float64) *sparse.DenseArray {
	a := sparse.ZerosDense(nt, ns)
	for t := 0; t < nt; t++ {
		for s := 0; s < ns; s++ {
			a.Elements[t*ns+s] = f(t, s)
		}
	}
	return a
}

// testWindSpeed is the wind speed at height h.
func testWindSpeed(h float64, t, s int) float64 {
	return (5 + float64(s) + 2*math.Sin(float64(t)/3)) * math.Pow(h/100, 0.14)
}

// windData returns wind resource data with every wind variable stored at
// each of heights. Pressure is stored in Pa and temperature in K.
func windData(nt, ns int, heights ...float64) *ResourceData {
	d := &ResourceData{TimeIndex: hourly(nt), Sites: testSites(ns)}
	for _, h := range heights {
		h := h
		d.AddVariable("windspeed", h, "m s-1", 100, fill(nt, ns, func(t, s int) float64 {
			return testWindSpeed(h, t, s)
		}))
		d.AddVariable("winddirection", h, "degree", 1, fill(nt, ns, func(t, s int) float64 {
			return math.Mod(170+float64(10*s)+h/10+float64(t), 360)
		}))
		d.AddVariable("pressure", h, "Pa", 1, fill(nt, ns, func(t, s int) float64 {
			return 101325 - 12*h - 100*float64(s) + float64(t)
		}))
		d.AddVariable("temperature", h, "K", 1, fill(nt, ns, func(t, s int) float64 {
			return 288.15 - 0.0065*h + float64(s) + math.Sin(float64(t)/4)
		}))
	}
	return d
}

// solarData returns consistent solar resource data built from the
// clear-sky model with a daily cloud pattern.
func solarData(nt, ns int) *ResourceData {
	times := hourly(nt)
	sites := testSites(ns)
	ghi, dni, dhi := sparse.ZerosDense(nt, ns), sparse.ZerosDense(nt, ns), sparse.ZerosDense(nt, ns)
	for t := 0; t < nt; t++ {
		for s := 0; s < ns; s++ {
			cz, etr := solarPosition(times[t], sites[s].Latitude, sites[s].Longitude)
			g := clearSkyGHI(cz) * (0.6 + 0.4*math.Abs(math.Cos(float64(t+s)/5)))
			n, d := splitGHI(g, cz, etr)
			i := t*ns + s
			ghi.Elements[i], dni.Elements[i], dhi.Elements[i] = g, n, d
		}
	}
	d := &ResourceData{TimeIndex: times, Sites: sites}
	d.AddVariable("ghi", NoHeight, "W/m2", 1, ghi)
	d.AddVariable("dni", NoHeight, "W/m2", 1, dni)
	d.AddVariable("dhi", NoHeight, "W/m2", 1, dhi)
	d.AddVariable("wind_speed", NoHeight, "m s-1", 10, fill(nt, ns, func(t, s int) float64 {
		return 3 + float64(s) + math.Cos(float64(t)/6)
	}))
	d.AddVariable("air_temperature", NoHeight, "C", 1, fill(nt, ns, func(t, s int) float64 {
		return 5 + 10*math.Sin(float64(t)/24*2*math.Pi)
	}))
	d.AddVariable("surface_albedo", NoHeight, "", 1, fill(nt, ns, func(t, s int) float64 {
		return 0.2
	}))
	return d
}

// writeTestArchive writes d to a temporary file and opens it.
func writeTestArchive(t *testing.T, d *ResourceData) *Archive {
	t.Helper()
	f, err := ioutil.TempFile("", "rex_test")
	if err != nil {
		t.Fatal(err)
	}
	if err = d.Write(f); err != nil {
		t.Fatal(err)
	}
	if err = f.Close(); err != nil {
		t.Fatal(err)
	}
	a, err := OpenArchive(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		a.Close()
		os.Remove(f.Name())
	})
	return a
}

// column returns column c of a.
func column(a *sparse.DenseArray, c int) []float64 {
	nt, ns := a.Shape[0], a.Shape[1]
	o := make([]float64, nt)
	for t := range o {
		o[t] = a.Elements[t*ns+c]
	}
	return o
}
