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
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// ResourceData holds resource data in memory so that it can be written
// to an archive file.
type ResourceData struct {
	TimeIndex []time.Time
	Sites     []Site

	Data map[string]struct {
		Units       string             // variable units
		ScaleFactor float64            // stored = value * ScaleFactor; 1 stores floats
		Data        *sparse.DenseArray // [time × site] values
	}
}

// AddVariable adds a [time × site] dataset. If scaleFactor is not 1
// the data will be stored as scaled 16-bit integers.
func (d *ResourceData) AddVariable(variable string, height float64, units string, scaleFactor float64, data *sparse.DenseArray) {
	if d.Data == nil {
		d.Data = make(map[string]struct {
			Units       string
			ScaleFactor float64
			Data        *sparse.DenseArray
		})
	}
	if scaleFactor == 0 {
		scaleFactor = 1
	}
	d.Data[DatasetName(variable, height)] = struct {
		Units       string
		ScaleFactor float64
		Data        *sparse.DenseArray
	}{Units: units, ScaleFactor: scaleFactor, Data: data}
}

// Write writes the data to w in the archive format read by OpenArchive.
func (d *ResourceData) Write(w *os.File) error {
	nt, ns := len(d.TimeIndex), len(d.Sites)
	h := cdf.NewHeader([]string{"time", "gid"}, []int{nt, ns})
	h.AddAttribute("", "comment", "rex resource data file")

	h.AddVariable(timeIndexVar, []string{"time"}, []float64{0})
	h.AddAttribute(timeIndexVar, "units", "seconds since 1970-01-01 00:00:00 UTC")
	for _, v := range []string{latVar, lonVar, elevVar} {
		h.AddVariable(v, []string{"gid"}, []float64{0})
	}
	h.AddVariable(tzVar, []string{"gid"}, []int32{0})
	h.AddAttribute(tzVar, "units", "hours from UTC")

	extraSet := make(map[string]bool)
	for _, s := range d.Sites {
		for k := range s.Extra {
			extraSet[k] = true
		}
	}
	extra := make([]string, 0, len(extraSet))
	for k := range extraSet {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, v := range extra {
		h.AddVariable(v, []string{"gid"}, []float64{0})
	}

	// Sort the names so they write in the same order every time.
	names := make([]string, 0, len(d.Data))
	for n := range d.Data {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		dd := d.Data[name]
		if len(dd.Data.Shape) != 2 || dd.Data.Shape[0] != nt || dd.Data.Shape[1] != ns {
			return valueErrorf("writing %s: shape %v does not match [%d %d]", name, dd.Data.Shape, nt, ns)
		}
		if dd.ScaleFactor != 1 {
			h.AddVariable(name, []string{"time", "gid"}, []int16{0})
			h.AddAttribute(name, "scale_factor", []float64{dd.ScaleFactor})
		} else {
			h.AddVariable(name, []string{"time", "gid"}, []float32{0})
		}
		h.AddAttribute(name, "units", dd.Units)
	}
	h.Define()

	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return err
	}

	sec := make([]float64, nt)
	for i, t := range d.TimeIndex {
		sec[i] = float64(t.UnixNano()) / 1e9
	}
	if err = writeVar(f, timeIndexVar, sec); err != nil {
		return err
	}
	lat, lon, elev := make([]float64, ns), make([]float64, ns), make([]float64, ns)
	tz := make([]int32, ns)
	for i, s := range d.Sites {
		lat[i], lon[i], elev[i], tz[i] = s.Latitude, s.Longitude, s.Elevation, int32(s.Timezone)
	}
	for v, data := range map[string]interface{}{latVar: lat, lonVar: lon, elevVar: elev, tzVar: tz} {
		if err = writeVar(f, v, data); err != nil {
			return err
		}
	}
	for _, v := range extra {
		data := make([]float64, ns)
		for i, s := range d.Sites {
			data[i] = s.Extra[v]
		}
		if err = writeVar(f, v, data); err != nil {
			return err
		}
	}

	for _, name := range names {
		dd := d.Data[name]
		var data interface{}
		if dd.ScaleFactor != 1 {
			d16 := make([]int16, len(dd.Data.Elements))
			for i, e := range dd.Data.Elements {
				d16[i] = int16(math.Round(e * dd.ScaleFactor))
			}
			data = d16
		} else {
			d32 := make([]float32, len(dd.Data.Elements))
			for i, e := range dd.Data.Elements {
				d32[i] = float32(e)
			}
			data = d32
		}
		if err = writeVar(f, name, data); err != nil {
			return err
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeVar(f *cdf.File, name string, data interface{}) error {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("rex: writing variable %s to netcdf file: %v", name, err)
	}
	return nil
}
