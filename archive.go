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
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// NoHeight is the height argument for datasets that are not
// height-indexed.
const NoHeight = -1.0

// Site is one row of the archive meta table.
type Site struct {
	GID       int
	Latitude  float64
	Longitude float64
	// Timezone is the offset from UTC in hours.
	Timezone  int
	Elevation float64
	// Extra holds any further numeric per-site values in the archive.
	Extra map[string]float64
}

// Attrs holds the attributes of an archive dataset.
type Attrs struct {
	// ScaleFactor is the factor stored values were multiplied by.
	ScaleFactor float64
	Units       string
}

// ArchiveReader is the read interface to a multi-site resource archive.
// Data arrays are time-major: element (t, s) is time step t of the s-th
// requested column.
type ArchiveReader interface {
	// Datasets returns the names of the [time × site] datasets.
	Datasets() []string

	// NumSites returns the number of sites in the archive.
	NumSites() int

	// TimeIndex returns the time axis shared by all sites, in UTC.
	TimeIndex() ([]time.Time, error)

	// Meta returns the meta table rows for cols, in order.
	Meta(cols Columns) ([]Site, error)

	// Read returns the raw stored values of variable at height (or
	// NoHeight) for the given time steps and columns. A zero rows value
	// reads every time step. cols may contain repeated indices.
	Read(variable string, height float64, rows Slice, cols Columns) (*sparse.DenseArray, Attrs, error)
}

// DatasetName returns the archive dataset name of variable at height.
func DatasetName(variable string, height float64) string {
	if height < 0 {
		return variable
	}
	return variable + "_" + strconv.FormatFloat(height, 'f', -1, 64) + "m"
}

// Names of the archive variables that are not datasets.
const (
	timeIndexVar = "time_index"
	latVar       = "latitude"
	lonVar       = "longitude"
	tzVar        = "timezone"
	elevVar      = "elevation"
)

// Archive is a resource archive held in a NetCDF file with dimensions
// "time" and "gid".
type Archive struct {
	f        *cdf.File
	closer   io.Closer
	nt, ns   int
	datasets []string
	metaVars []string
	meta     map[string][]float64
}

// OpenArchive opens the NetCDF resource archive at path.
func OpenArchive(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ResourceIOError{Dataset: path, Err: err}
	}
	a, err := NewArchive(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.closer = f
	return a, nil
}

// NewArchive reads the archive held in rw.
func NewArchive(rw cdf.ReaderWriterAt) (*Archive, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, &ResourceIOError{Dataset: "archive", Err: err}
	}
	a := &Archive{f: f, meta: make(map[string][]float64)}
	for _, v := range f.Header.Variables() {
		dims := f.Header.Dimensions(v)
		lens := f.Header.Lengths(v)
		switch {
		case len(dims) == 2 && dims[0] == "time" && dims[1] == "gid":
			a.datasets = append(a.datasets, v)
			a.nt, a.ns = lens[0], lens[1]
		case len(dims) == 1 && dims[0] == "gid":
			a.metaVars = append(a.metaVars, v)
			a.ns = lens[0]
		case len(dims) == 1 && dims[0] == "time":
			a.nt = lens[0]
		}
	}
	if a.ns == 0 {
		return nil, &ResourceIOError{Dataset: "archive", Err: fmt.Errorf("no gid dimension")}
	}
	sort.Strings(a.datasets)
	sort.Strings(a.metaVars)
	return a, nil
}

// Close closes the underlying file, if the archive was opened with
// OpenArchive.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// Datasets implements ArchiveReader.
func (a *Archive) Datasets() []string { return a.datasets }

// NumSites implements ArchiveReader.
func (a *Archive) NumSites() int { return a.ns }

// TimeIndex implements ArchiveReader.
func (a *Archive) TimeIndex() ([]time.Time, error) {
	sec, err := a.readVar(timeIndexVar)
	if err != nil {
		return nil, err
	}
	o := make([]time.Time, len(sec))
	for i, s := range sec {
		whole, frac := math.Modf(s)
		o[i] = time.Unix(int64(whole), int64(frac*1e9)).UTC()
	}
	return o, nil
}

// Meta implements ArchiveReader.
func (a *Archive) Meta(cols Columns) ([]Site, error) {
	cache := func(name string, required bool) ([]float64, error) {
		if v, ok := a.meta[name]; ok {
			return v, nil
		}
		if a.f.Header.Lengths(name) == nil {
			if required {
				return nil, &ResourceIOError{Dataset: name}
			}
			return nil, nil
		}
		v, err := a.readVar(name)
		if err != nil {
			return nil, err
		}
		a.meta[name] = v
		return v, nil
	}
	lat, err := cache(latVar, true)
	if err != nil {
		return nil, err
	}
	lon, err := cache(lonVar, true)
	if err != nil {
		return nil, err
	}
	tz, err := cache(tzVar, false)
	if err != nil {
		return nil, err
	}
	elev, err := cache(elevVar, false)
	if err != nil {
		return nil, err
	}
	extra := make(map[string][]float64)
	for _, v := range a.metaVars {
		switch v {
		case latVar, lonVar, tzVar, elevVar:
			continue
		}
		if extra[v], err = cache(v, false); err != nil {
			return nil, err
		}
	}

	o := make([]Site, cols.Len())
	for i := range o {
		c := cols.Index(i)
		if c < 0 || c >= a.ns {
			return nil, &IndexError{Index: c, NumSites: a.ns}
		}
		s := Site{GID: c, Latitude: lat[c], Longitude: lon[c]}
		if tz != nil {
			s.Timezone = int(tz[c])
		}
		if elev != nil {
			s.Elevation = elev[c]
		}
		if len(extra) > 0 {
			s.Extra = make(map[string]float64, len(extra))
			for k, v := range extra {
				s.Extra[k] = v[c]
			}
		}
		o[i] = s
	}
	return o, nil
}

// Read implements ArchiveReader.
func (a *Archive) Read(variable string, height float64, rows Slice, cols Columns) (*sparse.DenseArray, Attrs, error) {
	name := DatasetName(variable, height)
	lens := a.f.Header.Lengths(name)
	if len(lens) != 2 {
		return nil, Attrs{}, &ResourceIOError{Dataset: name}
	}
	if rows.Step == 0 {
		rows = Slice{Start: 0, Stop: a.nt, Step: 1}
	}
	if rows.Start < 0 || rows.Stop > a.nt {
		return nil, Attrs{}, valueErrorf("time steps [%d, %d) are out of range for %s with %d steps",
			rows.Start, rows.Stop, name, a.nt)
	}
	for i := 0; i < cols.Len(); i++ {
		if c := cols.Index(i); c < 0 || c >= a.ns {
			return nil, Attrs{}, &IndexError{Index: c, NumSites: a.ns}
		}
	}
	full, err := a.readVar(name)
	if err != nil {
		return nil, Attrs{}, err
	}
	nr, nc := rows.Len(), cols.Len()
	o := sparse.ZerosDense(nr, nc)
	for r := 0; r < nr; r++ {
		t := rows.Index(r)
		for c := 0; c < nc; c++ {
			o.Elements[r*nc+c] = full[t*a.ns+cols.Index(c)]
		}
	}
	return o, a.attrs(name), nil
}

func (a *Archive) attrs(name string) Attrs {
	at := Attrs{ScaleFactor: 1}
	if sf, ok := a.f.Header.GetAttribute(name, "scale_factor").([]float64); ok && len(sf) > 0 && sf[0] != 0 {
		at.ScaleFactor = sf[0]
	}
	if u, ok := a.f.Header.GetAttribute(name, "units").(string); ok {
		at.Units = strings.TrimSpace(u)
	}
	return at
}

// readVar reads the whole of variable name as float64 values.
func (a *Archive) readVar(name string) ([]float64, error) {
	if a.f.Header.Lengths(name) == nil {
		return nil, &ResourceIOError{Dataset: name}
	}
	r := a.f.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, &ResourceIOError{Dataset: name, Err: err}
	}
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int16:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int8:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	default:
		return nil, &ResourceIOError{Dataset: name, Err: fmt.Errorf("unsupported data type %T", buf)}
	}
}
