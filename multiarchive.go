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
	"sort"
	"time"

	"github.com/ctessum/sparse"
)

// multiArchive presents several archives as one.
type multiArchive struct {
	readers  []ArchiveReader
	owner    map[string]ArchiveReader
	datasets []string
}

// MultiArchive combines archives that share sites and a time axis, for
// example a solar archive and a wind archive covering the same grid.
// Each dataset is read from the first archive that holds it; meta data
// and the time axis come from the first archive.
func MultiArchive(readers ...ArchiveReader) (ArchiveReader, error) {
	if len(readers) == 0 {
		return nil, valueErrorf("no archives to combine")
	}
	m := &multiArchive{readers: readers, owner: make(map[string]ArchiveReader)}
	t0, err := readers[0].TimeIndex()
	if err != nil {
		return nil, err
	}
	for i, r := range readers {
		if r.NumSites() != readers[0].NumSites() {
			return nil, runtimeErrorf("archive %d has %d sites but archive 0 has %d",
				i, r.NumSites(), readers[0].NumSites())
		}
		if i > 0 {
			t, err := r.TimeIndex()
			if err != nil {
				return nil, err
			}
			if !sameTimes(t0, t) {
				return nil, runtimeErrorf("archive %d has a different time index than archive 0 "+
					"(%d vs. %d steps)", i, len(t), len(t0))
			}
		}
		for _, d := range r.Datasets() {
			if _, ok := m.owner[d]; !ok {
				m.owner[d] = r
				m.datasets = append(m.datasets, d)
			}
		}
	}
	sort.Strings(m.datasets)
	return m, nil
}

func sameTimes(a, b []time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func (m *multiArchive) Datasets() []string              { return m.datasets }
func (m *multiArchive) NumSites() int                   { return m.readers[0].NumSites() }
func (m *multiArchive) TimeIndex() ([]time.Time, error) { return m.readers[0].TimeIndex() }
func (m *multiArchive) Meta(cols Columns) ([]Site, error) {
	return m.readers[0].Meta(cols)
}

func (m *multiArchive) Read(variable string, height float64, rows Slice, cols Columns) (*sparse.DenseArray, Attrs, error) {
	r, ok := m.owner[DatasetName(variable, height)]
	if !ok {
		return nil, Attrs{}, &ResourceIOError{Dataset: DatasetName(variable, height)}
	}
	return r.Read(variable, height, rows, cols)
}
