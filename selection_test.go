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
	"reflect"
	"testing"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name   string
		spec   SiteSpec
		gids   []int
		slice  *Slice
		single bool
	}{
		{name: "single", spec: Site(4), gids: []int{4}, slice: &Slice{4, 5, 1}, single: true},
		{name: "range", spec: SiteRange(2, 6, 1), gids: []int{2, 3, 4, 5}, slice: &Slice{2, 6, 1}},
		{name: "stepped range", spec: SiteRange(0, 7, 3), gids: []int{0, 3, 6}, slice: &Slice{0, 7, 3}},
		{name: "clipped range", spec: SiteRange(7, 200, 1), gids: []int{7, 8, 9}, slice: &Slice{7, 10, 1}},
		{name: "contiguous list", spec: SiteList(1, 2, 3), gids: []int{1, 2, 3}, slice: &Slice{1, 4, 1}},
		{name: "evenly spaced list", spec: SiteList(1, 3, 5), gids: []int{1, 3, 5}, slice: &Slice{1, 6, 2}},
		{name: "duplicates", spec: SiteList(3, 1, 3, 3, 0), gids: []int{3, 1, 3, 3, 0}},
		{name: "sorted duplicates", spec: SiteList(1, 1, 2), gids: []int{1, 1, 2}},
		{name: "all", spec: AllSites(), gids: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, slice: &Slice{0, 10, 1}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sel, err := Select(test.spec, 10)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(sel.GIDs, test.gids) {
				t.Errorf("gids: have %v, want %v", sel.GIDs, test.gids)
			}
			if !reflect.DeepEqual(sel.Slice, test.slice) {
				t.Errorf("slice: have %+v, want %+v", sel.Slice, test.slice)
			}
			if sel.Single != test.single {
				t.Errorf("single: have %v, want %v", sel.Single, test.single)
			}
			cols := sel.Columns()
			if cols.Len() != len(test.gids) {
				t.Fatalf("columns: have %d, want %d", cols.Len(), len(test.gids))
			}
			for i, g := range test.gids {
				if cols.Index(i) != g {
					t.Errorf("column %d: have %d, want %d", i, cols.Index(i), g)
				}
			}
		})
	}
}

func TestSelectOutOfRange(t *testing.T) {
	for _, spec := range []SiteSpec{Site(10), Site(-1), SiteList(0, 5, 10), SiteRange(10, 20, 1), SiteList()} {
		_, err := Select(spec, 10)
		var ie *IndexError
		if !errors.As(err, &ie) {
			t.Errorf("%+v: want IndexError, have %v", spec, err)
		}
	}
	_, err := Select(SiteRange(0, 5, 0), 10)
	var ve *ResourceValueError
	if !errors.As(err, &ve) {
		t.Errorf("zero step: want ResourceValueError, have %v", err)
	}
}

func TestSelectionPositions(t *testing.T) {
	sel, err := Select(SiteList(3, 1, 3), 5)
	if err != nil {
		t.Fatal(err)
	}
	if p := sel.Positions(3); !reflect.DeepEqual(p, []int{0, 2}) {
		t.Errorf("have %v, want [0 2]", p)
	}
	if p := sel.Positions(4); p != nil {
		t.Errorf("have %v, want none", p)
	}
}
