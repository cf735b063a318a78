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

import "math"

// Slice is the half-open index range [Start, Stop) taken every Step
// elements.
type Slice struct {
	Start, Stop, Step int
}

// Len returns the number of indices in the range.
func (s Slice) Len() int {
	if s.Step <= 0 || s.Stop <= s.Start {
		return 0
	}
	return (s.Stop - s.Start + s.Step - 1) / s.Step
}

// Index returns the i-th index in the range.
func (s Slice) Index(i int) int { return s.Start + i*s.Step }

// Indices expands the range into an explicit index list.
func (s Slice) Indices() []int {
	o := make([]int, s.Len())
	for i := range o {
		o[i] = s.Index(i)
	}
	return o
}

type siteSpecKind int

const (
	singleSite siteSpecKind = iota
	siteList
	siteRange
)

// SiteSpec is a caller's request for a set of sites. Create one with
// Site, SiteList, SiteRange, or AllSites.
type SiteSpec struct {
	kind  siteSpecKind
	gids  []int
	slice Slice
}

// Site requests a single site.
func Site(gid int) SiteSpec { return SiteSpec{kind: singleSite, gids: []int{gid}} }

// SiteList requests the given sites in the given order. Repeated gids
// are kept and produce repeated columns.
func SiteList(gids ...int) SiteSpec {
	g := make([]int, len(gids))
	copy(g, gids)
	return SiteSpec{kind: siteList, gids: g}
}

// SiteRange requests the sites start, start+step, ... up to but not
// including stop. A stop beyond the end of the archive is clipped.
func SiteRange(start, stop, step int) SiteSpec {
	return SiteSpec{kind: siteRange, slice: Slice{Start: start, Stop: stop, Step: step}}
}

// AllSites requests every site in the archive.
func AllSites() SiteSpec { return SiteRange(0, math.MaxInt32, 1) }

// Selection is the canonical form of a SiteSpec for one archive.
// Every array loaded for the selection has one column per element of GIDs,
// in the same order.
type Selection struct {
	// GIDs holds the selected site identifiers in request order,
	// including duplicates.
	GIDs []int

	// Slice is the equivalent compact range, or nil if GIDs is not
	// strictly increasing with a constant step.
	Slice *Slice

	// Single is true when the request was for one site.
	Single bool
}

// Select resolves spec against an archive holding nSites sites.
// It does not read any data.
func Select(spec SiteSpec, nSites int) (*Selection, error) {
	switch spec.kind {
	case siteRange:
		s := spec.slice
		if s.Step <= 0 {
			return nil, valueErrorf("site range step must be positive, got %d", s.Step)
		}
		if s.Start < 0 || s.Start >= nSites {
			return nil, &IndexError{Index: s.Start, NumSites: nSites}
		}
		if s.Stop > nSites {
			s.Stop = nSites
		}
		if s.Len() == 0 {
			return nil, &IndexError{Index: s.Start, NumSites: nSites,
				msg: "site range selects no sites"}
		}
		return &Selection{GIDs: s.Indices(), Slice: &s}, nil
	case singleSite, siteList:
		if len(spec.gids) == 0 {
			return nil, &IndexError{NumSites: nSites, msg: "no sites were requested"}
		}
		for _, g := range spec.gids {
			if g < 0 || g >= nSites {
				return nil, &IndexError{Index: g, NumSites: nSites}
			}
		}
		sel := &Selection{GIDs: append([]int(nil), spec.gids...), Single: spec.kind == singleSite}
		sel.Slice = compactRange(sel.GIDs)
		return sel, nil
	default:
		panic("rex: invalid site specification")
	}
}

// compactRange returns the range equivalent to gids, if there is one.
func compactRange(gids []int) *Slice {
	if len(gids) == 1 {
		return &Slice{Start: gids[0], Stop: gids[0] + 1, Step: 1}
	}
	step := gids[1] - gids[0]
	if step <= 0 {
		return nil
	}
	for i := 2; i < len(gids); i++ {
		if gids[i]-gids[i-1] != step {
			return nil
		}
	}
	last := gids[len(gids)-1]
	return &Slice{Start: gids[0], Stop: last + 1, Step: step}
}

// Len returns the number of selected sites, counting duplicates.
func (s *Selection) Len() int { return len(s.GIDs) }

// Columns returns the archive columns to read for the selection,
// preferring the compact range.
func (s *Selection) Columns() Columns {
	if s.Slice != nil {
		sl := *s.Slice
		return Columns{Slice: &sl}
	}
	return Columns{Indices: s.GIDs}
}

// Positions returns the positions in the selection that hold gid.
func (s *Selection) Positions(gid int) []int {
	var o []int
	for i, g := range s.GIDs {
		if g == gid {
			o = append(o, i)
		}
	}
	return o
}

// Columns identifies a set of archive columns (sites), either as a
// compact range or as an explicit index list that may contain repeats.
type Columns struct {
	Slice   *Slice
	Indices []int
}

// Len returns the number of columns.
func (c Columns) Len() int {
	if c.Slice != nil {
		return c.Slice.Len()
	}
	return len(c.Indices)
}

// Index returns the archive column of the i-th selected column.
func (c Columns) Index(i int) int {
	if c.Slice != nil {
		return c.Slice.Index(i)
	}
	return c.Indices[i]
}

// AllColumns returns every column of an archive with n sites.
func AllColumns(n int) Columns { return Columns{Slice: &Slice{Start: 0, Stop: n, Step: 1}} }
