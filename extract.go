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
	"sort"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/sparse"
)

// sitePoint is a site location in an R-tree. X is longitude and Y is
// latitude.
type sitePoint struct {
	geom.Point
	gid int
}

// SiteIndex is a spatial index of the sites in an archive.
type SiteIndex struct {
	tree  *rtree.Rtree
	sites []Site
}

// NewSiteIndex indexes every site of r by location.
func NewSiteIndex(r ArchiveReader) (*SiteIndex, error) {
	sites, err := r.Meta(AllColumns(r.NumSites()))
	if err != nil {
		return nil, err
	}
	x := &SiteIndex{tree: rtree.NewTree(25, 50), sites: sites}
	for _, s := range sites {
		x.tree.Insert(&sitePoint{Point: geom.Point{X: s.Longitude, Y: s.Latitude}, gid: s.GID})
	}
	return x, nil
}

func (x *SiteIndex) search(lat, lon, radius float64) []*sitePoint {
	b := &geom.Bounds{
		Min: geom.Point{X: lon - radius, Y: lat - radius},
		Max: geom.Point{X: lon + radius, Y: lat + radius},
	}
	var o []*sitePoint
	for _, g := range x.tree.SearchIntersect(b) {
		o = append(o, g.(*sitePoint))
	}
	return o
}

// Nearest returns the gid of the site closest to (lat, lon) and its
// distance in degrees.
func (x *SiteIndex) Nearest(lat, lon float64) (int, float64, error) {
	if len(x.sites) == 0 {
		return -1, 0, valueErrorf("archive has no sites")
	}
	nearest := func(pts []*sitePoint) (int, float64) {
		gid, best := -1, math.Inf(1)
		for _, p := range pts {
			d := math.Hypot(p.X-lon, p.Y-lat)
			if d < best || (d == best && p.gid < gid) {
				gid, best = p.gid, d
			}
		}
		return gid, best
	}
	for radius := 0.01; radius < 1000; radius *= 2 {
		pts := x.search(lat, lon, radius)
		if len(pts) == 0 {
			continue
		}
		gid, d := nearest(pts)
		if d > radius {
			// A closer site may lie outside the box but within d.
			gid, d = nearest(x.search(lat, lon, d))
		}
		return gid, d, nil
	}
	return -1, 0, valueErrorf("no site found near (%g, %g)", lat, lon)
}

// NearestSites returns the gid of the site closest to each
// (latitude, longitude) pair.
func (x *SiteIndex) NearestSites(points [][2]float64) ([]int, error) {
	o := make([]int, len(points))
	for i, p := range points {
		gid, _, err := x.Nearest(p[0], p[1])
		if err != nil {
			return nil, err
		}
		o[i] = gid
	}
	return o, nil
}

// Box returns the sorted gids of the sites inside the box with corners
// (lat1, lon1) and (lat2, lon2).
func (x *SiteIndex) Box(lat1, lon1, lat2, lon2 float64) []int {
	b := &geom.Bounds{
		Min: geom.Point{X: math.Min(lon1, lon2), Y: math.Min(lat1, lat2)},
		Max: geom.Point{X: math.Max(lon1, lon2), Y: math.Max(lat1, lat2)},
	}
	var o []int
	for _, g := range x.tree.SearchIntersect(b) {
		o = append(o, g.(*sitePoint).gid)
	}
	sort.Ints(o)
	return o
}

// NearestSites returns the gid of the site of r closest to each
// (latitude, longitude) pair.
func NearestSites(r ArchiveReader, points [][2]float64) ([]int, error) {
	x, err := NewSiteIndex(r)
	if err != nil {
		return nil, err
	}
	return x.NearestSites(points)
}

// BoxSites returns the sorted gids of the sites of r inside the box with
// corners lowerLeft and upperRight, each given as (latitude, longitude).
func BoxSites(r ArchiveReader, lowerLeft, upperRight [2]float64) ([]int, error) {
	x, err := NewSiteIndex(r)
	if err != nil {
		return nil, err
	}
	return x.Box(lowerLeft[0], lowerLeft[1], upperRight[0], upperRight[1]), nil
}

// metaParameters returns the values an expression can refer to for s.
func metaParameters(s Site) map[string]interface{} {
	p := map[string]interface{}{
		"gid":       float64(s.GID),
		"latitude":  s.Latitude,
		"longitude": s.Longitude,
		"timezone":  float64(s.Timezone),
		"elevation": s.Elevation,
	}
	for k, v := range s.Extra {
		p[k] = v
	}
	return p
}

// RegionSites returns the sorted gids of the sites whose meta data
// satisfy expression, a boolean expression over the meta columns such as
// "timezone == -5 && elevation > 100".
func RegionSites(r ArchiveReader, expression string) ([]int, error) {
	expr, err := govaluate.NewEvaluableExpression(expression)
	if err != nil {
		return nil, fmt.Errorf("rex: region expression %q: %v", expression, err)
	}
	sites, err := r.Meta(AllColumns(r.NumSites()))
	if err != nil {
		return nil, err
	}
	var o []int
	for _, s := range sites {
		p := metaParameters(s)
		for _, v := range expr.Vars() {
			if _, ok := p[v]; !ok {
				return nil, &KeyError{Key: v, Msg: fmt.Sprintf("region expression refers to unknown meta column %q", v)}
			}
		}
		result, err := expr.Evaluate(p)
		if err != nil {
			return nil, fmt.Errorf("rex: evaluating region expression for site %d: %v", s.GID, err)
		}
		keep, ok := result.(bool)
		if !ok {
			return nil, valueErrorf("region expression %q does not evaluate to true or false", expression)
		}
		if keep {
			o = append(o, s.GID)
		}
	}
	return o, nil
}

// ReadDataset reads the archive dataset name (including any height
// suffix) for the selected sites and removes its scale factor.
func ReadDataset(r ArchiveReader, name string, sel *Selection) (*sparse.DenseArray, Attrs, error) {
	data, attrs, err := r.Read(name, NoHeight, Slice{}, sel.Columns())
	if err != nil {
		return nil, attrs, err
	}
	if attrs.ScaleFactor != 0 && attrs.ScaleFactor != 1 {
		for i, v := range data.Elements {
			data.Elements[i] = v / attrs.ScaleFactor
		}
		attrs.ScaleFactor = 1
	}
	return data, attrs, nil
}
