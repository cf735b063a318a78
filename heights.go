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
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
)

// availableHeights returns the sorted heights at which variable is
// stored, parsed from dataset names of the form <variable>_<height>m.
func availableHeights(datasets []string, variable string) []float64 {
	var o []float64
	prefix := variable + "_"
	for _, d := range datasets {
		if !strings.HasPrefix(d, prefix) || !strings.HasSuffix(d, "m") {
			continue
		}
		h, err := strconv.ParseFloat(d[len(prefix):len(d)-1], 64)
		if err != nil || h < 0 {
			continue
		}
		o = append(o, h)
	}
	sort.Float64s(o)
	return o
}

// heightPlan says which stored heights make up a requested height.
// When Lower == Upper the stored height is used as-is.
type heightPlan struct {
	Target       float64
	Lower, Upper float64
}

func (p heightPlan) interpolated() bool { return p.Lower != p.Upper }

// planHeight chooses the stored heights used to produce a series at
// height h. heights must be sorted and non-empty.
func planHeight(heights []float64, h float64) heightPlan {
	i := sort.SearchFloat64s(heights, h)
	switch {
	case i < len(heights) && heights[i] == h:
		return heightPlan{Target: h, Lower: h, Upper: h}
	case i == 0:
		return heightPlan{Target: h, Lower: heights[0], Upper: heights[0]}
	case i == len(heights):
		last := heights[len(heights)-1]
		return heightPlan{Target: h, Lower: last, Upper: last}
	default:
		return heightPlan{Target: h, Lower: heights[i-1], Upper: heights[i]}
	}
}

// heightWeight returns the position of h between h1 and h2 in log-height,
// or in height when either bound is at ground level.
func heightWeight(h1, h2, h float64) float64 {
	if h1 <= 0 || h2 <= 0 {
		return (h - h1) / (h2 - h1)
	}
	return math.Log(h/h1) / math.Log(h2/h1)
}

// interpolateHeight combines the series at the lower and upper heights of
// p into a series at p.Target. lower is overwritten with the result.
func interpolateHeight(variable string, p heightPlan, lower, upper *sparse.DenseArray) *sparse.DenseArray {
	w := heightWeight(p.Lower, p.Upper, p.Target)
	switch variable {
	case "windspeed":
		for i, v1 := range lower.Elements {
			v2 := upper.Elements[i]
			if v1 > 0 && v2 > 0 && p.Lower > 0 {
				alpha := math.Log(v2/v1) / math.Log(p.Upper/p.Lower)
				lower.Elements[i] = v1 * math.Pow(p.Target/p.Lower, alpha)
			} else {
				lower.Elements[i] = v1 + w*(v2-v1)
			}
		}
	case "winddirection":
		for i, v1 := range lower.Elements {
			d := math.Mod(upper.Elements[i]-v1+540, 360) - 180
			lower.Elements[i] = math.Mod(v1+w*d+360, 360)
		}
	default:
		for i, v1 := range lower.Elements {
			lower.Elements[i] = v1 + w*(upper.Elements[i]-v1)
		}
	}
	return lower
}
