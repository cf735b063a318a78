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
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution is a continuous distribution used for quantile mapping.
type Distribution interface {
	CDF(x float64) float64
	Quantile(p float64) float64
}

// shifted moves a distribution by loc.
type shifted struct {
	d interface {
		CDF(float64) float64
		Quantile(float64) float64
	}
	loc float64
}

func (s shifted) CDF(x float64) float64      { return s.d.CDF(x - s.loc) }
func (s shifted) Quantile(p float64) float64 { return s.d.Quantile(p) + s.loc }

// NewDistribution returns the distribution family name with parameters
// given in the order SciPy uses for that family:
//
//	weibull_min: c, loc, scale
//	norm:        loc, scale
//	lognorm:     s, loc, scale
//	gamma:       a, loc, scale
//	expon:       loc, scale
func NewDistribution(name string, params []float64) (Distribution, error) {
	want := map[string]int{"weibull_min": 3, "norm": 2, "lognorm": 3, "gamma": 3, "expon": 2}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "weibull" {
		name = "weibull_min"
	}
	n, ok := want[name]
	if !ok {
		return nil, &KeyError{Key: name, Msg: fmt.Sprintf("unknown distribution %q", name)}
	}
	if len(params) != n {
		return nil, valueErrorf("distribution %s needs %d parameters but got %v", name, n, params)
	}
	scale := params[n-1]
	if !(scale > 0) {
		return nil, valueErrorf("distribution %s has non-positive scale %g", name, scale)
	}
	switch name {
	case "weibull_min", "lognorm", "gamma":
		if shape := params[0]; !(shape > 0) || math.IsInf(shape, 0) {
			return nil, valueErrorf("distribution %s has invalid shape %g", name, shape)
		}
	}
	for _, v := range params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, valueErrorf("distribution %s has non-finite parameters %v", name, params)
		}
	}
	switch name {
	case "weibull_min":
		return shifted{d: distuv.Weibull{K: params[0], Lambda: scale}, loc: params[1]}, nil
	case "norm":
		return distuv.Normal{Mu: params[0], Sigma: scale}, nil
	case "lognorm":
		return shifted{d: distuv.LogNormal{Mu: math.Log(scale), Sigma: params[0]}, loc: params[1]}, nil
	case "gamma":
		return shifted{d: distuv.Gamma{Alpha: params[0], Beta: 1 / scale}, loc: params[1]}, nil
	default: // expon
		return shifted{d: distuv.Exponential{Rate: 1 / scale}, loc: params[0]}, nil
	}
}

// quantileBound keeps probabilities away from the infinite tails.
const quantileBound = 1e-6

// QDM is a parametric quantile delta mapping. A value x of the series
// being corrected is located in the modeled future distribution MF, and
// the change between the modeled historical (MH) and observed historical
// (OH) distributions at that quantile is applied to it.
type QDM struct {
	OH, MH, MF Distribution
	Relative   bool
}

// Correct returns the corrected value of x.
func (q QDM) Correct(x float64) float64 {
	if math.IsNaN(x) {
		return x
	}
	p := q.MF.CDF(x)
	p = math.Max(quantileBound, math.Min(1-quantileBound, p))
	oh, mh := q.OH.Quantile(p), q.MH.Quantile(p)
	if q.Relative {
		if mh <= 0 || x <= 0 {
			return x
		}
		return oh * x / mh
	}
	return x + oh - mh
}
