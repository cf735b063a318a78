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
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
)

// CorrectionMethod is a bias correction method together with the
// parameters for one site.
type CorrectionMethod interface {
	// Name returns the registry name of the method.
	Name() string

	// variables returns the variables the method modifies.
	variables(t Technology, clearSky bool) []string

	// apply corrects columns cols of the arrays in place.
	apply(c *correctionTarget, cols []int)
}

// correctionTarget holds the arrays being corrected.
type correctionTarget struct {
	tech     Technology
	clearSky bool
	arrays   map[string]*sparse.DenseArray
	ranges   ValidRanges
}

// column calls f on every value of column col of variable and stores
// the result clipped to the variable's valid range.
func (c *correctionTarget) column(variable string, col int, f func(float64) float64) {
	a := c.arrays[variable]
	rng, hasRange := c.ranges.For(c.tech, variable)
	nt, ns := a.Shape[0], a.Shape[1]
	for t := 0; t < nt; t++ {
		i := t*ns + col
		v := f(a.Elements[i])
		if hasRange {
			v = math.Max(rng.Min, math.Min(rng.Max, v))
		}
		a.Elements[i] = v
	}
}

func windSpeedName(t Technology) string {
	if t.IsWind() {
		return "windspeed"
	}
	return "wind_speed"
}

func temperatureName(t Technology) string {
	if t.IsWind() {
		return "temperature"
	}
	return "air_temperature"
}

// LinWS scales and offsets wind speed: x' = Scalar*x + Adder.
type LinWS struct {
	Adder, Scalar float64
}

// Name implements CorrectionMethod.
func (LinWS) Name() string { return "lin_ws" }

func (LinWS) variables(t Technology, _ bool) []string { return []string{windSpeedName(t)} }

func (m LinWS) apply(c *correctionTarget, cols []int) {
	for _, col := range cols {
		c.column(windSpeedName(c.tech), col, func(x float64) float64 {
			return math.Max(0, m.Scalar*x+m.Adder)
		})
	}
}

// LinTemp scales and offsets air temperature: x' = Scalar*x + Adder.
type LinTemp struct {
	Adder, Scalar float64
}

// Name implements CorrectionMethod.
func (LinTemp) Name() string { return "lin_temp" }

func (LinTemp) variables(t Technology, _ bool) []string { return []string{temperatureName(t)} }

func (m LinTemp) apply(c *correctionTarget, cols []int) {
	for _, col := range cols {
		c.column(temperatureName(c.tech), col, func(x float64) float64 { return m.Scalar*x + m.Adder })
	}
}

// LinIrrad scales and offsets global and direct irradiance during
// daylight and recomputes diffuse irradiance so that the solar zenith
// angle implied by the three components does not change.
type LinIrrad struct {
	Adder, Scalar float64
}

// Name implements CorrectionMethod.
func (LinIrrad) Name() string { return "lin_irrad" }

func (LinIrrad) variables(_ Technology, clearSky bool) []string {
	g, n, d := irradianceNames(clearSky)
	return []string{g, n, d}
}

func (m LinIrrad) apply(c *correctionTarget, cols []int) {
	f := func(x float64) float64 { return m.Scalar*x + m.Adder }
	correctIrradiance(c, cols, f, f)
}

// PQDMWS corrects wind speed with parametric quantile delta mapping.
type PQDMWS struct {
	QDM
}

// Name implements CorrectionMethod.
func (PQDMWS) Name() string { return "pqdm_ws" }

func (PQDMWS) variables(t Technology, _ bool) []string { return []string{windSpeedName(t)} }

func (m PQDMWS) apply(c *correctionTarget, cols []int) {
	for _, col := range cols {
		c.column(windSpeedName(c.tech), col, func(x float64) float64 {
			return math.Max(0, m.Correct(x))
		})
	}
}

// PQDMIrrad corrects global and direct irradiance with parametric
// quantile delta mapping and recomputes diffuse irradiance as LinIrrad
// does.
type PQDMIrrad struct {
	QDM
}

// Name implements CorrectionMethod.
func (PQDMIrrad) Name() string { return "pqdm_irrad" }

func (PQDMIrrad) variables(_ Technology, clearSky bool) []string {
	g, n, d := irradianceNames(clearSky)
	return []string{g, n, d}
}

func (m PQDMIrrad) apply(c *correctionTarget, cols []int) {
	correctIrradiance(c, cols, m.Correct, m.Correct)
}

// correctIrradiance applies fGHI and fDNI to the positive global and
// direct irradiance values of cols and sets diffuse irradiance to
// ghi - dni*cos(zenith), where cos(zenith) is implied by the original
// components.
func correctIrradiance(c *correctionTarget, cols []int, fGHI, fDNI func(float64) float64) {
	gName, nName, dName := irradianceNames(c.clearSky)
	ghi, dni, dhi := c.arrays[gName], c.arrays[nName], c.arrays[dName]
	rng, ok := c.ranges.For(c.tech, gName)
	if !ok {
		rng = Range{Min: 0, Max: maxIrradiance}
	}
	clip := func(v float64) float64 { return math.Max(rng.Min, math.Min(rng.Max, v)) }
	nt, ns := ghi.Shape[0], ghi.Shape[1]
	for _, col := range cols {
		for t := 0; t < nt; t++ {
			i := t*ns + col
			g, n, d := ghi.Elements[i], dni.Elements[i], dhi.Elements[i]
			if g <= 0 && n <= 0 {
				continue
			}
			var cz float64
			if n > 0 {
				cz = math.Max(0, math.Min(1, (g-d)/n))
			}
			if g > 0 {
				g = clip(fGHI(g))
			}
			if n > 0 {
				n = clip(fDNI(n))
			}
			if n > 0 && cz > 0 {
				d = g - n*cz
			} else {
				d = g
			}
			ghi.Elements[i], dni.Elements[i], dhi.Elements[i] = g, n, clip(d)
		}
	}
}

// methodParser creates a method from row i of a bias correction table.
type methodParser func(t *Table, i int) (CorrectionMethod, error)

func linearParams(t *Table, i int) (adder, scalar float64, err error) {
	if adder, err = t.Float(i, "adder"); err != nil {
		return
	}
	scalar, err = t.Float(i, "scalar")
	return
}

func qdmParams(t *Table, i int) (QDM, error) {
	var q QDM
	dist, ok := t.Value(i, "dist")
	if !ok {
		dist = "weibull_min"
	}
	for _, p := range []struct {
		col string
		d   *Distribution
	}{{"params_oh", &q.OH}, {"params_mh", &q.MH}, {"params_mf", &q.MF}} {
		v, ok := t.Value(i, p.col)
		if !ok {
			return q, &KeyError{Key: p.col, Msg: fmt.Sprintf("row %d has no value for %q", i, p.col)}
		}
		params, err := parseList(v)
		if err != nil {
			return q, err
		}
		if *p.d, err = NewDistribution(dist, params); err != nil {
			return q, err
		}
	}
	if v, ok := t.Value(i, "relative"); ok {
		rel, err := strconv.ParseBool(v)
		if err != nil {
			return q, valueErrorf("row %d: relative: %v", i, err)
		}
		q.Relative = rel
	} else {
		q.Relative = true
	}
	return q, nil
}

// correctionMethods is the registry of bias correction methods.
var correctionMethods = map[string]methodParser{
	"lin_ws": func(t *Table, i int) (CorrectionMethod, error) {
		a, s, err := linearParams(t, i)
		return LinWS{Adder: a, Scalar: s}, err
	},
	"lin_irrad": func(t *Table, i int) (CorrectionMethod, error) {
		a, s, err := linearParams(t, i)
		return LinIrrad{Adder: a, Scalar: s}, err
	},
	"lin_temp": func(t *Table, i int) (CorrectionMethod, error) {
		a, s, err := linearParams(t, i)
		return LinTemp{Adder: a, Scalar: s}, err
	},
	"pqdm_ws": func(t *Table, i int) (CorrectionMethod, error) {
		q, err := qdmParams(t, i)
		return PQDMWS{QDM: q}, err
	},
	"pqdm_irrad": func(t *Table, i int) (CorrectionMethod, error) {
		q, err := qdmParams(t, i)
		return PQDMIrrad{QDM: q}, err
	},
}

// CorrectionMethods returns the names of the registered bias correction
// methods.
func CorrectionMethods() []string {
	o := make([]string, 0, len(correctionMethods))
	for k := range correctionMethods {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

// ParseBiasCorrection validates a bias correction table and returns the
// correction method for each gid in it.
func ParseBiasCorrection(t *Table) (map[int]CorrectionMethod, error) {
	if t.Column("method") < 0 {
		return nil, &KeyError{Key: "method", Msg: fmt.Sprintf(
			`"method" column not found! Bias correction table has columns: %v`, t.Columns)}
	}
	if t.Column("gid") < 0 {
		return nil, &KeyError{Key: "gid", Msg: fmt.Sprintf(
			`bias correction table must have "gid" column but only found: %v`, t.Columns)}
	}
	for i := range t.Rows {
		name, _ := t.Value(i, "method")
		if _, ok := correctionMethods[strings.ToLower(name)]; !ok {
			return nil, &KeyError{Key: name, Msg: fmt.Sprintf(
				`Could not find method name "%s" in bias correction registry: %v`, name, CorrectionMethods())}
		}
	}
	o := make(map[int]CorrectionMethod, len(t.Rows))
	for i := range t.Rows {
		gv, _ := t.Value(i, "gid")
		gid, err := strconv.Atoi(gv)
		if err != nil {
			if f, ferr := strconv.ParseFloat(gv, 64); ferr == nil && f == math.Trunc(f) {
				gid = int(f)
			} else {
				return nil, valueErrorf("bias correction table row %d: invalid gid %q", i, gv)
			}
		}
		if _, dup := o[gid]; dup {
			return nil, valueErrorf("bias correction table has more than one row for gid %d", gid)
		}
		name, _ := t.Value(i, "method")
		m, err := correctionMethods[strings.ToLower(name)](t, i)
		if err != nil {
			return nil, err
		}
		o[gid] = m
	}
	return o, nil
}
