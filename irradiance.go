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
	"time"

	"github.com/ctessum/sparse"
)

const (
	deg2rad = math.Pi / 180

	// solarConstant is the mean extraterrestrial irradiance [W/m2].
	solarConstant = 1361.0

	// maxIrradiance is the largest valid irradiance component [W/m2].
	maxIrradiance = 1360.0

	// minDNICosZenith is the cosine of the zenith angle (about 86°)
	// below which direct irradiance is taken to be zero.
	minDNICosZenith = 0.065
)

// solarPosition returns the cosine of the solar zenith angle and the
// extraterrestrial irradiance at time t (UTC) for a site at lat, lon
// (degrees), using the NOAA general solar position equations.
func solarPosition(t time.Time, lat, lon float64) (cosZenith, extraterrestrial float64) {
	t = t.UTC()
	daysInYear := 365.0
	if y := t.Year(); y%4 == 0 && (y%100 != 0 || y%400 == 0) {
		daysInYear = 366
	}
	hour := float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
	g := 2 * math.Pi / daysInYear * (float64(t.YearDay()-1) + (hour-12)/24)

	eqTime := 229.18 * (0.000075 + 0.001868*math.Cos(g) - 0.032077*math.Sin(g) -
		0.014615*math.Cos(2*g) - 0.040849*math.Sin(2*g))
	decl := 0.006918 - 0.399912*math.Cos(g) + 0.070257*math.Sin(g) -
		0.006758*math.Cos(2*g) + 0.000907*math.Sin(2*g) -
		0.002697*math.Cos(3*g) + 0.00148*math.Sin(3*g)

	trueSolarTime := hour*60 + eqTime + 4*lon // minutes
	hourAngle := (trueSolarTime/4 - 180) * deg2rad
	latR := lat * deg2rad
	cosZenith = math.Sin(latR)*math.Sin(decl) + math.Cos(latR)*math.Cos(decl)*math.Cos(hourAngle)
	cosZenith = math.Max(-1, math.Min(1, cosZenith))

	extraterrestrial = solarConstant * (1.00011 + 0.034221*math.Cos(g) + 0.00128*math.Sin(g) +
		0.000719*math.Cos(2*g) + 0.000077*math.Sin(2*g))
	return cosZenith, extraterrestrial
}

// SolarZenith returns the solar zenith angle in degrees at time t for a
// site at lat, lon.
func SolarZenith(t time.Time, lat, lon float64) float64 {
	cz, _ := solarPosition(t, lat, lon)
	return math.Acos(cz) / deg2rad
}

// clearSkyGHI is the Haurwitz clear-sky global horizontal irradiance.
func clearSkyGHI(cosZenith float64) float64 {
	if cosZenith <= 0 {
		return 0
	}
	return 1098 * cosZenith * math.Exp(-0.057/cosZenith)
}

// erbsDiffuseFraction returns the diffuse fraction of global irradiance
// for clearness index kt.
func erbsDiffuseFraction(kt float64) float64 {
	switch {
	case kt <= 0.22:
		return 1 - 0.09*kt
	case kt <= 0.8:
		return 0.9511 - 0.1604*kt + 4.388*kt*kt - 16.638*kt*kt*kt + 12.336*kt*kt*kt*kt
	default:
		return 0.165
	}
}

// splitGHI divides ghi into direct normal and diffuse components so that
// ghi == dhi + dni*cosZenith.
func splitGHI(ghi, cosZenith, extraterrestrial float64) (dni, dhi float64) {
	if ghi <= 0 {
		return 0, 0
	}
	if cosZenith < minDNICosZenith {
		return 0, ghi
	}
	kt := math.Min(1, ghi/(extraterrestrial*cosZenith))
	dhi = erbsDiffuseFraction(kt) * ghi
	dni = (ghi - dhi) / cosZenith
	if dni > maxIrradiance {
		dni = maxIrradiance
		dhi = ghi - dni*cosZenith
	}
	return dni, dhi
}

// ImputeConfig controls irradiance checking and repair.
type ImputeConfig struct {
	// ClosureTolerance is the allowed mismatch between ghi and
	// dhi + dni*cos(zenith), as a fraction of ghi.
	ClosureTolerance float64

	// ClosureFloor is the smallest allowed mismatch [W/m2].
	ClosureFloor float64

	// MaxInvalidFraction is the largest fraction of a site's daylight
	// time steps that may be repaired. Sites beyond it are irrecoverable.
	MaxInvalidFraction float64

	// Max is the largest allowed value of any component [W/m2]. Zero
	// means 1360.
	Max float64
}

func (c ImputeConfig) limit() float64 {
	if c.Max > 0 {
		return c.Max
	}
	return maxIrradiance
}

// DefaultImputeConfig returns the default irradiance check settings.
func DefaultImputeConfig() ImputeConfig {
	return ImputeConfig{ClosureTolerance: 0.05, ClosureFloor: 10, MaxInvalidFraction: 0.25}
}

// ImputeStats summarizes an irradiance repair.
type ImputeStats struct {
	// Repaired holds the number of repaired time steps for each column.
	Repaired []int
}

// Total returns the number of repaired time steps over all columns.
func (s ImputeStats) Total() int {
	var n int
	for _, r := range s.Repaired {
		n += r
	}
	return n
}

func validIrradiance(v float64) bool { return !math.IsNaN(v) && v >= 0 }

// ImputeIrradiance checks the global horizontal (ghi), direct normal
// (dni), and diffuse horizontal (dhi) irradiance arrays [time × site] and
// repairs, in place, every time step where a component is missing,
// negative, or inconsistent with the others. Values above cfg.Max are
// clipped before the check, and repaired steps never exceed it. At most one of the arrays
// may be nil, meaning that component is absent from the archive; it is
// then created from the other two and returned. times holds the UTC time
// of each row and sites the site of each column.
func ImputeIrradiance(ghi, dni, dhi *sparse.DenseArray, times []time.Time, sites []Site, cfg ImputeConfig) (*sparse.DenseArray, *sparse.DenseArray, *sparse.DenseArray, ImputeStats, error) {
	var missing string
	var shape []int
	for _, c := range []struct {
		name string
		a    *sparse.DenseArray
	}{{"ghi", ghi}, {"dni", dni}, {"dhi", dhi}} {
		if c.a == nil {
			if missing != "" {
				return nil, nil, nil, ImputeStats{}, runtimeErrorf("cannot compute irradiance: both %s and %s are missing", missing, c.name)
			}
			missing = c.name
			continue
		}
		if shape == nil {
			shape = c.a.Shape
		} else if c.a.Shape[0] != shape[0] || c.a.Shape[1] != shape[1] {
			return nil, nil, nil, ImputeStats{}, valueErrorf("irradiance arrays have shapes %v and %v", shape, c.a.Shape)
		}
	}
	nt, ns := shape[0], shape[1]
	if len(times) != nt || len(sites) != ns {
		return nil, nil, nil, ImputeStats{}, valueErrorf("irradiance arrays are [%d %d] but there are %d times and %d sites",
			nt, ns, len(times), len(sites))
	}
	fill := func() *sparse.DenseArray {
		a := sparse.ZerosDense(nt, ns)
		for i := range a.Elements {
			a.Elements[i] = math.NaN()
		}
		return a
	}
	switch missing {
	case "ghi":
		ghi = fill()
	case "dni":
		dni = fill()
	case "dhi":
		dhi = fill()
	}

	lim := cfg.limit()
	stats := ImputeStats{Repaired: make([]int, ns)}
	for s := 0; s < ns; s++ {
		site := sites[s]
		var daylight, badDaylight int
		for t := 0; t < nt; t++ {
			i := t*ns + s
			cz, etr := solarPosition(times[t], site.Latitude, site.Longitude)
			g, n, d := math.Min(ghi.Elements[i], lim), math.Min(dni.Elements[i], lim), math.Min(dhi.Elements[i], lim)
			gOK, nOK, dOK := validIrradiance(g), validIrradiance(n), validIrradiance(d)
			nBad := 0
			for _, ok := range []bool{gOK, nOK, dOK} {
				if !ok {
					nBad++
				}
			}
			if cz > 0 {
				daylight++
			}
			if nBad == 0 {
				if math.Abs(g-d-n*math.Max(cz, 0)) <= math.Max(cfg.ClosureTolerance*g, cfg.ClosureFloor) {
					ghi.Elements[i], dni.Elements[i], dhi.Elements[i] = g, n, d
					continue
				}
				// An inconsistent triple is rebuilt from its global component.
				nBad = 3
				nOK, dOK = false, false
			}
			// The absent component does not make a step invalid.
			if missing == "" || nBad > 1 {
				stats.Repaired[s]++
				if cz > 0 {
					badDaylight++
				}
			}
			g, n, d = repairIrradiance(g, n, d, gOK, nOK, dOK, nBad, cz, etr)
			g, n, d = limitIrradiance(g, n, d, cz, etr, lim)
			ghi.Elements[i], dni.Elements[i], dhi.Elements[i] = g, n, d
		}
		if cfg.MaxInvalidFraction >= 0 && daylight > 0 {
			frac := float64(badDaylight) / float64(daylight)
			if frac > cfg.MaxInvalidFraction || badDaylight == daylight {
				return nil, nil, nil, stats, runtimeErrorf("irradiance data for site %d is invalid for %d of %d daylight time steps "+
					"(more than the allowed fraction %g)", site.GID, badDaylight, daylight, cfg.MaxInvalidFraction)
			}
		}
	}
	return ghi, dni, dhi, stats, nil
}

// limitIrradiance rebuilds a repaired triple from its clipped global
// component when any component is above lim.
func limitIrradiance(g, n, d, cz, etr, lim float64) (float64, float64, float64) {
	if g <= lim && n <= lim && d <= lim {
		return g, n, d
	}
	g = math.Min(g, lim)
	if cz <= 0 {
		return g, 0, g
	}
	n, d = splitGHI(g, cz, etr)
	if n > lim {
		n = lim
		d = g - n*cz
	}
	return g, n, d
}

// repairIrradiance rebuilds an irradiance triple with nBad invalid
// components so that g == d + n*cos(zenith).
func repairIrradiance(g, n, d float64, gOK, nOK, dOK bool, nBad int, cz, etr float64) (float64, float64, float64) {
	if cz <= 0 {
		// Night.
		if gOK {
			return g, 0, g
		}
		if dOK {
			return d, 0, d
		}
		return 0, 0, 0
	}
	if nBad == 1 {
		switch {
		case !gOK:
			return d + n*cz, n, d
		case !dOK:
			if dd := g - n*cz; dd >= 0 {
				return g, n, dd
			}
		case !nOK:
			if cz < minDNICosZenith {
				return g, 0, g
			}
			if nn := (g - d) / cz; nn >= 0 && nn <= maxIrradiance {
				return g, nn, d
			}
		}
	}
	if !gOK {
		g = clearSkyGHI(cz)
	}
	n, d = splitGHI(g, cz, etr)
	return g, n, d
}
