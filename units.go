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

	"github.com/BurntSushi/toml"
	"github.com/ctessum/sparse"
)

// atmPerPa is the number of atmospheres in one pascal.
const atmPerPa = 9.86923e-6

// Range is a closed interval of physically valid values.
type Range struct {
	Min, Max float64
}

// ValidRanges holds the valid range of each variable for each resource
// type ("wind", "solar", "wave").
type ValidRanges map[string]map[string]Range

var defaultRanges = ValidRanges{
	"wind": {
		"windspeed":        {0, 120},
		"pressure":         {0.5, 1.099},
		"temperature":      {-200, 100},
		"relativehumidity": {0.1, 100},
		"winddirection":    {0, 360},
	},
	"solar": {
		"dni":               {0, 1360},
		"dhi":               {0, 1360},
		"ghi":               {0, 1360},
		"clearsky_dni":      {0, 1360},
		"clearsky_dhi":      {0, 1360},
		"clearsky_ghi":      {0, 1360},
		"wind_speed":        {0, 120},
		"air_temperature":   {-200, 100},
		"dew_point":         {-200, 100},
		"surface_pressure":  {300, 1100},
		"relative_humidity": {0.1, 100},
		"surface_albedo":    {0, 1},
	},
	"wave": {
		"significant_wave_height": {0, 20},
		"energy_period":           {0, 30},
	},
}

// DefaultRanges returns a copy of the built-in valid range table.
func DefaultRanges() ValidRanges {
	o := make(ValidRanges, len(defaultRanges))
	for k, m := range defaultRanges {
		o[k] = make(map[string]Range, len(m))
		for v, r := range m {
			o[k][v] = r
		}
	}
	return o
}

// LoadRanges reads valid range overrides from the TOML file at path and
// returns the default table with the overrides applied. The file holds
// one table per resource type, for example:
//
//	[wind]
//	windspeed = [0.0, 80.0]
func LoadRanges(path string) (ValidRanges, error) {
	var raw map[string]map[string][]float64
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("rex: reading valid ranges from %s: %v", path, err)
	}
	o := DefaultRanges()
	for class, m := range raw {
		if _, ok := o[class]; !ok {
			return nil, &KeyError{Key: class, Msg: fmt.Sprintf("unknown resource type %q in %s", class, path)}
		}
		for v, r := range m {
			if len(r) != 2 || r[0] > r[1] {
				return nil, valueErrorf("invalid range %v for %s.%s in %s", r, class, v, path)
			}
			o[class][v] = Range{Min: r[0], Max: r[1]}
		}
	}
	return o, nil
}

func (t Technology) rangeKey() string {
	switch t.class() {
	case windResource:
		return "wind"
	case waveResource:
		return "wave"
	default:
		return "solar"
	}
}

// For returns the valid range of variable for technology t.
func (r ValidRanges) For(t Technology, variable string) (Range, bool) {
	rng, ok := r[t.rangeKey()][variable]
	return rng, ok
}

// conversion converts values as value*factor + offset.
type conversion struct {
	factor, offset float64
}

// conversions holds, for each unit family, the target unit and the
// conversion from each known source unit.
var conversions = map[string]struct {
	target string
	from   map[string]conversion
}{
	"pressure_atm": {target: "atm", from: map[string]conversion{
		"Pa":   {atmPerPa, 0},
		"kPa":  {atmPerPa * 1e3, 0},
		"hPa":  {atmPerPa * 1e2, 0},
		"mbar": {atmPerPa * 1e2, 0},
		"atm":  {1, 0},
	}},
	"pressure_mbar": {target: "mbar", from: map[string]conversion{
		"Pa":   {0.01, 0},
		"kPa":  {10, 0},
		"hPa":  {1, 0},
		"mbar": {1, 0},
		"atm":  {1 / (atmPerPa * 1e2), 0},
	}},
	"temperature": {target: "C", from: map[string]conversion{
		"K":    {1, -273.15},
		"C":    {1, 0},
		"degC": {1, 0},
	}},
}

// unitFamily returns the unit family of variable, or "" if the variable
// is used as stored.
func unitFamily(variable string) string {
	switch variable {
	case "pressure":
		return "pressure_atm"
	case "surface_pressure":
		return "pressure_mbar"
	case "temperature", "air_temperature", "dew_point":
		return "temperature"
	}
	return ""
}

// inferPressureUnits guesses the units of a pressure series from its
// magnitude. Surface pressure stays below about 1100 mbar and 110 kPa.
func inferPressureUnits(data []float64) string {
	max := math.Inf(-1)
	for _, v := range data {
		if !math.IsNaN(v) && v > max {
			max = v
		}
	}
	switch {
	case max > 2e3:
		return "Pa"
	case max > 200:
		return "mbar"
	case max > 10:
		return "kPa"
	default:
		return "atm"
	}
}

// ConvertUnits converts the values of variable, stored in the given
// units, in place to the units SAM expects and returns
// the resulting units. An empty units string means the units are
// unknown; pressure units are then inferred from magnitude and other
// variables are assumed to be in the target units already.
func ConvertUnits(variable, units string, data *sparse.DenseArray) (string, error) {
	fam := unitFamily(variable)
	if fam == "" {
		return units, nil
	}
	c := conversions[fam]
	if units == "" {
		if fam == "temperature" {
			return c.target, nil
		}
		units = inferPressureUnits(data.Elements)
	}
	conv, ok := c.from[units]
	if !ok {
		return "", valueErrorf("%s has units %q, which cannot be converted to %s", variable, units, c.target)
	}
	if conv.factor == 1 && conv.offset == 0 {
		return c.target, nil
	}
	for i, v := range data.Elements {
		data.Elements[i] = v*conv.factor + conv.offset
	}
	return c.target, nil
}

// EnforceRange clips every value of data into rng. NaN values are left
// for the irradiance imputation to find.
func EnforceRange(data *sparse.DenseArray, rng Range) {
	for i, v := range data.Elements {
		if v < rng.Min {
			data.Elements[i] = rng.Min
		} else if v > rng.Max {
			data.Elements[i] = rng.Max
		}
	}
}
