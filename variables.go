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
	"strings"
)

// Technology is a SAM simulation module. It decides which variables are
// loaded and which valid ranges apply.
type Technology string

// Supported technologies.
const (
	Windpower          Technology = "windpower"
	PVWattsV5          Technology = "pvwattsv5"
	PVWattsV7          Technology = "pvwattsv7"
	PVWattsV8          Technology = "pvwattsv8"
	PVSamV1            Technology = "pvsamv1"
	TCSMoltenSalt      Technology = "tcsmoltensalt"
	SolarWaterHeat     Technology = "solarwaterheat"
	TroughPhysicalHeat Technology = "troughphysicalheat"
	LinearDirectSteam  Technology = "lineardirectsteam"
	Wave               Technology = "mhkwave"
)

var technologies = []Technology{Windpower, PVWattsV5, PVWattsV7, PVWattsV8, PVSamV1,
	TCSMoltenSalt, SolarWaterHeat, TroughPhysicalHeat, LinearDirectSteam, Wave}

// ParseTechnology returns the technology named s, ignoring case.
func ParseTechnology(s string) (Technology, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range technologies {
		if string(t) == s {
			return t, nil
		}
	}
	return "", &KeyError{Key: s, Msg: fmt.Sprintf("technology %q is not one of %v", s, technologies)}
}

type resourceClass int

const (
	windResource resourceClass = iota
	solarResource
	waveResource
)

func (t Technology) class() resourceClass {
	switch t {
	case Windpower:
		return windResource
	case Wave:
		return waveResource
	default:
		return solarResource
	}
}

// IsSolar returns whether t simulates solar resource.
func (t Technology) IsSolar() bool { return t.class() == solarResource }

// IsWind returns whether t simulates wind resource.
func (t Technology) IsWind() bool { return t.class() == windResource }

// variables returns the variables loaded for t by default.
func (t Technology) variables(o *PreloadOptions) []string {
	var v []string
	switch t {
	case Windpower:
		v = []string{"windspeed", "winddirection", "pressure", "temperature"}
		if o.Icing {
			v = append(v, "relativehumidity")
		}
		return v
	case Wave:
		return []string{"significant_wave_height", "energy_period"}
	case PVSamV1:
		v = []string{"dni", "dhi", "ghi", "wind_speed", "air_temperature", "dew_point", "surface_pressure"}
	case SolarWaterHeat:
		v = []string{"dni", "dhi", "ghi", "wind_speed", "air_temperature", "dew_point", "surface_pressure"}
	case TCSMoltenSalt, TroughPhysicalHeat, LinearDirectSteam:
		v = []string{"dni", "dhi", "ghi", "wind_speed", "air_temperature", "dew_point",
			"surface_pressure", "relative_humidity"}
	default:
		v = []string{"dni", "dhi", "ghi", "wind_speed", "air_temperature"}
	}
	if o.ClearSky {
		for i, n := range v {
			switch n {
			case "dni", "dhi", "ghi":
				v[i] = "clearsky_" + n
			}
		}
	}
	if o.Bifacial {
		v = append(v, "surface_albedo")
	}
	return v
}

// heightIndexed reports whether variable is stored at several heights
// for technology t.
func heightIndexed(t Technology, variable string) bool {
	if !t.IsWind() {
		return false
	}
	switch variable {
	case "windspeed", "winddirection", "pressure", "temperature", "relativehumidity":
		return true
	}
	return false
}

// alias is a dataset that can stand in for a variable that is missing
// from a solar archive.
type alias struct {
	variable string
	height   float64
}

var aliases = map[string]alias{
	"air_temperature": {variable: "temperature", height: 2},
	"wind_speed":      {variable: "windspeed", height: 10},
}

// irradiance components, in the order global, direct, diffuse.
func irradianceNames(clearSky bool) (ghi, dni, dhi string) {
	if clearSky {
		return "clearsky_ghi", "clearsky_dni", "clearsky_dhi"
	}
	return "ghi", "dni", "dhi"
}

var samNames = map[string]string{
	"windspeed":               "Speed",
	"winddirection":           "Direction",
	"pressure":                "Pressure",
	"temperature":             "Temperature",
	"relativehumidity":        "Relative Humidity",
	"dni":                     "DNI",
	"dhi":                     "DHI",
	"ghi":                     "GHI",
	"clearsky_dni":            "DNI",
	"clearsky_dhi":            "DHI",
	"clearsky_ghi":            "GHI",
	"wind_speed":              "Wind Speed",
	"air_temperature":         "Temperature",
	"dew_point":               "Dew Point",
	"surface_pressure":        "Pressure",
	"relative_humidity":       "Relative Humidity",
	"surface_albedo":          "Surface Albedo",
	"significant_wave_height": "Hs",
	"energy_period":           "Te",
}

// SAMName returns the column name SAM expects for variable.
func SAMName(variable string) string {
	if n, ok := samNames[variable]; ok {
		return n
	}
	return variable
}
