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
	"math"
	"testing"
)

func TestMultiArchiveAliases(t *testing.T) {
	const nt, ns = 48, 3
	solar := solarData(nt, ns)
	delete(solar.Data, "air_temperature")
	delete(solar.Data, "wind_speed")
	wind := windData(nt, ns, 2, 10, 100)

	m, err := MultiArchive(writeTestArchive(t, solar), writeTestArchive(t, wind))
	if err != nil {
		t.Fatal(err)
	}
	res, err := PreloadSAM(m, SiteRange(0, ns, 1), PreloadOptions{Tech: PVWattsV7})
	if err != nil {
		t.Fatal(err)
	}
	temp, err := res.Get("air_temperature")
	if err != nil {
		t.Fatal(err)
	}
	if res.Units("air_temperature") != "C" {
		t.Errorf("units %q", res.Units("air_temperature"))
	}
	ws, err := res.Get("wind_speed")
	if err != nil {
		t.Fatal(err)
	}
	for tt := 0; tt < nt; tt++ {
		for s := 0; s < ns; s++ {
			want := 288.15 - 0.0065*2 + float64(s) + math.Sin(float64(tt)/4) - 273.15
			if v := temp.Get(tt, s); different(v, want, 1e-5) {
				t.Errorf("temperature (%d, %d): have %g, want %g", tt, s, v, want)
			}
			if v, want := ws.Get(tt, s), testWindSpeed(10, tt, s); different(v, want, 5e-3) {
				t.Errorf("wind speed (%d, %d): have %g, want %g", tt, s, v, want)
			}
		}
	}
}

func TestMultiArchiveMismatch(t *testing.T) {
	var re *ResourceRuntimeError
	_, err := MultiArchive(writeTestArchive(t, solarData(48, 3)), writeTestArchive(t, windData(24, 3, 100)))
	if !errors.As(err, &re) {
		t.Errorf("time index: want ResourceRuntimeError, have %v", err)
	}
	_, err = MultiArchive(writeTestArchive(t, solarData(24, 3)), writeTestArchive(t, windData(24, 4, 100)))
	if !errors.As(err, &re) {
		t.Errorf("sites: want ResourceRuntimeError, have %v", err)
	}
}
