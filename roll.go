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
	"time"

	"github.com/ctessum/sparse"
)

// timeStep returns the spacing of times. It fails unless times is evenly
// spaced and spans a whole number of days, so that a circular shift of
// the series is meaningful.
func timeStep(times []time.Time) (time.Duration, error) {
	if len(times) < 2 {
		return 0, runtimeErrorf("cannot roll a time series with %d time steps", len(times))
	}
	dt := times[1].Sub(times[0])
	if dt <= 0 {
		return 0, runtimeErrorf("time index is not increasing")
	}
	for i := 2; i < len(times); i++ {
		if times[i].Sub(times[i-1]) != dt {
			return 0, runtimeErrorf("time index is not evenly spaced at step %d (%v vs %v)",
				i, times[i].Sub(times[i-1]), dt)
		}
	}
	span := dt * time.Duration(len(times))
	if span%(24*time.Hour) != 0 {
		return 0, runtimeErrorf("time index spans %v, which is not a whole number of days; "+
			"it cannot be rolled to local time", span)
	}
	return dt, nil
}

// RollTimeseries circularly shifts each column of data [time × site] by
// shifts[column] rows; element t moves to row t+shift, wrapping around.
func RollTimeseries(data *sparse.DenseArray, shifts []int) error {
	if len(data.Shape) != 2 {
		return valueErrorf("cannot roll array with shape %v", data.Shape)
	}
	nt, ns := data.Shape[0], data.Shape[1]
	if len(shifts) != ns {
		return valueErrorf("got %d shifts for %d columns", len(shifts), ns)
	}
	col := make([]float64, nt)
	for s, k := range shifts {
		k %= nt
		if k < 0 {
			k += nt
		}
		if k == 0 {
			continue
		}
		for t := 0; t < nt; t++ {
			col[(t+k)%nt] = data.Elements[t*ns+s]
		}
		for t := 0; t < nt; t++ {
			data.Elements[t*ns+s] = col[t]
		}
	}
	return nil
}

// timezoneShifts returns the roll of each site, in time steps of dt.
func timezoneShifts(sites []Site, dt time.Duration) ([]int, error) {
	o := make([]int, len(sites))
	for i, s := range sites {
		offset := time.Duration(s.Timezone) * time.Hour
		if offset%dt != 0 {
			return nil, runtimeErrorf("time zone offset %dh of site %d is not a whole number of %v time steps",
				s.Timezone, s.GID, dt)
		}
		o[i] = int(offset / dt)
	}
	return o, nil
}
