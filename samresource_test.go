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
	"io"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestPreloadDuplicates(t *testing.T) {
	const nt, ns = 24, 5
	a := writeTestArchive(t, windData(nt, ns, 100))
	res, err := PreloadSAM(a, SiteList(3, 1, 3), PreloadOptions{Tech: Windpower, HubHeight: 100})
	if err != nil {
		t.Fatal(err)
	}
	ws, err := res.Get("windspeed")
	if err != nil {
		t.Fatal(err)
	}
	if ws.Shape[0] != nt || ws.Shape[1] != 3 {
		t.Fatalf("shape: %v", ws.Shape)
	}
	meta := res.Meta()
	for i, gid := range []int{3, 1, 3} {
		if meta[i].GID != gid {
			t.Errorf("meta %d: have gid %d, want %d", i, meta[i].GID, gid)
		}
	}
	c0, c2 := column(ws, 0), column(ws, 2)
	for i := range c0 {
		if c0[i] != c2[i] {
			t.Fatalf("step %d: duplicate columns differ", i)
		}
		if different(c0[i], testWindSpeed(100, i, 3), 5e-3) {
			t.Errorf("step %d: have %g, want %g", i, c0[i], testWindSpeed(100, i, 3))
		}
	}
	if res.SitesSlice() != nil {
		t.Error("a list with duplicates has no compact range")
	}
}

func TestPreloadSelectionFirst(t *testing.T) {
	a := writeTestArchive(t, windData(24, 4, 100))
	_, err := PreloadSAM(a, SiteList(0, 4), PreloadOptions{Tech: Windpower, HubHeight: 100})
	var ie *IndexError
	if !errors.As(err, &ie) {
		t.Errorf("want IndexError, have %v", err)
	}
	_, err = PreloadSAM(a, SiteRange(0, 4, 1), PreloadOptions{Tech: Windpower})
	var ve *ResourceValueError
	if !errors.As(err, &ve) {
		t.Errorf("want ResourceValueError for missing hub height, have %v", err)
	}
}

func TestIterate(t *testing.T) {
	const nt, ns = 24, 4
	a := writeTestArchive(t, windData(nt, ns, 100))
	res, err := PreloadSAM(a, SiteList(2, 0, 2), PreloadOptions{Tech: Windpower, HubHeight: 100})
	if err != nil {
		t.Fatal(err)
	}
	next := res.Iterate()
	var gids []int
	for {
		tbl, site, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if tbl.Len() != nt {
			t.Errorf("site %d: %d rows", site.GID, tbl.Len())
		}
		cols := tbl.SAMColumns()
		want := []string{"Speed", "Direction", "Pressure", "Temperature"}
		if len(cols) != len(want) {
			t.Fatalf("columns: %v", cols)
		}
		for i := range want {
			if cols[i] != want[i] {
				t.Errorf("column %d: have %s, want %s", i, cols[i], want[i])
			}
		}
		gids = append(gids, site.GID)
	}
	if len(gids) != 3 || gids[0] != 2 || gids[1] != 0 || gids[2] != 2 {
		t.Errorf("iterated gids %v", gids)
	}
}

func TestSiteTableByGID(t *testing.T) {
	a := writeTestArchive(t, windData(24, 4, 100))
	res, err := PreloadSAM(a, SiteRange(1, 4, 1), PreloadOptions{Tech: Windpower, HubHeight: 100})
	if err != nil {
		t.Fatal(err)
	}
	tbl, err := res.SiteTableByGID(2)
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Site.GID != 2 {
		t.Errorf("gid %d", tbl.Site.GID)
	}
	if v, want := tbl.Data["windspeed"][5], testWindSpeed(100, 5, 2); different(v, want, 5e-3) {
		t.Errorf("have %g, want %g", v, want)
	}
	var ke *KeyError
	if _, err := res.SiteTableByGID(0); !errors.As(err, &ke) {
		t.Errorf("want KeyError, have %v", err)
	}
	var ie *IndexError
	if _, err := res.SiteTable(3); !errors.As(err, &ie) {
		t.Errorf("want IndexError, have %v", err)
	}
}

func TestMeans(t *testing.T) {
	const nt, ns = 24, 3
	a := writeTestArchive(t, windData(nt, ns, 100))
	res, err := PreloadSAM(a, SiteRange(0, ns, 1), PreloadOptions{Tech: Windpower, HubHeight: 100})
	if err != nil {
		t.Fatal(err)
	}
	var re *ResourceRuntimeError
	if _, err := res.Mean("windspeed"); !errors.As(err, &re) {
		t.Errorf("want ResourceRuntimeError, have %v", err)
	}

	res, err = PreloadSAM(a, SiteRange(0, ns, 1), PreloadOptions{Tech: Windpower, HubHeight: 100, Means: true})
	if err != nil {
		t.Fatal(err)
	}
	m, err := res.Mean("mean_windspeed")
	if err != nil {
		t.Fatal(err)
	}
	ws, _ := res.Get("windspeed")
	for s := 0; s < ns; s++ {
		sum := floats.Sum(column(ws, s))
		if different(m[s], sum/nt, 1e-12) {
			t.Errorf("site %d: have %g, want %g", s, m[s], sum/nt)
		}
	}
	var ke *KeyError
	if _, err := res.Get("mean_windspeed"); !errors.As(err, &ke) {
		t.Errorf("want KeyError, have %v", err)
	}
}

func TestTimeIndexStep(t *testing.T) {
	const nt, ns = 48, 2
	a := writeTestArchive(t, windData(nt, ns, 100))
	res, err := PreloadSAM(a, SiteRange(0, ns, 1), PreloadOptions{Tech: Windpower, HubHeight: 100,
		TimeIndexStep: 3})
	if err != nil {
		t.Fatal(err)
	}
	times := res.TimeIndex()
	if len(times) != nt/3 {
		t.Fatalf("%d time steps", len(times))
	}
	full := hourly(nt)
	ws, _ := res.Get("windspeed")
	if ws.Shape[0] != nt/3 {
		t.Fatalf("shape %v", ws.Shape)
	}
	for i, tt := range times {
		if !tt.Equal(full[3*i]) {
			t.Errorf("time %d: have %v, want %v", i, tt, full[3*i])
		}
		if v, want := ws.Get(i, 1), testWindSpeed(100, 3*i, 1); different(v, want, 5e-3) {
			t.Errorf("step %d: have %g, want %g", i, v, want)
		}
	}
}

func TestLazyGet(t *testing.T) {
	a := writeTestArchive(t, windData(24, 2, 100))
	res, err := PreloadSAM(a, SiteRange(0, 2, 1), PreloadOptions{Tech: Windpower, HubHeight: 100,
		Variables: []string{"windspeed"}})
	if err != nil {
		t.Fatal(err)
	}
	if v := res.Variables(); len(v) != 1 {
		t.Fatalf("variables: %v", v)
	}
	p, err := res.Get("pressure")
	if err != nil {
		t.Fatal(err)
	}
	if res.Units("pressure") != "atm" {
		t.Errorf("pressure units %q", res.Units("pressure"))
	}
	if v := p.Get(0, 0); v < 0.9 || v > 1.1 {
		t.Errorf("pressure %g atm", v)
	}
	if v := res.Variables(); len(v) != 2 || v[1] != "pressure" {
		t.Errorf("variables: %v", v)
	}
	var ioErr *ResourceIOError
	if _, err := res.Get("relativehumidity"); !errors.As(err, &ioErr) {
		t.Errorf("want ResourceIOError, have %v", err)
	}
}

func TestPreloadSolar(t *testing.T) {
	const nt, ns = 48, 3
	a := writeTestArchive(t, solarData(nt, ns))
	res, err := PreloadSAM(a, SiteRange(0, ns, 1), PreloadOptions{Tech: PVWattsV8, Bifacial: true})
	if err != nil {
		t.Fatal(err)
	}
	if total := res.Repaired().Total(); total != 0 {
		t.Errorf("consistent data had %d repairs", total)
	}
	tbl, err := res.SiteTable(0)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"DNI": true, "DHI": true, "GHI": true, "Wind Speed": true,
		"Temperature": true, "Surface Albedo": true}
	for _, c := range tbl.SAMColumns() {
		if !want[c] {
			t.Errorf("unexpected column %s", c)
		}
		delete(want, c)
	}
	if len(want) != 0 {
		t.Errorf("missing columns %v", want)
	}
	ws := tbl.Data["wind_speed"]
	if different(ws[0], 3+1, 1e-3) {
		t.Errorf("wind speed %g", ws[0])
	}
}
