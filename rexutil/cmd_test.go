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

package rexutil

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ctessum/sparse"
	"github.com/spatialmodel/rex"
	"github.com/tealeg/xlsx"
)

// writeTestResource writes a small wind archive with ns sites and two
// days of hourly data at 80 m and 120 m to dir.
func writeTestResource(t *testing.T, dir string, ns int) string {
	t.Helper()
	const nt = 48
	d := &rex.ResourceData{}
	t0 := time.Date(2013, time.June, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < nt; i++ {
		d.TimeIndex = append(d.TimeIndex, t0.Add(time.Duration(i)*time.Hour))
	}
	for i := 0; i < ns; i++ {
		d.Sites = append(d.Sites, rex.Site{GID: i, Latitude: 40 + 0.25*float64(i), Longitude: -100 + 0.25*float64(i),
			Timezone: -6, Elevation: 300 + 100*float64(i)})
	}
	fill := func(f func(t, s int) float64) *sparse.DenseArray {
		a := sparse.ZerosDense(nt, ns)
		for tt := 0; tt < nt; tt++ {
			for s := 0; s < ns; s++ {
				a.Elements[tt*ns+s] = f(tt, s)
			}
		}
		return a
	}
	for _, h := range []float64{80, 120} {
		h := h
		d.AddVariable("windspeed", h, "m s-1", 100, fill(func(tt, s int) float64 {
			return (6 + float64(s) + math.Sin(float64(tt)/4)) * math.Pow(h/100, 0.14)
		}))
		d.AddVariable("winddirection", h, "degree", 1, fill(func(tt, s int) float64 { return 200 }))
		d.AddVariable("pressure", h, "Pa", 1, fill(func(tt, s int) float64 { return 98000 - 10*h }))
		d.AddVariable("temperature", h, "C", 1, fill(func(tt, s int) float64 { return 20 - 0.0065*h }))
	}
	path := filepath.Join(dir, "wind.nc")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Write(f); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

// setOptions sets configuration values for one test and restores the
// defaults afterwards.
func setOptions(t *testing.T, vals map[string]interface{}) {
	t.Helper()
	for k, v := range vals {
		Cfg.Set(k, v)
	}
	t.Cleanup(func() {
		for _, o := range options {
			Cfg.Set(o.name, o.defaultVal)
		}
	})
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return recs
}

func TestVersion(t *testing.T) {
	buf := new(bytes.Buffer)
	Root.SetOutput(buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := fmt.Sprintf("rex v%s\n", rex.Version); buf.String() != want {
		t.Errorf("have %q, want %q", buf.String(), want)
	}
}

func TestSAMDatasets(t *testing.T) {
	dir := t.TempDir()
	setOptions(t, map[string]interface{}{
		"resource":   []string{writeTestResource(t, dir, 4)},
		"out_dir":    filepath.Join(dir, "out"),
		"gid":        []string{"2", "0", "2"},
		"hub_height": 100.0,
		"means":      true,
	})
	Root.SetArgs([]string{"sam-datasets"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	recs := readCSV(t, filepath.Join(dir, "out", "SAM_2.csv"))
	if h := strings.Join(recs[0], ","); h != "time_index,Speed,Direction,Pressure,Temperature" {
		t.Errorf("header %s", h)
	}
	if len(recs) != 49 {
		t.Errorf("%d rows", len(recs))
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "SAM_0.csv")); err != nil {
		t.Error(err)
	}
	meta := readCSV(t, filepath.Join(dir, "out", "SAM-meta.csv"))
	if len(meta) != 3 || meta[1][0] != "2" || meta[2][0] != "0" {
		t.Errorf("meta %v", meta)
	}
	means := readCSV(t, filepath.Join(dir, "out", "SAM-means.csv"))
	if len(means) != 3 || means[0][1] != "mean_windspeed" {
		t.Errorf("means %v", means)
	}
}

func TestSAMDatasetsLatLon(t *testing.T) {
	dir := t.TempDir()
	setOptions(t, map[string]interface{}{
		"resource":   []string{writeTestResource(t, dir, 4)},
		"out_dir":    dir,
		"lat_lon":    []string{"40.49", "-99.51"},
		"roll":       true,
		"format":     "xlsx",
		"log_file":   filepath.Join(dir, "rex.log"),
		"verbose":    true,
		"tech":       "windpower",
		"hub_height": 80.0,
	})
	if err := Root.PersistentPreRunE(nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := samDatasetsCmd.RunE(nil, nil); err != nil {
		t.Fatal(err)
	}
	f, err := xlsx.OpenFile(filepath.Join(dir, "SAM_2.xlsx"))
	if err != nil {
		t.Fatal(err)
	}
	rows := f.Sheets[0].Rows
	if len(rows) != 49 {
		t.Fatalf("%d rows", len(rows))
	}
	// Rolled to UTC-6.
	if v := rows[1].Cells[0].Value; !strings.HasSuffix(v, "-06:00") {
		t.Errorf("time %s", v)
	}
	log, err := os.ReadFile(filepath.Join(dir, "rex.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(log), "saved data") {
		t.Errorf("log file: %s", log)
	}
}

func TestDatasetRegion(t *testing.T) {
	dir := t.TempDir()
	setOptions(t, map[string]interface{}{
		"resource":    []string{writeTestResource(t, dir, 5)},
		"out_dir":     dir,
		"dataset":     []string{"windspeed_80m", "pressure_120m"},
		"region":      "elevation >= 500",
		"region_name": "high",
	})
	Root.SetArgs([]string{"dataset", "region"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	recs := readCSV(t, filepath.Join(dir, "windspeed_80m-high.csv"))
	if h := strings.Join(recs[0], ","); h != "time_index,2,3,4" {
		t.Errorf("header %s", h)
	}
	if _, err := os.Stat(filepath.Join(dir, "pressure_120m-high.csv")); err != nil {
		t.Error(err)
	}
	if meta := readCSV(t, filepath.Join(dir, "high-meta.csv")); len(meta) != 4 {
		t.Errorf("meta %v", meta)
	}
}

func TestDatasetBox(t *testing.T) {
	dir := t.TempDir()
	setOptions(t, map[string]interface{}{
		"resource":  []string{writeTestResource(t, dir, 5)},
		"out_dir":   dir,
		"dataset":   []string{"temperature_80m"},
		"lat_lon_1": []string{"40.1", "-99.9"},
		"lat_lon_2": []string{"40.6", "-99.4"},
	})
	Root.SetArgs([]string{"dataset", "box"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	recs := readCSV(t, filepath.Join(dir, "temperature_80m-box.csv"))
	if h := strings.Join(recs[0], ","); h != "time_index,1,2" {
		t.Errorf("header %s", h)
	}
}

func TestDatasetSite(t *testing.T) {
	dir := t.TempDir()
	setOptions(t, map[string]interface{}{
		"resource": []string{writeTestResource(t, dir, 3)},
		"out_dir":  dir,
		"dataset":  []string{"windspeed_120m"},
		"gid":      []string{"1"},
	})
	Root.SetArgs([]string{"dataset", "site"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	recs := readCSV(t, filepath.Join(dir, "windspeed_120m-1.csv"))
	if len(recs) != 49 || recs[0][1] != "1" {
		t.Errorf("table %v", recs[:2])
	}
}

func TestMultiSite(t *testing.T) {
	dir := t.TempDir()
	sites := filepath.Join(dir, "my_sites.csv")
	if err := os.WriteFile(sites, []byte("lat,lon\n40.0,-100.0\n40.74,-99.24\n"), 0644); err != nil {
		t.Fatal(err)
	}
	setOptions(t, map[string]interface{}{
		"resource": []string{writeTestResource(t, dir, 4)},
		"out_dir":  dir,
		"dataset":  []string{"windspeed_80m"},
		"sites":    sites,
	})
	Root.SetArgs([]string{"multi-site"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	recs := readCSV(t, filepath.Join(dir, "windspeed_80m-my_sites.csv"))
	if h := strings.Join(recs[0], ","); h != "time_index,0,3" {
		t.Errorf("header %s", h)
	}
}

func TestSAMDatasetsSelectionConflict(t *testing.T) {
	dir := t.TempDir()
	setOptions(t, map[string]interface{}{
		"resource": []string{writeTestResource(t, dir, 2)},
		"out_dir":  dir,
		"gid":      []string{"0"},
		"lat_lon":  []string{"40", "-100"},
	})
	err := samDatasetsCmd.RunE(nil, nil)
	if err == nil || !strings.Contains(err.Error(), "exactly one of") {
		t.Errorf("have %v", err)
	}
}
