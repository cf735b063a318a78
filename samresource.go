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
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// PreloadOptions specify how resource data is loaded by PreloadSAM.
type PreloadOptions struct {
	// Tech is the SAM technology the data is for.
	Tech Technology

	// HubHeight is the height [m] wind variables are loaded at.
	HubHeight float64

	// Variables overrides the technology's default variable list.
	Variables []string

	// Means specifies whether the mean of each variable at each site
	// will be available.
	Means bool

	// TimeIndexStep, if greater than 1, keeps only every n-th time step.
	TimeIndexStep int

	// Icing adds relative humidity to wind data.
	Icing bool

	// Bifacial adds surface albedo to solar data.
	Bifacial bool

	// ClearSky loads clear-sky instead of measured irradiance.
	ClearSky bool

	// RollToLocal shifts every series from UTC to local standard time.
	RollToLocal bool

	// BiasCorrection, if not nil, is applied after loading.
	BiasCorrection *Table

	// Impute configures the irradiance check. The defaults are used if
	// it is nil.
	Impute *ImputeConfig

	// Ranges overrides the default valid ranges.
	Ranges ValidRanges

	// Log receives progress messages. The logrus standard logger is
	// used if it is nil.
	Log logrus.FieldLogger
}

// SAMResource holds the resource data for a selection of sites, one
// [time × site] array per variable with one column per selected site.
type SAMResource struct {
	Tech      Technology
	HubHeight float64

	// Warnings holds non-fatal problems found while loading.
	Warnings []error

	Log logrus.FieldLogger

	ld        *loader
	sel       *Selection
	meta      []Site
	timeIndex []time.Time
	varList   []string

	arrays  map[string]*sparse.DenseArray
	units   map[string]string
	heights map[string]float64

	meansEnabled bool
	means        map[string][]float64

	ranges    ValidRanges
	clearSky  bool
	shifts    []int
	rolled    bool
	corrected bool
	repaired  ImputeStats
}

// PreloadSAM loads the data SAM needs for technology o.Tech at the sites
// in spec. It resolves the selection before reading any data, then
// reads, converts, range-checks, and, for solar technologies, repairs
// each variable, and finally applies the optional time zone roll and
// bias correction.
func PreloadSAM(r ArchiveReader, spec SiteSpec, o PreloadOptions) (*SAMResource, error) {
	sel, err := Select(spec, r.NumSites())
	if err != nil {
		return nil, err
	}
	if o.Tech == "" {
		o.Tech = Windpower
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
	if o.Ranges == nil {
		o.Ranges = DefaultRanges()
	}
	if o.Tech.IsWind() && o.HubHeight <= 0 {
		return nil, valueErrorf("wind data needs a positive hub height, got %g", o.HubHeight)
	}

	times, err := r.TimeIndex()
	if err != nil {
		return nil, err
	}
	rows := Slice{Start: 0, Stop: len(times), Step: 1}
	if o.TimeIndexStep > 1 {
		rows.Step = o.TimeIndexStep
		dec := make([]time.Time, 0, rows.Len())
		for i := 0; i < rows.Len(); i++ {
			dec = append(dec, times[rows.Index(i)])
		}
		times = dec
	}
	meta, err := r.Meta(sel.Columns())
	if err != nil {
		return nil, err
	}

	log := o.Log.WithFields(logrus.Fields{"tech": o.Tech, "sites": sel.Len()})
	s := &SAMResource{
		Tech:         o.Tech,
		HubHeight:    o.HubHeight,
		Log:          log,
		ld:           newLoader(r, o.Tech, o.HubHeight, rows, sel.Columns(), log),
		sel:          sel,
		meta:         meta,
		timeIndex:    times,
		arrays:       make(map[string]*sparse.DenseArray),
		units:        make(map[string]string),
		heights:      make(map[string]float64),
		meansEnabled: o.Means,
		means:        make(map[string][]float64),
		ranges:       o.Ranges,
		clearSky:     o.ClearSky,
	}
	s.varList = append([]string(nil), o.Variables...)
	if len(s.varList) == 0 {
		s.varList = o.Tech.variables(&o)
	}

	ghiName, dniName, dhiName := irradianceNames(o.ClearSky)
	var needsIrradiance bool
	for _, v := range s.varList {
		if o.Tech.IsSolar() && (v == ghiName || v == dniName || v == dhiName) {
			needsIrradiance = true
			continue
		}
		if _, err := s.Get(v); err != nil {
			return nil, err
		}
	}
	if needsIrradiance {
		impute := DefaultImputeConfig()
		if o.Impute != nil {
			impute = *o.Impute
		}
		if err := s.loadIrradiance(impute); err != nil {
			return nil, err
		}
	}
	log.Debugf("rex: loaded %d variables for %d time steps", len(s.arrays), len(times))

	if o.RollToLocal {
		if err := s.RollToLocal(); err != nil {
			return nil, err
		}
	}
	if o.BiasCorrection != nil {
		if err := s.BiasCorrect(o.BiasCorrection); err != nil {
			var w *CoverageGapWarning
			if !errors.As(err, &w) {
				return nil, err
			}
			s.Warnings = append(s.Warnings, w)
		}
	}
	if o.Means {
		for _, v := range s.varList {
			if _, err := s.Mean(v); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// load reads variable, converts it to SAM units, and clips it to its
// valid range.
func (s *SAMResource) load(variable string) (*sparse.DenseArray, error) {
	data, err := s.loadUnclipped(variable)
	if err != nil {
		return nil, err
	}
	if rng, ok := s.ranges.For(s.Tech, variable); ok {
		EnforceRange(data, rng)
	}
	return data, nil
}

// loadUnclipped reads variable and converts it to SAM units.
func (s *SAMResource) loadUnclipped(variable string) (*sparse.DenseArray, error) {
	data, attrs, height, err := s.ld.load(variable)
	if err != nil {
		return nil, err
	}
	units, err := ConvertUnits(variable, attrs.Units, data)
	if err != nil {
		return nil, err
	}
	s.units[variable] = units
	if height != NoHeight {
		s.heights[variable] = height
	}
	return data, nil
}

// store adds a loaded array, rolling it if the rest of the data has
// already been rolled.
func (s *SAMResource) store(variable string, data *sparse.DenseArray) error {
	if s.rolled {
		if err := RollTimeseries(data, s.shifts); err != nil {
			return err
		}
	}
	s.arrays[variable] = data
	return nil
}

// loadIrradiance loads and repairs the irradiance components.
func (s *SAMResource) loadIrradiance(cfg ImputeConfig) error {
	names := [3]string{}
	names[0], names[1], names[2] = irradianceNames(s.clearSky)
	var arrays [3]*sparse.DenseArray
	for i, n := range names {
		// Negative values are repaired rather than clipped.
		a, err := s.loadUnclipped(n)
		if err != nil {
			var ioErr *ResourceIOError
			if errors.As(err, &ioErr) && ioErr.Err == nil {
				s.Log.WithField("variable", n).Info("rex: irradiance component not in archive; computing it from the others")
				continue
			}
			return err
		}
		arrays[i] = a
	}
	// Repair works within the tightest upper bound so the clipping below
	// cannot break the decomposition.
	for _, n := range names {
		if rng, ok := s.ranges.For(s.Tech, n); ok && (cfg.Max == 0 || rng.Max < cfg.Max) {
			cfg.Max = rng.Max
		}
	}
	ghi, dni, dhi, stats, err := ImputeIrradiance(arrays[0], arrays[1], arrays[2], s.timeIndex, s.meta, cfg)
	if err != nil {
		return err
	}
	s.repaired = stats
	if n := stats.Total(); n > 0 {
		s.Log.WithField("steps", n).Info("rex: repaired missing or invalid irradiance")
	}
	for i, a := range []*sparse.DenseArray{ghi, dni, dhi} {
		if rng, ok := s.ranges.For(s.Tech, names[i]); ok {
			EnforceRange(a, rng)
		}
		s.units[names[i]] = "W/m2"
		if err := s.store(names[i], a); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the [time × site] array of variable, loading it from the
// archive if it has not been loaded yet. The returned array is owned by
// s and must not be modified.
func (s *SAMResource) Get(variable string) (*sparse.DenseArray, error) {
	if a, ok := s.arrays[variable]; ok {
		return a, nil
	}
	if strings.HasPrefix(variable, "mean_") {
		return nil, &KeyError{Key: variable, Msg: fmt.Sprintf("%s is a mean; use Mean to retrieve it", variable)}
	}
	a, err := s.load(variable)
	if err != nil {
		return nil, err
	}
	if err := s.store(variable, a); err != nil {
		return nil, err
	}
	if !contains(s.varList, variable) {
		s.varList = append(s.varList, variable)
	}
	return a, nil
}

func contains(s []string, v string) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}

// Mean returns the mean of variable at each selected site. variable may
// carry a "mean_" prefix. It fails unless means were requested when the
// data was loaded.
func (s *SAMResource) Mean(variable string) ([]float64, error) {
	variable = strings.TrimPrefix(variable, "mean_")
	if !s.meansEnabled {
		return nil, runtimeErrorf("mean_%s was not computed; load the data with means enabled", variable)
	}
	if m, ok := s.means[variable]; ok {
		return m, nil
	}
	a, err := s.Get(variable)
	if err != nil {
		return nil, err
	}
	nt, ns := a.Shape[0], a.Shape[1]
	m := make([]float64, ns)
	col := make([]float64, nt)
	for c := 0; c < ns; c++ {
		for t := 0; t < nt; t++ {
			col[t] = a.Elements[t*ns+c]
		}
		m[c] = stat.Mean(col, nil)
	}
	s.means[variable] = m
	return m, nil
}

// Sites returns the selected gids in selection order.
func (s *SAMResource) Sites() []int { return s.sel.GIDs }

// SitesSlice returns the compact range of the selection, or nil.
func (s *SAMResource) SitesSlice() *Slice { return s.sel.Slice }

// Meta returns the meta table in selection order, with duplicates.
func (s *SAMResource) Meta() []Site { return s.meta }

// TimeIndex returns the shared time axis in UTC.
func (s *SAMResource) TimeIndex() []time.Time { return s.timeIndex }

// Variables returns the names of the loaded variables.
func (s *SAMResource) Variables() []string { return s.varList }

// Units returns the units of a loaded variable.
func (s *SAMResource) Units(variable string) string { return s.units[variable] }

// Heights returns the height each height-indexed variable represents.
func (s *SAMResource) Heights() map[string]float64 { return s.heights }

// Rolled reports whether the data has been shifted to local time.
func (s *SAMResource) Rolled() bool { return s.rolled }

// Repaired returns the irradiance repair counts per selected site.
func (s *SAMResource) Repaired() ImputeStats { return s.repaired }

// RollToLocal shifts every site's series from UTC to local standard
// time. It can only be done once.
func (s *SAMResource) RollToLocal() error {
	if s.rolled {
		return runtimeErrorf("resource data has already been rolled to local time")
	}
	dt, err := timeStep(s.timeIndex)
	if err != nil {
		return err
	}
	if s.shifts, err = timezoneShifts(s.meta, dt); err != nil {
		return err
	}
	for _, v := range s.varList {
		a, ok := s.arrays[v]
		if !ok {
			continue
		}
		if err := RollTimeseries(a, s.shifts); err != nil {
			return err
		}
	}
	s.rolled = true
	s.Log.Debug("rex: rolled time series to local time")
	return nil
}

// BiasCorrect applies the bias correction table t to the loaded data.
// The table must have "gid" and "method" columns plus the parameter
// columns of the methods it uses. Selected sites that are not in the
// table are left unchanged; if some but not all sites are missing, the
// correction is still applied and a *CoverageGapWarning is returned.
// Nothing is modified if any other error is returned.
func (s *SAMResource) BiasCorrect(t *Table) error {
	if s.corrected {
		return runtimeErrorf("bias correction has already been applied")
	}
	methods, err := ParseBiasCorrection(t)
	if err != nil {
		return err
	}

	cols := make(map[int][]int) // gid to positions
	var missing []int
	seen := make(map[int]bool)
	for pos, gid := range s.sel.GIDs {
		if _, ok := methods[gid]; !ok {
			if !seen[gid] {
				missing = append(missing, gid)
			}
		} else {
			cols[gid] = append(cols[gid], pos)
		}
		seen[gid] = true
	}

	target := &correctionTarget{tech: s.Tech, clearSky: s.clearSky,
		arrays: make(map[string]*sparse.DenseArray), ranges: s.ranges}
	modified := make(map[string]bool)
	for gid := range cols {
		for _, v := range methods[gid].variables(s.Tech, s.clearSky) {
			if _, ok := target.arrays[v]; ok {
				continue
			}
			a, err := s.Get(v)
			if err != nil {
				return fmt.Errorf("rex: bias correction method %s: %w", methods[gid].Name(), err)
			}
			target.arrays[v] = a
			modified[v] = true
		}
	}
	for gid, pos := range cols {
		methods[gid].apply(target, pos)
	}
	for v := range modified {
		delete(s.means, v)
	}
	s.corrected = true

	if len(missing) > 0 && len(missing) < len(seen) {
		w := &CoverageGapWarning{Missing: missing, NumSites: len(seen)}
		s.Log.Warn(w.Error())
		return w
	}
	if len(missing) > 0 {
		s.Log.Warn("rex: none of the selected sites are in the bias correction table")
	}
	return nil
}

// SiteTable is the data for one selected site.
type SiteTable struct {
	Site Site

	// Time holds the time of each row: UTC, or the site's local
	// standard time if the data has been rolled.
	Time []time.Time

	// Columns holds the variable names in load order.
	Columns []string
	Data    map[string][]float64
}

// SAMColumns returns the column names SAM expects, in Columns order.
func (t *SiteTable) SAMColumns() []string {
	o := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		o[i] = SAMName(c)
	}
	return o
}

// Len returns the number of rows.
func (t *SiteTable) Len() int { return len(t.Time) }

// SiteTable assembles the table for the site at position pos of the
// selection.
func (s *SAMResource) SiteTable(pos int) (*SiteTable, error) {
	if pos < 0 || pos >= s.sel.Len() {
		return nil, &IndexError{Index: pos, NumSites: s.sel.Len(),
			msg: fmt.Sprintf("position %d is out of range for a selection of %d sites", pos, s.sel.Len())}
	}
	site := s.meta[pos]
	t := &SiteTable{Site: site, Time: make([]time.Time, len(s.timeIndex)),
		Data: make(map[string][]float64)}
	if s.rolled {
		zone := time.FixedZone(fmt.Sprintf("UTC%+d", site.Timezone), site.Timezone*3600)
		for i, tt := range s.timeIndex {
			t.Time[i] = time.Date(tt.Year(), tt.Month(), tt.Day(), tt.Hour(), tt.Minute(),
				tt.Second(), tt.Nanosecond(), zone)
		}
	} else {
		copy(t.Time, s.timeIndex)
	}
	for _, v := range s.varList {
		a, ok := s.arrays[v]
		if !ok {
			continue
		}
		nt, ns := a.Shape[0], a.Shape[1]
		col := make([]float64, nt)
		for i := range col {
			col[i] = a.Elements[i*ns+pos]
		}
		t.Columns = append(t.Columns, v)
		t.Data[v] = col
	}
	return t, nil
}

// SiteTableByGID assembles the table for the first selected site with
// the given gid.
func (s *SAMResource) SiteTableByGID(gid int) (*SiteTable, error) {
	pos := s.sel.Positions(gid)
	if len(pos) == 0 {
		return nil, &KeyError{Key: fmt.Sprint(gid), Msg: fmt.Sprintf("site %d is not in the selection", gid)}
	}
	return s.SiteTable(pos[0])
}

// NextSite returns the next site table and meta row, or io.EOF after the
// last site.
type NextSite func() (*SiteTable, Site, error)

// Iterate returns an iterator over every selected site in selection
// order. Each duplicate gid yields its own table.
func (s *SAMResource) Iterate() NextSite {
	pos := 0
	return func() (*SiteTable, Site, error) {
		if pos >= s.sel.Len() {
			return nil, Site{}, io.EOF
		}
		t, err := s.SiteTable(pos)
		if err != nil {
			return nil, Site{}, err
		}
		pos++
		return t, t.Site, nil
	}
}
