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
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/rex"
)

// siteSpec returns the selection of gids.
func siteSpec(gids []int) rex.SiteSpec {
	if len(gids) == 1 {
		return rex.Site(gids[0])
	}
	return rex.SiteList(gids...)
}

// SAMDatasets writes the SAM resource data of the sites selected in c,
// one table per site named SAM_<gid>, plus a SAM-meta table and, if
// means were requested, a SAM-means table.
func SAMDatasets(ctx context.Context, c *Config, log logrus.FieldLogger) error {
	r, closeResource, err := openResource(ctx, c, log)
	if err != nil {
		return err
	}
	defer closeResource()
	gids, err := selectedSites(ctx, c, r, log)
	if err != nil {
		return err
	}
	o, err := preloadOptions(ctx, c, log)
	if err != nil {
		return err
	}
	res, err := rex.PreloadSAM(r, siteSpec(gids), o)
	if err != nil {
		return err
	}
	out, err := openOutputDir(ctx, c.OutDir)
	if err != nil {
		return err
	}

	var tables []*table
	var sites []rex.Site
	written := make(map[int]bool)
	next := res.Iterate()
	for {
		t, site, err := next()
		if err == io.EOF {
			break
		} else if err != nil {
			return err
		}
		if written[site.GID] {
			continue
		}
		written[site.GID] = true
		sites = append(sites, site)
		tables = append(tables, siteTable(fmt.Sprintf("SAM_%d", site.GID), t))
	}
	tables = append(tables, metaTable("SAM-meta", sites))
	if c.Means {
		mt, err := meansTable("SAM-means", res, sites)
		if err != nil {
			return err
		}
		tables = append(tables, mt)
	}
	return writeTables(ctx, out, c.Format, tables, log)
}

// meansTable lists the mean of every loaded variable at each site.
func meansTable(name string, res *rex.SAMResource, sites []rex.Site) (*table, error) {
	vars := res.Variables()
	o := &table{name: name, header: []string{"gid"}}
	means := make([][]float64, len(vars))
	for i, v := range vars {
		m, err := res.Mean(v)
		if err != nil {
			return nil, err
		}
		means[i] = m
		o.header = append(o.header, "mean_"+v)
	}
	for _, s := range sites {
		pos := firstPosition(res, s.GID)
		row := []interface{}{float64(s.GID)}
		for i := range vars {
			row = append(row, means[i][pos])
		}
		o.rows = append(o.rows, row)
	}
	return o, nil
}

func firstPosition(res *rex.SAMResource, gid int) int {
	for i, g := range res.Sites() {
		if g == gid {
			return i
		}
	}
	return -1
}

// datasetTables reads each dataset in c for gids and returns one table
// per dataset named <dataset>-<label> and a <label>-meta table.
func datasetTables(c *Config, r rex.ArchiveReader, gids []int, label string) ([]*table, error) {
	if len(c.Datasets) == 0 {
		return nil, fmt.Errorf("rexutil: at least one dataset must be specified")
	}
	if len(gids) == 0 {
		return nil, fmt.Errorf("rexutil: no sites were selected for %s", label)
	}
	sel, err := rex.Select(rex.SiteList(gids...), r.NumSites())
	if err != nil {
		return nil, err
	}
	times, err := r.TimeIndex()
	if err != nil {
		return nil, err
	}
	var tables []*table
	for _, ds := range c.Datasets {
		data, _, err := rex.ReadDataset(r, ds, sel)
		if err != nil {
			return nil, err
		}
		tables = append(tables, datasetTable(ds+"-"+label, times, gids, data))
	}
	meta, err := r.Meta(sel.Columns())
	if err != nil {
		return nil, err
	}
	return append(tables, metaTable(label+"-meta", meta)), nil
}

// datasetCommand opens the resource, picks sites with choose, and
// writes the datasets in c for them.
func datasetCommand(ctx context.Context, c *Config, log logrus.FieldLogger,
	choose func(rex.ArchiveReader) (gids []int, label string, err error)) error {
	r, closeResource, err := openResource(ctx, c, log)
	if err != nil {
		return err
	}
	defer closeResource()
	gids, label, err := choose(r)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"sites": len(gids), "datasets": c.Datasets}).Info("rexutil: extracting datasets")
	tables, err := datasetTables(c, r, gids, label)
	if err != nil {
		return err
	}
	out, err := openOutputDir(ctx, c.OutDir)
	if err != nil {
		return err
	}
	return writeTables(ctx, out, c.Format, tables, log)
}

// DatasetSite writes the datasets in c for each selected site, one
// <dataset>-<gid> table per site.
func DatasetSite(ctx context.Context, c *Config, log logrus.FieldLogger) error {
	start := time.Now()
	r, closeResource, err := openResource(ctx, c, log)
	if err != nil {
		return err
	}
	defer closeResource()
	gids, err := selectedSites(ctx, c, r, log)
	if err != nil {
		return err
	}
	var tables []*table
	done := make(map[int]bool)
	for _, gid := range gids {
		if done[gid] {
			continue
		}
		done[gid] = true
		t, err := datasetTables(c, r, []int{gid}, fmt.Sprint(gid))
		if err != nil {
			return err
		}
		tables = append(tables, t[:len(t)-1]...) // the meta table is written once below
	}
	sel, err := rex.Select(rex.SiteList(gids...), r.NumSites())
	if err != nil {
		return err
	}
	meta, err := r.Meta(sel.Columns())
	if err != nil {
		return err
	}
	tables = append(tables, metaTable("sites-meta", meta))
	out, err := openOutputDir(ctx, c.OutDir)
	if err != nil {
		return err
	}
	if err := writeTables(ctx, out, c.Format, tables, log); err != nil {
		return err
	}
	log.WithField("elapsed", time.Since(start)).Debug("rexutil: site extraction finished")
	return nil
}

// DatasetRegion writes the datasets in c for the sites whose meta data
// satisfy the region expression.
func DatasetRegion(ctx context.Context, c *Config, log logrus.FieldLogger) error {
	return datasetCommand(ctx, c, log, func(r rex.ArchiveReader) ([]int, string, error) {
		if c.Region == "" {
			return nil, "", fmt.Errorf("rexutil: a region expression must be specified")
		}
		gids, err := rex.RegionSites(r, c.Region)
		return gids, c.RegionName, err
	})
}

// DatasetBox writes the datasets in c for the sites inside the box
// with corners lat_lon_1 and lat_lon_2.
func DatasetBox(ctx context.Context, c *Config, log logrus.FieldLogger) error {
	return datasetCommand(ctx, c, log, func(r rex.ArchiveReader) ([]int, string, error) {
		if len(c.Corner1) != 1 || len(c.Corner2) != 1 {
			return nil, "", fmt.Errorf("rexutil: both lat_lon_1 and lat_lon_2 must be specified")
		}
		a, b := c.Corner1[0], c.Corner2[0]
		gids, err := rex.BoxSites(r, [2]float64{a.Lat, a.Lon}, [2]float64{b.Lat, b.Lon})
		return gids, "box", err
	})
}

// MultiSite writes the datasets in c for the sites listed in the sites
// file, one table per dataset named after the sites file.
func MultiSite(ctx context.Context, c *Config, log logrus.FieldLogger) error {
	if c.Sites == "" {
		return fmt.Errorf("rexutil: a sites file must be specified")
	}
	return datasetCommand(ctx, c, log, func(r rex.ArchiveReader) ([]int, string, error) {
		gids, err := readSitesFile(ctx, c.Sites, r, log)
		name := strings.TrimSuffix(filepath.Base(c.Sites), filepath.Ext(c.Sites))
		return gids, name, err
	})
}
