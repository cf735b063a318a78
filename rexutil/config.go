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
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/rex"
	"github.com/spf13/cast"
)

// latLon is a (latitude, longitude) pair given on the command line.
type latLon struct {
	Lat float64 `option:"latitude" validate:"gte=-90,lte=90"`
	Lon float64 `option:"longitude" validate:"gte=-180,lte=180"`
}

// Config holds the options of a command after they have been read from
// flags, environment variables, and the configuration file.
type Config struct {
	Resources   []string `option:"resource" validate:"min=1,dive,required"`
	OutDir      string   `option:"out_dir" validate:"required"`
	Format      string   `option:"format" validate:"oneof=csv xlsx"`
	Verbose     bool     `option:"verbose"`
	LogFile     string   `option:"log_file"`
	ValidRanges string   `option:"valid_ranges"`

	GIDs    []int    `option:"gid" validate:"dive,gte=0"`
	LatLons []latLon `option:"lat_lon" validate:"dive"`
	Sites   string   `option:"sites"`

	Tech          string  `option:"tech" validate:"tech"`
	HubHeight     float64 `option:"hub_height" validate:"gte=0"`
	TimeIndexStep int     `option:"time_index_step" validate:"gte=1"`
	BiasCorrect   string  `option:"bias_correct"`
	Roll          bool    `option:"roll"`
	Means         bool    `option:"means"`
	Bifacial      bool    `option:"bifacial"`
	ClearSky      bool    `option:"clearsky"`
	Icing         bool    `option:"icing"`

	Datasets   []string `option:"dataset" validate:"dive,required"`
	Region     string   `option:"region"`
	RegionName string   `option:"region_name" validate:"required"`
	Corner1    []latLon `option:"lat_lon_1" validate:"max=1,dive"`
	Corner2    []latLon `option:"lat_lon_2" validate:"max=1,dive"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("option")
	})
	validate.RegisterValidation("tech", func(fl validator.FieldLevel) bool {
		_, err := rex.ParseTechnology(fl.Field().String())
		return err == nil
	})
}

// LoadConfig reads the command options from cfg and checks them.
func LoadConfig(cfg *viper.Viper) (*Config, error) {
	c := &Config{
		Resources:     expandStringSlice(cfg.GetStringSlice("resource")),
		OutDir:        os.ExpandEnv(cfg.GetString("out_dir")),
		Format:        strings.ToLower(cfg.GetString("format")),
		Verbose:       cfg.GetBool("verbose"),
		LogFile:       os.ExpandEnv(cfg.GetString("log_file")),
		ValidRanges:   os.ExpandEnv(cfg.GetString("valid_ranges")),
		Sites:         os.ExpandEnv(cfg.GetString("sites")),
		Tech:          cfg.GetString("tech"),
		HubHeight:     cfg.GetFloat64("hub_height"),
		TimeIndexStep: cfg.GetInt("time_index_step"),
		BiasCorrect:   os.ExpandEnv(cfg.GetString("bias_correct")),
		Roll:          cfg.GetBool("roll"),
		Means:         cfg.GetBool("means"),
		Bifacial:      cfg.GetBool("bifacial"),
		ClearSky:      cfg.GetBool("clearsky"),
		Icing:         cfg.GetBool("icing"),
		Datasets:      cfg.GetStringSlice("dataset"),
		Region:        cfg.GetString("region"),
		RegionName:    cfg.GetString("region_name"),
	}
	var err error
	for _, g := range cfg.GetStringSlice("gid") {
		gid, err := cast.ToIntE(strings.TrimSpace(g))
		if err != nil {
			return nil, fmt.Errorf("rexutil: invalid gid %q: %v", g, err)
		}
		c.GIDs = append(c.GIDs, gid)
	}
	if c.LatLons, err = parseLatLons("lat_lon", cfg.GetStringSlice("lat_lon")); err != nil {
		return nil, err
	}
	if c.Corner1, err = parseLatLons("lat_lon_1", cfg.GetStringSlice("lat_lon_1")); err != nil {
		return nil, err
	}
	if c.Corner2, err = parseLatLons("lat_lon_2", cfg.GetStringSlice("lat_lon_2")); err != nil {
		return nil, err
	}
	if err := validate.Struct(c); err != nil {
		return nil, validationError(err)
	}
	return c, nil
}

// validationError describes each invalid option.
func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("rexutil: checking options: %v", err)
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		name := strings.TrimPrefix(fe.Namespace(), "Config.")
		switch fe.Tag() {
		case "required", "min":
			msgs[i] = fmt.Sprintf("%s must be specified", name)
		case "oneof":
			msgs[i] = fmt.Sprintf("%s must be one of [%s] but is %v", name, fe.Param(), fe.Value())
		case "tech":
			msgs[i] = fmt.Sprintf("%s %q is not a SAM technology", name, fe.Value())
		default:
			msgs[i] = fmt.Sprintf("%s fails the %s=%s check with value %v", name, fe.Tag(), fe.Param(), fe.Value())
		}
	}
	return fmt.Errorf("rexutil: invalid configuration: %s", strings.Join(msgs, "; "))
}

// parseLatLons reads (latitude, longitude) pairs from a flat list of
// numbers.
func parseLatLons(name string, s []string) ([]latLon, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("rexutil: %s must be latitude, longitude pairs but has %d values", name, len(s))
	}
	var o []latLon
	for i := 0; i < len(s); i += 2 {
		lat, err := cast.ToFloat64E(strings.TrimSpace(s[i]))
		if err != nil {
			return nil, fmt.Errorf("rexutil: %s: invalid latitude %q", name, s[i])
		}
		lon, err := cast.ToFloat64E(strings.TrimSpace(s[i+1]))
		if err != nil {
			return nil, fmt.Errorf("rexutil: %s: invalid longitude %q", name, s[i+1])
		}
		o = append(o, latLon{Lat: lat, Lon: lon})
	}
	return o, nil
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// openResource downloads the resource archives if they are remote and
// opens them as one archive. The returned function closes the archives.
func openResource(ctx context.Context, c *Config, log logrus.FieldLogger) (rex.ArchiveReader, func(), error) {
	var archives []*rex.Archive
	closeAll := func() {
		for _, a := range archives {
			a.Close()
		}
	}
	readers := make([]rex.ArchiveReader, 0, len(c.Resources))
	for _, path := range c.Resources {
		local, err := maybeDownload(ctx, path, log)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		a, err := rex.OpenArchive(local)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		log.WithFields(logrus.Fields{"resource": path, "sites": a.NumSites()}).Debug("rexutil: opened resource")
		archives = append(archives, a)
		readers = append(readers, a)
	}
	if len(readers) == 1 {
		return readers[0], closeAll, nil
	}
	m, err := rex.MultiArchive(readers...)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	return m, closeAll, nil
}

// selectedSites returns the gids chosen by exactly one of the gid,
// lat_lon, and sites options. Coordinates are mapped to the nearest
// site.
func selectedSites(ctx context.Context, c *Config, r rex.ArchiveReader, log logrus.FieldLogger) ([]int, error) {
	var n int
	for _, set := range []bool{len(c.GIDs) > 0, len(c.LatLons) > 0, c.Sites != ""} {
		if set {
			n++
		}
	}
	if n != 1 {
		return nil, fmt.Errorf("rexutil: exactly one of gid, lat_lon, and sites must be specified")
	}
	switch {
	case len(c.GIDs) > 0:
		return c.GIDs, nil
	case len(c.LatLons) > 0:
		return nearest(r, c.LatLons)
	default:
		return readSitesFile(ctx, c.Sites, r, log)
	}
}

func nearest(r rex.ArchiveReader, pts []latLon) ([]int, error) {
	points := make([][2]float64, len(pts))
	for i, p := range pts {
		points[i] = [2]float64{p.Lat, p.Lon}
	}
	return rex.NearestSites(r, points)
}

// readSitesFile reads the sites in a CSV or JSON file with either a gid
// column or latitude and longitude columns.
func readSitesFile(ctx context.Context, path string, r rex.ArchiveReader, log logrus.FieldLogger) ([]int, error) {
	local, err := maybeDownload(ctx, path, log)
	if err != nil {
		return nil, err
	}
	t, err := rex.ReadTableFile(local)
	if err != nil {
		return nil, err
	}
	if t.Column("gid") >= 0 {
		gids := make([]int, len(t.Rows))
		for i := range t.Rows {
			v, err := t.Float(i, "gid")
			if err != nil {
				return nil, err
			}
			gids[i] = int(v)
		}
		return gids, nil
	}
	latCol, lonCol := "latitude", "longitude"
	if t.Column(latCol) < 0 || t.Column(lonCol) < 0 {
		latCol, lonCol = "lat", "lon"
	}
	if t.Column(latCol) < 0 || t.Column(lonCol) < 0 {
		return nil, fmt.Errorf("rexutil: sites file %s must have a gid column or latitude and longitude columns but has %v",
			path, t.Columns)
	}
	pts := make([]latLon, len(t.Rows))
	for i := range t.Rows {
		if pts[i].Lat, err = t.Float(i, latCol); err != nil {
			return nil, err
		}
		if pts[i].Lon, err = t.Float(i, lonCol); err != nil {
			return nil, err
		}
	}
	return nearest(r, pts)
}

// preloadOptions converts c to options for rex.PreloadSAM.
func preloadOptions(ctx context.Context, c *Config, log logrus.FieldLogger) (rex.PreloadOptions, error) {
	tech, err := rex.ParseTechnology(c.Tech)
	if err != nil {
		return rex.PreloadOptions{}, err
	}
	o := rex.PreloadOptions{
		Tech:          tech,
		HubHeight:     c.HubHeight,
		Means:         c.Means,
		TimeIndexStep: c.TimeIndexStep,
		Icing:         c.Icing,
		Bifacial:      c.Bifacial,
		ClearSky:      c.ClearSky,
		RollToLocal:   c.Roll,
		Log:           log,
	}
	if c.ValidRanges != "" {
		if o.Ranges, err = rex.LoadRanges(c.ValidRanges); err != nil {
			return o, err
		}
	}
	if c.BiasCorrect != "" {
		local, err := maybeDownload(ctx, c.BiasCorrect, log)
		if err != nil {
			return o, err
		}
		if o.BiasCorrection, err = rex.ReadTableFile(local); err != nil {
			return o, err
		}
	}
	return o, nil
}
