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

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/rex"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(samDatasetsCmd)
	Root.AddCommand(datasetCmd)
	datasetCmd.AddCommand(datasetSiteCmd, datasetRegionCmd, datasetBoxCmd)
	Root.AddCommand(multiSiteCmd)

	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "resource",
			usage: `
              resource is the path to a resource archive. It can be a local file,
              an http(s) URL, or a blob storage location (gs://, s3://, or file://).
              Give it more than once to read several archives covering the same sites
              and time steps as one, for example a solar and a wind archive.`,
			shorthand:  "r",
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "out_dir",
			usage: `
              out_dir is the directory output files are written to. It is created if it
              doesn't exist and can be a blob storage location.`,
			shorthand:  "o",
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "format",
			usage: `
              format is the output file format: csv or xlsx.`,
			defaultVal: "csv",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "verbose",
			usage: `
              verbose turns on debug logging.`,
			shorthand:  "v",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "log_file",
			usage: `
              log_file is a file that log messages are appended to in addition to
              standard error.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "valid_ranges",
			usage: `
              valid_ranges is a TOML file overriding the valid range of variables,
              in tables [wind], [solar], and [wave] with entries like
              windspeed = [0.0, 120.0].`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "gid",
			usage: `
              gid is a list of site identifiers.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{samDatasetsCmd.Flags(), datasetSiteCmd.Flags()},
		},
		{
			name: "lat_lon",
			usage: `
              lat_lon is a list of latitude, longitude pairs. The site nearest to each
              pair is selected.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{samDatasetsCmd.Flags(), datasetSiteCmd.Flags()},
		},
		{
			name: "sites",
			usage: `
              sites is a .csv or .json file with a "gid" column or "latitude" and
              "longitude" columns listing the sites to extract.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{samDatasetsCmd.Flags(), multiSiteCmd.Flags()},
		},
		{
			name: "tech",
			usage: `
              tech is the SAM technology to load data for, for example windpower,
              pvwattsv8, tcsmoltensalt, or mhkwave.`,
			shorthand:  "t",
			defaultVal: string(rex.Windpower),
			flagsets:   []*pflag.FlagSet{samDatasetsCmd.Flags()},
		},
		{
			name: "hub_height",
			usage: `
              hub_height is the height [m] wind data is loaded at.`,
			defaultVal: 100.0,
			flagsets:   []*pflag.FlagSet{samDatasetsCmd.Flags()},
		},
		{
			name: "time_index_step",
			usage: `
              time_index_step keeps only every n-th time step.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{samDatasetsCmd.Flags()},
		},
		{
			name: "bias_correct",
			usage: `
              bias_correct is a .csv or .json bias correction table with "gid" and
              "method" columns and the parameter columns of the methods used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{samDatasetsCmd.Flags()},
		},
		{
			name: "roll",
			usage: `
              roll shifts the data from UTC to local standard time.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{samDatasetsCmd.Flags()},
		},
		{
			name: "means",
			usage: `
              means writes the mean of each variable at each site.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{samDatasetsCmd.Flags()},
		},
		{
			name: "bifacial",
			usage: `
              bifacial adds surface albedo to solar data.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{samDatasetsCmd.Flags()},
		},
		{
			name: "clearsky",
			usage: `
              clearsky loads clear-sky instead of measured irradiance.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{samDatasetsCmd.Flags()},
		},
		{
			name: "icing",
			usage: `
              icing adds relative humidity to wind data.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{samDatasetsCmd.Flags()},
		},
		{
			name: "dataset",
			usage: `
              dataset is a list of archive datasets to extract, including any height
              suffix (for example windspeed_100m).`,
			shorthand:  "d",
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{datasetCmd.PersistentFlags(), multiSiteCmd.Flags()},
		},
		{
			name: "region",
			usage: `
              region is a boolean expression over the meta columns selecting the sites
              to extract, for example "timezone == -5 && elevation > 100".`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{datasetRegionCmd.Flags()},
		},
		{
			name: "region_name",
			usage: `
              region_name names the output files of a region extraction.`,
			defaultVal: "region",
			flagsets:   []*pflag.FlagSet{datasetRegionCmd.Flags()},
		},
		{
			name: "lat_lon_1",
			usage: `
              lat_lon_1 is one corner of the box to extract, as latitude, longitude.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{datasetBoxCmd.Flags()},
		},
		{
			name: "lat_lon_2",
			usage: `
              lat_lon_2 is the opposite corner of the box to extract.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{datasetBoxCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("REX")
	Cfg.AutomaticEnv()

	for _, o := range options {
		for i, set := range o.flagsets {
			if i != 0 { // The flag only needs to be created once.
				set.AddFlag(o.flagsets[0].Lookup(o.name))
				continue
			}
			addFlag(set, o)
			Cfg.BindPFlag(o.name, set.Lookup(o.name))
		}
	}
}

func addFlag(set *pflag.FlagSet, o option) {
	switch v := o.defaultVal.(type) {
	case string:
		set.StringP(o.name, o.shorthand, v, o.usage)
	case []string:
		set.StringSliceP(o.name, o.shorthand, v, o.usage)
	case bool:
		set.BoolP(o.name, o.shorthand, v, o.usage)
	case int:
		set.IntP(o.name, o.shorthand, v, o.usage)
	case float64:
		set.Float64P(o.name, o.shorthand, v, o.usage)
	default:
		panic(fmt.Errorf("rexutil: invalid default value type %T for option %s", v, o.name))
	}
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("rex: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// run loads the configuration and a logger and then runs f.
func run(f func(context.Context, *Config, logrus.FieldLogger) error) error {
	c, err := LoadConfig(Cfg)
	if err != nil {
		return err
	}
	log, closeLog, err := newLogger(Root.OutOrStderr(), c.Verbose, c.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()
	if err := f(context.Background(), c, log); err != nil {
		log.Error(err)
		return err
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "rex",
	Short: "Prepare renewable resource data for SAM.",
	Long: `rex reads gridded renewable resource archives and prepares per-site
resource data for the System Advisor Model (SAM): it selects sites, picks or
interpolates hub-height wind data, converts units, enforces valid ranges,
repairs solar irradiance, shifts data to local time, and applies bias
corrections. It can also extract raw datasets for sites, regions, and boxes.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'REX_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of rex.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("rex v%s\n", rex.Version)
	},
	DisableAutoGenTag: true,
}

var samDatasetsCmd = &cobra.Command{
	Use:   "sam-datasets",
	Short: "Write SAM resource data for sites.",
	Long: `sam-datasets loads the resource data SAM needs for a technology at the
sites given by exactly one of --gid, --lat_lon, or --sites and writes one
SAM_<gid> table per site and a SAM-meta table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(SAMDatasets)
	},
	DisableAutoGenTag: true,
}

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Extract archive datasets.",
	Long: `dataset extracts the datasets given by --dataset for a set of sites. Use
the subcommands specified below to choose how the sites are selected.`,
	DisableAutoGenTag: true,
}

var datasetSiteCmd = &cobra.Command{
	Use:   "site",
	Short: "Extract datasets for single sites.",
	Long: `site extracts datasets for the sites given by --gid or --lat_lon, one
<dataset>-<gid> table per site.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(DatasetSite)
	},
	DisableAutoGenTag: true,
}

var datasetRegionCmd = &cobra.Command{
	Use:   "region",
	Short: "Extract datasets for a region.",
	Long: `region extracts datasets for the sites whose meta data satisfy the
--region expression.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(DatasetRegion)
	},
	DisableAutoGenTag: true,
}

var datasetBoxCmd = &cobra.Command{
	Use:   "box",
	Short: "Extract datasets for a latitude/longitude box.",
	Long: `box extracts datasets for the sites inside the box with corners
--lat_lon_1 and --lat_lon_2.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(DatasetBox)
	},
	DisableAutoGenTag: true,
}

var multiSiteCmd = &cobra.Command{
	Use:   "multi-site",
	Short: "Extract datasets for the sites in a file.",
	Long: `multi-site extracts the datasets given by --dataset for the sites listed
in the --sites file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(MultiSite)
	},
	DisableAutoGenTag: true,
}
