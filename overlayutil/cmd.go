/*
Copyright © 2026 the overlay authors.
This file is part of overlay.

overlay is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

overlay is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with overlay.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package overlayutil is the command-line interface to the overlay
// engine.
package overlayutil

import (
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/overlay"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to overlay.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "BaseFile",
			usage: `
              BaseFile is the path to the BASE polygon layer, a shapefile
              (.shp) or a GeoJSON file (.geojson or .json). Output features
              are in the reference system of this layer. It can include
              environment variables.`,
			shorthand:  "b",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{intersectCmd.Flags()},
		},
		{
			name: "OverlayFile",
			usage: `
              OverlayFile is the path to the OVERLAY polygon layer, a shapefile
              (.shp) or a GeoJSON file (.geojson or .json). It must be a
              different file than BaseFile. It can include environment variables.`,
			shorthand:  "l",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{intersectCmd.Flags()},
		},
		{
			name: "BaseProj",
			usage: `
              BaseProj, if specified, overrides the reference system of
              BaseFile. It can be a Proj4 or WKT definition or an EPSG code
              in the form "EPSG:4326".`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{intersectCmd.Flags()},
		},
		{
			name: "OverlayProj",
			usage: `
              OverlayProj, if specified, overrides the reference system of
              OverlayFile. It can be a Proj4 or WKT definition or an EPSG code
              in the form "EPSG:4326".`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{intersectCmd.Flags()},
		},
		{
			name: "BaseSelection",
			usage: `
              BaseSelection is a list of the ids of the selected BASE features.
              Feature ids are record numbers starting at 0.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{intersectCmd.Flags()},
		},
		{
			name: "OverlaySelection",
			usage: `
              OverlaySelection is a list of the ids of the selected OVERLAY
              features. Feature ids are record numbers starting at 0.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{intersectCmd.Flags()},
		},
		{
			name: "OnlySelectedBase",
			usage: `
              OnlySelectedBase specifies whether only the BASE features in
              BaseSelection should be intersected.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{intersectCmd.Flags()},
		},
		{
			name: "OnlySelectedOverlay",
			usage: `
              OnlySelectedOverlay specifies whether only the OVERLAY features
              in OverlaySelection should be intersected.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{intersectCmd.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of BASE features to process concurrently.
              If < 1, the number of processors is used.`,
			shorthand:  "w",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{intersectCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the desired output shapefile (.shp)
              or GeoJSON (.geojson) location. It can include environment
              variables.`,
			shorthand:  "o",
			defaultVal: "intersection.shp",
			flagsets:   []*pflag.FlagSet{intersectCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can include
              environment variables. If LogFile is left blank, the logfile will be saved in
              the same location as the OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{intersectCmd.Flags()},
		},
		{
			name: "ReportFile",
			usage: `
              ReportFile, if specified, is the path where a TOML summary of
              the run is written. It can include environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{intersectCmd.Flags()},
		},
		{
			name: "MetricsFile",
			usage: `
              MetricsFile, if specified, is the path where the run counters
              are written in the Prometheus text format. It can include
              environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{intersectCmd.Flags()},
		},
		{
			name: "Debug",
			usage: `
              Debug specifies whether skipped features should be logged.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{intersectCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("OVERLAY")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(intersectCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("overlay: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "overlay",
	Short: "Intersect two polygon layers.",
	Long: `overlay calculates the intersection of a BASE polygon layer with an
OVERLAY polygon layer. Each output feature is the intersection of one BASE
feature with one OVERLAY feature, in the reference system of the BASE layer,
with its geodesic area (area_m2, area_ha), perimeter (perim_m) and the
percentage of the BASE feature it covers (perc_over).

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'OVERLAY_var' where 'var' is the
name of the variable to be set. File paths are additionally allowed to contain
environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of overlay.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("overlay v%s\n", overlay.Version)
	},
	DisableAutoGenTag: true,
}

// intersectCmd intersects two layers.
var intersectCmd = &cobra.Command{
	Use:   "intersect",
	Short: "Intersect two polygon layers.",
	Long: `intersect intersects the features of BaseFile with the features of
OverlayFile and writes the result to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := intersectConfig(Cfg)
		if err != nil {
			return err
		}
		log, closeLog, err := newLogger(cmd.OutOrStdout(),
			checkLogFile(Cfg.GetString("LogFile"), cfg.OutputFile), Cfg.GetBool("Debug"))
		if err != nil {
			return err
		}
		defer closeLog()
		_, err = Intersect(cmd.Context(), cfg, log)
		return err
	},
	DisableAutoGenTag: true,
}

// intersectConfig reads the intersect settings from cfg.
func intersectConfig(cfg *viper.Viper) (*IntersectConfig, error) {
	baseFile, overlayFile, err := checkInputFiles(cfg.GetString("BaseFile"), cfg.GetString("OverlayFile"))
	if err != nil {
		return nil, err
	}
	outputFile, err := checkOutputFile(cfg.GetString("OutputFile"))
	if err != nil {
		return nil, err
	}
	baseSel, err := parseSelection("BaseSelection", cfg.Get("BaseSelection"))
	if err != nil {
		return nil, err
	}
	overlaySel, err := parseSelection("OverlaySelection", cfg.Get("OverlaySelection"))
	if err != nil {
		return nil, err
	}
	files := expandStringSlice([]string{cfg.GetString("ReportFile"), cfg.GetString("MetricsFile")})
	return &IntersectConfig{
		BaseFile:            baseFile,
		OverlayFile:         overlayFile,
		BaseProj:            os.ExpandEnv(cfg.GetString("BaseProj")),
		OverlayProj:         os.ExpandEnv(cfg.GetString("OverlayProj")),
		BaseSelection:       baseSel,
		OverlaySelection:    overlaySel,
		OnlySelectedBase:    cfg.GetBool("OnlySelectedBase"),
		OnlySelectedOverlay: cfg.GetBool("OnlySelectedOverlay"),
		Workers:             cfg.GetInt("Workers"),
		OutputFile:          outputFile,
		ReportFile:          files[0],
		MetricsFile:         files[1],
	}, nil
}
