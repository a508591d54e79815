/*
Copyright © 2018 the sstdiag authors.
This file is part of sstdiag.

sstdiag is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

sstdiag is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with sstdiag.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package sstdiagutil holds the configuration and command-line interface
// of the SST error diagnostic.
package sstdiagutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/sstdiag"
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
	// Options are the configuration options available to sstdiag.
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
			name: "LogLevel",
			usage: `
              LogLevel sets the minimum severity of log messages: one of
              debug, info, warning, or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "WorkDir",
			usage: `
              WorkDir is the directory where the output of each processing step
              is cached. Output that is already there is not recomputed.
              It can contain environment variables.`,
			defaultVal: "${TMPDIR}/sstdiag",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "PlotDir",
			usage: `
              PlotDir is the directory where figures are written.
              It can contain environment variables.`,
			defaultVal: "plots",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "DiagScriptName",
			usage: `
              DiagScriptName names the subdirectory of WorkDir and PlotDir
              used by this diagnostic.`,
			defaultVal: "ch09_fig9-14",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "Variable",
			usage: `
              Variable is the name of the sea surface temperature variable
              in the model files.`,
			defaultVal: "tos",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "Reference",
			usage: `
              Reference is the name of the observational dataset that the
              models are compared against. It must be listed in Models.`,
			shorthand:  "r",
			defaultVal: "HadISST",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "Project",
			usage: `
              Project names the model ensemble in the figure titles.`,
			defaultVal: "CMIP5",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "WritePlots",
			usage: `
              WritePlots specifies whether to draw the figure. If false, the
              processing steps are run and cached but nothing is plotted.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "OutputName",
			usage: `
              OutputName is the name of the figure file, without extension.`,
			defaultVal: "flato13_fig9-14",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "OutputFileType",
			usage: `
              OutputFileType is the image format of the figure: png, jpg, or tif.`,
			defaultVal: "png",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "Author",
			usage: `
              Author is recorded as the author of the figure in its provenance file.`,
			defaultVal: "A_zimm_kl",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "Workers",
			usage: `
              Workers is the number of models that are processed at the same
              time. Zero means one.`,
			shorthand:  "w",
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "RefLineStyle.Color",
			usage: `
              RefLineStyle.Color is the color of the ensemble mean lines, as a
              hexadecimal value such as "#d62728". The reference is always black.`,
			defaultVal: "#d62728",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "RefLineStyle.Width",
			usage: `
              RefLineStyle.Width is the width in points of the ensemble mean
              and reference lines.`,
			defaultVal: 3.0,
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "RefLineStyle.Dashes",
			usage: `
              RefLineStyle.Dashes lists the lengths in points of the dashes and
              gaps of the ensemble mean and reference lines. The lines are solid
              if it is empty.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
		{
			name: "Models",
			usage: `
              Models lists the datasets, including the reference. Each has a Name,
              a File holding the data, and optionally a Project, Experiment,
              and Ensemble. In a configuration file it is an array of tables;
              on the command line it is a JSON array, for example
              [{"Name":"HadISST","File":"hadisst.nc"},{"Name":"A","File":"a.nc"}].`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("SSTDIAG")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
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
				set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
			case bool:
				set.Bool(option.name, option.defaultVal.(bool), option.usage)
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				set.Float64(option.name, option.defaultVal.(float64), option.usage)
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
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets the log level.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("sstdiag: problem reading configuration file: %v", err)
		}
	}
	level, err := logrus.ParseLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("%w: LogLevel: %v", ErrConfig, err)
	}
	logrus.SetLevel(level)
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "sstdiag",
	Short: "Evaluate modeled sea surface temperature.",
	Long: `sstdiag compares the sea surface temperature climatology of a set of
climate models with an observational reference. It computes the zonal mean
and equatorial errors of each model, their ensemble mean and spread, and
draws them in a four-panel figure.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'SSTDIAG_var' where 'var' is the
name of the variable to be set, with '.' replaced by '_'. Paths are
allowed to contain environment variables.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := ProjectInfoFromConfig(Cfg)
		if err != nil {
			return err
		}
		res, err := Main(context.Background(), p, logrus.StandardLogger())
		if err != nil {
			return err
		}
		if res.Figure != "" {
			cmd.Printf("Wrote %s\n", res.Figure)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of sstdiag.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("sstdiag v%s\n", sstdiag.Version)
	},
	DisableAutoGenTag: true,
}
