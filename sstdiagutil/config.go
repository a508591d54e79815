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

package sstdiagutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/sstdiag"
	"github.com/spatialmodel/sstdiag/figure"
	"github.com/spf13/cast"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ErrConfig is returned when the configuration is not valid.
var ErrConfig = errors.New("sstdiag: invalid configuration")

// ModelConfig describes one dataset to be processed.
type ModelConfig struct {
	Name       string `validate:"required"`
	File       string `validate:"required"`
	Project    string
	Experiment string
	Ensemble   string
}

// Dataset converts m to the form used by the loader.
func (m ModelConfig) Dataset() sstdiag.Dataset {
	return sstdiag.Dataset{
		Name:       m.Name,
		File:       m.File,
		Project:    m.Project,
		Experiment: m.Experiment,
		Ensemble:   m.Ensemble,
	}
}

// LineStyle is the configured style of the reference lines.
type LineStyle struct {
	// Color is a hexadecimal color, e.g. "#d62728".
	Color string `validate:"omitempty,hexcolor"`

	// Width is the line width in points.
	Width float64 `validate:"gte=0"`

	// Dashes gives the lengths of dashes and gaps in points. The line
	// is solid if Dashes is empty.
	Dashes []float64 `validate:"dive,gt=0"`
}

// Draw returns s in the form used for drawing.
func (s LineStyle) Draw() (draw.LineStyle, error) {
	o := figure.DefaultOptions().RefLineStyle
	if s.Color != "" {
		c, err := parseHexColor(s.Color)
		if err != nil {
			return o, err
		}
		o.Color = c
	}
	if s.Width > 0 {
		o.Width = vg.Points(s.Width)
	}
	for _, d := range s.Dashes {
		o.Dashes = append(o.Dashes, vg.Points(d))
	}
	return o, nil
}

func parseHexColor(s string) (color.Color, error) {
	c := color.NRGBA{A: 255}
	var err error
	switch len(s) {
	case 7:
		_, err = fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B)
	case 4:
		_, err = fmt.Sscanf(s, "#%1x%1x%1x", &c.R, &c.G, &c.B)
		c.R *= 17
		c.G *= 17
		c.B *= 17
	default:
		err = fmt.Errorf("wrong length")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: color %q: %v", ErrConfig, s, err)
	}
	return c, nil
}

// ProjectInfo holds the configuration of a diagnostic run.
type ProjectInfo struct {
	// WorkDir is the directory holding the cached step output.
	WorkDir string `validate:"required"`

	// PlotDir is the directory that figures are written to.
	PlotDir string `validate:"required_if=WritePlots true"`

	// DiagScriptName names the subdirectories of WorkDir and PlotDir
	// used by this diagnostic.
	DiagScriptName string `validate:"required"`

	// Variable is the variable to evaluate, e.g. "tos".
	Variable string `validate:"required"`

	// Reference is the name of the model that the others are
	// compared against. It must be one of Models.
	Reference string `validate:"required"`

	// Project names the model ensemble in the figure, e.g. "CMIP5".
	Project string

	WritePlots     bool
	OutputName     string `validate:"required_if=WritePlots true"`
	OutputFileType string `validate:"oneof=png jpg jpeg tif tiff"`
	Author         string

	// Workers is the number of models processed at once.
	Workers int `validate:"gte=0"`

	RefLineStyle LineStyle

	// Models lists the reference and at least one model to evaluate.
	Models []ModelConfig `validate:"min=2,unique=Name,dive"`
}

var validate = validator.New()

// Validate checks that p is complete and consistent. The error wraps
// ErrConfig.
func (p *ProjectInfo) Validate() error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, e := range verrs {
				msgs[i] = fmt.Sprintf("%s fails %q", e.Namespace(), e.Tag())
			}
			return fmt.Errorf("%w: %s", ErrConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	for _, m := range p.Models {
		if m.Name == p.Reference {
			return nil
		}
	}
	return fmt.Errorf("%w: reference %q is not among the models", ErrConfig, p.Reference)
}

// Datasets returns the datasets of p.
func (p *ProjectInfo) Datasets() []sstdiag.Dataset {
	o := make([]sstdiag.Dataset, len(p.Models))
	for i, m := range p.Models {
		o[i] = m.Dataset()
	}
	return o
}

// DataDir returns the directory holding the cached output of the
// processing steps.
func (p *ProjectInfo) DataDir() string {
	return filepath.Join(p.WorkDir, p.DiagScriptName)
}

// OutputPath returns the path of the figure.
func (p *ProjectInfo) OutputPath() string {
	return filepath.Join(p.PlotDir, p.DiagScriptName, p.OutputName+"."+p.OutputFileType)
}

// ProjectInfoFromConfig reads the project information from cfg,
// expanding any environment variables in paths.
func ProjectInfoFromConfig(cfg *viper.Viper) (*ProjectInfo, error) {
	p := &ProjectInfo{
		WorkDir:        os.ExpandEnv(cfg.GetString("WorkDir")),
		PlotDir:        os.ExpandEnv(cfg.GetString("PlotDir")),
		DiagScriptName: cfg.GetString("DiagScriptName"),
		Variable:       cfg.GetString("Variable"),
		Reference:      cfg.GetString("Reference"),
		Project:        cfg.GetString("Project"),
		WritePlots:     cfg.GetBool("WritePlots"),
		OutputName:     cfg.GetString("OutputName"),
		OutputFileType: strings.ToLower(cfg.GetString("OutputFileType")),
		Author:         cfg.GetString("Author"),
		Workers:        cfg.GetInt("Workers"),
		RefLineStyle: LineStyle{
			Color: cfg.GetString("RefLineStyle.Color"),
			Width: cfg.GetFloat64("RefLineStyle.Width"),
		},
	}
	for _, d := range cfg.GetStringSlice("RefLineStyle.Dashes") {
		d = strings.Trim(d, "[] ")
		if d == "" {
			continue
		}
		v, err := cast.ToFloat64E(d)
		if err != nil {
			return nil, fmt.Errorf("%w: RefLineStyle.Dashes: %v", ErrConfig, err)
		}
		p.RefLineStyle.Dashes = append(p.RefLineStyle.Dashes, v)
	}
	var err error
	if p.Models, err = getModels("Models", cfg); err != nil {
		return nil, err
	}
	for i := range p.Models {
		p.Models[i].File = os.ExpandEnv(p.Models[i].File)
	}
	return p, nil
}

// getModels returns the list of models from a viper configuration,
// accounting for the fact that it might be a json array if it was set
// from a command line argument.
func getModels(varName string, cfg *viper.Viper) ([]ModelConfig, error) {
	var items []interface{}
	switch v := cfg.Get(varName).(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var o []ModelConfig
		if err := json.Unmarshal([]byte(v), &o); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfig, varName, err)
		}
		return o, nil
	case []map[string]interface{}:
		for _, m := range v {
			items = append(items, m)
		}
	default:
		var err error
		if items, err = cast.ToSliceE(v); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfig, varName, err)
		}
	}
	o := make([]ModelConfig, len(items))
	for i, item := range items {
		m, err := cast.ToStringMapStringE(item)
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", ErrConfig, varName, i, err)
		}
		// viper lower-cases keys read from configuration files.
		get := func(key string) string {
			if s, ok := m[key]; ok {
				return s
			}
			return m[strings.ToLower(key)]
		}
		o[i] = ModelConfig{
			Name:       get("Name"),
			File:       get("File"),
			Project:    get("Project"),
			Experiment: get("Experiment"),
			Ensemble:   get("Ensemble"),
		}
	}
	return o, nil
}
