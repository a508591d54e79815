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

// Package figure draws the four-panel comparison of model sea-surface
// temperature errors.
package figure

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Default figure dimensions.
var (
	DefaultWidth  = 12 * vg.Inch
	DefaultHeight = 10 * vg.Inch
	DefaultDPI    = 96
)

// Panel is one of the four plots of a Figure, together with the
// region of the figure canvas that it is drawn to.
type Panel struct {
	Plot   *plot.Plot
	Canvas draw.Canvas
}

// LegendEntry is one line of the combined legend.
type LegendEntry struct {
	Label string
	Thumb plot.Thumbnailer
}

// Figure holds all drawing state for one output image: the canvas, the
// four panels arranged in two rows and two columns, and the combined
// legend to the right of the panels.
type Figure struct {
	Canvas draw.Canvas
	Panels [2][2]*Panel

	// Legend lists the legend entries in the order that they are drawn.
	Legend []LegendEntry

	legendCanvas draw.Canvas
	img          *vgimg.Canvas
	font         vg.Font
}

// New creates an empty figure of the given size and resolution.
func New(width, height vg.Length, dpi int) (*Figure, error) {
	img := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(dpi))
	dc := draw.New(img)

	// White background.
	dc.SetColor(color.White)
	dc.Fill(dc.Rectangle.Path())

	legendW := width * 0.2
	mainc := draw.Crop(dc, 0, -legendW, 0, 0)
	legendc := draw.Crop(dc, width-legendW, 0, 0, -height*0.08)
	tiles := draw.Tiles{
		Cols:      2,
		Rows:      2,
		PadTop:    vg.Points(5),
		PadBottom: vg.Points(5),
		PadLeft:   vg.Points(5),
		PadRight:  vg.Points(5),
		PadX:      12 * vg.Millimeter,
		PadY:      12 * vg.Millimeter,
	}
	font, err := vg.MakeFont(plot.DefaultFont, vg.Points(11))
	if err != nil {
		return nil, fmt.Errorf("figure: %v", err)
	}
	f := &Figure{
		Canvas:       dc,
		legendCanvas: legendc,
		img:          img,
		font:         font,
	}
	for row := 0; row < 2; row++ {
		for col := 0; col < 2; col++ {
			p, err := plot.New()
			if err != nil {
				return nil, fmt.Errorf("figure: %v", err)
			}
			// Tiles counts rows from the top.
			f.Panels[row][col] = &Panel{Plot: p, Canvas: tiles.At(mainc, col, row)}
		}
	}
	return f, nil
}

// AddLegend appends an entry to the combined legend.
func (f *Figure) AddLegend(label string, thumb plot.Thumbnailer) {
	f.Legend = append(f.Legend, LegendEntry{Label: label, Thumb: thumb})
}

// Draw draws the panels and the legend to the figure canvas.
func (f *Figure) Draw() {
	for _, row := range f.Panels {
		for _, p := range row {
			p.Plot.Draw(p.Canvas)
		}
	}
	f.drawLegend()
}

func (f *Figure) drawLegend() {
	c := f.legendCanvas
	ts := draw.TextStyle{
		Color:  color.Black,
		Font:   f.font,
		YAlign: -0.5,
	}
	rowH := f.font.Size * 1.6
	thumbW := 0.4 * vg.Inch
	pad := 2 * vg.Millimeter
	y := c.Max.Y - rowH/2
	for _, e := range f.Legend {
		if e.Thumb != nil {
			tc := draw.Crop(c, pad, pad+thumbW-(c.Max.X-c.Min.X), y-rowH/2-c.Min.Y, y+rowH/2-c.Max.Y)
			e.Thumb.Thumbnail(&tc)
		}
		c.FillText(ts, vg.Point{X: c.Min.X + 2*pad + thumbW, Y: y}, e.Label)
		y -= rowH
	}
}

// Save writes the figure to the named file, with the image format
// chosen by the file extension: png, jpg, jpeg, tif, or tiff.
func (f *Figure) Save(path string) error {
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("figure: %v", err)
	}
	if err := f.WriteTo(w, filepath.Ext(path)); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// WriteTo writes the figure to w in the given image format.
func (f *Figure) WriteTo(w io.Writer, format string) error {
	var wt io.WriterTo
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "png":
		wt = vgimg.PngCanvas{Canvas: f.img}
	case "jpg", "jpeg":
		wt = vgimg.JpegCanvas{Canvas: f.img}
	case "tif", "tiff":
		wt = vgimg.TiffCanvas{Canvas: f.img}
	default:
		return fmt.Errorf("figure: unsupported image format %q", format)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("figure: writing image: %v", err)
	}
	return nil
}
