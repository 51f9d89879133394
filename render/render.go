// Package render draws diagnostic plots and animations from computed
// analysis arrays.
//
// Every analysis result stays fully usable without this package; render
// only consumes plain slices, so the pipeline runs headless and the plots
// are a terminal artifact. PNG output goes through gonum/plot, animations
// through paletted GIF frames.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Errors returned by the renderers.
var (
	ErrNoData         = errors.New("render: no data to plot")
	ErrLengthMismatch = errors.New("render: x and y lengths differ")
)

// Default canvas size for single plots.
const (
	defaultWidth  = 8 * vg.Inch
	defaultHeight = 4 * vg.Inch
)

var plotColors = []color.Color{
	color.RGBA{R: 0x0e, G: 0x10, B: 0xe6, A: 255}, // blue
	color.RGBA{R: 0xf7, G: 0x8f, B: 0x2e, A: 255}, // orange
	color.RGBA{R: 0x0e, G: 0xaa, B: 0x57, A: 255}, // green
	color.RGBA{R: 0xff, G: 0x49, B: 0x00, A: 255}, // red
	color.RGBA{R: 0x92, G: 0x08, B: 0xe7, A: 255}, // purple
}

// LineOpts labels a plot.
type LineOpts struct {
	Title  string
	XLabel string
	YLabel string
}

// Curve is one labelled series of a multi-line plot.
type Curve struct {
	Label string
	Y     []float64
}

// Line writes a single-series PNG plot. NaN samples (rejected fits) are
// dropped from the drawn line rather than breaking the axis ranges.
func Line(path string, opts LineOpts, x, y []float64) error {
	return MultiLine(path, opts, x, []Curve{{Y: y}})
}

// MultiLine writes a PNG plot of several curves sharing one x axis.
func MultiLine(path string, opts LineOpts, x []float64, curves []Curve) error {
	if len(x) == 0 || len(curves) == 0 {
		return ErrNoData
	}

	p, err := assemble(opts, x, curves)
	if err != nil {
		return err
	}
	if err := p.Save(defaultWidth, defaultHeight, path); err != nil {
		return fmt.Errorf("render: save %s: %w", path, err)
	}
	return nil
}

// assemble builds the plot object shared by the PNG and GIF paths.
func assemble(opts LineOpts, x []float64, curves []Curve) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel
	p.Add(plotter.NewGrid())

	for ci, c := range curves {
		if len(c.Y) != len(x) {
			return nil, fmt.Errorf("%w: curve %d has %d samples, axis has %d",
				ErrLengthMismatch, ci, len(c.Y), len(x))
		}

		pts := make(plotter.XYs, 0, len(x))
		for i := range x {
			if math.IsNaN(c.Y[i]) || math.IsInf(c.Y[i], 0) {
				continue
			}
			pts = append(pts, plotter.XY{X: x[i], Y: c.Y[i]})
		}
		if len(pts) == 0 {
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("render: build line: %w", err)
		}
		line.Color = plotColors[ci%len(plotColors)]
		p.Add(line)
		if c.Label != "" {
			p.Legend.Add(c.Label, line)
			p.Legend.Top = true
		}
	}
	return p, nil
}

// IVCurves plots averaged IV responses at selected time slices:
// curr[t][step] against the voltage axis, one labelled curve per entry of
// times.
func IVCurves(path string, volt []float64, curr [][]float64, times []int, label func(t int) string) error {
	if len(volt) == 0 || len(curr) == 0 || len(times) == 0 {
		return ErrNoData
	}

	curves := make([]Curve, 0, len(times))
	for _, t := range times {
		if t < 0 || t >= len(curr) {
			return fmt.Errorf("render: time slice %d outside [0, %d)", t, len(curr))
		}
		curves = append(curves, Curve{Label: label(t), Y: curr[t]})
	}
	return MultiLine(path, LineOpts{
		Title:  "Average IV response",
		XLabel: "Discriminator voltage [V]",
		YLabel: "Current",
	}, volt, curves)
}
