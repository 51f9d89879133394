package render

import (
	"fmt"
	"image"
	"image/color/palette"
	imgdraw "image/draw"
	"image/gif"
	"math"
	"os"

	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Frame is one animation frame: a signed distribution function over its
// voltage axis.
type Frame struct {
	Label string
	Volt  []float64
	F     []float64
}

// frameDelay is in hundredths of a second per frame.
const frameDelay = 5

// AnimateDistFunc writes a GIF of the distribution function evolving over
// time, one frame per entry. All frames share axis ranges so the splice
// stays put while the wings move.
func AnimateDistFunc(path string, frames []Frame) error {
	if len(frames) == 0 {
		return ErrNoData
	}

	xmin, xmax, ymin, ymax := frameBounds(frames)

	var paletted []*image.Paletted
	var delays []int
	for fi, fr := range frames {
		p, err := assemble(LineOpts{
			Title:  fr.Label,
			XLabel: "Signed energy axis [V]",
			YLabel: "f(V)",
		}, fr.Volt, []Curve{{Y: fr.F}})
		if err != nil {
			return fmt.Errorf("render: frame %d: %w", fi, err)
		}
		p.X.Min, p.X.Max = xmin, xmax
		p.Y.Min, p.Y.Max = ymin, ymax

		c := vgimg.New(defaultWidth, defaultHeight)
		p.Draw(draw.New(c))
		img := c.Image()

		pf := image.NewPaletted(img.Bounds(), palette.Plan9)
		imgdraw.Draw(pf, img.Bounds(), img, image.Point{}, imgdraw.Over)
		paletted = append(paletted, pf)
		delays = append(delays, frameDelay)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("render: create %s: %w", path, err)
	}
	defer out.Close()

	if err := gif.EncodeAll(out, &gif.GIF{Image: paletted, Delay: delays}); err != nil {
		return fmt.Errorf("render: encode %s: %w", path, err)
	}
	return nil
}

// frameBounds finds the shared axis ranges over all finite samples.
func frameBounds(frames []Frame) (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, fr := range frames {
		for i := range fr.Volt {
			if i < len(fr.F) && (math.IsNaN(fr.F[i]) || math.IsInf(fr.F[i], 0)) {
				continue
			}
			xmin = math.Min(xmin, fr.Volt[i])
			xmax = math.Max(xmax, fr.Volt[i])
			if i < len(fr.F) {
				ymin = math.Min(ymin, fr.F[i])
				ymax = math.Max(ymax, fr.F[i])
			}
		}
	}
	if math.IsInf(xmin, 1) {
		return 0, 1, 0, 1
	}
	return xmin, xmax, ymin, ymax
}
