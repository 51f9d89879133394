package render

import (
	"errors"
	"image/gif"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func axis(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	return x
}

func TestLineWritesPNG(t *testing.T) {
	x := axis(50)
	y := make([]float64, 50)
	for i := range y {
		y[i] = math.Sin(float64(i) / 5)
	}
	y[10] = math.NaN() // rejected fit points must not break the plot

	path := filepath.Join(t.TempDir(), "ti.png")
	if err := Line(path, LineOpts{Title: "Ti(t)", XLabel: "t", YLabel: "Ti [eV]"}, x, y); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("empty plot file")
	}
}

func TestMultiLineValidation(t *testing.T) {
	x := axis(10)

	if err := MultiLine("unused.png", LineOpts{}, nil, []Curve{{Y: x}}); !errors.Is(err, ErrNoData) {
		t.Errorf("empty axis: error = %v, want %v", err, ErrNoData)
	}
	if err := MultiLine("unused.png", LineOpts{}, x, nil); !errors.Is(err, ErrNoData) {
		t.Errorf("no curves: error = %v, want %v", err, ErrNoData)
	}
	short := Curve{Label: "short", Y: axis(7)}
	if err := MultiLine("unused.png", LineOpts{}, x, []Curve{short}); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("ragged curve: error = %v, want %v", err, ErrLengthMismatch)
	}
}

func TestIVCurves(t *testing.T) {
	volt := axis(30)
	curr := make([][]float64, 5)
	for ti := range curr {
		row := make([]float64, 30)
		for s := range row {
			row[s] = 5 * (1 - math.Tanh((float64(s)-15)/4)) * float64(ti+1)
		}
		curr[ti] = row
	}

	path := filepath.Join(t.TempDir(), "iv.png")
	label := func(ti int) string { return "t" }
	if err := IVCurves(path, volt, curr, []int{0, 2, 4}, label); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatal(err)
	}

	if err := IVCurves(path, volt, curr, []int{9}, label); err == nil {
		t.Error("out-of-range slice accepted")
	}
	if err := IVCurves(path, volt, curr, nil, label); !errors.Is(err, ErrNoData) {
		t.Errorf("no slices: error = %v, want %v", err, ErrNoData)
	}
}

func TestAnimateDistFunc(t *testing.T) {
	const n = 41
	volt := make([]float64, n)
	for i := range volt {
		volt[i] = float64(i - n/2)
	}

	frames := make([]Frame, 3)
	for fi := range frames {
		f := make([]float64, n)
		for i, v := range volt {
			f[i] = math.Exp(-(v - float64(fi)) * (v - float64(fi)) / 20)
		}
		frames[fi] = Frame{Label: "frame", Volt: volt, F: f}
	}

	path := filepath.Join(t.TempDir(), "dfunc.gif")
	if err := AnimateDistFunc(path, frames); err != nil {
		t.Fatal(err)
	}

	fd, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer fd.Close()

	g, err := gif.DecodeAll(fd)
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Image) != 3 {
		t.Errorf("decoded %d frames, want 3", len(g.Image))
	}
	for i, d := range g.Delay {
		if d != frameDelay {
			t.Errorf("frame %d delay = %d, want %d", i, d, frameDelay)
		}
	}
}

func TestAnimateDistFuncEmpty(t *testing.T) {
	if err := AnimateDistFunc("unused.gif", nil); !errors.Is(err, ErrNoData) {
		t.Errorf("error = %v, want %v", err, ErrNoData)
	}
}
