// Package condavg phase-aligns and averages RFEA current shots using the
// integrated B-field as the phase reference.
//
// Flux-rope shots are not triggered at a fixed rotation phase, so a plain
// shot average smears out the periodic dynamics. Conditional averaging
// fixes this: every shot's B trace is cross-correlated against a reference
// shot, the detected lag is undone on the current trace with a wrap-around
// shift, and shots whose correlation peak falls below the caller's
// threshold are excluded. The per-step mean is renormalized over the shots
// actually kept.
package condavg

import (
	"errors"
	"fmt"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/plasmadsp/rfea/dsp/xcorr"
	"github.com/plasmadsp/rfea/lapd"
	"github.com/plasmadsp/rfea/progress"
)

// Errors returned by Average.
var (
	ErrShapeMismatch = errors.New("condavg: current and B datasets must share a shape")
	ErrBadReference  = errors.New("condavg: invalid reference selection")
	ErrNoThreshold   = errors.New("condavg: correlation threshold must be in (0, 1]")
)

// RefShot selects the reference trace by position in the dataset.
type RefShot struct {
	Step int
	Shot int
}

// Options configures one averaging run.
//
// Threshold is the minimum correlation peak for a shot to be kept. It is
// deliberately required rather than defaulted: usable values differ per
// dataset (0.7 and 0.8 are both in routine use) and a silently applied
// default has caused confusion before. Window bounds the averaged current
// in time, BWindow bounds the B traces used for lag estimation; an unset
// BWindow follows Window, an unset Window means the full time axis.
type Options struct {
	Window    lapd.Window
	BWindow   lapd.Window
	Ref       RefShot
	RefTrace  []float64
	Threshold float64
	Reporter  progress.Reporter
}

// Result is one conditional-averaging run.
//
// Mean is time-major: Mean[t][step] is the averaged current at windowed
// time t and sweep step, normalized over kept shots only. Steps that lost
// every shot are listed in DegenerateSteps and their Mean column is all
// zeros; callers must consult the list rather than trust those columns.
type Result struct {
	Mean      [][]float64
	Reference []float64
	Rejected  []int
	NShots    int

	DegenerateSteps  []int
	DefaultedWindow  bool
	DefaultedBWindow bool
}

// RejectionRate is the fraction of shots discarded across all steps.
func (r *Result) RejectionRate() float64 {
	var total int
	for _, n := range r.Rejected {
		total += n
	}
	return float64(total) / float64(len(r.Rejected)*r.NShots)
}

// Degenerate reports whether a step lost all of its shots.
func (r *Result) Degenerate(step int) bool {
	for _, s := range r.DegenerateSteps {
		if s == step {
			return true
		}
	}
	return false
}

// Average aligns every shot of curr to the reference B trace and returns
// the per-step means. curr holds the analyzer current, bint the integrated
// B-field, with identical (time, step, shot) shapes. Per-shot alignment
// failures are counted and excluded, never fatal; only shape and option
// errors abort.
func Average(curr, bint *lapd.Dataset, opts Options) (*Result, error) {
	if curr.NT != bint.NT || curr.NSteps != bint.NSteps || curr.NShots != bint.NShots {
		return nil, fmt.Errorf("%w: current (%d, %d, %d), B (%d, %d, %d)",
			ErrShapeMismatch, curr.NT, curr.NSteps, curr.NShots, bint.NT, bint.NSteps, bint.NShots)
	}
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		return nil, fmt.Errorf("%w: %v", ErrNoThreshold, opts.Threshold)
	}
	if opts.Reporter == nil {
		opts.Reporter = progress.Nop{}
	}

	res := &Result{
		NShots:           curr.NShots,
		Rejected:         make([]int, curr.NSteps),
		DefaultedWindow:  opts.Window.IsZero(),
		DefaultedBWindow: opts.BWindow.IsZero(),
	}

	w := opts.Window.OrFull(curr.NT)
	if err := w.Validate(curr.NT); err != nil {
		return nil, err
	}
	bw := opts.BWindow
	if bw.IsZero() {
		bw = w
	}
	if err := bw.Validate(bint.NT); err != nil {
		return nil, err
	}

	bref, err := reference(bint, bw, opts)
	if err != nil {
		return nil, err
	}
	res.Reference = bref

	nt := w.Len()
	perStep := make([][]float64, curr.NSteps)

	for step := 0; step < curr.NSteps; step++ {
		acc := make([]float64, nt)

		for shot := 0; shot < curr.NShots; shot++ {
			opts.Reporter.Step([]int{step, shot}, []int{curr.NSteps, curr.NShots},
				[]string{"nsteps", "nshots"})

			bsig, err := bint.TraceWindow(step, shot, bw)
			if err != nil {
				return nil, err
			}
			lag, err := xcorr.EstimateLag(bref, bsig, opts.Threshold)
			if err != nil {
				return nil, err
			}
			if !lag.Valid {
				res.Rejected[step]++
				continue
			}

			trace, err := curr.TraceWindow(step, shot, w)
			if err != nil {
				return nil, err
			}
			vecmath.AddBlockInPlace(acc, xcorr.Roll(trace, -lag.Offset))
		}

		kept := curr.NShots - res.Rejected[step]
		if kept == 0 {
			// The zero column stays; the step is flagged instead of
			// silently averaging nothing.
			res.DegenerateSteps = append(res.DegenerateSteps, step)
		} else {
			vecmath.ScaleBlockInPlace(acc, 1/float64(kept))
		}
		perStep[step] = acc
	}

	res.Mean = make([][]float64, nt)
	for t := 0; t < nt; t++ {
		row := make([]float64, curr.NSteps)
		for step := 0; step < curr.NSteps; step++ {
			row[step] = perStep[step][t]
		}
		res.Mean[t] = row
	}
	return res, nil
}

// reference resolves the phase reference: an explicit trace when supplied,
// otherwise the windowed B trace of the configured (step, shot).
func reference(bint *lapd.Dataset, bw lapd.Window, opts Options) ([]float64, error) {
	if opts.RefTrace != nil {
		if len(opts.RefTrace) != bw.Len() {
			return nil, fmt.Errorf("%w: reference trace has %d samples, window holds %d",
				ErrBadReference, len(opts.RefTrace), bw.Len())
		}
		return opts.RefTrace, nil
	}

	if opts.Ref.Step < 0 || opts.Ref.Step >= bint.NSteps ||
		opts.Ref.Shot < 0 || opts.Ref.Shot >= bint.NShots {
		return nil, fmt.Errorf("%w: shot (%d, %d) outside (%d, %d)",
			ErrBadReference, opts.Ref.Step, opts.Ref.Shot, bint.NSteps, bint.NShots)
	}
	return bint.TraceWindow(opts.Ref.Step, opts.Ref.Shot, bw)
}
