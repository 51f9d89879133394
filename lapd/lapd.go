// Package lapd models digitized LAPD experiment runs: 3-D datasets indexed
// by (time, step, shot), the metadata that travels with them, and the run
// catalog and HDF5 reader that produce them.
//
// A "step" is one point of a swept experimental parameter (typically the
// RFEA discriminator voltage); a "shot" is one repeated acquisition at that
// step. All shots in a dataset share the time axis and step count. The
// in-memory layout is time-major, so a single shot's trace is strided, and
// Trace copies it out contiguously.
package lapd

import (
	"errors"
	"fmt"
)

// Errors shared by the dataset model and its producers.
var (
	ErrBadShape     = errors.New("lapd: dataset dimensions must be positive")
	ErrShapeData    = errors.New("lapd: data length does not match dimensions")
	ErrIndexRange   = errors.New("lapd: index out of range")
	ErrInvalidSpan  = errors.New("lapd: window bounds must satisfy 0 <= T1 < T2")
	ErrTraceLength  = errors.New("lapd: mapped trace changed length")
	ErrRunNotFound  = errors.New("lapd: run not found")
	ErrEmptyCatalog = errors.New("lapd: catalog has no entries")
)

// Dataset is one channel of a run, shaped (time, step, shot). Values are
// stored flat in time-major order. Treat a Dataset as immutable once read;
// MapTraces returns a transformed copy.
type Dataset struct {
	NT     int
	NSteps int
	NShots int

	data []float64
}

// NewDataset wraps flat time-major data in a Dataset. The flat layout is
// data[t*nsteps*nshots + step*nshots + shot]. The slice is retained, not
// copied.
func NewDataset(nt, nsteps, nshots int, data []float64) (*Dataset, error) {
	if nt <= 0 || nsteps <= 0 || nshots <= 0 {
		return nil, fmt.Errorf("%w: (%d, %d, %d)", ErrBadShape, nt, nsteps, nshots)
	}
	if len(data) != nt*nsteps*nshots {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrShapeData, len(data), nt*nsteps*nshots)
	}
	return &Dataset{NT: nt, NSteps: nsteps, NShots: nshots, data: data}, nil
}

// Zeros returns an all-zero dataset of the given shape.
func Zeros(nt, nsteps, nshots int) (*Dataset, error) {
	return NewDataset(nt, nsteps, nshots, make([]float64, nt*nsteps*nshots))
}

// At returns the sample at (t, step, shot).
func (d *Dataset) At(t, step, shot int) float64 {
	return d.data[d.index(t, step, shot)]
}

// SetAt stores a sample at (t, step, shot). Intended for dataset assembly;
// analysis code should treat datasets as read-only.
func (d *Dataset) SetAt(t, step, shot int, v float64) {
	d.data[d.index(t, step, shot)] = v
}

func (d *Dataset) index(t, step, shot int) int {
	if t < 0 || t >= d.NT || step < 0 || step >= d.NSteps || shot < 0 || shot >= d.NShots {
		panic(fmt.Sprintf("lapd: index (%d, %d, %d) outside (%d, %d, %d)",
			t, step, shot, d.NT, d.NSteps, d.NShots))
	}
	return t*d.NSteps*d.NShots + step*d.NShots + shot
}

// Trace copies out the full time series of one (step, shot) pair.
func (d *Dataset) Trace(step, shot int) []float64 {
	out := make([]float64, d.NT)
	stride := d.NSteps * d.NShots
	base := step*d.NShots + shot
	for t := 0; t < d.NT; t++ {
		out[t] = d.data[t*stride+base]
	}
	return out
}

// TraceWindow copies out the [w.T1, w.T2) slice of one trace. A zero window
// means the full time axis.
func (d *Dataset) TraceWindow(step, shot int, w Window) ([]float64, error) {
	w = w.OrFull(d.NT)
	if err := w.Validate(d.NT); err != nil {
		return nil, err
	}

	out := make([]float64, w.T2-w.T1)
	stride := d.NSteps * d.NShots
	base := step*d.NShots + shot
	for t := w.T1; t < w.T2; t++ {
		out[t-w.T1] = d.data[t*stride+base]
	}
	return out, nil
}

// MapTraces applies fn to every (step, shot) trace and assembles the
// results into a new dataset of the same shape. Used to turn raw B-dot
// data into integrated B before alignment. fn must preserve trace length.
func (d *Dataset) MapTraces(fn func(trace []float64) ([]float64, error)) (*Dataset, error) {
	out, err := Zeros(d.NT, d.NSteps, d.NShots)
	if err != nil {
		return nil, err
	}

	for step := 0; step < d.NSteps; step++ {
		for shot := 0; shot < d.NShots; shot++ {
			mapped, err := fn(d.Trace(step, shot))
			if err != nil {
				return nil, fmt.Errorf("lapd: map trace (step %d, shot %d): %w", step, shot, err)
			}
			if len(mapped) != d.NT {
				return nil, fmt.Errorf("%w: (step %d, shot %d): %d -> %d",
					ErrTraceLength, step, shot, d.NT, len(mapped))
			}
			stride := d.NSteps * d.NShots
			base := step*d.NShots + shot
			for t := 0; t < d.NT; t++ {
				out.data[t*stride+base] = mapped[t]
			}
		}
	}
	return out, nil
}

// Window is a half-open sample range [T1, T2) on the time axis. The zero
// value means "full axis"; defaults are resolved once via OrFull at the
// call boundary, never deep inside analysis loops.
type Window struct {
	T1 int
	T2 int
}

// IsZero reports whether the window is unset.
func (w Window) IsZero() bool { return w.T1 == 0 && w.T2 == 0 }

// OrFull resolves an unset window to the full [0, nt) range.
func (w Window) OrFull(nt int) Window {
	if w.IsZero() {
		return Window{0, nt}
	}
	return w
}

// Len returns the number of samples in the window.
func (w Window) Len() int { return w.T2 - w.T1 }

// Validate checks the window against a time-axis length.
func (w Window) Validate(nt int) error {
	if w.T1 < 0 || w.T2 > nt || w.T1 >= w.T2 {
		return fmt.Errorf("%w: [%d, %d) against nt=%d", ErrInvalidSpan, w.T1, w.T2, nt)
	}
	return nil
}

// Metadata is the per-run context read alongside the sample data.
type Metadata struct {
	Time []float64 // time axis [s], length NT
	Dt   float64   // sampling interval [s]
	X    []float64 // probe x position per step [cm]
	Y    []float64 // probe y position per step [cm]
	Desc string    // free-text datarun description
}
