package condavg

import (
	"errors"
	"math"
	"testing"

	"github.com/plasmadsp/rfea/dsp/xcorr"
	"github.com/plasmadsp/rfea/internal/testutil"
	"github.com/plasmadsp/rfea/lapd"
)

const (
	nt     = 1000
	nsteps = 4
	nshots = 10
	period = 100
)

// buildShifted fills B and current datasets where shot (step, shot) is the
// base waveform delayed by shift(step, shot) samples. Both waveforms have
// the same period so any detected lag alias realigns them exactly.
func buildShifted(t *testing.T, shift func(step, shot int) int) (curr, bint *lapd.Dataset) {
	t.Helper()

	bbase := testutil.RotationTrace(nt, period, 0)
	cbase := make([]float64, nt)
	for i := range cbase {
		cbase[i] = math.Cos(2*math.Pi*float64(i)/period) + 2
	}

	curr, err := lapd.Zeros(nt, nsteps, nshots)
	if err != nil {
		t.Fatal(err)
	}
	bint, err = lapd.Zeros(nt, nsteps, nshots)
	if err != nil {
		t.Fatal(err)
	}

	for step := 0; step < nsteps; step++ {
		for shot := 0; shot < nshots; shot++ {
			k := shift(step, shot)
			b := xcorr.Roll(bbase, k)
			c := xcorr.Roll(cbase, k)
			for ti := 0; ti < nt; ti++ {
				bint.SetAt(ti, step, shot, b[ti])
				curr.SetAt(ti, step, shot, c[ti])
			}
		}
	}
	return curr, bint
}

func TestAverageRealignsShiftedShots(t *testing.T) {
	curr, bint := buildShifted(t, func(step, shot int) int {
		return 3*shot + step
	})

	res, err := Average(curr, bint, Options{Threshold: 0.7})
	if err != nil {
		t.Fatal(err)
	}

	for step, n := range res.Rejected {
		if n != 0 {
			t.Fatalf("step %d: %d shots rejected, want 0", step, n)
		}
	}
	if res.RejectionRate() != 0 {
		t.Errorf("rejection rate = %v, want 0", res.RejectionRate())
	}
	if len(res.DegenerateSteps) != 0 {
		t.Errorf("degenerate steps = %v, want none", res.DegenerateSteps)
	}

	// Every realigned shot reproduces the reference waveform, so the mean
	// must too, for every step.
	for ti := 0; ti < nt; ti++ {
		want := math.Cos(2*math.Pi*float64(ti)/period) + 2
		testutil.RequireSliceNearlyEqual(t, res.Mean[ti], testutil.DC(want, nsteps), 1e-9)
	}
}

func TestAverageUnshiftedIsPlainMean(t *testing.T) {
	curr, bint := buildShifted(t, func(step, shot int) int { return 0 })

	// Give each shot a distinct constant current so the mean is checkable.
	for step := 0; step < nsteps; step++ {
		for shot := 0; shot < nshots; shot++ {
			for ti := 0; ti < nt; ti++ {
				curr.SetAt(ti, step, shot, float64(shot+1))
			}
		}
	}

	res, err := Average(curr, bint, Options{Threshold: 0.7})
	if err != nil {
		t.Fatal(err)
	}

	want := 0.0
	for shot := 0; shot < nshots; shot++ {
		want += float64(shot + 1)
	}
	want /= nshots

	testutil.RequireSliceNearlyEqual(t, res.Mean[0], testutil.DC(want, nsteps), 1e-9)
}

func TestAverageRenormalizesOverKeptShots(t *testing.T) {
	curr, bint := buildShifted(t, func(step, shot int) int { return 0 })

	// Shot 7 of step 2 has a dead (flat) B trace, so no lag is defined for
	// it. Its current carries a poison value that must not leak into the
	// mean.
	dead := testutil.DC(0.5, nt)
	poison := testutil.DC(1000, nt)
	for ti := 0; ti < nt; ti++ {
		bint.SetAt(ti, 2, 7, dead[ti])
		curr.SetAt(ti, 2, 7, poison[ti])
	}
	for step := 0; step < nsteps; step++ {
		for shot := 0; shot < nshots; shot++ {
			if step == 2 && shot == 7 {
				continue
			}
			for ti := 0; ti < nt; ti++ {
				curr.SetAt(ti, step, shot, 1)
			}
		}
	}

	res, err := Average(curr, bint, Options{Threshold: 0.7})
	if err != nil {
		t.Fatal(err)
	}

	if res.Rejected[2] != 1 {
		t.Fatalf("step 2 rejected = %d, want 1", res.Rejected[2])
	}
	// Mean of the 9 kept unit traces is exactly 1, not 9/10.
	if math.Abs(res.Mean[500][2]-1) > 1e-9 {
		t.Errorf("renormalized mean = %v, want 1", res.Mean[500][2])
	}
	if got := res.RejectionRate(); math.Abs(got-1.0/(nsteps*nshots)) > 1e-12 {
		t.Errorf("rejection rate = %v", got)
	}
}

func TestAverageFlagsDegenerateStep(t *testing.T) {
	curr, bint := buildShifted(t, func(step, shot int) int { return 0 })

	// Step 1 lost every B trace.
	for shot := 0; shot < nshots; shot++ {
		for ti := 0; ti < nt; ti++ {
			bint.SetAt(ti, 1, shot, 0)
		}
	}

	res, err := Average(curr, bint, Options{Threshold: 0.7})
	if err != nil {
		t.Fatal(err)
	}

	if !res.Degenerate(1) {
		t.Fatal("step 1 not flagged degenerate")
	}
	if res.Degenerate(0) || res.Degenerate(2) {
		t.Error("healthy steps flagged degenerate")
	}
	if res.Rejected[1] != nshots {
		t.Errorf("step 1 rejected = %d, want %d", res.Rejected[1], nshots)
	}
	for ti := 0; ti < nt; ti++ {
		if res.Mean[ti][1] != 0 {
			t.Fatalf("degenerate column has value %v at t=%d", res.Mean[ti][1], ti)
		}
	}
	// The healthy steps still averaged normally.
	if math.Abs(res.Mean[0][0]-3) > 1e-9 {
		t.Errorf("step 0 mean = %v, want 3", res.Mean[0][0])
	}
}

func TestAverageWindows(t *testing.T) {
	curr, bint := buildShifted(t, func(step, shot int) int { return 0 })

	res, err := Average(curr, bint, Options{
		Window:    lapd.Window{T1: 100, T2: 400},
		Threshold: 0.7,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Mean) != 300 {
		t.Fatalf("windowed mean has %d samples, want 300", len(res.Mean))
	}
	if res.DefaultedWindow {
		t.Error("explicit window reported as defaulted")
	}
	if !res.DefaultedBWindow {
		t.Error("unset B window not reported as defaulted")
	}
	// Window starts at t=100, a full period, so the waveform phase matches.
	want := math.Cos(2*math.Pi*100/period) + 2
	if math.Abs(res.Mean[0][0]-want) > 1e-9 {
		t.Errorf("windowed mean start = %v, want %v", res.Mean[0][0], want)
	}
}

func TestAverageExplicitReference(t *testing.T) {
	curr, bint := buildShifted(t, func(step, shot int) int { return 5 })

	// The reference comes from outside the dataset: the unshifted waveform.
	ref := testutil.RotationTrace(nt, period, 0)

	res, err := Average(curr, bint, Options{RefTrace: ref, Threshold: 0.7})
	if err != nil {
		t.Fatal(err)
	}

	// All shots share shift 5 against the external reference and realign
	// onto the unshifted current waveform.
	want := math.Cos(0) + 2
	if math.Abs(res.Mean[0][0]-want) > 1e-9 {
		t.Errorf("mean = %v, want %v", res.Mean[0][0], want)
	}
}

func TestAverageValidation(t *testing.T) {
	curr, bint := buildShifted(t, func(step, shot int) int { return 0 })

	small, err := lapd.Zeros(nt, nsteps, nshots-1)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		curr    *lapd.Dataset
		bint    *lapd.Dataset
		opts    Options
		wantErr error
	}{
		{"shape mismatch", curr, small, Options{Threshold: 0.7}, ErrShapeMismatch},
		{"missing threshold", curr, bint, Options{}, ErrNoThreshold},
		{"threshold above one", curr, bint, Options{Threshold: 1.2}, ErrNoThreshold},
		{"reference shot out of range", curr, bint,
			Options{Threshold: 0.7, Ref: RefShot{Step: nsteps, Shot: 0}}, ErrBadReference},
		{"reference trace wrong length", curr, bint,
			Options{Threshold: 0.7, RefTrace: make([]float64, 7)}, ErrBadReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Average(tt.curr, tt.bint, tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Average() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
