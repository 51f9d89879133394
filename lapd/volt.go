package lapd

// DefaultVoltGain converts the digitized discriminator-voltage channel to
// volts: 50x from the voltmeter divider, 2x from the 1M/50 Ohm digitizer
// impedance mismatch.
const DefaultVoltGain = 100.0

// DefaultVoltWindow is the mid-trace sample range averaged to recover the
// DC discriminator level, clear of the ramp-up and ramp-down transients.
var DefaultVoltWindow = Window{T1: 10000, T2: 35000}

// StepVoltages recovers the swept discriminator voltage per step by
// averaging the voltage channel over a quiet mid-trace window and all
// shots, then applying the probe gain. A zero window selects
// DefaultVoltWindow clamped to the trace length; gain 0 selects
// DefaultVoltGain.
func StepVoltages(d *Dataset, w Window, gain float64) ([]float64, error) {
	if w.IsZero() {
		w = DefaultVoltWindow
		if w.T1 >= d.NT {
			w = Window{0, d.NT}
		} else if w.T2 > d.NT {
			w.T2 = d.NT
		}
	}
	if err := w.Validate(d.NT); err != nil {
		return nil, err
	}
	if gain == 0 {
		gain = DefaultVoltGain
	}

	volt := make([]float64, d.NSteps)
	norm := float64(w.Len() * d.NShots)
	for step := 0; step < d.NSteps; step++ {
		var sum float64
		for shot := 0; shot < d.NShots; shot++ {
			for t := w.T1; t < w.T2; t++ {
				sum += d.At(t, step, shot)
			}
		}
		volt[step] = gain * sum / norm
	}
	return volt, nil
}
