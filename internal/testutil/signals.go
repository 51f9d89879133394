// Package testutil provides synthetic diagnostics traces shared by the
// analysis package tests.
package testutil

import "math"

// RetardingSweep builds a one-sided analyzer IV trace on an integer
// voltage axis: saturation current sat at low voltage, a smooth tanh
// falloff of the given width centered at the knee. Its negated smoothed
// gradient is a single clean drift peak.
func RetardingSweep(n int, knee, width, sat float64) (volt, curr []float64) {
	volt = make([]float64, n)
	curr = make([]float64, n)
	for i := range volt {
		volt[i] = float64(i)
		curr[i] = sat * (1 - math.Tanh((volt[i]-knee)/width))
	}
	return volt, curr
}

// RotationTrace builds an integrated B-dot waveform: a unit sinusoid of
// the given period delayed by shift samples, wrapping around like a
// periodic acquisition.
func RotationTrace(n, period, shift int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * float64(i-shift) / float64(period))
	}
	return out
}

// DC generates a constant-valued trace, standing in for a dead channel.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}
