// Package smooth provides the low-level smoothing and differentiation
// kernels used on RFEA current sweeps and B-dot traces.
//
// The workhorse is a centered moving average of odd window size. Repeating
// the pass several times approximates a Savitzky-Golay filter while keeping
// the kernel trivially cheap; this matches how sweep data is conditioned
// before gradient extraction. Gradients are negated by convention, because
// the quantity of interest is -dI/dV (the ion distribution-function proxy).
//
// All kernels operate on real-valued samples. NaN or Inf input is undefined
// behaviour; callers are expected to pre-filter raw digitizer data.
//
// # Usage
//
//	y, err := smooth.SmoothRepeat(curr, 41, 3)
//	grad := smooth.Gradient(y)          // -dI/dV, same length
//
// or, with the edge loss of the window trimmed off and the matching index
// axis returned:
//
//	tr, err := smooth.Trimmed(curr, 41, 3)
//	// tr.X[i] indexes into the original trace for tr.Y[i] and tr.Grad[i]
package smooth
