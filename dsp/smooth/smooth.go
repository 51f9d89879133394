package smooth

import "errors"

// Errors returned by smoothing kernels.
var (
	ErrEmptyInput      = errors.New("smooth: empty input")
	ErrInvalidWindow   = errors.New("smooth: window must be a positive odd number")
	ErrWindowTooLarge  = errors.New("smooth: window exceeds signal length")
	ErrInvalidRepeat   = errors.New("smooth: repeat must be >= 0")
	ErrWindowTooSmall  = errors.New("smooth: window leaves too few samples after trimming")
	ErrInvalidTimeStep = errors.New("smooth: time step must be positive")
)

// Smooth applies a centered moving average of odd size window and returns a
// new slice of the same length. Near the edges the window shrinks
// symmetrically so every output sample is the mean of an odd number of
// input samples centered on it. window=1 returns an unmodified copy.
func Smooth(signal []float64, window int) ([]float64, error) {
	if err := validate(signal, window); err != nil {
		return nil, err
	}

	out := make([]float64, len(signal))
	smoothTo(out, signal, window)
	return out, nil
}

// SmoothRepeat applies Smooth repeat times. repeat=0 returns an unmodified
// copy. Repeated passes of the moving average converge towards a gaussian
// response, approximating a Savitzky-Golay filter of the same support.
func SmoothRepeat(signal []float64, window, repeat int) ([]float64, error) {
	if repeat < 0 {
		return nil, ErrInvalidRepeat
	}
	if err := validate(signal, window); err != nil {
		return nil, err
	}

	cur := make([]float64, len(signal))
	copy(cur, signal)
	if repeat == 0 || window == 1 {
		return cur, nil
	}

	next := make([]float64, len(signal))
	for i := 0; i < repeat; i++ {
		smoothTo(next, cur, window)
		cur, next = next, cur
	}
	return cur, nil
}

// smoothTo writes the moving average of src into dst. The half-window
// shrinks near the edges so the kernel stays centered.
func smoothTo(dst, src []float64, window int) {
	n := len(src)
	half := window / 2

	// Running sum over the full-window interior, direct sums at the edges.
	for i := 0; i < n; i++ {
		h := half
		if i < h {
			h = i
		}
		if n-1-i < h {
			h = n - 1 - i
		}

		var sum float64
		for j := i - h; j <= i+h; j++ {
			sum += src[j]
		}
		dst[i] = sum / float64(2*h+1)
	}
}

// Gradient returns the negated discrete first derivative of signal, same
// length as the input. Interior samples use central differences, the two
// edge samples use one-sided differences. A constant signal maps to all
// zeros. Inputs shorter than two samples have no derivative estimate and
// return a zero slice of the same length.
func Gradient(signal []float64) []float64 {
	n := len(signal)
	out := make([]float64, n)
	if n < 2 {
		return out
	}

	out[0] = -(signal[1] - signal[0])
	out[n-1] = -(signal[n-1] - signal[n-2])
	for i := 1; i < n-1; i++ {
		out[i] = -(signal[i+1] - signal[i-1]) / 2
	}
	return out
}

// Trim holds a smoothed curve and its negated gradient with the smoothing
// edge loss of window/2 samples removed from each end. X maps every output
// sample back to its index in the original trace.
type Trim struct {
	X    []int
	Y    []float64
	Grad []float64
}

// Trimmed smooths signal repeat times with the given window, takes the
// negated gradient, and cuts window/2 samples from each end where the
// shrunken edge kernels bias the estimate. The result is 2*(window/2)
// samples shorter than the input; windows that leave fewer than two
// samples, too few for a difference estimate, return ErrWindowTooSmall.
func Trimmed(signal []float64, window, repeat int) (Trim, error) {
	sm, err := SmoothRepeat(signal, window, repeat)
	if err != nil {
		return Trim{}, err
	}

	half := window / 2
	n := len(signal) - 2*half
	if n < 2 {
		return Trim{}, ErrWindowTooSmall
	}

	grad := Gradient(sm)

	tr := Trim{
		X:    make([]int, n),
		Y:    make([]float64, n),
		Grad: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		tr.X[i] = i + half
	}
	copy(tr.Y, sm[half:len(sm)-half])
	copy(tr.Grad, grad[half:len(grad)-half])
	return tr, nil
}

// Cumtrapz returns the cumulative trapezoidal integral of signal sampled at
// a fixed interval dt. The output has the same length; the first sample is
// zero. Used to integrate raw B-dot traces into B before phase alignment.
func Cumtrapz(signal []float64, dt float64) ([]float64, error) {
	if len(signal) == 0 {
		return nil, ErrEmptyInput
	}
	if dt <= 0 {
		return nil, ErrInvalidTimeStep
	}

	out := make([]float64, len(signal))
	for i := 1; i < len(signal); i++ {
		out[i] = out[i-1] + 0.5*dt*(signal[i]+signal[i-1])
	}
	return out, nil
}

func validate(signal []float64, window int) error {
	if len(signal) == 0 {
		return ErrEmptyInput
	}
	if window < 1 || window%2 == 0 {
		return ErrInvalidWindow
	}
	if window > len(signal) {
		return ErrWindowTooLarge
	}
	return nil
}
