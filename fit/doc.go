// Package fit extracts plasma parameters from RFEA sweeps by nonlinear
// least squares.
//
// Two families of models are fitted with Levenberg-Marquardt:
//
//   - gaussian peaks on a distribution function (-dI/dV vs discriminator
//     voltage), used to separate a drifting ion population from a second
//     population or noise shoulder; see FitPeaks.
//   - an exponential decay on the IV curve above the plasma potential,
//     whose e-folding width in volts is the ion temperature in eV; see
//     FitExpDecay and TiProfile.
//
// Fit failures are recoverable: candidates that diverge or land
// outside their physical bounds are rejected, and callers fall back to
// simpler models or skip the time slice. Only malformed input (mismatched
// or empty arrays) is reported as a hard error.
package fit
