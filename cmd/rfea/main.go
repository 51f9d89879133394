// Command rfea runs the retarding-field energy analyzer batch analysis for
// one catalogued run: it conditionally averages the analyzer currents
// against the integrated B-dot reference, fits exponential ion
// temperatures, joins the dual-probe distribution function and writes the
// result plots.
//
// Usage:
//
//	rfea [flags]
//
// Examples:
//
//	rfea -config run702.json
//	rfea -run 706 -out plots/706
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/plasmadsp/rfea/dsp/smooth"
	"github.com/plasmadsp/rfea/fit"
	"github.com/plasmadsp/rfea/lapd"
	"github.com/plasmadsp/rfea/measure/condavg"
	"github.com/plasmadsp/rfea/measure/dfunc"
	"github.com/plasmadsp/rfea/progress"
	"github.com/plasmadsp/rfea/render"
)

func main() {
	configFilename := flag.String("config", "", "configuration file path")
	run := flag.String("run", "", "run id, overrides the configuration file")
	out := flag.String("out", "", "output directory, overrides the configuration file")
	flag.Parse()

	logger := slog.New(NewHandler(os.Stdout, nil))

	config, err := LoadConfiguration(*configFilename)
	if err != nil {
		logger.Error(err.Error(), "module", "config")
		os.Exit(1)
	}
	if *run != "" {
		config.Run = *run
	}
	if *out != "" {
		config.OutDir = *out
	}
	printConfiguration(config, logger)

	if err := analyze(config, logger); err != nil {
		logger.Error(err.Error(), "module", "rfea")
		os.Exit(1)
	}
}

func analyze(config Configuration, logger *slog.Logger) error {
	catalog := lapd.DefaultCatalog()
	if config.Catalog != "" {
		var err error
		catalog, err = lapd.LoadCatalog(config.Catalog)
		if err != nil {
			return err
		}
	}

	path, err := catalog.Locate(config.Run)
	if err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("Run %s: %s", config.Run, catalog.Describe(config.Run)), "module", "catalog")

	var reader lapd.HDF5Reader
	raw, err := reader.ReadRun(path, lapd.ReadConfig{
		NSteps:   config.NSteps,
		NShots:   config.NShots,
		Channels: []int{config.ChanBdot, config.ChanLeft, config.ChanRight},
	})
	if err != nil {
		return err
	}
	bdot, left, right := raw.Channels[0], raw.Channels[1], raw.Channels[2]

	bint, err := bdot.MapTraces(func(trace []float64) ([]float64, error) {
		return smooth.Cumtrapz(trace, raw.Meta.Dt)
	})
	if err != nil {
		return err
	}

	voltL, err := lapd.StepVoltages(left, lapd.Window{}, config.VoltGain)
	if err != nil {
		return err
	}
	voltR, err := lapd.StepVoltages(right, lapd.Window{}, config.VoltGain)
	if err != nil {
		return err
	}

	opts := condavg.Options{
		Window:    lapd.Window{T1: config.Window[0], T2: config.Window[1]},
		BWindow:   lapd.Window{T1: config.BWindow[0], T2: config.BWindow[1]},
		Ref:       condavg.RefShot{Step: config.RefStep, Shot: config.RefShot},
		Threshold: config.Threshold,
		Reporter:  progress.NewBar(os.Stderr),
	}

	logger.Info("Conditional averaging left analyzer", "module", "condavg")
	avgL, err := condavg.Average(left, bint, opts)
	if err != nil {
		return err
	}
	reportAverage(avgL, "left", logger)

	logger.Info("Conditional averaging right analyzer", "module", "condavg")
	avgR, err := condavg.Average(right, bint, opts)
	if err != nil {
		return err
	}
	reportAverage(avgR, "right", logger)

	if err := os.MkdirAll(config.OutDir, 0o755); err != nil {
		return err
	}

	w := opts.Window.OrFull(left.NT)
	timeMs := func(t int) float64 { return raw.Meta.Time[w.T1+t] * 1e3 }

	if err := plotProfile(config, avgL, voltL, timeMs, logger); err != nil {
		return err
	}
	if err := plotSeries(config, avgL, avgR, voltL, voltR, timeMs, logger); err != nil {
		return err
	}
	return nil
}

func reportAverage(res *condavg.Result, side string, logger *slog.Logger) {
	logger.Info(fmt.Sprintf("Rejection rate %s: %.1f%%", side, 100*res.RejectionRate()),
		"module", "condavg")
	for _, step := range res.DegenerateSteps {
		logger.Warn(fmt.Sprintf("Step %d (%s) lost every shot", step, side), "module", "condavg")
	}
}

// plotProfile fits the exponential tail Ti profile on the left analyzer
// and writes the Ti and Vp time series.
func plotProfile(config Configuration, avg *condavg.Result, volt []float64,
	timeMs func(int) float64, logger *slog.Logger) error {

	logger.Info("Fitting exponential Ti profile", "module", "fit")
	profile, err := fit.TiProfile(volt, avg.Mean, fit.TiProfileConfig{
		Stride:   config.Stride,
		Res:      config.Res,
		Reporter: progress.NewBar(os.Stderr),
	})
	if err != nil {
		return err
	}

	times := make([]float64, len(profile))
	ti := make([]float64, len(profile))
	vp := make([]float64, len(profile))
	fitted := 0
	for i, p := range profile {
		times[i] = timeMs(p.T)
		ti[i], vp[i] = p.Ti, p.Vp
		if p.OK {
			fitted++
		}
	}
	logger.Info(fmt.Sprintf("Fitted %d of %d slices", fitted, len(profile)), "module", "fit")

	if err := render.Line(filepath.Join(config.OutDir, "ti_exp.png"), render.LineOpts{
		Title:  fmt.Sprintf("Run %s: exponential-tail Ti", config.Run),
		XLabel: "Time [ms]",
		YLabel: "Ti [eV]",
	}, times, ti); err != nil {
		return err
	}
	return render.Line(filepath.Join(config.OutDir, "vp.png"), render.LineOpts{
		Title:  fmt.Sprintf("Run %s: plasma potential", config.Run),
		XLabel: "Time [ms]",
		YLabel: "Vp [V]",
	}, times, vp)
}

// plotSeries joins the dual-probe distribution function over time and
// writes the energy-integral Ti series, a sample of IV curves and, when
// configured, the distribution-function animation.
func plotSeries(config Configuration, avgL, avgR *condavg.Result, voltL, voltR []float64,
	timeMs func(int) float64, logger *slog.Logger) error {

	logger.Info("Joining distribution functions", "module", "dfunc")
	series, err := dfunc.TiSeries(voltL, voltR, avgL.Mean, avgR.Mean, dfunc.SeriesConfig{
		Stride:   config.Stride,
		Reporter: progress.NewBar(os.Stderr),
	})
	if err != nil {
		return err
	}

	times := make([]float64, len(series))
	for i := range series {
		times[i] = timeMs(i * config.Stride)
	}
	if err := render.Line(filepath.Join(config.OutDir, "ti_enint.png"), render.LineOpts{
		Title:  fmt.Sprintf("Run %s: energy-integral Ti", config.Run),
		XLabel: "Time [ms]",
		YLabel: "Ti [eV]",
	}, times, series); err != nil {
		return err
	}

	nt := len(avgL.Mean)
	slices := []int{0, nt / 2, nt - 1}
	if err := render.IVCurves(filepath.Join(config.OutDir, "iv.png"), voltL, avgL.Mean, slices,
		func(t int) string { return fmt.Sprintf("t = %.3f ms", timeMs(t)) }); err != nil {
		return err
	}

	if !config.Animate {
		return nil
	}

	var frames []render.Frame
	for t := 0; t < nt; t += config.Stride {
		j, err := dfunc.Join(
			dfunc.Side{Volt: voltL, Curr: avgL.Mean[t]},
			dfunc.Side{Volt: voltR, Curr: avgR.Mean[t]},
			dfunc.JoinConfig{})
		switch {
		case err == nil:
			frames = append(frames, render.Frame{
				Label: fmt.Sprintf("t = %.3f ms", timeMs(t)),
				Volt:  j.Volt,
				F:     j.F,
			})
		case errors.Is(err, dfunc.ErrDegenerateSplice):
			logger.Warn(fmt.Sprintf("Slice %d: degenerate splice, frame skipped", t), "module", "dfunc")
		default:
			return err
		}
	}
	if len(frames) == 0 {
		logger.Warn("No joinable slices, animation skipped", "module", "dfunc")
		return nil
	}
	logger.Info(fmt.Sprintf("Writing %d animation frames", len(frames)), "module", "render")
	return render.AnimateDistFunc(filepath.Join(config.OutDir, "dfunc.gif"), frames)
}
