package lapd

import (
	"fmt"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

// ReadConfig selects what to read from a datarun file. NSteps and NShots
// come from the run log; the file's data extent must agree with them, which
// catches reading a plane run with line-run parameters early. Channels are
// digitizer channel numbers in the order the caller wants them back.
type ReadConfig struct {
	NSteps   int
	NShots   int
	Channels []int
}

// Raw is one datarun in memory: a dataset per requested channel, in request
// order, plus the metadata read alongside.
type Raw struct {
	Channels []*Dataset
	Meta     Metadata
}

// Reader reads dataruns. Implementations other than the HDF5 file reader
// exist only in tests; analysis code depends on this interface so it stays
// testable without digitizer files.
type Reader interface {
	ReadRun(path string, cfg ReadConfig) (*Raw, error)
}

// HDF5Reader reads datarun files written by the LAPD acquisition system.
// The sample data lives in a 4-D "data" extent ordered (time, shot,
// channel, step); it is transposed here into the (time, step, shot)
// convention the analysis code uses.
type HDF5Reader struct{}

// ReadRun opens path and extracts the configured channels.
func (HDF5Reader) ReadRun(path string, cfg ReadConfig) (*Raw, error) {
	if cfg.NSteps <= 0 || cfg.NShots <= 0 {
		return nil, fmt.Errorf("%w: (steps %d, shots %d)", ErrBadShape, cfg.NSteps, cfg.NShots)
	}
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("lapd: no channels requested")
	}

	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("lapd: open %s: %w", path, err)
	}
	defer f.Close()

	nt, nchan, flat, err := readDataExtent(f, cfg)
	if err != nil {
		return nil, fmt.Errorf("lapd: %s: %w", path, err)
	}

	raw := &Raw{Channels: make([]*Dataset, len(cfg.Channels))}
	for i, ch := range cfg.Channels {
		if ch < 0 || ch >= nchan {
			return nil, fmt.Errorf("%w: channel %d of %d", ErrIndexRange, ch, nchan)
		}
		raw.Channels[i], err = transposeChannel(flat, nt, cfg.NSteps, cfg.NShots, nchan, ch)
		if err != nil {
			return nil, err
		}
	}

	if err := readMetadata(f, nt, cfg.NSteps, &raw.Meta); err != nil {
		return nil, fmt.Errorf("lapd: %s: %w", path, err)
	}
	return raw, nil
}

// readDataExtent reads the full "data" extent and checks its shape against
// the configured step and shot counts.
func readDataExtent(f *hdf5.File, cfg ReadConfig) (nt, nchan int, flat []float64, err error) {
	dset, err := f.OpenDataset("data")
	if err != nil {
		return 0, 0, nil, fmt.Errorf("open data extent: %w", err)
	}
	defer dset.Close()

	dims, _, err := dset.Space().SimpleExtentDims()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("query data extent: %w", err)
	}
	if len(dims) != 4 {
		return 0, 0, nil, fmt.Errorf("%w: data extent has %d dimensions, want 4", ErrShapeData, len(dims))
	}

	nt, nchan = int(dims[0]), int(dims[2])
	if int(dims[1]) != cfg.NShots || int(dims[3]) != cfg.NSteps {
		return 0, 0, nil, fmt.Errorf("%w: file holds (shots %d, steps %d), configured (shots %d, steps %d)",
			ErrShapeData, dims[1], dims[3], cfg.NShots, cfg.NSteps)
	}

	flat = make([]float64, nt*cfg.NShots*nchan*cfg.NSteps)
	if err := dset.Read(&flat); err != nil {
		return 0, 0, nil, fmt.Errorf("read data extent: %w", err)
	}
	return nt, nchan, flat, nil
}

// transposeChannel pulls one channel out of the acquisition-ordered flat
// array (time, shot, channel, step) into a (time, step, shot) dataset.
func transposeChannel(flat []float64, nt, nsteps, nshots, nchan, ch int) (*Dataset, error) {
	out, err := Zeros(nt, nsteps, nshots)
	if err != nil {
		return nil, err
	}

	for t := 0; t < nt; t++ {
		for shot := 0; shot < nshots; shot++ {
			base := ((t*nshots+shot)*nchan + ch) * nsteps
			for step := 0; step < nsteps; step++ {
				out.SetAt(t, step, shot, flat[base+step])
			}
		}
	}
	return out, nil
}

// readMetadata fills in the time axis, sampling interval, and probe
// positions. The time axis and dt are required; positions are optional
// (line runs record them, fixed-position runs do not).
func readMetadata(f *hdf5.File, nt, nsteps int, meta *Metadata) error {
	var err error
	if meta.Time, err = readVector(f, "time", nt); err != nil {
		return err
	}

	dt, err := readVector(f, "dt", 1)
	if err != nil {
		return err
	}
	meta.Dt = dt[0]

	meta.X, _ = readVector(f, "x", nsteps)
	meta.Y, _ = readVector(f, "y", nsteps)
	return nil
}

func readVector(f *hdf5.File, name string, want int) ([]float64, error) {
	dset, err := f.OpenDataset(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer dset.Close()

	dims, _, err := dset.Space().SimpleExtentDims()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	n := 1
	for _, d := range dims {
		n *= int(d)
	}
	if n != want {
		return nil, fmt.Errorf("%w: %s has %d samples, want %d", ErrShapeData, name, n, want)
	}

	out := make([]float64, n)
	if err := dset.Read(&out); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return out, nil
}
