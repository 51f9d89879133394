package lapd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Record describes one datarun file in a catalog: the directory it lives in
// relative to the catalog root, the file name, and a short description.
type Record struct {
	Dir  string `json:"dir"`
	File string `json:"file"`
	Desc string `json:"desc,omitempty"`
}

// Catalog maps run identifiers to datarun files. Identifiers are free-form
// strings so both plain run numbers ("710") and lettered reruns ("705a")
// work. A Catalog is a pure lookup table; Locate has no side effects.
type Catalog struct {
	Root string            `json:"root"`
	Runs map[string]Record `json:"runs"`
}

// LoadCatalog reads and validates a JSON catalog file. Every record must
// name a file; records missing one are reported with their run identifier.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lapd: read catalog: %w", err)
	}

	var c Catalog
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("lapd: parse catalog %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that the catalog is non-empty and every record names a
// file.
func (c *Catalog) Validate() error {
	if len(c.Runs) == 0 {
		return ErrEmptyCatalog
	}
	for id, rec := range c.Runs {
		if rec.File == "" {
			return fmt.Errorf("lapd: catalog run %q: missing file name", id)
		}
	}
	return nil
}

// Locate resolves a run identifier to a filesystem path. Unknown
// identifiers return ErrRunNotFound wrapped with the identifier; the caller
// decides whether that ends the batch.
func (c *Catalog) Locate(id string) (string, error) {
	rec, ok := c.Runs[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	return filepath.Join(c.Root, rec.Dir, rec.File), nil
}

// Describe returns the free-text description for a run, or "" when the run
// is unknown or undescribed.
func (c *Catalog) Describe(id string) string {
	return c.Runs[id].Desc
}

// DefaultCatalog returns the built-in table of flux-rope RFEA and B-dot
// dataruns from the Feb 2021 campaign. Site deployments load their own
// table with LoadCatalog; the built-in entries cover the runs the analysis
// examples reference.
func DefaultCatalog() *Catalog {
	const feb21 = "BAPSF_Data/TDS/21_Feb"

	return &Catalog{
		Root: "/data",
		Runs: map[string]Record{
			"702": {Dir: feb21, File: "02_fluxrope_100V_Isat34_Bdot37.hdf5",
				Desc: "100V flux rope, Isat 34, B-dot 37"},
			"703": {Dir: feb21, File: "03_fluxrope_80V_Isat34_Bdot37.hdf5",
				Desc: "80V flux rope, Isat 34, B-dot 37"},
			"710": {Dir: feb21, File: "10_fluxrope_120V_RFEA34.hdf5",
				Desc: "120V flux rope, RFEA 34 at (3.41, -0.02) cm"},
			"711": {Dir: feb21, File: "11_fluxrope_120V_RFEA34.hdf5",
				Desc: "120V flux rope, RFEA 34 at (0, 0) cm"},
			"712": {Dir: feb21, File: "12_fluxrope_120V_RFEA34.hdf5",
				Desc: "120V flux rope, RFEA 34 at (10, 0) cm"},
			"713": {Dir: feb21, File: "13_fluxrope_120V_RFEA34.hdf5",
				Desc: "RFEA facing main cathode"},
			"714": {Dir: feb21, File: "14_fluxrope_120V_RFEA34_up.hdf5",
				Desc: "RFEA facing up (+y)"},
			"715": {Dir: feb21, File: "15_fluxrope_120V_RFEA34_down.hdf5",
				Desc: "RFEA facing down (-y)"},
			"729": {Dir: feb21, File: "29_fluxrope_80V_RFEA34.hdf5",
				Desc: "80V flux rope discharge"},
			"747": {Dir: feb21, File: "47_fluxrope_RFEA30.hdf5",
				Desc: "RFEA 30 facing old LaB6"},
			"748": {Dir: feb21, File: "48_fluxrope_RFEA30_Bmov38_Bfix25.hdf5",
				Desc: "RFEA 30 with moving B-dot 38, fixed B-dot 25"},
		},
	}
}
