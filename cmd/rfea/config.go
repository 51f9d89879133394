package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Configuration drives one batch analysis run. JSON fields left out of the
// file keep the defaults set by LoadConfiguration before unmarshalling.
type Configuration struct {
	Catalog string `json:"catalog"`
	Run     string `json:"run"`
	OutDir  string `json:"out_dir"`

	NSteps    int `json:"nsteps"`
	NShots    int `json:"nshots"`
	ChanBdot  int `json:"chan_bdot"`
	ChanLeft  int `json:"chan_left"`
	ChanRight int `json:"chan_right"`

	Threshold float64 `json:"threshold"`
	Window    [2]int  `json:"window"`
	BWindow   [2]int  `json:"bwindow"`
	RefStep   int     `json:"ref_step"`
	RefShot   int     `json:"ref_shot"`

	VoltGain float64 `json:"volt_gain"`
	Res      float64 `json:"res"`
	Stride   int     `json:"stride"`
	Animate  bool    `json:"animate"`
}

// LoadConfiguration reads a JSON configuration file on top of the default
// values. An empty filename returns the pure defaults.
func LoadConfiguration(filename string) (Configuration, error) {
	var config Configuration

	// Set default values
	config.Run = "702"
	config.OutDir = "plots"
	config.NSteps = 45
	config.NShots = 15
	config.ChanBdot = 0
	config.ChanLeft = 1
	config.ChanRight = 2
	config.Threshold = 0.7
	config.VoltGain = 100
	config.Res = 1
	config.Stride = 50
	config.Animate = true

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return config, fmt.Errorf("read configuration: %w", err)
		}
		if err := json.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("parse configuration: %w", err)
		}
	}

	if config.Threshold <= 0 || config.Threshold > 1 {
		return config, fmt.Errorf("threshold %v outside (0, 1]", config.Threshold)
	}
	if config.Stride <= 0 {
		config.Stride = 1
	}
	return config, nil
}

func printConfiguration(config Configuration, logger *slog.Logger) {
	logger.Info(fmt.Sprintf("Run: %s", config.Run), "module", "config")
	logger.Info(fmt.Sprintf("Output dir: %s", config.OutDir), "module", "config")
	logger.Info(fmt.Sprintf("Steps x shots: %d x %d", config.NSteps, config.NShots), "module", "config")
	logger.Info(fmt.Sprintf("Channels (bdot, left, right): %d, %d, %d",
		config.ChanBdot, config.ChanLeft, config.ChanRight), "module", "config")
	logger.Info(fmt.Sprintf("Correlation threshold: %v", config.Threshold), "module", "config")
	logger.Info(fmt.Sprintf("Reference shot: (%d, %d)", config.RefStep, config.RefShot), "module", "config")
	logger.Info(fmt.Sprintf("Time stride: %d", config.Stride), "module", "config")
	logger.Info(fmt.Sprintf("Animate: %t", config.Animate), "module", "config")
}
