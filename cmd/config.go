package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/convtile/tilesched/tile"
)

// runConfig is the on-disk document --config points at: a single layer
// invocation plus the hardware/device/sampling knobs the core consumes
// (§3, §6 schedule_and_run).
type runConfig struct {
	Layer    tile.LayerDescriptor `yaml:"layer"`
	HW       tile.HWConstants     `yaml:"hardware"`
	Policy   tile.DevicePolicy    `yaml:"device_policy"`
	Sampling tile.SamplingConfig  `yaml:"sampling"`
	Workers  int                  `yaml:"workers"`
}

// loadRunConfig reads and parses path, fatal on any error — configuration
// problems are not recoverable (§7).
func loadRunConfig(path string) runConfig {
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Fatalf("tilesched: reading config %s: %v", path, err)
	}
	var cfg runConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logrus.Fatalf("tilesched: parsing config %s: %v", path, err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return cfg
}
