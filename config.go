package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/nf/idk/idk"
)

const defaultConfigFile = "idk.toml"

// config holds the settings that may be given in a config file.
// Flags set on the command line take precedence.
type config struct {
	GUI      bool   `toml:"gui"`
	Format   string `toml:"format"`
	Memory   int    `toml:"memory"`
	Snapshot string `toml:"snapshot"`
}

// loadConfig reads the config file name. A missing file is only an error
// if it was named explicitly.
func loadConfig(name string, explicit bool) (config, error) {
	cfg := config{
		Format: "decimal",
		Memory: idk.DefaultBufferSize,
	}
	data, err := os.ReadFile(name)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("cannot read %s: %w", name, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse error in %s: %w", name, err)
	}
	if cfg.Memory <= 0 {
		return cfg, fmt.Errorf("%s: memory must be positive, got %d", name, cfg.Memory)
	}
	return cfg, nil
}
