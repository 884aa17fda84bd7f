// Package config loads optional vtabledump tool configuration from a
// .vtabledump.yaml file, in the idiom of the rest of the retrieved
// example pack's YAML-based tool configs.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const fileName = ".vtabledump.yaml"

// Config holds the subset of behavior a config file may override.
// Default(), not the zero value, matches the CLI's own defaults.
type Config struct {
	Color        bool `yaml:"color"`
	BestEffort   bool `yaml:"bestEffort"`
	JSONEnvelope bool `yaml:"jsonEnvelope"`
}

// Default returns the built-in defaults: color on, best-effort off,
// plain JSON array (no envelope).
func Default() Config {
	return Config{Color: true}
}

// Load looks for .vtabledump.yaml first in the current directory, then
// in the user's home directory. A missing file is not an error — Load
// returns Default() unchanged.
func Load() (Config, error) {
	cfg := Default()

	paths := []string{fileName}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, fileName))
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	return cfg, nil
}
