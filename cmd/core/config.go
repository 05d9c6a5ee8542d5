package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/milli-core/pkg/apperr"
)

// fileConfig is the shape of the optional YAML file passed via
// --config. Any field left zero falls back to the corresponding
// command-line flag or indexcore.Config default.
type fileConfig struct {
	Dir          string `yaml:"dir"`
	MapSizeBytes int64  `yaml:"map_size_bytes"`
}

// loadConfig reads --config if set, then layers the --dir flag over it
// so an explicit flag always wins over the file.
func loadConfig(cmd *cobra.Command) (fileConfig, error) {
	var cfg fileConfig

	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, apperr.Internal(err, "core: read config file %q", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, apperr.Validation("core: parse config file %q: %v", path, err)
		}
	}

	if dir, _ := cmd.Flags().GetString("dir"); cmd.Flags().Changed("dir") || cfg.Dir == "" {
		cfg.Dir = dir
	}
	return cfg, nil
}
