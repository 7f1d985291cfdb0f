// Package config loads server configuration from a YAML file with a
// command-line flag overlay, per spec §6's "Configuration flags (consumed
// from server config)".
package config

import (
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/shaban/audiohost/recents"
)

// ServerConfig holds the two flags spec §6 names explicitly, plus the
// listen address needed to actually run cmd/audiohostd.
type ServerConfig struct {
	ParallelPluginLoad bool   `yaml:"parallelPluginLoad"`
	NumRecents         int    `yaml:"numRecents"`
	ListenAddr         string `yaml:"listenAddr"`
}

// Default returns the baseline configuration before any file or flag
// overlay is applied.
func Default() ServerConfig {
	return ServerConfig{
		ParallelPluginLoad: true,
		NumRecents:         recents.DefaultMax,
		ListenAddr:         ":7070",
	}
}

// Load reads path (if non-empty and present) over the defaults, then applies
// a pflag.FlagSet overlay parsed from args (a nil fs uses pflag.CommandLine).
func Load(path string, fs *pflag.FlagSet, args []string) (ServerConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return ServerConfig{}, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return ServerConfig{}, err
		}
	}

	if fs == nil {
		fs = pflag.CommandLine
	}
	parallel := fs.Bool("parallel-plugin-load", cfg.ParallelPluginLoad, "allow concurrent plugin loads")
	numRecents := fs.Int("num-recents", cfg.NumRecents, "per-host recents list length")
	listenAddr := fs.String("listen", cfg.ListenAddr, "address to accept sessions on")

	if err := fs.Parse(args); err != nil {
		return ServerConfig{}, err
	}

	cfg.ParallelPluginLoad = *parallel
	cfg.NumRecents = *numRecents
	cfg.ListenAddr = *listenAddr
	return cfg, nil
}
