package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigDirName = "sipwatch"
	defaultConfigFile    = "config.yaml"
)

func DefaultConfigPath() string {
	if env := os.Getenv(EnvConfig); env != "" {
		return env
	}
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName, defaultConfigFile)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sipwatch", defaultConfigFile)
}
