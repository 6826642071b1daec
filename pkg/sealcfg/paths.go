package sealcfg

import (
	"os"
	"path/filepath"
)

// ConfigDirEnv overrides the directory returned by DefaultConfigDir.
const ConfigDirEnv = "SEALCFG_CONFIG_DIR"

// DefaultConfigDir returns the directory storage paths are joined onto when
// built with the sealcfg_default_dir tag.
func DefaultConfigDir() string {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir
	}

	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "sealcfg")
	}

	// Last resort: use temp directory
	return filepath.Join(os.TempDir(), "sealcfg")
}
