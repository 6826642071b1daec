//go:build sealcfg_default_dir

package sealcfg

import "path/filepath"

// Location resolves a StoragePath relative to DefaultConfigDir.
func Location(name string) string {
	return filepath.Join(DefaultConfigDir(), name)
}
