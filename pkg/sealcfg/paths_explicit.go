//go:build !sealcfg_default_dir

package sealcfg

import "path/filepath"

// Location resolves a StoragePath. In the default build the path is used as
// given.
func Location(name string) string {
	return filepath.Clean(name)
}
