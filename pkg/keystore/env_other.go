//go:build !darwin && !linux

package keystore

import "os"

// Headless reports whether the process runs in CI, where credential stores
// are typically not provisioned.
func Headless() bool {
	return os.Getenv("CI") != ""
}
