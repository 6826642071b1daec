//go:build linux

package keystore

import "os"

// Headless reports whether the OS keyring is likely unusable: Secret Service
// needs a session bus, which SSH sessions and CI runners usually lack.
func Headless() bool {
	if os.Getenv("SSH_TTY") != "" {
		return true
	}
	if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return true
	}
	return os.Getenv("CI") != ""
}
