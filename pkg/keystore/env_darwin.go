//go:build darwin

package keystore

import "os"

// Headless reports whether the keychain may be unable to show consent prompts.
func Headless() bool {
	if os.Getenv("SSH_TTY") != "" {
		return true
	}
	return os.Getenv("CI") != ""
}
