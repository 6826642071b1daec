// Package secure keeps private key material out of ordinary Go memory.
//
// Materialized keypairs hold their private half in a Key, which wraps a
// memguard enclave:
//
//   - Encrypted at rest in memory (XSalsa20Poly1305)
//   - Protected from swapping via mlock where the platform allows it
//   - Wiped from the source slice on creation
//
// # Usage
//
//	key, err := secure.NewKey(raw) // raw is wiped
//	if err != nil {
//	    return err
//	}
//	locked, err := key.Open()
//	if err != nil {
//	    return err
//	}
//	defer locked.Destroy()
//	use(locked.ByteArray32())
//
// It does NOT protect against attackers with access to the running process
// or against hardware-level attacks.
package secure
