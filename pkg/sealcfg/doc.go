// Package sealcfg is a typed, cached configuration store.
//
// A configuration type declares how durable it is by the methods it
// implements:
//
//	Source[T]         Default() T                      kept in memory only
//	PersistSource[T]  + StoragePath() string           plaintext file
//	SecretSource[T]   + Namespace() string             file encrypted to the
//	                                                   namespace keypair
//
// Values are loaded on first access, falling back to Default when nothing is
// stored, and cached once per type:
//
//	type Settings struct {
//	    Theme string `json:"theme"`
//	}
//
//	func (Settings) Default() Settings     { return Settings{Theme: "dark"} }
//	func (Settings) StoragePath() string   { return "settings.json" }
//
//	err := sealcfg.Run(func(c *sealcfg.Config) error {
//	    return sealcfg.Update(c, func(s *Settings) error {
//	        s.Theme = "light"
//	        return nil
//	    })
//	})
//
// Mutated values are written back when the Config is closed. Run closes it on
// every exit path.
//
// Keypairs for SecretSource values are resolved through a keys.Manager backed
// by the OS secret manager unless WithKeyManager or WithSecretStore says
// otherwise. A secret file that exists but cannot be decrypted or decoded is
// an error; it is never replaced by the default.
package sealcfg
