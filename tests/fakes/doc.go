// Package fakes provides test doubles for sealcfg collaborator interfaces.
//
// This package contains fake implementations of the secret manager and its
// SDK clients so key management and persistence can be unit tested without
// touching real OS secret storage or cloud services. Fakes are manually
// implemented (not generated) to provide precise control over test behavior.
//
// Usage:
//
//	store := fakes.NewFakeSecretStore()
//	store.GetErr = fakes.ErrFakeAccessDenied
//	manager := keys.NewManager(store)
//	// Test key manager behavior...
package fakes
