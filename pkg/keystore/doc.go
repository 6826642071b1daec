// Package keystore provides the secret manager backends that hold the private
// half of every sealcfg keypair.
//
// A backend is anything implementing Store: three operations addressed by a
// namespace name. The package ships these:
//
//   - Keyring: the OS secret manager (macOS Keychain, Linux Secret Service,
//     Windows Credential Manager) through github.com/zalando/go-keyring
//   - Memory: an in-process map for tests and mock mode
//   - AWSSecretsManager: AWS Secrets Manager for hosts without a desktop keyring
//   - AzureKeyVault: Azure Key Vault secrets
//   - GCPSecretManager: Google Secret Manager secret versions
//
// # Error Contract
//
// Get returns an error matching cfgerrors.ErrNotFound when nothing is stored
// under the name. Every other failure matches cfgerrors.ErrKeyStore. Backends
// never retry: a denied consent prompt or an unreachable service is reported
// immediately.
//
// # Payload Encoding
//
// OS keyrings and Key Vault store strings, so Keyring and AzureKeyVault
// base64-encode payloads. The other backends store raw bytes.
//
// Key Vault and Secret Manager only accept letters, digits and dashes in
// secret names; other characters are replaced with dashes, so "my.app" and
// "my_app" share a secret there.
package keystore
