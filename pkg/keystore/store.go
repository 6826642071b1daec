package keystore

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownBackend is returned by New for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown secret manager backend")

// Store is the minimal secret manager interface consumed by the key manager.
type Store interface {
	// Get returns the payload stored under name, or an error matching
	// cfgerrors.ErrNotFound. The caller owns the returned slice and may
	// wipe it.
	Get(name string) ([]byte, error)

	// Set stores payload under name, replacing any previous value.
	Set(name string, payload []byte) error

	// Delete removes name. Deleting an absent name is not an error.
	Delete(name string) error
}

// Backend names accepted by New.
const (
	BackendKeyring = "keyring"
	BackendMemory  = "memory"
	BackendAWS     = "aws-secretsmanager"
	BackendAzure   = "azure-keyvault"
	BackendGCP     = "gcp-secretmanager"
)

// Options configures New.
type Options struct {
	ServicePrefix string // keyring service prefix or cloud secret name prefix
	Region        string // AWS region
	Endpoint      string // AWS or GCP endpoint override, Azure vault URL
	Project       string // GCP project
	TimeoutMs     int    // per-call timeout of cloud backends
}

// New builds the backend named by backend.
func New(backend string, opts Options) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendKeyring:
		return NewKeyring(opts.ServicePrefix), nil
	case BackendMemory:
		return NewMemory(), nil
	case BackendAWS:
		return NewAWSSecretsManager(AWSConfig{
			Region:    opts.Region,
			Endpoint:  opts.Endpoint,
			Prefix:    opts.ServicePrefix,
			TimeoutMs: opts.TimeoutMs,
		})
	case BackendAzure:
		return NewAzureKeyVault(AzureConfig{
			VaultURL:  opts.Endpoint,
			Prefix:    opts.ServicePrefix,
			TimeoutMs: opts.TimeoutMs,
		})
	case BackendGCP:
		return NewGCPSecretManager(GCPConfig{
			ProjectID: opts.Project,
			Endpoint:  opts.Endpoint,
			Prefix:    opts.ServicePrefix,
			TimeoutMs: opts.TimeoutMs,
		})
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownBackend, backend)
	}
}

// applyPrefix joins prefix and name the same way for every backend.
func applyPrefix(prefix, name string) string {
	if prefix == "" || strings.HasPrefix(name, prefix+".") {
		return name
	}
	return prefix + "." + name
}

// cloudSecretName maps name onto the character set accepted by Azure Key
// Vault and Google Secret Manager: letters, digits and dashes.
func cloudSecretName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, name)
}
