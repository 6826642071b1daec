package keystore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/systmms/sealcfg/pkg/cfgerrors"
)

// KeyVaultClientAPI is the subset of the Key Vault secrets client used by
// AzureKeyVault. It allows fakes in tests.
type KeyVaultClientAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
	DeleteSecret(ctx context.Context, name string, options *azsecrets.DeleteSecretOptions) (azsecrets.DeleteSecretResponse, error)
}

// AzureConfig configures the Azure Key Vault backend.
type AzureConfig struct {
	VaultURL  string // e.g. https://my-vault.vault.azure.net/
	Prefix    string
	TimeoutMs int

	// Service principal credentials. When empty the default Azure
	// credential chain is used (environment, managed identity, Azure CLI).
	TenantID     string
	ClientID     string
	ClientSecret string
}

// AzureOption is a functional option for AzureKeyVault.
type AzureOption func(*AzureKeyVault)

// WithKeyVaultClient sets a custom Key Vault client (for testing).
func WithKeyVaultClient(client KeyVaultClientAPI) AzureOption {
	return func(s *AzureKeyVault) {
		s.client = client
	}
}

// AzureKeyVault stores payloads as base64 secrets in Azure Key Vault.
//
// Key Vault soft-deletes secrets. Recreating a deleted namespace before the
// vault's retention period ends fails until the deleted secret is purged.
type AzureKeyVault struct {
	client  KeyVaultClientAPI
	prefix  string
	timeout time.Duration
}

// NewAzureKeyVault creates the backend, authenticating with the default Azure
// credential chain unless a client is injected.
func NewAzureKeyVault(cfg AzureConfig, opts ...AzureOption) (*AzureKeyVault, error) {
	s := &AzureKeyVault{
		prefix:  cfg.Prefix,
		timeout: defaultTimeout,
	}
	if cfg.TimeoutMs > 0 {
		s.timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		if cfg.VaultURL == "" {
			return nil, errors.New("azure key vault needs a vault URL")
		}
		if _, err := url.ParseRequestURI(cfg.VaultURL); err != nil {
			return nil, fmt.Errorf("invalid vault URL %q: %w", cfg.VaultURL, err)
		}

		var cred azcore.TokenCredential
		var err error
		if cfg.ClientSecret != "" {
			cred, err = azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
		} else {
			cred, err = azidentity.NewDefaultAzureCredential(nil)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}

		client, err := azsecrets.NewClient(cfg.VaultURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
		}
		s.client = client
	}

	return s, nil
}

// Get implements Store.
func (s *AzureKeyVault) Get(name string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	id := cloudSecretName(applyPrefix(s.prefix, name))
	resp, err := s.client.GetSecret(ctx, id, "", nil)
	if err != nil {
		if isAzureNotFound(err) {
			return nil, cfgerrors.NotFound("keyvault get", id)
		}
		return nil, cfgerrors.KeyStore("keyvault get", id, err)
	}
	if resp.Value == nil {
		return nil, cfgerrors.KeyFormat(id, errors.New("secret has no value"))
	}

	payload, err := base64.StdEncoding.DecodeString(*resp.Value)
	if err != nil {
		return nil, cfgerrors.KeyFormat(id, err)
	}
	return payload, nil
}

// Set implements Store. Each write adds a new secret version.
func (s *AzureKeyVault) Set(name string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	id := cloudSecretName(applyPrefix(s.prefix, name))
	_, err := s.client.SetSecret(ctx, id, azsecrets.SetSecretParameters{
		Value:       to.Ptr(base64.StdEncoding.EncodeToString(payload)),
		ContentType: to.Ptr("application/vnd.sealcfg.keypair"),
		Tags:        map[string]*string{"managed-by": to.Ptr("sealcfg")},
	}, nil)
	if err != nil {
		return cfgerrors.KeyStore("keyvault set", id, err)
	}
	return nil
}

// Delete implements Store.
func (s *AzureKeyVault) Delete(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	id := cloudSecretName(applyPrefix(s.prefix, name))
	if _, err := s.client.DeleteSecret(ctx, id, nil); err != nil && !isAzureNotFound(err) {
		return cfgerrors.KeyStore("keyvault delete", id, err)
	}
	return nil
}

func isAzureNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}

// Ensure AzureKeyVault implements Store
var _ Store = (*AzureKeyVault)(nil)
