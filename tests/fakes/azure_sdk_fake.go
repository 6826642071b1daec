package fakes

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/systmms/sealcfg/pkg/keystore"
)

// FakeKeyVaultClient is a mock implementation of keystore.KeyVaultClientAPI
type FakeKeyVaultClient struct {
	mu sync.Mutex

	// Secrets maps secret names to their current value
	Secrets map[string]string
	// Errors maps secret names to errors to return from every operation
	Errors map[string]error
	// Versions counts SetSecret calls per secret name
	Versions map[string]int
	// Deleted records names passed to DeleteSecret
	Deleted []string
}

// NewFakeKeyVaultClient creates a new mock Key Vault client
func NewFakeKeyVaultClient() *FakeKeyVaultClient {
	return &FakeKeyVaultClient{
		Secrets:  make(map[string]string),
		Errors:   make(map[string]error),
		Versions: make(map[string]int),
	}
}

// AddSecretString adds a string secret to the mock client
func (f *FakeKeyVaultClient) AddSecretString(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = value
}

// AddError configures the mock to return an error for a specific secret
func (f *FakeKeyVaultClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

func secretID(name string, version int) *azsecrets.ID {
	return (*azsecrets.ID)(to.Ptr(fmt.Sprintf("https://test-vault.vault.azure.net/secrets/%s/%d", name, version)))
}

// GetSecret mocks the GetSecret operation
func (f *FakeKeyVaultClient) GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.Errors[name]; ok {
		return azsecrets.GetSecretResponse{}, err
	}
	value, ok := f.Secrets[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, AzureNotFoundError(name)
	}
	return azsecrets.GetSecretResponse{
		Secret: azsecrets.Secret{
			ID:    secretID(name, f.Versions[name]),
			Value: to.Ptr(value),
		},
	}, nil
}

// SetSecret mocks the SetSecret operation
func (f *FakeKeyVaultClient) SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.Errors[name]; ok {
		return azsecrets.SetSecretResponse{}, err
	}
	f.Secrets[name] = *parameters.Value
	f.Versions[name]++
	return azsecrets.SetSecretResponse{
		Secret: azsecrets.Secret{
			ID:          secretID(name, f.Versions[name]),
			Value:       parameters.Value,
			ContentType: parameters.ContentType,
			Tags:        parameters.Tags,
		},
	}, nil
}

// DeleteSecret mocks the DeleteSecret operation
func (f *FakeKeyVaultClient) DeleteSecret(ctx context.Context, name string, options *azsecrets.DeleteSecretOptions) (azsecrets.DeleteSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.Errors[name]; ok {
		return azsecrets.DeleteSecretResponse{}, err
	}
	if _, ok := f.Secrets[name]; !ok {
		return azsecrets.DeleteSecretResponse{}, AzureNotFoundError(name)
	}
	delete(f.Secrets, name)
	f.Deleted = append(f.Deleted, name)
	return azsecrets.DeleteSecretResponse{}, nil
}

// AzureNotFoundError creates a mock Azure not found error
func AzureNotFoundError(secretName string) error {
	return &azcore.ResponseError{
		StatusCode: http.StatusNotFound,
		ErrorCode:  "SecretNotFound",
	}
}

// AzureForbiddenError creates a mock Azure forbidden error
func AzureForbiddenError() error {
	return &azcore.ResponseError{
		StatusCode: http.StatusForbidden,
		ErrorCode:  "Forbidden",
	}
}

// Ensure FakeKeyVaultClient implements keystore.KeyVaultClientAPI
var _ keystore.KeyVaultClientAPI = (*FakeKeyVaultClient)(nil)
