package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/systmms/sealcfg/pkg/keystore"
)

// FakeSecretsManagerClient is a mock implementation of keystore.SecretsManagerClientAPI
type FakeSecretsManagerClient struct {
	mu sync.Mutex

	// Secrets maps secret names to their binary data
	Secrets map[string][]byte
	// Errors maps secret names to errors to return from every operation
	Errors map[string]error
	// Created records names passed to CreateSecret
	Created []string
}

// NewFakeSecretsManagerClient creates a new mock Secrets Manager client
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string][]byte),
		Errors:  make(map[string]error),
	}
}

// AddSecretBinary adds a binary secret to the mock client
func (f *FakeSecretsManagerClient) AddSecretBinary(name string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = value
}

// AddError configures the mock to return an error for a specific secret
func (f *FakeSecretsManagerClient) AddError(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
}

func notFound(name string) error {
	return &types.ResourceNotFoundException{
		Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", name)),
	}
}

// GetSecretValue mocks the GetSecretValue operation
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	data, ok := f.Secrets[name]
	if !ok {
		return nil, notFound(name)
	}
	return &secretsmanager.GetSecretValueOutput{
		Name:         params.SecretId,
		SecretBinary: data,
	}, nil
}

// CreateSecret mocks the CreateSecret operation
func (f *FakeSecretsManagerClient) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.Name)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, exists := f.Secrets[name]; exists {
		return nil, &types.ResourceExistsException{Message: aws.String("secret already exists")}
	}
	f.Secrets[name] = params.SecretBinary
	f.Created = append(f.Created, name)
	return &secretsmanager.CreateSecretOutput{Name: params.Name}, nil
}

// PutSecretValue mocks the PutSecretValue operation
func (f *FakeSecretsManagerClient) PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, exists := f.Secrets[name]; !exists {
		return nil, notFound(name)
	}
	f.Secrets[name] = params.SecretBinary
	return &secretsmanager.PutSecretValueOutput{Name: params.SecretId}, nil
}

// DeleteSecret mocks the DeleteSecret operation
func (f *FakeSecretsManagerClient) DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	if _, exists := f.Secrets[name]; !exists {
		return nil, notFound(name)
	}
	delete(f.Secrets, name)
	return &secretsmanager.DeleteSecretOutput{Name: params.SecretId}, nil
}

// Ensure FakeSecretsManagerClient implements keystore.SecretsManagerClientAPI
var _ keystore.SecretsManagerClientAPI = (*FakeSecretsManagerClient)(nil)
