package fakes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/systmms/sealcfg/pkg/keystore"
)

// FakeSecretManagerClient is a mock implementation of keystore.SecretManagerClientAPI
type FakeSecretManagerClient struct {
	mu sync.Mutex

	// Secrets maps secret resource names (projects/X/secrets/Y) to their
	// versions, oldest first
	Secrets map[string][][]byte
	// Errors maps secret resource names to errors to return from every operation
	Errors map[string]error
	// Created records the resource names of secrets created through CreateSecret
	Created []string
}

// NewFakeSecretManagerClient creates a new mock Secret Manager client
func NewFakeSecretManagerClient() *FakeSecretManagerClient {
	return &FakeSecretManagerClient{
		Secrets: make(map[string][][]byte),
		Errors:  make(map[string]error),
	}
}

// AddError configures the mock to return an error for a secret resource name
func (f *FakeSecretManagerClient) AddError(secretPath string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[secretPath] = err
}

// AddSecretVersion mocks the AddSecretVersion operation
func (f *FakeSecretManagerClient) AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.Errors[req.Parent]; ok {
		return nil, err
	}
	versions, ok := f.Secrets[req.Parent]
	if !ok {
		return nil, GCPNotFoundError(req.Parent)
	}
	f.Secrets[req.Parent] = append(versions, append([]byte(nil), req.GetPayload().GetData()...))
	return &secretmanagerpb.SecretVersion{
		Name:       fmt.Sprintf("%s/versions/%d", req.Parent, len(f.Secrets[req.Parent])),
		State:      secretmanagerpb.SecretVersion_ENABLED,
		CreateTime: timestamppb.Now(),
	}, nil
}

// AccessSecretVersion mocks the AccessSecretVersion operation. Only the
// "latest" alias is supported.
func (f *FakeSecretManagerClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	secretPath, ok := strings.CutSuffix(req.Name, "/versions/latest")
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unsupported version in %s", req.Name)
	}
	if err, ok := f.Errors[secretPath]; ok {
		return nil, err
	}
	versions := f.Secrets[secretPath]
	if len(versions) == 0 {
		return nil, GCPNotFoundError(req.Name)
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    fmt.Sprintf("%s/versions/%d", secretPath, len(versions)),
		Payload: &secretmanagerpb.SecretPayload{Data: append([]byte(nil), versions[len(versions)-1]...)},
	}, nil
}

// CreateSecret mocks the CreateSecret operation
func (f *FakeSecretManagerClient) CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	secretPath := req.Parent + "/secrets/" + req.SecretId
	if err, ok := f.Errors[secretPath]; ok {
		return nil, err
	}
	if _, exists := f.Secrets[secretPath]; exists {
		return nil, status.Errorf(codes.AlreadyExists, "secret %s already exists", secretPath)
	}
	f.Secrets[secretPath] = nil
	f.Created = append(f.Created, secretPath)
	return &secretmanagerpb.Secret{
		Name:        secretPath,
		Replication: req.GetSecret().GetReplication(),
		Labels:      req.GetSecret().GetLabels(),
		CreateTime:  timestamppb.Now(),
	}, nil
}

// DeleteSecret mocks the DeleteSecret operation
func (f *FakeSecretManagerClient) DeleteSecret(ctx context.Context, req *secretmanagerpb.DeleteSecretRequest, opts ...gax.CallOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.Errors[req.Name]; ok {
		return err
	}
	if _, exists := f.Secrets[req.Name]; !exists {
		return GCPNotFoundError(req.Name)
	}
	delete(f.Secrets, req.Name)
	return nil
}

// VersionCount returns how many versions a secret holds
func (f *FakeSecretManagerClient) VersionCount(secretPath string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Secrets[secretPath])
}

// GCPNotFoundError creates a mock GCP not found error
func GCPNotFoundError(resource string) error {
	return status.Errorf(codes.NotFound, "Secret [%s] not found or has no versions.", resource)
}

// GCPPermissionDeniedError creates a mock GCP permission denied error
func GCPPermissionDeniedError(resource string) error {
	return status.Errorf(codes.PermissionDenied, "Permission 'secretmanager.versions.access' denied for resource '%s'", resource)
}

// Ensure FakeSecretManagerClient implements keystore.SecretManagerClientAPI
var _ keystore.SecretManagerClientAPI = (*FakeSecretManagerClient)(nil)
