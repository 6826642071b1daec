package keystore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/systmms/sealcfg/pkg/cfgerrors"
)

// SecretManagerClientAPI is the subset of the Google Secret Manager client
// used by GCPSecretManager. It allows fakes in tests.
type SecretManagerClientAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error)
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error)
	DeleteSecret(ctx context.Context, req *secretmanagerpb.DeleteSecretRequest, opts ...gax.CallOption) error
}

// GCPConfig configures the Google Secret Manager backend.
type GCPConfig struct {
	ProjectID string // falls back to GOOGLE_CLOUD_PROJECT
	Endpoint  string // optional custom endpoint for emulators
	Prefix    string
	TimeoutMs int

	CredentialsFile string
}

// GCPOption is a functional option for GCPSecretManager.
type GCPOption func(*GCPSecretManager)

// WithSecretManagerClient sets a custom Secret Manager client (for testing).
func WithSecretManagerClient(client SecretManagerClientAPI) GCPOption {
	return func(s *GCPSecretManager) {
		s.client = client
	}
}

// GCPSecretManager stores payloads as secret versions in Google Secret
// Manager. Reads always access the latest version.
type GCPSecretManager struct {
	client    SecretManagerClientAPI
	closer    func() error
	projectID string
	prefix    string
	timeout   time.Duration
}

// NewGCPSecretManager creates the backend using application default
// credentials unless a client is injected.
func NewGCPSecretManager(cfg GCPConfig, opts ...GCPOption) (*GCPSecretManager, error) {
	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}
	if projectID == "" {
		return nil, errors.New("gcp secret manager needs a project (set project or GOOGLE_CLOUD_PROJECT)")
	}

	s := &GCPSecretManager{
		projectID: projectID,
		prefix:    cfg.Prefix,
		timeout:   defaultTimeout,
	}
	if cfg.TimeoutMs > 0 {
		s.timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		var clientOpts []option.ClientOption
		if cfg.Endpoint != "" {
			clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
		}
		if cfg.CredentialsFile != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
		}

		client, err := secretmanager.NewClient(context.Background(), clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
		}
		s.client = client
		s.closer = client.Close
	}

	return s, nil
}

// Close releases the client connection.
func (s *GCPSecretManager) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func (s *GCPSecretManager) secretPath(name string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", s.projectID, cloudSecretName(applyPrefix(s.prefix, name)))
}

// Get implements Store.
func (s *GCPSecretManager) Get(name string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	path := s.secretPath(name)
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: path + "/versions/latest",
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, cfgerrors.NotFound("secretmanager access", path)
		}
		return nil, cfgerrors.KeyStore("secretmanager access", path, err)
	}

	data := resp.GetPayload().GetData()
	if data == nil {
		return nil, cfgerrors.KeyFormat(path, errors.New("secret version has no payload"))
	}
	return append([]byte(nil), data...), nil
}

// Set implements Store. The secret is created with automatic replication on
// first write; later writes add a version.
func (s *GCPSecretManager) Set(name string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	path := s.secretPath(name)
	err := s.addVersion(ctx, path, payload)
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.NotFound {
		return cfgerrors.KeyStore("secretmanager add version", path, err)
	}

	_, err = s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
		Parent:   "projects/" + s.projectID,
		SecretId: cloudSecretName(applyPrefix(s.prefix, name)),
		Secret: &secretmanagerpb.Secret{
			Replication: &secretmanagerpb.Replication{
				Replication: &secretmanagerpb.Replication_Automatic_{
					Automatic: &secretmanagerpb.Replication_Automatic{},
				},
			},
			Labels: map[string]string{"managed-by": "sealcfg"},
		},
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return cfgerrors.KeyStore("secretmanager create", path, err)
	}

	if err := s.addVersion(ctx, path, payload); err != nil {
		return cfgerrors.KeyStore("secretmanager add version", path, err)
	}
	return nil
}

func (s *GCPSecretManager) addVersion(ctx context.Context, path string, payload []byte) error {
	_, err := s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  path,
		Payload: &secretmanagerpb.SecretPayload{Data: payload},
	})
	return err
}

// Delete implements Store. All versions are removed.
func (s *GCPSecretManager) Delete(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	path := s.secretPath(name)
	err := s.client.DeleteSecret(ctx, &secretmanagerpb.DeleteSecretRequest{Name: path})
	if err != nil && status.Code(err) != codes.NotFound {
		return cfgerrors.KeyStore("secretmanager delete", path, err)
	}
	return nil
}

// Ensure GCPSecretManager implements Store
var _ Store = (*GCPSecretManager)(nil)
