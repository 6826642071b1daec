package keystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/systmms/sealcfg/pkg/cfgerrors"
)

const defaultTimeout = 30 * time.Second

// SecretsManagerClientAPI is the subset of the Secrets Manager client used by
// AWSSecretsManager. It allows fakes in tests.
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
}

// AWSConfig configures the AWS Secrets Manager backend.
type AWSConfig struct {
	Region    string
	Endpoint  string // optional custom endpoint for LocalStack or testing
	Prefix    string
	TimeoutMs int

	// Static credentials, for LocalStack/testing only.
	AccessKeyID     string
	SecretAccessKey string
}

// AWSOption is a functional option for AWSSecretsManager.
type AWSOption func(*AWSSecretsManager)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing).
func WithSecretsManagerClient(client SecretsManagerClientAPI) AWSOption {
	return func(s *AWSSecretsManager) {
		s.client = client
	}
}

// AWSSecretsManager stores payloads as binary secrets in AWS Secrets Manager.
type AWSSecretsManager struct {
	client  SecretsManagerClientAPI
	prefix  string
	timeout time.Duration
}

// NewAWSSecretsManager creates the backend, loading the default AWS
// configuration unless a client is injected.
func NewAWSSecretsManager(cfg AWSConfig, opts ...AWSOption) (*AWSSecretsManager, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	s := &AWSSecretsManager{
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
		var configOpts []func(*config.LoadOptions) error
		configOpts = append(configOpts, config.WithRegion(region))
		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			configOpts = append(configOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			))
		}

		awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		var clientOpts []func(*secretsmanager.Options)
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		s.client = secretsmanager.NewFromConfig(awsCfg, clientOpts...)
	}

	return s, nil
}

// Get implements Store.
func (s *AWSSecretsManager) Get(name string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	id := applyPrefix(s.prefix, name)
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		if isResourceNotFound(err) {
			return nil, cfgerrors.NotFound("secretsmanager get", id)
		}
		return nil, cfgerrors.KeyStore("secretsmanager get", id, err)
	}

	if out.SecretBinary != nil {
		return append([]byte(nil), out.SecretBinary...), nil
	}
	if out.SecretString != nil {
		return []byte(*out.SecretString), nil
	}
	return nil, cfgerrors.KeyFormat(id, errors.New("secret has no value"))
}

// Set implements Store. The secret is created on first write.
func (s *AWSSecretsManager) Set(name string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	id := applyPrefix(s.prefix, name)
	_, err := s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(id),
		SecretBinary: payload,
	})
	if err == nil {
		return nil
	}
	if !isResourceNotFound(err) {
		return cfgerrors.KeyStore("secretsmanager put", id, err)
	}

	_, err = s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(id),
		Description:  aws.String("sealcfg keypair"),
		SecretBinary: payload,
	})
	if err != nil {
		return cfgerrors.KeyStore("secretsmanager create", id, err)
	}
	return nil
}

// Delete implements Store. Secrets are removed without a recovery window.
func (s *AWSSecretsManager) Delete(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	id := applyPrefix(s.prefix, name)
	_, err := s.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(id),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if err != nil && !isResourceNotFound(err) {
		return cfgerrors.KeyStore("secretsmanager delete", id, err)
	}
	return nil
}

func isResourceNotFound(err error) bool {
	var resourceNotFound *types.ResourceNotFoundException
	return errors.As(err, &resourceNotFound)
}

// Ensure AWSSecretsManager implements Store
var _ Store = (*AWSSecretsManager)(nil)
