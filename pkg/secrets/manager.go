// Package secrets resolves the storefront's provider credentials from the environment or from
// AWS Secrets Manager.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
)

// Backends
const (
	BackendEnv = "env"
	BackendAWS = "aws-secrets-manager"
)

// ErrNotFound is returned when a secret has no value in the backend.
var ErrNotFound = errors.New("secret not found")

// Manager looks up a secret by name.
type Manager interface {
	GetSecret(ctx context.Context, key string) (string, error)
}

// Config holds secrets backend configuration
type Config struct {
	Backend       string        // "env" or "aws-secrets-manager"
	AWSRegion     string        // AWS region for Secrets Manager
	Prefix        string        // prepended to every key, e.g. "storefront/prod/"
	CacheDuration time.Duration // how long a fetched secret is reused
}

// NewManager creates a secrets manager for cfg.Backend.
func NewManager(cfg Config) (Manager, error) {
	switch cfg.Backend {
	case BackendAWS, "aws":
		log.Printf("🔐 Initializing AWS Secrets Manager (region: %s)", cfg.AWSRegion)
		return NewAWSSecretsManager(cfg)
	case BackendEnv, "environment", "":
		return EnvironmentManager{}, nil
	default:
		return nil, fmt.Errorf("unsupported secrets backend: %s", cfg.Backend)
	}
}

// EnvironmentManager reads secrets from environment variables.
type EnvironmentManager struct{}

// GetSecret implements Manager.
func (EnvironmentManager) GetSecret(_ context.Context, key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return value, nil
}

type secretValueAPI interface {
	GetSecretValueWithContext(ctx aws.Context, input *secretsmanager.GetSecretValueInput, opts ...request.Option) (*secretsmanager.GetSecretValueOutput, error)
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// AWSSecretsManager loads secrets from AWS Secrets Manager and caches them for CacheDuration.
type AWSSecretsManager struct {
	client secretValueAPI
	prefix string
	ttl    time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedSecret
}

// NewAWSSecretsManager creates a Secrets Manager client for cfg.AWSRegion.
func NewAWSSecretsManager(cfg Config) (*AWSSecretsManager, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWSRegion),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return newAWSSecretsManager(secretsmanager.New(sess), cfg), nil
}

func newAWSSecretsManager(client secretValueAPI, cfg Config) *AWSSecretsManager {
	return &AWSSecretsManager{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.CacheDuration,
		now:    time.Now,
		cache:  make(map[string]cachedSecret),
	}
}

// GetSecret implements Manager.
func (m *AWSSecretsManager) GetSecret(ctx context.Context, key string) (string, error) {
	id := m.prefix + key
	if value, ok := m.cached(id); ok {
		return value, nil
	}

	result, err := m.client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == secretsmanager.ErrCodeResourceNotFoundException {
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return "", fmt.Errorf("failed to get secret %s: %w", id, err)
	}
	if result.SecretString == nil || *result.SecretString == "" {
		return "", fmt.Errorf("%w: %s has no string value", ErrNotFound, id)
	}

	value := *result.SecretString
	m.mu.Lock()
	m.cache[id] = cachedSecret{value: value, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return value, nil
}

func (m *AWSSecretsManager) cached(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cache[id]
	if !ok || m.now().After(c.expiresAt) {
		return "", false
	}
	return c.value, true
}
