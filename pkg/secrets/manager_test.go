package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecretsAPI struct {
	values map[string]string
	err    error
	calls  int
}

func (f *fakeSecretsAPI) GetSecretValueWithContext(_ aws.Context, in *secretsmanager.GetSecretValueInput, _ ...request.Option) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.values[aws.StringValue(in.SecretId)]
	if !ok {
		return nil, awserr.New(secretsmanager.ErrCodeResourceNotFoundException, "missing", nil)
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func TestNewManager_Backends(t *testing.T) {
	m, err := NewManager(Config{Backend: BackendEnv})
	require.NoError(t, err)
	assert.IsType(t, EnvironmentManager{}, m)

	_, err = NewManager(Config{Backend: "vault"})
	assert.Error(t, err)
}

func TestEnvironmentManager(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_env")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")

	v, err := EnvironmentManager{}.GetSecret(context.Background(), "STRIPE_SECRET_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk_test_env", v)

	_, err = EnvironmentManager{}.GetSecret(context.Background(), "STRIPE_WEBHOOK_SECRET")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAWSSecretsManager_PrefixAndCache(t *testing.T) {
	api := &fakeSecretsAPI{values: map[string]string{"storefront/STRIPE_SECRET_KEY": "sk_test_aws"}}
	m := newAWSSecretsManager(api, Config{Prefix: "storefront/", CacheDuration: time.Minute})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		v, err := m.GetSecret(context.Background(), "STRIPE_SECRET_KEY")
		require.NoError(t, err)
		assert.Equal(t, "sk_test_aws", v)
	}
	assert.Equal(t, 1, api.calls)

	now = now.Add(2 * time.Minute)
	_, err := m.GetSecret(context.Background(), "STRIPE_SECRET_KEY")
	require.NoError(t, err)
	assert.Equal(t, 2, api.calls)
}

func TestAWSSecretsManager_Errors(t *testing.T) {
	m := newAWSSecretsManager(&fakeSecretsAPI{values: map[string]string{}}, Config{CacheDuration: time.Minute})
	_, err := m.GetSecret(context.Background(), "SENDGRID_API_KEY")
	assert.ErrorIs(t, err, ErrNotFound)

	boom := errors.New("throttled")
	m = newAWSSecretsManager(&fakeSecretsAPI{err: boom}, Config{CacheDuration: time.Minute})
	_, err = m.GetSecret(context.Background(), "SENDGRID_API_KEY")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestLoadCredentials(t *testing.T) {
	api := &fakeSecretsAPI{values: map[string]string{
		"STRIPE_SECRET_KEY":     "sk_test",
		"STRIPE_WEBHOOK_SECRET": "whsec_1",
	}}
	creds, err := LoadCredentials(context.Background(), newAWSSecretsManager(api, Config{CacheDuration: time.Minute}))
	require.NoError(t, err)
	assert.Equal(t, "sk_test", creds.StripeSecretKey)
	assert.Equal(t, "whsec_1", creds.StripeWebhookSecret)
	assert.Empty(t, creds.SendGridAPIKey)

	_, err = LoadCredentials(context.Background(), newAWSSecretsManager(&fakeSecretsAPI{values: map[string]string{}}, Config{}))
	assert.ErrorContains(t, err, "STRIPE_SECRET_KEY")

	_, err = LoadCredentials(context.Background(), newAWSSecretsManager(&fakeSecretsAPI{err: errors.New("down")}, Config{}))
	assert.Error(t, err)
}
