package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/k8s-test-service/internal/auth"
	"github.com/spec-kit/k8s-test-service/internal/config"
	"github.com/spec-kit/k8s-test-service/internal/observability"
	apperrors "github.com/spec-kit/k8s-test-service/pkg/util"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type authFixture struct {
	svc     *AuthService
	metrics *observability.Registry
	clock   *testClock
}

func newAuthFixture(t *testing.T, cfg config.AuthConfig) authFixture {
	t.Helper()
	if cfg.Username == "" {
		cfg.Username = "testuser"
		cfg.Password = "testpassword"
	}
	cfg.BcryptCost = bcrypt.MinCost

	creds, err := auth.LoadCredentials(cfg)
	require.NoError(t, err)
	metrics, err := observability.NewRegistry(nil, observability.DefaultDefinitions())
	require.NoError(t, err)

	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewAuthService(cfg, AuthDependencies{
		Credentials: creds,
		Tokens:      auth.NewTokenManager("secret", 30*time.Minute, auth.WithClock(clock.Now)),
		Metrics:     metrics,
		Logger:      zaptest.NewLogger(t),
	})
	return authFixture{svc: svc, metrics: metrics, clock: clock}
}

func (f authFixture) count(operation, outcome string) float64 {
	return f.metrics.Value(observability.MetricAuthRequests, observability.Labels{"operation": operation, "outcome": outcome})
}

func kindOf(err error) string {
	return apperrors.ToDomainError(err).Kind
}

func TestAuthService_LoginAndValidate(t *testing.T) {
	f := newAuthFixture(t, config.AuthConfig{})
	ctx := context.Background()

	tok, err := f.svc.Login(ctx, "testuser", "testpassword")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, tok.ExpiresAt.Sub(tok.IssuedAt))
	assert.Equal(t, 30*time.Minute, f.svc.TokenTTL())

	principal, err := f.svc.Validate(ctx, tok.Encoded)
	require.NoError(t, err)
	assert.Equal(t, "testuser", principal.Subject)
	assert.Equal(t, tok.ID, principal.TokenID)

	assert.Equal(t, float64(1), f.count("login", OutcomeSuccess))
	assert.Equal(t, float64(1), f.count("validate", OutcomeSuccess))
}

func TestAuthService_LoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t, config.AuthConfig{})
	ctx := context.Background()

	_, wrongPassword := f.svc.Login(ctx, "testuser", "wrongpassword")
	_, unknownUser := f.svc.Login(ctx, "nobody", "testpassword")

	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	assert.Equal(t, apperrors.KindInvalidCredentials, kindOf(wrongPassword))
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
	assert.Equal(t, float64(2), f.count("login", OutcomeFailure))
}

func TestAuthService_ValidateExpiry(t *testing.T) {
	f := newAuthFixture(t, config.AuthConfig{})
	ctx := context.Background()

	tok, err := f.svc.Login(ctx, "testuser", "testpassword")
	require.NoError(t, err)

	f.clock.Advance(30 * time.Minute)
	_, err = f.svc.Validate(ctx, tok.Encoded)
	require.NoError(t, err, "valid at exactly expiry")

	f.clock.Advance(time.Millisecond)
	_, err = f.svc.Validate(ctx, tok.Encoded)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindExpired, kindOf(err))
	assert.Equal(t, float64(1), f.count("validate", OutcomeExpired))
}

func TestAuthService_AuthorizeRejects(t *testing.T) {
	f := newAuthFixture(t, config.AuthConfig{})
	ctx := context.Background()

	foreign, err := auth.NewTokenManager("other", time.Minute).GenerateToken("testuser")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		kind   string
	}{
		{"missing", "", apperrors.KindMissingToken},
		{"wrong scheme", "Basic abc", apperrors.KindInvalidToken},
		{"garbage token", "Bearer abc", apperrors.KindInvalidToken},
		{"foreign signature", "Bearer " + foreign.Encoded, apperrors.KindInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Authorize(ctx, tt.header)
			require.Error(t, err)
			assert.Equal(t, tt.kind, kindOf(err))
		})
	}
	assert.Equal(t, float64(len(tests)), f.count("validate", OutcomeFailure))
	assert.Zero(t, f.count("validate", OutcomeSuccess))
}

func TestAuthService_LoginThrottling(t *testing.T) {
	f := newAuthFixture(t, config.AuthConfig{LoginRatePerSecond: 0.001, LoginBurst: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.Login(ctx, "testuser", "testpassword")
		require.NoError(t, err)
	}
	_, err := f.svc.Login(ctx, "testuser", "testpassword")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindRateLimited, kindOf(err))
	assert.Equal(t, float64(1), f.count("login", OutcomeThrottled))
}

func TestAuthService_LoginCancelledIsCounted(t *testing.T) {
	f := newAuthFixture(t, config.AuthConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Login(ctx, "testuser", "testpassword")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, float64(1), f.count("login", OutcomeFailure))
	assert.Zero(t, f.count("login", OutcomeSuccess))
}

func TestAuthService_ConcurrentCountsAreExact(t *testing.T) {
	f := newAuthFixture(t, config.AuthConfig{})
	ctx := context.Background()

	tok, err := f.svc.Login(ctx, "testuser", "testpassword")
	require.NoError(t, err)

	const callers = 40
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Validate(ctx, tok.Encoded)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(callers), f.count("validate", OutcomeSuccess))
}
