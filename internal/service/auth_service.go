package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/k8s-test-service/internal/auth"
	"github.com/spec-kit/k8s-test-service/internal/config"
	"github.com/spec-kit/k8s-test-service/internal/domain"
	"github.com/spec-kit/k8s-test-service/internal/observability"
	apperrors "github.com/spec-kit/k8s-test-service/pkg/util"
)

// Auth outcomes recorded in auth_requests_total.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeExpired   = "expired"
	OutcomeThrottled = "throttled"
)

const (
	opLogin    = "login"
	opValidate = "validate"
)

// AuthService issues and validates bearer tokens against the static credential table.
// There is no session store and no revocation: expiry is the only invalidation.
type AuthService struct {
	credentials *auth.Credentials
	tokens      *auth.TokenManager
	limiter     *rate.Limiter
	metrics     *observability.Registry
	logger      *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Credentials *auth.Credentials
	Tokens      *auth.TokenManager
	Metrics     *observability.Registry
	Logger      *zap.Logger
}

// NewAuthService builds the service. Login throttling is enabled when a positive rate is configured.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuthService{
		credentials: deps.Credentials,
		tokens:      deps.Tokens,
		metrics:     deps.Metrics,
		logger:      logger.Named("auth"),
	}
	if cfg.LoginRatePerSecond > 0 {
		burst := cfg.LoginBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.LoginRatePerSecond), burst)
	}
	return s
}

// Login checks the credentials and issues a token expiring TTL after issue.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.Token, error) {
	if s.limiter != nil && !s.limiter.Allow() {
		s.record(opLogin, OutcomeThrottled)
		return domain.Token{}, apperrors.NewRateLimited("too many login attempts")
	}
	if err := ctx.Err(); err != nil {
		s.record(opLogin, OutcomeFailure)
		return domain.Token{}, err
	}

	if !s.credentials.Verify(username, password) {
		s.record(opLogin, OutcomeFailure)
		s.logger.Info("login rejected", zap.String("username", username))
		return domain.Token{}, apperrors.NewAuthenticationError(apperrors.KindInvalidCredentials, "incorrect username or password")
	}

	token, err := s.tokens.GenerateToken(username)
	if err != nil {
		s.record(opLogin, OutcomeFailure)
		return domain.Token{}, apperrors.NewInternalError(err)
	}
	s.record(opLogin, OutcomeSuccess)
	s.logger.Debug("token issued", zap.String("subject", username), zap.String("token_id", token.ID), zap.Time("expires_at", token.ExpiresAt))
	return token, nil
}

// Validate verifies an encoded token and returns its principal.
func (s *AuthService) Validate(_ context.Context, token string) (domain.Principal, error) {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			s.record(opValidate, OutcomeExpired)
			return domain.Principal{}, apperrors.NewAuthenticationError(apperrors.KindExpired, "token has expired")
		case errors.Is(err, auth.ErrInvalidSignature):
			s.record(opValidate, OutcomeFailure)
			return domain.Principal{}, apperrors.NewAuthenticationError(apperrors.KindInvalidSignature, "token signature is invalid")
		default:
			s.record(opValidate, OutcomeFailure)
			return domain.Principal{}, apperrors.NewAuthenticationError(apperrors.KindInvalidToken, "token is malformed")
		}
	}

	s.record(opValidate, OutcomeSuccess)
	return domain.Principal{
		Subject:   claims.Subject,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Authorize validates an Authorization header value.
func (s *AuthService) Authorize(ctx context.Context, header string) (domain.Principal, error) {
	token, err := auth.ExtractBearer(header)
	if err != nil {
		s.record(opValidate, OutcomeFailure)
		return domain.Principal{}, err
	}
	return s.Validate(ctx, token)
}

// TokenTTL is the lifetime of issued tokens.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

func (s *AuthService) record(operation, outcome string) {
	_ = s.metrics.Increment(observability.MetricAuthRequests, observability.Labels{
		"operation": operation,
		"outcome":   outcome,
	})
}
