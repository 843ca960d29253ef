// Package auth turns provider credentials into platform sessions and exposes
// the facade the host application signs users in with.
package auth

import (
	"context"
	"time"

	"go.uber.org/zap"

	"firebaselogin/internal/logger"
	"firebaselogin/internal/login"
	"firebaselogin/internal/metrics"
	"firebaselogin/internal/oauth"
)

// Operation names used in logs and metrics.
const (
	OpSignIn         = "signin"
	OpPasswordSignIn = "signin_password"
	OpCreateAccount  = "signup"
	OpCurrentUser    = "whoami"
)

// Service is the single surface the host application uses. The interactive
// provider is injected, so callers never branch on provider type.
type Service struct {
	exchange *Exchange
	provider oauth.Provider
	password *oauth.PasswordProvider
	metrics  *metrics.Metrics
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithMetrics records every operation's outcome in m.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService builds the facade around exchange. provider is used by SignIn;
// email/password calls always go through the password adapter.
func NewService(exchange *Exchange, provider oauth.Provider, opts ...ServiceOption) *Service {
	s := &Service{
		exchange: exchange,
		provider: provider,
		password: oauth.NewPasswordProvider(exchange),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignIn runs the injected provider's sign-in and exchanges the credential
// for a session.
func (s *Service) SignIn(ctx context.Context) (login.UserProfile, error) {
	if s.provider == nil {
		return login.UserProfile{}, login.ErrLoginNotSupported
	}
	name := s.provider.Name()
	start := time.Now()

	profile, err := s.signIn(ctx)
	s.observe(ctx, OpSignIn, name, start, err)
	return profile, err
}

func (s *Service) signIn(ctx context.Context) (login.UserProfile, error) {
	cred, err := s.provider.SignIn(ctx)
	if err != nil {
		return login.UserProfile{}, login.AsError(err)
	}
	return s.exchange.Exchange(ctx, cred)
}

// SignInWithPassword signs in an existing email/password account.
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (login.UserProfile, error) {
	start := time.Now()
	profile, err := s.password.SignInWithPassword(ctx, email, password)
	s.observe(ctx, OpPasswordSignIn, login.ProviderPassword, start, err)
	return profile, err
}

// CreateAccount registers an email/password account.
func (s *Service) CreateAccount(ctx context.Context, email, password string) (login.UserProfile, error) {
	start := time.Now()
	profile, err := s.exchange.CreateAccount(ctx, email, password)
	s.observe(ctx, OpCreateAccount, login.ProviderPassword, start, err)
	return profile, err
}

// GetLoggedInUser refreshes the current session before reporting it. Any
// refresh failure, or no session at all, is userNotFound.
func (s *Service) GetLoggedInUser(ctx context.Context) (login.UserProfile, error) {
	start := time.Now()
	profile, err := s.exchange.CurrentProfile(ctx)
	provider := profile.Provider
	if err != nil {
		provider = login.ProviderUnknown
	}
	s.observe(ctx, OpCurrentUser, provider, start, err)
	return profile, err
}

// UpdateUserDetails is not implemented: there is no profile store to write
// to, so it always reports failure.
func (s *Service) UpdateUserDetails(ctx context.Context, userID string, details map[string]string) bool {
	logger.From(ctx).Info("update user details is not supported",
		zap.String("uid", userID),
		zap.Int("fields", len(details)),
	)
	return false
}

// SignOut ends the session. The platform's failure is returned unwrapped.
func (s *Service) SignOut(ctx context.Context) error {
	if err := s.exchange.SignOut(ctx); err != nil {
		logger.From(ctx).Warn("sign out failed", zap.Error(err))
		return err
	}
	return nil
}

// Close releases the exchange's session-state subscription.
func (s *Service) Close() {
	s.exchange.Close()
}

func (s *Service) observe(ctx context.Context, op string, provider login.Provider, start time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = login.KindOf(err).String()
	}
	elapsed := time.Since(start)
	s.metrics.ObserveAttempt(op, string(provider), outcome, elapsed)

	log := logger.From(ctx).With(
		zap.String("op", op),
		zap.String("provider", string(provider)),
		zap.Duration("elapsed", elapsed),
	)
	if err != nil {
		log.Info("login operation failed", zap.String("kind", outcome), zap.Error(err))
		return
	}
	log.Debug("login operation succeeded")
}
