package oauth

import (
	"context"

	"firebaselogin/internal/login"
)

// PasswordExchanger signs in an email/password account with the platform.
type PasswordExchanger interface {
	SignInWithPassword(ctx context.Context, email, password string) (login.UserProfile, error)
}

// PasswordProvider is the email/password adapter. It has no interactive step
// and no credential of its own: it checks the email locally and hands the
// pair straight to the platform.
type PasswordProvider struct {
	exchanger PasswordExchanger
}

// NewPasswordProvider builds the adapter on top of exchanger.
func NewPasswordProvider(exchanger PasswordExchanger) *PasswordProvider {
	return &PasswordProvider{exchanger: exchanger}
}

// Name implements Provider.
func (p *PasswordProvider) Name() login.Provider {
	return login.ProviderPassword
}

// SignIn implements Provider. Password sign-in needs an email and password,
// so the credential-only path is not supported.
func (p *PasswordProvider) SignIn(context.Context) (login.Credential, error) {
	return login.Credential{}, login.ErrLoginNotSupported
}

// SignInWithPassword validates email and signs in.
func (p *PasswordProvider) SignInWithPassword(ctx context.Context, email, password string) (login.UserProfile, error) {
	if err := login.ValidateEmail(email); err != nil {
		return login.UserProfile{}, err
	}
	return p.exchanger.SignInWithPassword(ctx, email, password)
}
