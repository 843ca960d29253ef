package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"firebaselogin/internal/identity"
	"firebaselogin/internal/logger"
	"firebaselogin/internal/login"
)

// Platform is the part of the identity platform the exchange needs. The
// identity client satisfies it; tests substitute a fake.
type Platform interface {
	CurrentUser(ctx context.Context) (*identity.User, error)
	AddStateListener(fn identity.StateListener) identity.ListenerHandle
	RemoveStateListener(handle identity.ListenerHandle)
	CreateUser(ctx context.Context, email, password string) (*identity.AuthResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (*identity.AuthResult, error)
	SignInWithCredential(ctx context.Context, cred identity.Credential) (*identity.AuthResult, error)
	SendEmailVerification(ctx context.Context, user *identity.User) error
	Reload(ctx context.Context) (*identity.User, error)
	SignOut(ctx context.Context) error
}

// Exchange trades credentials for platform sessions and turns the resulting
// platform users into profiles. Every failure leaves it as a *login.Error.
type Exchange struct {
	platform Platform
	listener identity.ListenerHandle
}

// NewExchange subscribes to the platform's session-state changes for logging.
// Call Close to unsubscribe.
func NewExchange(platform Platform) *Exchange {
	e := &Exchange{platform: platform}
	e.listener = platform.AddStateListener(logStateChange)
	return e
}

// Close unsubscribes the session-state listener.
func (e *Exchange) Close() {
	e.platform.RemoveStateListener(e.listener)
}

func logStateChange(user *identity.User) {
	if user == nil {
		logger.L().Info("session state changed", zap.Bool("signedIn", false))
		return
	}
	logger.L().Info("session state changed",
		zap.Bool("signedIn", true),
		zap.String("uid", user.UID),
		zap.String("providerId", user.ProviderID),
	)
}

// Exchange signs in with a federated credential.
func (e *Exchange) Exchange(ctx context.Context, cred login.Credential) (login.UserProfile, error) {
	platformCred, err := platformCredential(cred)
	if err != nil {
		return login.UserProfile{}, err
	}

	res, err := e.platform.SignInWithCredential(ctx, platformCred)
	if err != nil {
		logger.From(ctx).Info("credential sign-in failed",
			zap.String("provider", string(cred.Provider)),
			zap.String("code", identity.Code(err)),
		)
		return login.UserProfile{}, mapError(err, login.KindEmailAlreadyInUse, login.KindWeakPassword)
	}
	return profileFrom(res, cred.Provider), nil
}

// SignInWithPassword signs in an existing email/password account.
func (e *Exchange) SignInWithPassword(ctx context.Context, email, password string) (login.UserProfile, error) {
	res, err := e.platform.SignInWithPassword(ctx, email, password)
	if err != nil {
		logger.From(ctx).Info("password sign-in failed", zap.String("code", identity.Code(err)))
		return login.UserProfile{}, mapError(err, login.KindUserNotFound, login.KindWrongPassword, login.KindNetworkError)
	}
	return profileFrom(res, login.ProviderPassword), nil
}

// CreateAccount registers an email/password account and, when the platform
// reports it unverified, asks for a verification email. Input is checked
// locally before any platform call.
func (e *Exchange) CreateAccount(ctx context.Context, email, password string) (login.UserProfile, error) {
	if err := login.ValidateEmail(email); err != nil {
		return login.UserProfile{}, err
	}
	if password == "" {
		return login.UserProfile{}, login.ErrWeakPassword
	}

	res, err := e.platform.CreateUser(ctx, email, password)
	if err != nil {
		logger.From(ctx).Info("account creation failed", zap.String("code", identity.Code(err)))
		return login.UserProfile{}, mapError(err, login.KindEmailAlreadyInUse, login.KindWeakPassword)
	}

	if res.User != nil && !res.User.EmailVerified {
		if err := e.platform.SendEmailVerification(ctx, res.User); err != nil {
			logger.From(ctx).Warn("verification email failed", zap.String("uid", res.User.UID), zap.Error(err))
			return login.UserProfile{}, login.Unknown(err.Error())
		}
	}
	return profileFrom(res, login.ProviderPassword), nil
}

// CurrentProfile refreshes the held session and reports it. No session, or a
// session the platform refuses to refresh, is userNotFound.
func (e *Exchange) CurrentProfile(ctx context.Context) (login.UserProfile, error) {
	if _, err := e.platform.CurrentUser(ctx); err != nil {
		return login.UserProfile{}, login.ErrUserNotFound
	}

	user, err := e.platform.Reload(ctx)
	if err != nil {
		logger.From(ctx).Info("session refresh failed", zap.Error(err))
		return login.UserProfile{}, login.ErrUserNotFound
	}
	if user == nil {
		return login.UserProfile{}, login.ErrUserNotFound
	}
	return profileFrom(&identity.AuthResult{User: user}, providerOf(user.ProviderID)), nil
}

// SignOut ends the platform session. The platform's error is returned as is.
func (e *Exchange) SignOut(ctx context.Context) error {
	return e.platform.SignOut(ctx)
}

func platformCredential(cred login.Credential) (identity.Credential, error) {
	switch cred.Provider {
	case login.ProviderApple:
		var displayName string
		if cred.FullName != nil {
			displayName = cred.FullName.String()
		}
		return identity.AppleCredential(cred.IDToken, cred.Nonce, displayName), nil
	case login.ProviderGoogle:
		return identity.GoogleCredential(cred.IDToken, cred.AccessToken), nil
	default:
		return identity.Credential{}, login.ErrLoginNotSupported
	}
}

// profileFrom reports res as signed in through provider. The platform's own
// notion of the provider is only consulted for an existing session.
func profileFrom(res *identity.AuthResult, provider login.Provider) login.UserProfile {
	if res == nil || res.User == nil {
		return login.UserProfile{}
	}
	u := res.User
	return login.UserProfile{
		ID:           u.UID,
		Email:        u.Email,
		RefreshToken: u.RefreshToken,
		IsNewAccount: res.IsNewUser,
		Provider:     provider,
		CreatedAt:    u.CreatedAt,
		LastSignInAt: u.LastSignInAt,
	}
}

func providerOf(providerID string) login.Provider {
	switch providerID {
	case identity.ProviderIDPassword:
		return login.ProviderPassword
	case identity.ProviderIDGoogle:
		return login.ProviderGoogle
	case identity.ProviderIDApple:
		return login.ProviderApple
	default:
		return login.ProviderUnknown
	}
}

// classify maps a platform failure onto the closed error set.
func classify(err error) login.Kind {
	switch {
	case errors.Is(err, identity.ErrUnavailable):
		return login.KindNetworkError
	case errors.Is(err, identity.ErrMalformedResponse):
		return login.KindCorruptedData
	}

	switch identity.Code(err) {
	case identity.CodeEmailExists, identity.CodeNeedConfirmation:
		return login.KindEmailAlreadyInUse
	case identity.CodeWeakPassword:
		return login.KindWeakPassword
	case identity.CodeEmailNotFound, identity.CodeUserNotFound:
		return login.KindUserNotFound
	case identity.CodeInvalidPassword, identity.CodeInvalidLoginCredential:
		return login.KindWrongPassword
	case identity.CodeInvalidEmail:
		return login.KindInvalidEmail
	case identity.CodeOperationNotAllowed:
		return login.KindLoginNotSupported
	}
	return login.KindUnknown
}

// mapError keeps the classified kind only when the operation reports it;
// anything else becomes unknownError with the platform's message.
func mapError(err error, allowed ...login.Kind) *login.Error {
	kind := classify(err)
	for _, k := range allowed {
		if k == kind {
			return &login.Error{Kind: kind}
		}
	}
	return login.Unknown(err.Error())
}
