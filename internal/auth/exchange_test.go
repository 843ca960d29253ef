package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"firebaselogin/internal/identity"
	"firebaselogin/internal/logger"
	"firebaselogin/internal/login"
	"firebaselogin/internal/storage"
)

type stubPlatform struct {
	currentUserFn      func(ctx context.Context) (*identity.User, error)
	createUserFn       func(ctx context.Context, email, password string) (*identity.AuthResult, error)
	passwordSignInFn   func(ctx context.Context, email, password string) (*identity.AuthResult, error)
	credentialFn       func(ctx context.Context, cred identity.Credential) (*identity.AuthResult, error)
	sendVerificationFn func(ctx context.Context, user *identity.User) error
	reloadFn           func(ctx context.Context) (*identity.User, error)
	signOutFn          func(ctx context.Context) error

	listeners map[identity.ListenerHandle]identity.StateListener
	next      identity.ListenerHandle
	calls     []string
}

func (s *stubPlatform) record(name string) {
	s.calls = append(s.calls, name)
}

func (s *stubPlatform) CurrentUser(ctx context.Context) (*identity.User, error) {
	s.record("CurrentUser")
	if s.currentUserFn == nil {
		return nil, identity.ErrNoSession
	}
	return s.currentUserFn(ctx)
}

func (s *stubPlatform) AddStateListener(fn identity.StateListener) identity.ListenerHandle {
	if s.listeners == nil {
		s.listeners = map[identity.ListenerHandle]identity.StateListener{}
	}
	s.next++
	s.listeners[s.next] = fn
	fn(nil)
	return s.next
}

func (s *stubPlatform) RemoveStateListener(handle identity.ListenerHandle) {
	delete(s.listeners, handle)
}

func (s *stubPlatform) CreateUser(ctx context.Context, email, password string) (*identity.AuthResult, error) {
	s.record("CreateUser")
	return s.createUserFn(ctx, email, password)
}

func (s *stubPlatform) SignInWithPassword(ctx context.Context, email, password string) (*identity.AuthResult, error) {
	s.record("SignInWithPassword")
	return s.passwordSignInFn(ctx, email, password)
}

func (s *stubPlatform) SignInWithCredential(ctx context.Context, cred identity.Credential) (*identity.AuthResult, error) {
	s.record("SignInWithCredential")
	return s.credentialFn(ctx, cred)
}

func (s *stubPlatform) SendEmailVerification(ctx context.Context, user *identity.User) error {
	s.record("SendEmailVerification")
	if s.sendVerificationFn == nil {
		return nil
	}
	return s.sendVerificationFn(ctx, user)
}

func (s *stubPlatform) Reload(ctx context.Context) (*identity.User, error) {
	s.record("Reload")
	return s.reloadFn(ctx)
}

func (s *stubPlatform) SignOut(ctx context.Context) error {
	s.record("SignOut")
	if s.signOutFn == nil {
		return nil
	}
	return s.signOutFn(ctx)
}

func platformError(code string) error {
	return &identity.Error{Status: 400, Code: code, Message: code + " : detail"}
}

func TestExchangeListenerLifecycle(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	prev := logger.L()
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(prev) })

	platform := &stubPlatform{}
	ex := NewExchange(platform)
	require.Len(t, platform.listeners, 1)
	require.Equal(t, 1, logs.FilterMessage("session state changed").Len())

	for _, fn := range platform.listeners {
		fn(&identity.User{UID: "uid-1", ProviderID: identity.ProviderIDApple})
	}
	entries := logs.FilterMessage("session state changed").All()
	require.Len(t, entries, 2)
	require.Equal(t, "uid-1", entries[1].ContextMap()["uid"])

	ex.Close()
	require.Empty(t, platform.listeners)
}

func TestExchangeRoundTripKeepsProvider(t *testing.T) {
	cases := []struct {
		cred       login.Credential
		providerID string
	}{
		{
			cred:       login.Credential{Provider: login.ProviderApple, IDToken: "apple-token", Nonce: "raw-nonce", FullName: &login.PersonName{GivenName: "Ada", FamilyName: "Lovelace"}},
			providerID: identity.ProviderIDApple,
		},
		{
			cred:       login.Credential{Provider: login.ProviderGoogle, IDToken: "google-token", AccessToken: "google-access"},
			providerID: identity.ProviderIDGoogle,
		},
	}

	for _, tc := range cases {
		t.Run(string(tc.cred.Provider), func(t *testing.T) {
			var got identity.Credential
			platform := &stubPlatform{
				credentialFn: func(ctx context.Context, cred identity.Credential) (*identity.AuthResult, error) {
					got = cred
					return &identity.AuthResult{
						User:      &identity.User{UID: "uid-9", Email: "a@example.com", ProviderID: cred.ProviderID, RefreshToken: "r"},
						IsNewUser: true,
					}, nil
				},
			}
			ex := NewExchange(platform)
			defer ex.Close()

			profile, err := ex.Exchange(context.Background(), tc.cred)
			require.NoError(t, err)
			require.Equal(t, tc.cred.Provider, profile.Provider)
			require.Equal(t, "uid-9", profile.ID)
			require.True(t, profile.IsNewAccount)
			require.Equal(t, "r", profile.RefreshToken)

			require.Equal(t, tc.providerID, got.ProviderID)
			require.Equal(t, tc.cred.IDToken, got.IDToken)
			require.Equal(t, tc.cred.AccessToken, got.AccessToken)
			require.Equal(t, tc.cred.Nonce, got.RawNonce)
			if tc.cred.FullName != nil {
				require.Equal(t, "Ada Lovelace", got.DisplayName)
			}
		})
	}
}

func TestProfileProviderComesFromCredential(t *testing.T) {
	// A linked account: the platform reports the first linked provider, not
	// the one used for this sign-in.
	linked := func() *identity.AuthResult {
		return &identity.AuthResult{User: &identity.User{UID: "uid-7", ProviderID: identity.ProviderIDPassword}}
	}

	for _, p := range []login.Provider{login.ProviderApple, login.ProviderGoogle} {
		t.Run(string(p), func(t *testing.T) {
			platform := &stubPlatform{
				credentialFn: func(ctx context.Context, cred identity.Credential) (*identity.AuthResult, error) {
					return linked(), nil
				},
			}
			profile, err := NewExchange(platform).Exchange(context.Background(), login.Credential{Provider: p, IDToken: "t"})
			require.NoError(t, err)
			require.Equal(t, p, profile.Provider)
		})
	}

	t.Run("no provider reported", func(t *testing.T) {
		platform := &stubPlatform{
			credentialFn: func(ctx context.Context, cred identity.Credential) (*identity.AuthResult, error) {
				return &identity.AuthResult{User: &identity.User{UID: "uid-7"}}, nil
			},
		}
		profile, err := NewExchange(platform).Exchange(context.Background(), login.Credential{Provider: login.ProviderGoogle, IDToken: "t"})
		require.NoError(t, err)
		require.Equal(t, login.ProviderGoogle, profile.Provider)
	})

	t.Run("password", func(t *testing.T) {
		platform := &stubPlatform{
			passwordSignInFn: func(ctx context.Context, email, password string) (*identity.AuthResult, error) {
				return &identity.AuthResult{User: &identity.User{UID: "uid-7", ProviderID: identity.ProviderIDGoogle}}, nil
			},
			createUserFn: func(ctx context.Context, email, password string) (*identity.AuthResult, error) {
				return &identity.AuthResult{User: &identity.User{UID: "uid-8", EmailVerified: true}, IsNewUser: true}, nil
			},
		}
		ex := NewExchange(platform)

		profile, err := ex.SignInWithPassword(context.Background(), "ok@example.com", "pw")
		require.NoError(t, err)
		require.Equal(t, login.ProviderPassword, profile.Provider)

		profile, err = ex.CreateAccount(context.Background(), "ok@example.com", "pw")
		require.NoError(t, err)
		require.Equal(t, login.ProviderPassword, profile.Provider)
	})
}

func TestExchangeWithLinkedAccountOnIdentityClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch strings.TrimPrefix(r.URL.Path, "/") {
		case "accounts:signInWithIdp":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"localId":      "uid-1",
				"idToken":      "opaque",
				"refreshToken": "refresh-1",
				"expiresIn":    "3600",
			})
		case "accounts:lookup":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"users": []map[string]any{{
					"localId": "uid-1",
					"providerUserInfo": []map[string]any{
						{"providerId": identity.ProviderIDPassword},
						{"providerId": identity.ProviderIDGoogle},
					},
				}},
			})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	client := identity.NewClient("key", storage.NewMemorySessionStore(),
		identity.WithHTTPClient(srv.Client()),
		identity.WithEndpoints(srv.URL, srv.URL),
	)
	ex := NewExchange(client)
	defer ex.Close()

	profile, err := ex.Exchange(context.Background(), login.Credential{Provider: login.ProviderGoogle, IDToken: "google-token"})
	require.NoError(t, err)
	require.Equal(t, login.ProviderGoogle, profile.Provider)
	require.Equal(t, "uid-1", profile.ID)
	require.Equal(t, "refresh-1", profile.RefreshToken)
}

func TestExchangeRejectsPasswordAndUnknownCredentials(t *testing.T) {
	platform := &stubPlatform{}
	ex := NewExchange(platform)

	for _, p := range []login.Provider{login.ProviderPassword, login.ProviderUnknown} {
		_, err := ex.Exchange(context.Background(), login.Credential{Provider: p, IDToken: "t"})
		require.ErrorIs(t, err, login.ErrLoginNotSupported)
	}
	require.Empty(t, platform.calls)
}

func TestExchangeCredentialErrors(t *testing.T) {
	cases := []struct {
		err  error
		want login.Kind
	}{
		{platformError(identity.CodeEmailExists), login.KindEmailAlreadyInUse},
		{platformError(identity.CodeNeedConfirmation), login.KindEmailAlreadyInUse},
		{platformError(identity.CodeWeakPassword), login.KindWeakPassword},
		{platformError("INVALID_IDP_RESPONSE"), login.KindUnknown},
		{platformError(identity.CodeUserNotFound), login.KindUnknown},
		{fmt.Errorf("signInWithIdp: %w", identity.ErrUnavailable), login.KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			platform := &stubPlatform{
				credentialFn: func(ctx context.Context, cred identity.Credential) (*identity.AuthResult, error) {
					return nil, tc.err
				},
			}
			_, err := NewExchange(platform).Exchange(context.Background(), login.Credential{Provider: login.ProviderGoogle, IDToken: "t"})
			require.Equal(t, tc.want, login.KindOf(err))
			if tc.want == login.KindUnknown {
				require.EqualError(t, err, tc.err.Error())
			}
		})
	}
}

func TestExchangePasswordSignInErrors(t *testing.T) {
	cases := []struct {
		err  error
		want login.Kind
	}{
		{platformError(identity.CodeEmailNotFound), login.KindUserNotFound},
		{platformError(identity.CodeUserNotFound), login.KindUserNotFound},
		{platformError(identity.CodeInvalidPassword), login.KindWrongPassword},
		{platformError(identity.CodeInvalidLoginCredential), login.KindWrongPassword},
		{fmt.Errorf("signInWithPassword: %w", identity.ErrUnavailable), login.KindNetworkError},
		{platformError(identity.CodeEmailExists), login.KindUnknown},
		{platformError(identity.CodeUserDisabled), login.KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			platform := &stubPlatform{
				passwordSignInFn: func(ctx context.Context, email, password string) (*identity.AuthResult, error) {
					return nil, tc.err
				},
			}
			_, err := NewExchange(platform).SignInWithPassword(context.Background(), "a@example.com", "pw")
			require.Equal(t, tc.want, login.KindOf(err))
		})
	}
}

func TestCreateAccountValidatesLocally(t *testing.T) {
	platform := &stubPlatform{}
	ex := NewExchange(platform)

	_, err := ex.CreateAccount(context.Background(), "bad@x", "secret")
	require.ErrorIs(t, err, login.ErrInvalidEmail)

	_, err = ex.CreateAccount(context.Background(), "ok@example.com", "")
	require.ErrorIs(t, err, login.ErrWeakPassword)

	// email is checked before password
	_, err = ex.CreateAccount(context.Background(), "bad@x", "")
	require.ErrorIs(t, err, login.ErrInvalidEmail)

	require.Empty(t, platform.calls)
}

func TestCreateAccountSendsVerification(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var verified *identity.User
	platform := &stubPlatform{
		createUserFn: func(ctx context.Context, email, password string) (*identity.AuthResult, error) {
			return &identity.AuthResult{
				User:      &identity.User{UID: "uid-1", Email: email, ProviderID: identity.ProviderIDPassword, CreatedAt: &created},
				IsNewUser: true,
			}, nil
		},
		sendVerificationFn: func(ctx context.Context, user *identity.User) error {
			verified = user
			return nil
		},
	}

	profile, err := NewExchange(platform).CreateAccount(context.Background(), "ok@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, login.UserProfile{
		ID:           "uid-1",
		Email:        "ok@example.com",
		IsNewAccount: true,
		Provider:     login.ProviderPassword,
		CreatedAt:    &created,
	}, profile)
	require.NotNil(t, verified)
	require.Equal(t, []string{"CreateUser", "SendEmailVerification"}, platform.calls)
}

func TestCreateAccountSkipsVerificationForVerifiedAccount(t *testing.T) {
	platform := &stubPlatform{
		createUserFn: func(ctx context.Context, email, password string) (*identity.AuthResult, error) {
			return &identity.AuthResult{User: &identity.User{UID: "u", EmailVerified: true, ProviderID: identity.ProviderIDPassword}}, nil
		},
	}

	_, err := NewExchange(platform).CreateAccount(context.Background(), "ok@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, []string{"CreateUser"}, platform.calls)
}

func TestCreateAccountVerificationFailure(t *testing.T) {
	platform := &stubPlatform{
		createUserFn: func(ctx context.Context, email, password string) (*identity.AuthResult, error) {
			return &identity.AuthResult{User: &identity.User{UID: "u", ProviderID: identity.ProviderIDPassword}}, nil
		},
		sendVerificationFn: func(ctx context.Context, user *identity.User) error {
			return platformError("TOO_MANY_ATTEMPTS_TRY_LATER")
		},
	}

	_, err := NewExchange(platform).CreateAccount(context.Background(), "ok@example.com", "secret")
	require.Equal(t, login.KindUnknown, login.KindOf(err))
	require.EqualError(t, err, "TOO_MANY_ATTEMPTS_TRY_LATER : detail")
}

func TestCreateAccountErrorsStayInOperationSet(t *testing.T) {
	allowed := map[login.Kind]bool{
		login.KindInvalidEmail:      true,
		login.KindWeakPassword:      true,
		login.KindEmailAlreadyInUse: true,
		login.KindUnknown:           true,
	}
	codes := []string{
		identity.CodeEmailExists,
		identity.CodeWeakPassword,
		identity.CodeEmailNotFound,
		identity.CodeInvalidPassword,
		identity.CodeOperationNotAllowed,
		identity.CodeInvalidEmail,
		"SOMETHING_NEW",
	}

	for _, code := range codes {
		platform := &stubPlatform{
			createUserFn: func(ctx context.Context, email, password string) (*identity.AuthResult, error) {
				return nil, platformError(code)
			},
		}
		_, err := NewExchange(platform).CreateAccount(context.Background(), "ok@example.com", "secret")
		require.Error(t, err)
		require.True(t, allowed[login.KindOf(err)], "code %s gave %s", code, login.KindOf(err))
	}

	platform := &stubPlatform{
		createUserFn: func(ctx context.Context, email, password string) (*identity.AuthResult, error) {
			return nil, fmt.Errorf("signUp: %w", identity.ErrMalformedResponse)
		},
	}
	_, err := NewExchange(platform).CreateAccount(context.Background(), "ok@example.com", "secret")
	require.Equal(t, login.KindUnknown, login.KindOf(err))
}

func TestCurrentProfile(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		platform := &stubPlatform{}
		_, err := NewExchange(platform).CurrentProfile(context.Background())
		require.ErrorIs(t, err, login.ErrUserNotFound)
		require.NotContains(t, platform.calls, "Reload")
	})

	t.Run("refresh failure", func(t *testing.T) {
		platform := &stubPlatform{
			currentUserFn: func(ctx context.Context) (*identity.User, error) {
				return &identity.User{UID: "u"}, nil
			},
			reloadFn: func(ctx context.Context) (*identity.User, error) {
				return nil, fmt.Errorf("token: %w", identity.ErrUnavailable)
			},
		}
		_, err := NewExchange(platform).CurrentProfile(context.Background())
		require.ErrorIs(t, err, login.ErrUserNotFound)
	})

	t.Run("refreshed", func(t *testing.T) {
		platform := &stubPlatform{
			currentUserFn: func(ctx context.Context) (*identity.User, error) {
				return &identity.User{UID: "u", RefreshToken: "old"}, nil
			},
			reloadFn: func(ctx context.Context) (*identity.User, error) {
				return &identity.User{UID: "u", Email: "g@example.com", ProviderID: identity.ProviderIDGoogle, RefreshToken: "new"}, nil
			},
		}
		profile, err := NewExchange(platform).CurrentProfile(context.Background())
		require.NoError(t, err)
		require.Equal(t, login.ProviderGoogle, profile.Provider)
		require.Equal(t, "new", profile.RefreshToken)
		require.False(t, profile.IsNewAccount)
		require.Equal(t, []string{"CurrentUser", "Reload"}, platform.calls)
	})
}

func TestExchangeSignOutPropagates(t *testing.T) {
	boom := errors.New("store unavailable")
	platform := &stubPlatform{signOutFn: func(ctx context.Context) error { return boom }}

	err := NewExchange(platform).SignOut(context.Background())
	require.Same(t, boom, err)
}

func TestProviderOf(t *testing.T) {
	require.Equal(t, login.ProviderPassword, providerOf("password"))
	require.Equal(t, login.ProviderGoogle, providerOf("google.com"))
	require.Equal(t, login.ProviderApple, providerOf("apple.com"))
	require.Equal(t, login.ProviderUnknown, providerOf("github.com"))
	require.Equal(t, login.ProviderUnknown, providerOf(""))
}
