package oauth

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"firebaselogin/internal/logger"
	"firebaselogin/internal/login"
	"firebaselogin/internal/nonce"
)

// AppleEndpoint is Sign in with Apple's authorization server.
var AppleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://appleid.apple.com/auth/authorize",
	TokenURL: "https://appleid.apple.com/auth/token",
}

const appleUserCancelled = "user_cancelled_authorize"

// AppleProvider runs Sign in with Apple. Each attempt carries a fresh nonce:
// the hash goes to Apple, the raw value stays here and is later handed to the
// identity platform, which checks that the two match.
type AppleProvider struct {
	config      *oauth2.Config
	presenter   Presenter
	nonceLength int
	flight      inflight
}

// NewAppleProvider builds an adapter for the given Services ID. redirectURL
// must point at the callback server's Apple route.
func NewAppleProvider(clientID, redirectURL string, presenter Presenter, opts ...Option) *AppleProvider {
	o := buildOptions(opts)
	endpoint := AppleEndpoint
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}

	return &AppleProvider{
		config: &oauth2.Config{
			ClientID:    clientID,
			RedirectURL: redirectURL,
			Endpoint:    endpoint,
			Scopes:      []string{"name", "email"},
		},
		presenter:   presenter,
		nonceLength: o.nonceLength,
	}
}

// Name implements Provider.
func (p *AppleProvider) Name() login.Provider {
	return login.ProviderApple
}

// SignIn presents Apple's authorization page and waits for the callback.
func (p *AppleProvider) SignIn(ctx context.Context) (login.Credential, error) {
	if p.config.ClientID == "" {
		return login.Credential{}, login.ErrMissingClientID
	}

	req := newPendingRequest(uuid.NewString())
	req.nonce = nonce.Generate(p.nonceLength)
	if err := p.flight.begin(req); err != nil {
		return login.Credential{}, login.AsError(err)
	}

	authURL := p.config.AuthCodeURL(req.state,
		oauth2.SetAuthURLParam("response_type", "code id_token"),
		oauth2.SetAuthURLParam("response_mode", "form_post"),
		oauth2.SetAuthURLParam("nonce", nonce.Hash(req.nonce)),
	)

	log := logger.From(ctx).With(zap.String("provider", string(login.ProviderApple)))
	if err := p.presenter.Present(ctx, authURL); err != nil {
		p.flight.abandon(req)
		log.Warn("unable to present authorization", zap.Error(err))
		return login.Credential{}, login.Unknown(err.Error())
	}

	cb, err := p.flight.await(ctx, req)
	if err != nil {
		log.Info("sign-in abandoned", zap.Error(err))
		return login.Credential{}, login.ErrAccessDenied
	}

	return p.credential(req.nonce, cb)
}

// Complete delivers Apple's form post to the pending sign-in. A callback with
// no sign-in in flight reports ErrNoPendingRequest.
func (p *AppleProvider) Complete(ctx context.Context, cb Callback) error {
	if err := p.flight.deliver(cb); err != nil {
		logger.From(ctx).Warn("unexpected apple callback", zap.Error(err))
		return err
	}
	return nil
}

func (p *AppleProvider) credential(rawNonce string, cb Callback) (login.Credential, error) {
	switch {
	case cb.Error == appleUserCancelled:
		return login.Credential{}, login.ErrAccessDenied
	case cb.Error != "":
		return login.Credential{}, login.Unknown(cb.errorMessage())
	case cb.IDToken == "":
		return login.Credential{}, login.ErrTokenStringMissing
	}

	claims, err := parseAppleIDToken(cb.IDToken)
	if err != nil {
		return login.Credential{}, login.ErrCorruptedData
	}
	if claims.Nonce != nonce.Hash(rawNonce) {
		return login.Credential{}, login.Unknown("Invalid state: the identity token does not answer the pending request.")
	}

	return login.Credential{
		Provider: login.ProviderApple,
		IDToken:  cb.IDToken,
		Nonce:    rawNonce,
		FullName: parseAppleFullName(cb.User),
	}, nil
}
