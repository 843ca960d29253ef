package oauth

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"firebaselogin/internal/logger"
	"firebaselogin/internal/login"
)

const googleAccessDenied = "access_denied"

// GoogleProvider runs Google Sign-In as an installed-app authorization code
// flow with PKCE, and returns Google's ID and access tokens.
type GoogleProvider struct {
	config     *oauth2.Config
	presenter  Presenter
	httpClient *http.Client
	flight     inflight
}

// NewGoogleProvider builds an adapter for the given OAuth client. An empty
// clientID is accepted here and reported as missingClientId on SignIn.
func NewGoogleProvider(clientID, clientSecret, redirectURL string, presenter Presenter, opts ...Option) *GoogleProvider {
	o := buildOptions(opts)
	endpoint := google.Endpoint
	if o.endpoint != nil {
		endpoint = *o.endpoint
	}

	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
			RedirectURL:  redirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		presenter:  presenter,
		httpClient: o.httpClient,
	}
}

// Name implements Provider.
func (p *GoogleProvider) Name() login.Provider {
	return login.ProviderGoogle
}

// SignIn presents Google's consent page, waits for the callback and exchanges
// the authorization code.
func (p *GoogleProvider) SignIn(ctx context.Context) (login.Credential, error) {
	if p.config.ClientID == "" {
		return login.Credential{}, login.ErrMissingClientID
	}

	req := newPendingRequest(uuid.NewString())
	req.verifier = oauth2.GenerateVerifier()
	if err := p.flight.begin(req); err != nil {
		return login.Credential{}, login.AsError(err)
	}

	authURL := p.config.AuthCodeURL(req.state,
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(req.verifier),
	)

	log := logger.From(ctx).With(zap.String("provider", string(login.ProviderGoogle)))
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

	switch {
	case cb.Error == googleAccessDenied:
		return login.Credential{}, login.ErrAccessDenied
	case cb.Error != "":
		return login.Credential{}, login.Unknown(cb.errorMessage())
	case cb.Code == "":
		return login.Credential{}, login.Unknown("google: callback carried no authorization code")
	}

	return p.exchange(ctx, cb.Code, req.verifier)
}

// Complete delivers the redirect query to the pending sign-in.
func (p *GoogleProvider) Complete(ctx context.Context, cb Callback) error {
	if err := p.flight.deliver(cb); err != nil {
		logger.From(ctx).Warn("unexpected google callback", zap.Error(err))
		return err
	}
	return nil
}

func (p *GoogleProvider) exchange(ctx context.Context, code, verifier string) (login.Credential, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	token, err := p.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return login.Credential{}, exchangeError(err)
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return login.Credential{}, login.ErrTokenStringMissing
	}

	return login.Credential{
		Provider:    login.ProviderGoogle,
		IDToken:     idToken,
		AccessToken: token.AccessToken,
	}, nil
}

func exchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == googleAccessDenied {
			return login.ErrAccessDenied
		}
		if retrieveErr.ErrorDescription != "" {
			return login.Unknown(retrieveErr.ErrorDescription)
		}
		return login.Unknown(err.Error())
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return login.ErrNetworkError
	}
	return login.Unknown(err.Error())
}
