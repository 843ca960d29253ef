package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"firebaselogin/internal/auth"
	"firebaselogin/internal/config"
	"firebaselogin/internal/identity"
	"firebaselogin/internal/logger"
	"firebaselogin/internal/login"
	"firebaselogin/internal/metrics"
	"firebaselogin/internal/oauth"
	"firebaselogin/internal/server"
	"firebaselogin/internal/storage"
)

// app is everything a command needs, built once from the configuration.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	http     *http.Client
	platform *identity.Client
	exchange *auth.Exchange
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	out      io.Writer
}

func newApp(cfg config.Config, out io.Writer) (*app, error) {
	log := logger.Init(logger.Config{Env: cfg.LogEnv, Level: cfg.LogLevel})

	hc := &http.Client{Timeout: cfg.HTTPTimeout}
	platform := identity.NewClient(cfg.FirebaseAPIKey, storage.NewMemorySessionStore(),
		identity.WithHTTPClient(hc),
		identity.WithEndpoints(cfg.IdentityToolkitURL, cfg.SecureTokenURL),
		identity.WithRequestURI(cfg.IdpRequestURI),
	)

	m := metrics.New()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	return &app{
		cfg:      cfg,
		log:      log,
		http:     hc,
		platform: platform,
		exchange: auth.NewExchange(platform),
		metrics:  m,
		registry: reg,
		out:      out,
	}, nil
}

func (a *app) close() {
	a.exchange.Close()
	_ = a.log.Sync()
}

func (a *app) service(provider oauth.Provider) *auth.Service {
	return auth.NewService(a.exchange, provider, auth.WithMetrics(a.metrics))
}

func (a *app) presenter() oauth.Presenter {
	return oauth.BrowserPresenter{Fallback: oauth.WriterPresenter{W: os.Stderr}}
}

func (a *app) providerOptions(ctx context.Context, issuer string) []oauth.Option {
	opts := []oauth.Option{
		oauth.WithHTTPClient(a.http),
		oauth.WithNonceLength(a.cfg.NonceLength),
	}
	if !a.cfg.OIDCDiscovery {
		return opts
	}

	endpoint, err := oauth.DiscoverEndpoint(oidc.ClientContext(ctx, a.http), issuer)
	if err != nil {
		a.log.Warn("endpoint discovery failed, using built-in endpoints", zap.String("issuer", issuer), zap.Error(err))
		return opts
	}
	return append(opts, oauth.WithEndpoint(endpoint))
}

// interactiveProvider builds the adapter for name ("apple" or "google").
func (a *app) interactiveProvider(ctx context.Context, name string) (oauth.Interactive, error) {
	switch login.Provider(name) {
	case login.ProviderApple:
		return oauth.NewAppleProvider(a.cfg.AppleClientID, a.cfg.RedirectURL(name), a.presenter(),
			a.providerOptions(ctx, oauth.AppleIssuer)...), nil
	case login.ProviderGoogle:
		return oauth.NewGoogleProvider(a.cfg.GoogleClientID, a.cfg.GoogleClientSecret, a.cfg.RedirectURL(name), a.presenter(),
			a.providerOptions(ctx, oauth.GoogleIssuer)...), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want apple or google)", name)
	}
}

// signInInteractive runs the callback server for the duration of one
// interactive sign-in.
func (a *app) signInInteractive(ctx context.Context, provider oauth.Interactive) (login.UserProfile, error) {
	routes := server.Routes{Metrics: a.metrics, MetricsHandler: metrics.Handler(a.registry)}
	switch provider.Name() {
	case login.ProviderApple:
		routes.Apple = provider
	case login.ProviderGoogle:
		routes.Google = provider
	}

	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	ready := make(chan string, 1)
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.Run(srvCtx, server.New(a.cfg.CallbackAddr, server.NewRouter(routes)), ready)
	}()

	select {
	case <-ready:
	case err := <-srvErr:
		return login.UserProfile{}, fmt.Errorf("start callback server: %w", err)
	}

	profile, err := a.service(provider).SignIn(ctx)
	stop()
	if runErr := <-srvErr; runErr != nil {
		a.log.Warn("callback server shutdown", zap.Error(runErr))
	}
	return profile, err
}

// restore signs the platform client in from a refresh token.
func (a *app) restore(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("--refresh-token is required")
	}
	if _, err := a.platform.Restore(ctx, refreshToken); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	return nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
