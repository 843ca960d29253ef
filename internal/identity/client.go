// Package identity is a client for the remote identity platform (the
// Identity Toolkit and Secure Token REST APIs). It owns the current session
// and reports session-state changes to registered listeners.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"firebaselogin/internal/logger"
	"firebaselogin/internal/storage"
)

const (
	DefaultIdentityURL    = "https://identitytoolkit.googleapis.com/v1"
	DefaultSecureTokenURL = "https://securetoken.googleapis.com/v1"
	DefaultRequestURI     = "http://localhost"
)

// StateListener is called with the signed-in user, or nil after sign-out.
type StateListener func(user *User)

// ListenerHandle identifies a registered StateListener.
type ListenerHandle uint64

// Client talks to the identity platform. Construct it once and pass it to
// whatever needs session access; it holds no global state.
type Client struct {
	apiKey         string
	identityURL    string
	secureTokenURL string
	requestURI     string
	httpClient     *http.Client
	store          storage.SessionStore
	now            func() time.Time

	refreshes singleflight.Group

	mu         sync.Mutex
	nextHandle ListenerHandle
	listeners  map[ListenerHandle]StateListener
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithEndpoints points the client at different API roots, e.g. the local emulator.
func WithEndpoints(identityURL, secureTokenURL string) Option {
	return func(c *Client) {
		if identityURL != "" {
			c.identityURL = strings.TrimRight(identityURL, "/")
		}
		if secureTokenURL != "" {
			c.secureTokenURL = strings.TrimRight(secureTokenURL, "/")
		}
	}
}

// WithRequestURI sets the requestUri sent with federated sign-ins.
func WithRequestURI(uri string) Option {
	return func(c *Client) {
		if uri != "" {
			c.requestURI = uri
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient builds a client for the project identified by apiKey. A nil store
// keeps the session in memory.
func NewClient(apiKey string, store storage.SessionStore, opts ...Option) *Client {
	if store == nil {
		store = storage.NewMemorySessionStore()
	}
	c := &Client{
		apiKey:         apiKey,
		identityURL:    DefaultIdentityURL,
		secureTokenURL: DefaultSecureTokenURL,
		requestURI:     DefaultRequestURI,
		httpClient:     http.DefaultClient,
		store:          store,
		now:            time.Now,
		listeners:      map[ListenerHandle]StateListener{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateUser registers a new email/password account and signs it in.
func (c *Client) CreateUser(ctx context.Context, email, password string) (*AuthResult, error) {
	var res passwordResponse
	err := c.postJSON(ctx, "signUp", c.identityEndpoint("accounts:signUp"), passwordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &res)
	if err != nil {
		return nil, err
	}

	user, err := c.establish(ctx, res.grant())
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, IsNewUser: true}, nil
}

// SignInWithPassword signs in an existing email/password account.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*AuthResult, error) {
	var res passwordResponse
	err := c.postJSON(ctx, "signInWithPassword", c.identityEndpoint("accounts:signInWithPassword"), passwordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &res)
	if err != nil {
		return nil, err
	}

	user, err := c.establish(ctx, res.grant())
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user}, nil
}

// SignInWithCredential exchanges a federated credential for a session.
func (c *Client) SignInWithCredential(ctx context.Context, cred Credential) (*AuthResult, error) {
	var res idpResponse
	err := c.postJSON(ctx, "signInWithIdp", c.identityEndpoint("accounts:signInWithIdp"), idpRequest{
		PostBody:            cred.postBody(),
		RequestURI:          c.requestURI,
		ReturnIdpCredential: true,
		ReturnSecureToken:   true,
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.NeedConfirmation {
		return nil, &Error{
			Status:  http.StatusOK,
			Code:    CodeNeedConfirmation,
			Message: "NEED_CONFIRMATION : an account already exists with the same email address but a different sign-in method",
		}
	}

	user, err := c.establish(ctx, tokenGrant{
		UID:          res.LocalID,
		IDToken:      res.IDToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
	})
	if err != nil {
		return nil, err
	}

	if cred.DisplayName != "" && user.DisplayName == "" {
		if err := c.updateDisplayName(ctx, user, cred.DisplayName); err != nil {
			logger.From(ctx).Warn("unable to apply display name", zap.String("uid", user.UID), zap.Error(err))
		}
	}

	return &AuthResult{User: user, IsNewUser: res.IsNewUser}, nil
}

// SendEmailVerification asks the platform to mail a verification link to user.
func (c *Client) SendEmailVerification(ctx context.Context, user *User) error {
	if user == nil {
		return ErrNoSession
	}
	return c.postJSON(ctx, "sendOobCode", c.identityEndpoint("accounts:sendOobCode"), map[string]string{
		"requestType": "VERIFY_EMAIL",
		"idToken":     user.IDToken,
	}, nil)
}

// CurrentUser returns the signed-in user from the session store.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	session, err := c.store.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("identity: load session: %w", err)
	}
	return userFromSession(session), nil
}

// Reload forces a token refresh and re-reads the account. Codes that mean the
// session can never recover (deleted or disabled account, revoked token)
// sign the user out.
func (c *Client) Reload(ctx context.Context) (*User, error) {
	current, err := c.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	grant, err := c.refresh(ctx, current.RefreshToken)
	if err == nil {
		var info *accountInfo
		info, err = c.lookup(ctx, grant.IDToken)
		if err == nil {
			user := c.buildUser(grant, info)
			if err := c.store.Save(ctx, user.session()); err != nil {
				return nil, fmt.Errorf("identity: save session: %w", err)
			}
			return user, nil
		}
	}

	if sessionRevoked(Code(err)) {
		logger.From(ctx).Info("session revoked by platform", zap.String("uid", current.UID), zap.String("code", Code(err)))
		if clearErr := c.store.Clear(ctx); clearErr == nil {
			c.notify(nil)
		}
	}
	return nil, err
}

// Restore rebuilds a session from a refresh token obtained earlier.
func (c *Client) Restore(ctx context.Context, refreshToken string) (*User, error) {
	grant, err := c.refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return c.establish(ctx, grant)
}

// SignOut drops the current session and notifies listeners.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("identity: sign out: %w", err)
	}
	c.notify(nil)
	return nil
}

// AddStateListener registers fn and calls it once right away with the
// current user, so subscribers always start from the actual state.
func (c *Client) AddStateListener(fn StateListener) ListenerHandle {
	c.mu.Lock()
	c.nextHandle++
	handle := c.nextHandle
	c.listeners[handle] = fn
	c.mu.Unlock()

	user, err := c.CurrentUser(context.Background())
	if err != nil {
		user = nil
	}
	fn(user)
	return handle
}

// RemoveStateListener unregisters a listener. Unknown handles are ignored.
func (c *Client) RemoveStateListener(handle ListenerHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listeners, handle)
}

func (c *Client) notify(user *User) {
	c.mu.Lock()
	listeners := make([]StateListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(user)
	}
}

// establish completes any sign-in: read the account, store the session and
// tell listeners.
func (c *Client) establish(ctx context.Context, grant tokenGrant) (*User, error) {
	info, err := c.lookup(ctx, grant.IDToken)
	if err != nil {
		return nil, err
	}

	user := c.buildUser(grant, info)
	if err := c.store.Save(ctx, user.session()); err != nil {
		return nil, fmt.Errorf("identity: save session: %w", err)
	}
	c.notify(user)
	return user, nil
}

func (c *Client) buildUser(grant tokenGrant, info *accountInfo) *User {
	user := &User{
		UID:           info.LocalID,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		DisplayName:   info.DisplayName,
		IDToken:       grant.IDToken,
		RefreshToken:  grant.RefreshToken,
		ExpiresAt:     expiry(c.now(), grant.ExpiresIn),
		CreatedAt:     millis(info.CreatedAt),
		LastSignInAt:  millis(info.LastLoginAt),
	}
	if user.UID == "" {
		user.UID = grant.UID
	}

	if claims, err := parseIDToken(grant.IDToken); err == nil {
		user.ProviderID = claims.Firebase.SignInProvider
	}
	if user.ProviderID == "" && len(info.ProviderUserInfo) > 0 {
		user.ProviderID = info.ProviderUserInfo[0].ProviderID
	}
	return user
}

func (c *Client) lookup(ctx context.Context, idToken string) (*accountInfo, error) {
	var res struct {
		Users []accountInfo `json:"users"`
	}
	if err := c.postJSON(ctx, "lookup", c.identityEndpoint("accounts:lookup"), map[string]string{
		"idToken": idToken,
	}, &res); err != nil {
		return nil, err
	}
	if len(res.Users) == 0 {
		return nil, &Error{Status: http.StatusOK, Code: CodeUserNotFound, Message: CodeUserNotFound}
	}
	return &res.Users[0], nil
}

func (c *Client) updateDisplayName(ctx context.Context, user *User, displayName string) error {
	err := c.postJSON(ctx, "update", c.identityEndpoint("accounts:update"), map[string]any{
		"idToken":           user.IDToken,
		"displayName":       displayName,
		"returnSecureToken": false,
	}, nil)
	if err != nil {
		return err
	}

	user.DisplayName = displayName
	return c.store.Save(ctx, user.session())
}

// refresh trades a refresh token for a fresh ID token. Concurrent refreshes
// of the same token share one request.
func (c *Client) refresh(ctx context.Context, refreshToken string) (tokenGrant, error) {
	if refreshToken == "" {
		return tokenGrant{}, &Error{Status: http.StatusBadRequest, Code: CodeInvalidRefreshToken, Message: CodeInvalidRefreshToken}
	}

	v, err, _ := c.refreshes.Do(refreshToken, func() (interface{}, error) {
		form := url.Values{}
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", refreshToken)

		var res refreshResponse
		if err := c.postForm(ctx, "token", c.secureTokenURL+"/token?key="+url.QueryEscape(c.apiKey), form, &res); err != nil {
			return nil, err
		}
		return tokenGrant{
			UID:          res.UserID,
			IDToken:      res.IDToken,
			RefreshToken: res.RefreshToken,
			ExpiresIn:    res.ExpiresIn,
		}, nil
	})
	if err != nil {
		return tokenGrant{}, err
	}
	return v.(tokenGrant), nil
}

func (c *Client) identityEndpoint(method string) string {
	return c.identityURL + "/" + method + "?key=" + url.QueryEscape(c.apiKey)
}

func (c *Client) postJSON(ctx context.Context, op, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("identity: encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, op, out)
}

func (c *Client) postForm(ctx context.Context, op, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	log := logger.From(req.Context())
	start := time.Now()

	res, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return ctxErr
		}
		log.Debug("identity request failed", zap.String("op", op), zap.Error(err))
		return fmt.Errorf("identity: %s: %w: %v", op, ErrUnavailable, err)
	}
	defer res.Body.Close()

	log.Debug("identity request", zap.String("op", op), zap.Int("status", res.StatusCode), zap.Duration("elapsed", time.Since(start)))

	if res.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if err := json.NewDecoder(res.Body).Decode(&apiErr); err != nil || apiErr.Error.Message == "" {
			return &Error{Status: res.StatusCode, Message: http.StatusText(res.StatusCode)}
		}
		return newError(res.StatusCode, apiErr.Error.Message)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("identity: decode %s response: %w", op, ErrMalformedResponse)
	}
	return nil
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type passwordResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

func (r passwordResponse) grant() tokenGrant {
	return tokenGrant{
		UID:          r.LocalID,
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
		ExpiresIn:    r.ExpiresIn,
	}
}

type idpRequest struct {
	PostBody            string `json:"postBody"`
	RequestURI          string `json:"requestUri"`
	ReturnIdpCredential bool   `json:"returnIdpCredential"`
	ReturnSecureToken   bool   `json:"returnSecureToken"`
}

type idpResponse struct {
	LocalID          string `json:"localId"`
	Email            string `json:"email"`
	ProviderID       string `json:"providerId"`
	IDToken          string `json:"idToken"`
	RefreshToken     string `json:"refreshToken"`
	ExpiresIn        string `json:"expiresIn"`
	IsNewUser        bool   `json:"isNewUser"`
	NeedConfirmation bool   `json:"needConfirmation"`
}

type refreshResponse struct {
	ExpiresIn    string `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	UserID       string `json:"user_id"`
}
