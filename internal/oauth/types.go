package oauth

import (
	"context"
	"errors"
	"net/url"

	"firebaselogin/internal/login"
)

var (
	// ErrNoPendingRequest is returned when a callback arrives and no sign-in is waiting for it.
	ErrNoPendingRequest = errors.New("a login callback was received, but no login request was sent")
	// ErrStateMismatch is returned when a callback does not belong to the pending sign-in.
	ErrStateMismatch = errors.New("the login callback does not match the pending request")
	// ErrBusy is returned when a second sign-in starts while one is pending.
	ErrBusy = errors.New("sign-in already in progress")
)

// CallbackError is the error shown for a failed Complete. Callbacks that no
// pending sign-in accepts are reported as an invalid state.
func CallbackError(err error) *login.Error {
	if errors.Is(err, ErrNoPendingRequest) || errors.Is(err, ErrStateMismatch) {
		return login.Unknown("Invalid state: " + err.Error() + ".")
	}
	return login.AsError(err)
}

// Provider produces a normalized credential from one identity provider.
type Provider interface {
	Name() login.Provider
	SignIn(ctx context.Context) (login.Credential, error)
}

// Interactive is a Provider whose sign-in completes through a redirect callback.
type Interactive interface {
	Provider
	Complete(ctx context.Context, cb Callback) error
}

// Callback is what the provider sends back to the redirect URL, either as a
// query string or as a form post.
type Callback struct {
	State   string
	Code    string
	IDToken string
	// User is Apple's JSON user blob, only present on the first authorization.
	User             string
	Error            string
	ErrorDescription string
}

// CallbackFromValues reads a Callback from query or form values.
func CallbackFromValues(v url.Values) Callback {
	return Callback{
		State:            v.Get("state"),
		Code:             v.Get("code"),
		IDToken:          v.Get("id_token"),
		User:             v.Get("user"),
		Error:            v.Get("error"),
		ErrorDescription: v.Get("error_description"),
	}
}

func (cb Callback) errorMessage() string {
	if cb.ErrorDescription != "" {
		return cb.Error + ": " + cb.ErrorDescription
	}
	return cb.Error
}
