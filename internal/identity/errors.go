package identity

import (
	"errors"
	"strings"
)

var (
	// ErrNoSession indicates that no account is signed in.
	ErrNoSession = errors.New("identity: no signed-in user")
	// ErrUnavailable indicates the platform could not be reached.
	ErrUnavailable = errors.New("identity platform unavailable")
	// ErrMalformedResponse indicates a response body that could not be decoded.
	ErrMalformedResponse = errors.New("identity platform returned a malformed response")
)

// Vendor error codes the rest of the module cares about.
const (
	CodeEmailExists            = "EMAIL_EXISTS"
	CodeWeakPassword           = "WEAK_PASSWORD"
	CodeEmailNotFound          = "EMAIL_NOT_FOUND"
	CodeUserNotFound           = "USER_NOT_FOUND"
	CodeInvalidPassword        = "INVALID_PASSWORD"
	CodeInvalidLoginCredential = "INVALID_LOGIN_CREDENTIALS"
	CodeInvalidEmail           = "INVALID_EMAIL"
	CodeOperationNotAllowed    = "OPERATION_NOT_ALLOWED"
	CodeUserDisabled           = "USER_DISABLED"
	CodeTokenExpired           = "TOKEN_EXPIRED"
	CodeInvalidRefreshToken    = "INVALID_REFRESH_TOKEN"
	CodeNeedConfirmation       = "NEED_CONFIRMATION"
)

// Error is a failure reported by the platform itself.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// newError splits "WEAK_PASSWORD : Password should be at least 6 characters"
// into its code and keeps the full text as the message.
func newError(status int, message string) *Error {
	code, _, _ := strings.Cut(message, " : ")
	return &Error{
		Status:  status,
		Code:    strings.TrimSpace(code),
		Message: message,
	}
}

// Code returns the vendor code carried by err, or "" when err did not come
// from the platform.
func Code(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// sessionRevoked reports codes after which the held session can never be refreshed.
func sessionRevoked(code string) bool {
	switch code {
	case CodeUserNotFound, CodeUserDisabled, CodeTokenExpired, CodeInvalidRefreshToken:
		return true
	}
	return false
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
