// Package login holds the data model shared by the provider adapters, the
// session exchange and the facade, including the closed error taxonomy every
// failure is reported with.
package login

import "errors"

// Kind is one of the closed set of failure kinds.
type Kind int

const (
	KindUnknown Kind = iota
	KindAccessDenied
	KindTokenStringMissing
	KindMissingClientID
	KindInvalidEmail
	KindEmailAlreadyInUse
	KindWeakPassword
	KindUserNotFound
	KindWrongPassword
	KindNetworkError
	KindCorruptedData
	KindLoginNotSupported
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknownError",
	KindAccessDenied:       "accessDenied",
	KindTokenStringMissing: "tokenStringMissing",
	KindMissingClientID:    "missingClientId",
	KindInvalidEmail:       "invalidEmail",
	KindEmailAlreadyInUse:  "emailAlreadyInUse",
	KindWeakPassword:       "weakPassword",
	KindUserNotFound:       "userNotFound",
	KindWrongPassword:      "wrongPassword",
	KindNetworkError:       "networkError",
	KindCorruptedData:      "corruptedData",
	KindLoginNotSupported:  "loginNotSupported",
}

var descriptions = map[Kind]string{
	KindAccessDenied:       "Access denied. Please try again.",
	KindTokenStringMissing: "Token string missing. Please try again.",
	KindMissingClientID:    "Missing client ID. Please try again.",
	KindInvalidEmail:       "The email address is invalid. Please enter a valid email address.",
	KindEmailAlreadyInUse:  "The email address is already in use. Please enter a different email address.",
	KindWeakPassword:       "The password is too weak. Please enter a stronger password.",
	KindUserNotFound:       "No user found with this email. Please make sure you've registered.",
	KindWrongPassword:      "Incorrect password. Please try again.",
	KindNetworkError:       "Network error. Please check your internet connection.",
	KindCorruptedData:      "Could not decode data into data model",
	KindLoginNotSupported:  "Login not supported using email and password.",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Error is a login failure. Message is only meaningful for KindUnknown, where
// it carries the upstream message verbatim.
type Error struct {
	Kind    Kind
	Message string
}

// Error returns the human-readable description meant for direct display.
func (e *Error) Error() string {
	if e.Kind == KindUnknown {
		return e.Message
	}
	return descriptions[e.Kind]
}

// Is reports whether target is a *Error of the same kind, so errors.Is works
// against the sentinels below regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrAccessDenied       = &Error{Kind: KindAccessDenied}
	ErrTokenStringMissing = &Error{Kind: KindTokenStringMissing}
	ErrMissingClientID    = &Error{Kind: KindMissingClientID}
	ErrInvalidEmail       = &Error{Kind: KindInvalidEmail}
	ErrEmailAlreadyInUse  = &Error{Kind: KindEmailAlreadyInUse}
	ErrWeakPassword       = &Error{Kind: KindWeakPassword}
	ErrUserNotFound       = &Error{Kind: KindUserNotFound}
	ErrWrongPassword      = &Error{Kind: KindWrongPassword}
	ErrNetworkError       = &Error{Kind: KindNetworkError}
	ErrCorruptedData      = &Error{Kind: KindCorruptedData}
	ErrLoginNotSupported  = &Error{Kind: KindLoginNotSupported}
)

// Unknown wraps an upstream message that has no dedicated kind.
func Unknown(message string) *Error {
	return &Error{Kind: KindUnknown, Message: message}
}

// KindOf extracts the Kind of err. Errors that are not *Error report KindUnknown.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnknown
}

// AsError converts any error into a *Error, preserving the message of
// foreign errors as an unknownError.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	return Unknown(err.Error())
}
