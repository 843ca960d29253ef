package login

import (
	"strings"
	"time"
)

// Provider identifies where a credential or session came from.
type Provider string

const (
	ProviderPassword Provider = "password"
	ProviderGoogle   Provider = "google"
	ProviderApple    Provider = "apple"
	ProviderUnknown  Provider = "unknown"
)

// PersonName is the optional structured name Apple returns on first authorization.
type PersonName struct {
	GivenName  string `json:"givenName,omitempty"`
	FamilyName string `json:"familyName,omitempty"`
}

// String joins the name parts the same way the profile display name is built.
func (n PersonName) String() string {
	return strings.TrimSpace(n.GivenName + " " + n.FamilyName)
}

// Credential is the normalized result of a successful provider sign-in. It is
// consumed once by the session exchange.
type Credential struct {
	Provider    Provider
	IDToken     string
	AccessToken string
	// Nonce is the raw nonce; only set for Apple.
	Nonce    string
	FullName *PersonName
}

// UserProfile is what callers get back after a sign-in or account creation.
type UserProfile struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	RefreshToken string     `json:"refreshToken"`
	IsNewAccount bool       `json:"isNewAccount"`
	Provider     Provider   `json:"provider"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	LastSignInAt *time.Time `json:"lastSignInAt,omitempty"`
}
