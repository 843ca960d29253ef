package identity

import (
	"strconv"
	"time"

	"firebaselogin/internal/storage"
)

// User is the signed-in account.
type User struct {
	UID           string
	Email         string
	EmailVerified bool
	DisplayName   string
	// ProviderID is the provider of the current sign-in ("password",
	// "google.com", "apple.com"), read from the ID token.
	ProviderID   string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    *time.Time
	LastSignInAt *time.Time
}

// AuthResult is returned by every call that signs a user in.
type AuthResult struct {
	User      *User
	IsNewUser bool
}

func userFromSession(s storage.Session) *User {
	return &User{
		UID:           s.UserID,
		Email:         s.Email,
		EmailVerified: s.EmailVerified,
		DisplayName:   s.DisplayName,
		ProviderID:    s.ProviderID,
		IDToken:       s.IDToken,
		RefreshToken:  s.RefreshToken,
		ExpiresAt:     s.ExpiresAt,
		CreatedAt:     s.CreatedAt,
		LastSignInAt:  s.LastSignInAt,
	}
}

func (u *User) session() storage.Session {
	return storage.Session{
		UserID:        u.UID,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		DisplayName:   u.DisplayName,
		ProviderID:    u.ProviderID,
		IDToken:       u.IDToken,
		RefreshToken:  u.RefreshToken,
		ExpiresAt:     u.ExpiresAt,
		CreatedAt:     u.CreatedAt,
		LastSignInAt:  u.LastSignInAt,
	}
}

// tokenGrant is the token triple every sign-in or refresh call returns.
type tokenGrant struct {
	UID          string
	IDToken      string
	RefreshToken string
	ExpiresIn    string
}

type accountInfo struct {
	LocalID          string `json:"localId"`
	Email            string `json:"email"`
	EmailVerified    bool   `json:"emailVerified"`
	DisplayName      string `json:"displayName"`
	CreatedAt        string `json:"createdAt"`
	LastLoginAt      string `json:"lastLoginAt"`
	ProviderUserInfo []struct {
		ProviderID string `json:"providerId"`
	} `json:"providerUserInfo"`
}

// millis parses the platform's millisecond timestamps, which arrive as strings.
func millis(value string) *time.Time {
	if value == "" {
		return nil
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

func expiry(now time.Time, expiresIn string) time.Time {
	seconds, err := strconv.Atoi(expiresIn)
	if err != nil || seconds <= 0 {
		seconds = 3600
	}
	return now.Add(time.Duration(seconds) * time.Second)
}
