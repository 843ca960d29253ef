package oauth

import (
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"firebaselogin/internal/login"
)

// appleIDTokenClaims is read without signature verification: the platform
// verifies the token during the session exchange. The client only checks
// that the token answers the request it sent.
type appleIDTokenClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

func parseAppleIDToken(raw string) (*appleIDTokenClaims, error) {
	claims := &appleIDTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("apple: parse identity token: %w", err)
	}
	return claims, nil
}

// appleUser is the "user" form field Apple posts on the first authorization.
type appleUser struct {
	Name struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"name"`
	Email string `json:"email"`
}

// parseAppleFullName returns nil when the blob is absent, malformed or carries no name.
func parseAppleFullName(raw string) *login.PersonName {
	if raw == "" {
		return nil
	}
	var user appleUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil
	}
	if user.Name.FirstName == "" && user.Name.LastName == "" {
		return nil
	}
	return &login.PersonName{
		GivenName:  user.Name.FirstName,
		FamilyName: user.Name.LastName,
	}
}
