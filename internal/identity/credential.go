package identity

import "net/url"

// Provider ids understood by the platform.
const (
	ProviderIDPassword = "password"
	ProviderIDGoogle   = "google.com"
	ProviderIDApple    = "apple.com"
)

// Credential is a federated credential in the shape signInWithIdp expects.
type Credential struct {
	ProviderID  string
	IDToken     string
	AccessToken string
	RawNonce    string
	// DisplayName is applied to the account after sign-in when it has none yet.
	DisplayName string
}

// AppleCredential builds an apple.com credential. rawNonce must be the
// unhashed value whose digest was sent in the authorization request.
func AppleCredential(idToken, rawNonce, displayName string) Credential {
	return Credential{
		ProviderID:  ProviderIDApple,
		IDToken:     idToken,
		RawNonce:    rawNonce,
		DisplayName: displayName,
	}
}

// GoogleCredential builds a google.com credential.
func GoogleCredential(idToken, accessToken string) Credential {
	return Credential{
		ProviderID:  ProviderIDGoogle,
		IDToken:     idToken,
		AccessToken: accessToken,
	}
}

func (c Credential) postBody() string {
	values := url.Values{}
	values.Set("providerId", c.ProviderID)
	if c.IDToken != "" {
		values.Set("id_token", c.IDToken)
	}
	if c.AccessToken != "" {
		values.Set("access_token", c.AccessToken)
	}
	if c.RawNonce != "" {
		values.Set("nonce", c.RawNonce)
	}
	return values.Encode()
}
