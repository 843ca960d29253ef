package oauth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	GoogleIssuer = "https://accounts.google.com"
	AppleIssuer  = "https://appleid.apple.com"
)

// DiscoverEndpoint reads issuer's OpenID configuration and returns its
// authorization and token endpoints.
func DiscoverEndpoint(ctx context.Context, issuer string) (oauth2.Endpoint, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return oauth2.Endpoint{}, fmt.Errorf("oauth: discover %s: %w", issuer, err)
	}
	return provider.Endpoint(), nil
}
