package oauth

import (
	"net/http"

	"golang.org/x/oauth2"

	"firebaselogin/internal/nonce"
)

type providerOptions struct {
	endpoint    *oauth2.Endpoint
	httpClient  *http.Client
	nonceLength int
}

// Option customizes a provider adapter.
type Option func(*providerOptions)

// WithEndpoint overrides the authorization server endpoints, e.g. with the
// result of DiscoverEndpoint.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(o *providerOptions) { o.endpoint = &endpoint }
}

// WithHTTPClient sets the client used for the code exchange.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *providerOptions) { o.httpClient = hc }
}

// WithNonceLength sets the raw nonce length for Apple requests.
func WithNonceLength(n int) Option {
	return func(o *providerOptions) {
		if n > 0 {
			o.nonceLength = n
		}
	}
}

func buildOptions(opts []Option) providerOptions {
	o := providerOptions{nonceLength: nonce.DefaultLength}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
