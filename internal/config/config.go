package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config contains runtime configuration for the login client.
type Config struct {
	FirebaseAPIKey     string `env:"FIREBASE_API_KEY"`
	IdentityToolkitURL string `env:"IDENTITY_TOOLKIT_URL" envDefault:"https://identitytoolkit.googleapis.com/v1"`
	SecureTokenURL     string `env:"SECURE_TOKEN_URL"     envDefault:"https://securetoken.googleapis.com/v1"`
	IdpRequestURI      string `env:"IDP_REQUEST_URI"      envDefault:"http://localhost"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	AppleClientID      string `env:"APPLE_CLIENT_ID"`

	// CallbackAddr is where the loopback callback server listens.
	CallbackAddr string `env:"CALLBACK_ADDR" envDefault:"127.0.0.1:8085"`
	// RedirectBaseURL is the public base of the callback server. Apple only
	// posts to https redirect URLs, so it usually points at a tunnel.
	RedirectBaseURL string `env:"REDIRECT_BASE_URL"`

	HTTPTimeout   time.Duration `env:"HTTP_TIMEOUT"   envDefault:"15s"`
	NonceLength   int           `env:"NONCE_LENGTH"   envDefault:"32"`
	OIDCDiscovery bool          `env:"OIDC_DISCOVERY" envDefault:"false"`

	LogEnv   string `env:"LOG_ENV"   envDefault:"dev"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads a .env file when one exists, then the environment. Variables
// already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.NonceLength < 1 {
		return Config{}, fmt.Errorf("NONCE_LENGTH must be positive, got %d", cfg.NonceLength)
	}
	return cfg, nil
}

// RedirectURL returns the callback URL registered with provider ("google" or
// "apple").
func (c Config) RedirectURL(provider string) string {
	base := c.RedirectBaseURL
	if base == "" {
		base = "http://" + c.CallbackAddr
	}
	return strings.TrimRight(base, "/") + "/callback/" + provider
}
