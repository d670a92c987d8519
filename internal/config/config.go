// Package config loads application configuration from the environment.
package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8080"

	// DefaultRedirectURI must match the Spotify app configuration.
	DefaultRedirectURI = "http://127.0.0.1:8080/callback"

	defaultRedisURL = "redis://127.0.0.1:6379/0"
)

var (
	// ErrMissingCredentials is returned when CLIENT_ID or CLIENT_SECRET is not set.
	ErrMissingCredentials = errors.New("missing CLIENT_ID or CLIENT_SECRET environment variable")

	// ErrMissingSigningSecret is returned when SIGNATURE_SECRET_KEY is not set.
	ErrMissingSigningSecret = errors.New("missing SIGNATURE_SECRET_KEY environment variable")
)

// Config holds everything the process needs to run.
type Config struct {
	Addr            string
	ClientID        string
	ClientSecret    string
	RedirectURI     string
	SignatureSecret string
	RedisURL        string
}

// Load reads configuration from a local .env file (when present) and the
// process environment. The environment wins over the file.
func Load() (*Config, error) {
	// A missing .env is fine; the environment may carry everything.
	_ = godotenv.Load()

	cfg := &Config{
		Addr:            getenv("ADDR", DefaultAddr),
		ClientID:        os.Getenv("CLIENT_ID"),
		ClientSecret:    os.Getenv("CLIENT_SECRET"),
		RedirectURI:     getenv("REDIRECT_URI", DefaultRedirectURI),
		SignatureSecret: os.Getenv("SIGNATURE_SECRET_KEY"),
		RedisURL:        getenv("REDIS_URL", defaultRedisURL),
	}

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.SignatureSecret == "" {
		return nil, ErrMissingSigningSecret
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
