package credential

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/turnere/Migrator-Tools/pkg/logger"
)

// Config describes where an account's bearer token comes from. The first
// populated source wins: Token, then TokenEnv, then OAuth.
type Config struct {
	Token    string       `json:"token,omitempty" yaml:"token,omitempty"`
	TokenEnv string       `json:"tokenEnv,omitempty" yaml:"tokenEnv,omitempty"`
	OAuth    *OAuthConfig `json:"oauth,omitempty" yaml:"oauth,omitempty"`
}

// IsZero reports whether no source is configured
func (c Config) IsZero() bool {
	return c.Token == "" && c.TokenEnv == "" && c.OAuth == nil
}

// Validate checks the config without resolving anything
func (c Config) Validate() error {
	if c.IsZero() {
		return errors.New("one of token, tokenEnv or oauth is required")
	}
	if c.Token == "" && c.TokenEnv == "" {
		return c.OAuth.Validate()
	}
	return nil
}

// LoadDotEnv loads variables from the given files, or ".env" when none are
// given. Missing files are ignored and existing variables are not overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("error loading %s: %w", p, err)
		}
	}
	return nil
}

// Resolve returns the bearer token for cfg, running the OAuth flow if that
// is the only source
func Resolve(ctx context.Context, cfg Config, log *logger.Logger) (string, error) {
	switch {
	case cfg.Token != "":
		return cfg.Token, nil
	case cfg.TokenEnv != "":
		token := strings.TrimSpace(os.Getenv(cfg.TokenEnv))
		if token == "" {
			return "", fmt.Errorf("environment variable %s is empty or not set", cfg.TokenEnv)
		}
		return token, nil
	case cfg.OAuth != nil:
		flow, err := NewFlow(*cfg.OAuth, log)
		if err != nil {
			return "", err
		}
		tok, err := flow.Run(ctx)
		if err != nil {
			return "", err
		}
		return tok.AccessToken, nil
	default:
		return "", errors.New("no credential configured")
	}
}
