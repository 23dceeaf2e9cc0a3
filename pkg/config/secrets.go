package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name secrets are stored under.
const KeyringService = "sipwatch"

// KeyringUser returns the keyring user entry for a secret kind ("api", "smtp",
// "sendgrid") and account name.
func KeyringUser(kind, name string) string {
	return kind + ":" + name
}

// ResolveSecrets fills empty secret fields. Lookup order per secret is the
// explicit value, then the named environment variable, then the OS keyring
// when enabled.
func (c *Config) ResolveSecrets() error {
	var errs []error

	pw, err := resolveSecret(c.API.Password, c.API.PasswordEnv, c.API.PasswordKeyring, KeyringUser("api", c.API.Username))
	if err != nil {
		errs = append(errs, fmt.Errorf("api password: %w", err))
	}
	c.API.Password = pw

	pw, err = resolveSecret(c.Mail.Password, c.Mail.PasswordEnv, c.Mail.PasswordKeyring, KeyringUser("smtp", c.Mail.Username))
	if err != nil {
		errs = append(errs, fmt.Errorf("mail password: %w", err))
	}
	c.Mail.Password = pw

	key, err := resolveSecret(c.Mail.SendGridAPIKey, c.Mail.SendGridAPIKeyEnv, false, "")
	if err != nil {
		errs = append(errs, fmt.Errorf("sendgrid api key: %w", err))
	}
	c.Mail.SendGridAPIKey = key

	return errors.Join(errs...)
}

func resolveSecret(value, envName string, useKeyring bool, keyringUser string) (string, error) {
	if value != "" {
		return value, nil
	}
	if envName != "" {
		if v := os.Getenv(envName); v != "" {
			return v, nil
		}
	}
	if !useKeyring {
		return "", nil
	}
	secret, err := keyring.Get(KeyringService, keyringUser)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("no keyring entry %s/%s", KeyringService, keyringUser)
		}
		return "", err
	}
	return secret, nil
}
