package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spec-kit/k8s-test-service/internal/config"
)

// Credentials is the static user table loaded at startup. It has no mutators.
type Credentials struct {
	hashes map[string]string
	// dummy is compared against for unknown users so both failure paths cost one bcrypt run.
	dummy string
}

// LoadCredentials builds the table from configuration, hashing AUTH_PASSWORD when no
// precomputed hash is supplied.
func LoadCredentials(cfg config.AuthConfig) (*Credentials, error) {
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		return nil, errors.New("auth username must not be empty")
	}

	hash := cfg.PasswordHash
	cost := cfg.BcryptCost
	if hash != "" {
		c, err := HashCost(hash)
		if err != nil {
			return nil, fmt.Errorf("AUTH_PASSWORD_HASH: %w", err)
		}
		cost = c
	} else {
		h, err := HashPassword(cfg.Password, cost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		hash = h
	}

	dummy, err := HashPassword("unknown-user-placeholder", cost)
	if err != nil {
		return nil, fmt.Errorf("hash placeholder: %w", err)
	}

	return &Credentials{
		hashes: map[string]string{username: hash},
		dummy:  dummy,
	}, nil
}

// Verify reports whether password matches the stored hash for username. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (c *Credentials) Verify(username, password string) bool {
	hash, known := c.hashes[username]
	if !known {
		hash = c.dummy
	}
	matched := ComparePassword(hash, password) == nil
	return known && matched
}
