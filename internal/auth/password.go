package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value in constant time.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// HashCost reports the cost a hash was produced with, rejecting anything that is not bcrypt.
func HashCost(hashed string) (int, error) {
	cost, err := bcrypt.Cost([]byte(hashed))
	if err != nil {
		return 0, fmt.Errorf("not a bcrypt hash: %w", err)
	}
	return cost, nil
}
