// Package auth guards the status API with a single bearer token whose bcrypt
// hash comes from the environment.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

type TokenVerifier struct {
	hash []byte
}

// NewTokenVerifier returns nil when hash is empty, meaning the API is open.
func NewTokenVerifier(hash string) (*TokenVerifier, error) {
	if hash == "" {
		return nil, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, errors.New("API_TOKEN_HASH is not a bcrypt hash")
	}
	return &TokenVerifier{hash: []byte(hash)}, nil
}

func (v *TokenVerifier) Verify(token string) error {
	if token == "" {
		return ErrMissingToken
	}
	if err := bcrypt.CompareHashAndPassword(v.hash, []byte(token)); err != nil {
		return ErrInvalidToken
	}
	return nil
}

// HashToken produces the value to put in API_TOKEN_HASH.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
