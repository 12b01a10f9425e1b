// Package services provides technical concerns used by the business flows: credentials, session tokens and login throttling
package services

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/amirphl/Shiten/utils"
)

var ErrTokenTooShort = errors.New("session token must carry at least 128 bits of randomness")

// SessionTokenService generates opaque session tokens
type SessionTokenService interface {
	GenerateToken() (string, error)
}

// SessionTokenServiceImpl draws tokens from crypto/rand and encodes them base64url without padding
type SessionTokenServiceImpl struct {
	size int
}

// NewSessionTokenService creates a generator emitting size random bytes per token
func NewSessionTokenService(size int) (SessionTokenService, error) {
	if size < utils.MinSessionTokenBytes {
		return nil, fmt.Errorf("%w: got %d bytes", ErrTokenTooShort, size)
	}
	return &SessionTokenServiceImpl{size: size}, nil
}

func (s *SessionTokenServiceImpl) GenerateToken() (string, error) {
	buf := make([]byte, s.size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
