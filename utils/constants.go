package utils

import (
	"time"
)

// Session constants
const (
	// DefaultSessionTTL is the lifetime granted to a session on issue and on every rotation (24 hours)
	DefaultSessionTTL = 24 * time.Hour

	// SessionTokenBytes is the amount of randomness behind a session token (256 bits)
	SessionTokenBytes = 32

	// MinSessionTokenBytes keeps tokens above 122 bits of entropy
	MinSessionTokenBytes = 16

	DefaultSessionCookieName = "_session"
)

// Request constants
const (
	DefaultRequestTimeout = 30 * time.Second

	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)
