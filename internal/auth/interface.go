package auth

import "brightwell/internal/domain/models"

// TokenVerifier validates bearer tokens and extracts the caller's claims.
type TokenVerifier interface {
	// VerifyToken validates a JWT token string and returns the parsed claims.
	// Returns domain.ErrUnauthorized for invalid, expired, or mis-signed tokens.
	VerifyToken(tokenString string) (*models.Claims, error)

	// Close releases any resources held by the verifier.
	Close() error
}
