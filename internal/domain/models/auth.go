package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims the auth provider issues for a signed-in user.
// Subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}
