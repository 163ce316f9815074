package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims combines standard claims with the session binding
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"` // ID of the session the token was minted from
}
