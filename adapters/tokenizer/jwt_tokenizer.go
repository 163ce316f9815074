package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/layer-3/sigverifier/core"
	"github.com/layer-3/sigverifier/ports"
)

const (
	AudienceAccess = "session:access"
	Issuer         = "sigverifier"
)

// JWTTokenizer implements ports.Tokenizer with ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	clock   ports.Clock
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, clock ports.Clock) *JWTTokenizer {
	return &JWTTokenizer{signKey: signKey, clock: clock}
}

// SessionToAccessToken mints an access token bound to session. The token
// never outlives the session.
func (j *JWTTokenizer) SessionToAccessToken(session core.Session, ttl time.Duration) (string, time.Time, error) {
	now := j.clock.Now()
	expiresAt := now.Add(ttl)
	if session.ExpiresAt.Before(expiresAt) {
		expiresAt = session.ExpiresAt
	}

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   session.WalletAddress,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Audience:  jwt.ClaimStrings{AudienceAccess},
		},
		SessionID: session.ID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signed, err := token.SignedString(j.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	return signed, claims.ExpiresAt.Time, nil
}

// AccessTokenToClaims parses and validates an access token
func (j *JWTTokenizer) AccessTokenToClaims(tokenStr string) (core.AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	},
		jwt.WithAudience(AudienceAccess),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return core.AccessClaims{}, core.ErrTokenExpired
		}
		return core.AccessClaims{}, fmt.Errorf("failed to parse token: %v: %w", err, core.ErrInvalidToken)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return core.AccessClaims{}, core.ErrInvalidToken
	}

	return core.AccessClaims{
		SessionID:     claims.SessionID,
		WalletAddress: claims.Subject,
		IssuedAt:      claims.IssuedAt.Time,
		ExpiresAt:     claims.ExpiresAt.Time,
	}, nil
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)
