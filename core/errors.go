package core

import "errors"

var (
	ErrInvalidSignatureFormat  = errors.New("invalid signature format")
	ErrSignatureRecoveryFailed = errors.New("signature recovery failed")
	ErrSignerMismatch          = errors.New("recovered signer does not match expected address")
	ErrInvalidAddress          = errors.New("invalid ethereum address")
	ErrSessionNotFound         = errors.New("session not found or expired")
	ErrTokenExpired            = errors.New("token has expired")
	ErrTokenInvalidated        = errors.New("token has been invalidated")
	ErrInvalidToken            = errors.New("invalid token")
)
