// Package sigverifier is a Go client for the signature verification and
// session API.
package sigverifier

import (
	"context"
	"time"
)

// Client represents the public interface for interacting with the service
type Client interface {
	// VerifySignature checks that signature over message was produced by
	// expectedSigner. It does not open a session.
	VerifySignature(ctx context.Context, message, signature, expectedSigner string) (VerificationResult, error)

	// CreateSession verifies the signature and opens a session. The client
	// keeps the returned token for subsequent calls.
	CreateSession(ctx context.Context, message, signature, walletAddress string) (Session, error)

	// GetSession describes the current session
	GetSession(ctx context.Context) (Session, error)

	// DestroySession logs out and forgets the stored token
	DestroySession(ctx context.Context) error
}

// VerificationResult is returned by a successful verification
type VerificationResult struct {
	IsValid         bool      `json:"isValid"`
	Signer          string    `json:"signer"`
	OriginalMessage string    `json:"originalMessage"`
	Timestamp       time.Time `json:"timestamp"`
}

// Session describes an open session. SessionToken is only set by
// CreateSession.
type Session struct {
	SessionToken  string    `json:"sessionToken,omitempty"`
	WalletAddress string    `json:"walletAddress"`
	ExpiresAt     time.Time `json:"expiresAt"`
}
