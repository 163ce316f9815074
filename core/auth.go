package core

import "time"

// SignatureClaim is a message, its signature and the address that supposedly signed it
type SignatureClaim struct {
	Message        string
	Signature      string // 0x-prefixed 65-byte r || s || v
	ExpectedSigner string
}

// VerificationResult is the outcome of a successful signature verification
type VerificationResult struct {
	IsValid         bool
	Signer          string // EIP-55 checksummed
	OriginalMessage string
	Timestamp       time.Time
}

// Session represents an authenticated wallet session
type Session struct {
	ID            string    // Non-secret identifier, safe to log and publish
	Token         string    // Opaque bearer credential, hex encoded
	WalletAddress string    // Checksummed address of the signer
	Message       string    // Message that was signed to open the session
	Signature     string    // Signature over Message
	CreatedAt     time.Time // When the session was created
	ExpiresAt     time.Time // When the session stops resolving
}

// Expired reports whether the session is past its expiry at the given instant.
// A session is still valid at exactly ExpiresAt.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// AccessClaims are the facts carried by a session-bound access token
type AccessClaims struct {
	SessionID     string
	WalletAddress string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}
