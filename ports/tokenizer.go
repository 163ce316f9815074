package ports

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/sigverifier/core"
)

// SignatureVerifier recovers and checks personal-message signatures
type SignatureVerifier interface {
	RecoverSigner(message, signature string) (common.Address, error)
	VerifySignature(message, signature, expectedAddress string) bool
	IsValidAddress(address string) bool
	ChecksumAddress(address string) (string, error)
	HashMessage(message string) common.Hash
}

// Tokenizer converts sessions into short-lived access tokens and back
type Tokenizer interface {
	SessionToAccessToken(session core.Session, ttl time.Duration) (string, time.Time, error)
	AccessTokenToClaims(token string) (core.AccessClaims, error)
}
