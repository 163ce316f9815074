package verifier

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/sigverifier/core"
	"github.com/layer-3/sigverifier/ports"
)

// SignatureLength is r (32) || s (32) || v (1)
const SignatureLength = 65

var (
	// SignaturePattern matches a 0x-prefixed 65-byte signature
	SignaturePattern = regexp.MustCompile(`^0x[a-fA-F0-9]{130}$`)
	// AddressPattern matches a 0x-prefixed 20-byte address in any case
	AddressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
)

// EthVerifier verifies EIP-191 personal-message signatures. It holds no
// state and is safe for concurrent use.
type EthVerifier struct{}

// NewEthVerifier creates a new verifier
func NewEthVerifier() EthVerifier {
	return EthVerifier{}
}

// HashMessage returns keccak256("\x19Ethereum Signed Message:\n" + len(message) + message)
func (EthVerifier) HashMessage(message string) common.Hash {
	return common.BytesToHash(accounts.TextHash([]byte(message)))
}

// RecoverSigner recovers the address whose key produced signature over the
// personal-message hash of message
func (v EthVerifier) RecoverSigner(message, signature string) (common.Address, error) {
	if !SignaturePattern.MatchString(signature) {
		return common.Address{}, core.ErrInvalidSignatureFormat
	}

	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != SignatureLength {
		return common.Address{}, core.ErrInvalidSignatureFormat
	}

	// Wallets emit v as 27/28, some as 35+2*chainID+parity; the recovery
	// routines expect 0/1
	recID := sig[64]
	switch {
	case recID >= 35:
		recID = (recID - 35) % 2
	case recID >= 27:
		recID -= 27
	}
	if recID > 1 {
		return common.Address{}, fmt.Errorf("recovery id %d: %w", sig[64], core.ErrSignatureRecoveryFailed)
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(recID, r, s, true) {
		return common.Address{}, fmt.Errorf("r/s out of range: %w", core.ErrSignatureRecoveryFailed)
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	normalized[64] = recID

	pub, err := crypto.SigToPub(v.HashMessage(message).Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%v: %w", err, core.ErrSignatureRecoveryFailed)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature reports whether signature over message recovers to
// expectedAddress. Recovery failures are reported as false.
func (v EthVerifier) VerifySignature(message, signature, expectedAddress string) bool {
	if !AddressPattern.MatchString(expectedAddress) {
		return false
	}

	recovered, err := v.RecoverSigner(message, signature)
	if err != nil {
		return false
	}

	return recovered == common.HexToAddress(expectedAddress)
}

// IsValidAddress checks the 0x + 40 hex shape and, for mixed-case input, the
// EIP-55 checksum
func (EthVerifier) IsValidAddress(address string) bool {
	if !AddressPattern.MatchString(address) {
		return false
	}

	digits := address[2:]
	if digits == strings.ToLower(digits) || digits == strings.ToUpper(digits) {
		return true
	}

	return common.HexToAddress(address).Hex() == address
}

// ChecksumAddress canonicalizes a valid address to its EIP-55 form
func (v EthVerifier) ChecksumAddress(address string) (string, error) {
	if !v.IsValidAddress(address) {
		return "", core.ErrInvalidAddress
	}
	return common.HexToAddress(address).Hex(), nil
}

var _ ports.SignatureVerifier = EthVerifier{}
