// Package testutil holds helpers shared by package tests: throwaway wallets
// that sign personal messages and a manually advanced clock.
package testutil

import (
	"crypto/ecdsa"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

// Wallet is a throwaway secp256k1 key pair
type Wallet struct {
	Key     *ecdsa.PrivateKey
	Address string // EIP-55 checksummed
}

// NewWallet generates a fresh random wallet.
func NewWallet(t testing.TB) Wallet {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	return Wallet{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

// Sign produces the 0x-prefixed signature a browser wallet returns for
// personal_sign over message, with v in {27, 28}.
func (w Wallet) Sign(t testing.TB, message string) string {
	t.Helper()

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.Key)
	require.NoError(t, err)
	sig[64] += 27

	return hexutil.Encode(sig)
}

// Clock is a manually advanced clock safe for concurrent use
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
