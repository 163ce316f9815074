package verifier

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/sigverifier/core"
	"github.com/layer-3/sigverifier/internal/testutil"
)

func TestHashMessage_KnownVector(t *testing.T) {
	v := NewEthVerifier()

	h := v.HashMessage("Hello World")
	assert.Equal(t, "0xa1de988600a42c4b4ab089b619297c17d53cffae5d5120d82d8a92d0bb3b78f2", h.Hex())
}

func TestRecoverSigner_KnownKey(t *testing.T) {
	key, err := crypto.HexToECDSA("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)
	w := testutil.Wallet{Key: key, Address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
	require.Equal(t, "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", w.Address)

	v := NewEthVerifier()
	addr, err := v.RecoverSigner("Hello, Web3!", w.Sign(t, "Hello, Web3!"))
	require.NoError(t, err)
	assert.Equal(t, w.Address, addr.Hex())
}

func TestRecoverSigner_RoundTrip(t *testing.T) {
	v := NewEthVerifier()
	messages := []string{
		"a",
		"Hello, Web3!",
		"test",
		"multi\nline\nmessage",
		"unicode ✓ 署名",
		strings.Repeat("x", 4096),
	}

	for i := 0; i < 5; i++ {
		w := testutil.NewWallet(t)
		for _, msg := range messages {
			addr, err := v.RecoverSigner(msg, w.Sign(t, msg))
			require.NoError(t, err)
			assert.True(t, strings.EqualFold(w.Address, addr.Hex()))
		}
	}
}

func TestRecoverSigner_AcceptsZeroOneRecoveryID(t *testing.T) {
	v := NewEthVerifier()
	w := testutil.NewWallet(t)

	sig, err := hexutil.Decode(w.Sign(t, "test"))
	require.NoError(t, err)
	sig[64] -= 27

	addr, err := v.RecoverSigner("test", hexutil.Encode(sig))
	require.NoError(t, err)
	assert.Equal(t, w.Address, addr.Hex())
}

func TestRecoverSigner_AcceptsChainEncodedRecoveryID(t *testing.T) {
	v := NewEthVerifier()
	w := testutil.NewWallet(t)

	sig, err := hexutil.Decode(w.Sign(t, "test"))
	require.NoError(t, err)
	parity := sig[64] - 27

	for _, chainID := range []byte{1, 5, 100} {
		encoded := append([]byte(nil), sig...)
		encoded[64] = 35 + 2*chainID + parity

		addr, err := v.RecoverSigner("test", hexutil.Encode(encoded))
		require.NoError(t, err, "v=%d", encoded[64])
		assert.Equal(t, w.Address, addr.Hex())
	}

	for _, badV := range []byte{2, 26, 29, 34} {
		encoded := append([]byte(nil), sig...)
		encoded[64] = badV
		_, err := v.RecoverSigner("test", hexutil.Encode(encoded))
		assert.ErrorIs(t, err, core.ErrSignatureRecoveryFailed, "v=%d", badV)
	}
}

func TestRecoverSigner_TamperedMessage(t *testing.T) {
	v := NewEthVerifier()
	w := testutil.NewWallet(t)
	msg := "Hello, Web3!"
	sig := w.Sign(t, msg)

	for i := range msg {
		tampered := msg[:i] + string(rune(msg[i]+1)) + msg[i+1:]
		addr, err := v.RecoverSigner(tampered, sig)
		if err == nil {
			assert.NotEqual(t, w.Address, addr.Hex(), "tampered message %q matched", tampered)
		}
		assert.False(t, v.VerifySignature(tampered, sig, w.Address))
	}
}

func TestRecoverSigner_FormatErrors(t *testing.T) {
	v := NewEthVerifier()
	valid := testutil.NewWallet(t).Sign(t, "test")

	cases := map[string]string{
		"empty":        "",
		"not hex":      "invalid-signature",
		"no prefix":    valid[2:],
		"too short":    valid[:len(valid)-2],
		"too long":     valid + "00",
		"non-hex char": valid[:10] + "zz" + valid[12:],
		"prefix only":  "0x",
		"upper prefix": "0X" + valid[2:],
	}

	for name, sig := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.RecoverSigner("test", sig)
			assert.ErrorIs(t, err, core.ErrInvalidSignatureFormat)
		})
	}
}

func TestRecoverSigner_RecoveryFailures(t *testing.T) {
	v := NewEthVerifier()
	sig, err := hexutil.Decode(testutil.NewWallet(t).Sign(t, "test"))
	require.NoError(t, err)

	badV := append([]byte(nil), sig...)
	badV[64] = 5
	_, err = v.RecoverSigner("test", hexutil.Encode(badV))
	assert.ErrorIs(t, err, core.ErrSignatureRecoveryFailed)

	zeroRS := make([]byte, SignatureLength)
	zeroRS[64] = 27
	_, err = v.RecoverSigner("test", hexutil.Encode(zeroRS))
	assert.ErrorIs(t, err, core.ErrSignatureRecoveryFailed)

	highS := append([]byte(nil), sig...)
	for i := 32; i < 64; i++ {
		highS[i] = 0xff
	}
	_, err = v.RecoverSigner("test", hexutil.Encode(highS))
	assert.ErrorIs(t, err, core.ErrSignatureRecoveryFailed)
}

func TestVerifySignature(t *testing.T) {
	v := NewEthVerifier()
	w := testutil.NewWallet(t)
	other := testutil.NewWallet(t)
	sig := w.Sign(t, "Hello, Web3!")

	assert.True(t, v.VerifySignature("Hello, Web3!", sig, w.Address))
	assert.True(t, v.VerifySignature("Hello, Web3!", sig, strings.ToLower(w.Address)))
	assert.True(t, v.VerifySignature("Hello, Web3!", sig, "0x"+strings.ToUpper(w.Address[2:])))
	assert.False(t, v.VerifySignature("Hello, Web3!", sig, other.Address))
	assert.False(t, v.VerifySignature("Hello, Web3!", "invalid-signature", w.Address))
	assert.False(t, v.VerifySignature("Hello, Web3!", sig, "not-an-address"))
}

func TestIsValidAddress(t *testing.T) {
	v := NewEthVerifier()

	assert.True(t, v.IsValidAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.True(t, v.IsValidAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"))
	assert.True(t, v.IsValidAddress("0x5AAEB6053F3E94C9B9A09F33669435E7EF1BEAED"))
	assert.False(t, v.IsValidAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD"), "bad checksum")
	assert.False(t, v.IsValidAddress("5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.False(t, v.IsValidAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeA"))
	assert.False(t, v.IsValidAddress("0xZZZeb6053F3E94C9b9A09f33669435E7Ef1BeAed"))
	assert.False(t, v.IsValidAddress(""))
}

func TestChecksumAddress(t *testing.T) {
	v := NewEthVerifier()

	got, err := v.ChecksumAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", got)

	_, err = v.ChecksumAddress("invalid-address")
	assert.ErrorIs(t, err, core.ErrInvalidAddress)

	_, err = v.ChecksumAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD")
	assert.ErrorIs(t, err, core.ErrInvalidAddress)
}
