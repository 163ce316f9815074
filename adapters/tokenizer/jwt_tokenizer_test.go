package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/sigverifier/core"
	"github.com/layer-3/sigverifier/internal/testutil"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func testSession(now time.Time) core.Session {
	return core.Session{
		ID:            "7d0e2f2c-3b1a-4a57-9a53-7b1f6f1e8c11",
		Token:         "secret",
		WalletAddress: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		CreatedAt:     now,
		ExpiresAt:     now.Add(24 * time.Hour),
	}
}

func TestAccessToken_RoundTrip(t *testing.T) {
	clock := testutil.NewClock()
	tk := NewJWTTokenizer(newKey(t), clock)
	session := testSession(clock.Now())

	token, expiresAt, err := tk.SessionToAccessToken(session, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(5*time.Minute), expiresAt)
	assert.NotContains(t, token, session.Token)

	claims, err := tk.AccessTokenToClaims(token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, claims.SessionID)
	assert.Equal(t, session.WalletAddress, claims.WalletAddress)
	assert.True(t, claims.ExpiresAt.Equal(expiresAt))
}

func TestAccessToken_CappedAtSessionExpiry(t *testing.T) {
	clock := testutil.NewClock()
	tk := NewJWTTokenizer(newKey(t), clock)
	session := testSession(clock.Now())
	session.ExpiresAt = clock.Now().Add(time.Minute)

	_, expiresAt, err := tk.SessionToAccessToken(session, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, session.ExpiresAt, expiresAt)
}

func TestAccessToken_Expired(t *testing.T) {
	clock := testutil.NewClock()
	tk := NewJWTTokenizer(newKey(t), clock)

	token, _, err := tk.SessionToAccessToken(testSession(clock.Now()), time.Minute)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = tk.AccessTokenToClaims(token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestAccessToken_ForeignKey(t *testing.T) {
	clock := testutil.NewClock()
	issuer := NewJWTTokenizer(newKey(t), clock)
	verifier := NewJWTTokenizer(newKey(t), clock)

	token, _, err := issuer.SessionToAccessToken(testSession(clock.Now()), time.Minute)
	require.NoError(t, err)

	_, err = verifier.AccessTokenToClaims(token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestAccessToken_WrongAudience(t *testing.T) {
	clock := testutil.NewClock()
	key := newKey(t)
	tk := NewJWTTokenizer(key, clock)

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Minute)),
			Audience:  jwt.ClaimStrings{"session:refresh"},
		},
		SessionID: "sid",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	require.NoError(t, err)

	_, err = tk.AccessTokenToClaims(token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestAccessToken_Garbage(t *testing.T) {
	tk := NewJWTTokenizer(newKey(t), testutil.NewClock())

	for _, token := range []string{"", "not.a.jwt", "a.b"} {
		_, err := tk.AccessTokenToClaims(token)
		assert.ErrorIs(t, err, core.ErrInvalidToken, "token %q", token)
	}
}
