package sigverifier_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/sigverifier"
	"github.com/layer-3/sigverifier/adapters/events"
	"github.com/layer-3/sigverifier/adapters/store"
	"github.com/layer-3/sigverifier/adapters/tokenizer"
	"github.com/layer-3/sigverifier/adapters/verifier"
	"github.com/layer-3/sigverifier/internal/testutil"
	"github.com/layer-3/sigverifier/ports"
	"github.com/layer-3/sigverifier/service"
	transport "github.com/layer-3/sigverifier/transport/http"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	clock := ports.SystemClock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	authService := service.NewAuthService(service.Deps{
		Verifier:    verifier.NewEthVerifier(),
		Sessions:    store.NewMemorySessionStore(24*time.Hour, clock),
		Revocations: store.NewMemoryRevocationStore(clock),
		Tokenizer:   tokenizer.NewJWTTokenizer(key, clock),
		Events:      events.NewWatermillPublisher(pubSub, clock),
		Clock:       clock,
		Logger:      logger,
	}, 5*time.Minute)

	router := transport.SetupRouter(authService, store.NewMemoryRateLimitStore(clock), transport.NewMetrics(), transport.RouterConfig{
		Cookie:     transport.CookieConfig{Name: "sessionToken", MaxAge: 24 * time.Hour},
		RateLimit:  1,
		RateWindow: 5 * time.Second,
	}, clock, logger)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPClient_VerifyAndRateLimit(t *testing.T) {
	srv := newServer(t)
	c := sigverifier.NewHTTPClient(srv.URL + "/")
	w := testutil.NewWallet(t)
	ctx := context.Background()

	result, err := c.VerifySignature(ctx, "Hello, Web3!", w.Sign(t, "Hello, Web3!"), strings.ToLower(w.Address))
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Equal(t, w.Address, result.Signer)
	assert.WithinDuration(t, time.Now(), result.Timestamp, time.Minute)

	_, err = c.VerifySignature(ctx, "Hello, Web3!", w.Sign(t, "Hello, Web3!"), w.Address)
	require.Error(t, err)
	assert.True(t, sigverifier.IsRateLimited(err))

	var apiErr *sigverifier.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Too many requests", apiErr.Code)
	assert.Positive(t, apiErr.RetryAfter)
}

func TestHTTPClient_SessionLifecycle(t *testing.T) {
	srv := newServer(t)
	c := sigverifier.NewHTTPClient(srv.URL)
	w := testutil.NewWallet(t)
	ctx := context.Background()

	_, err := c.GetSession(ctx)
	assert.ErrorIs(t, err, sigverifier.ErrNoSession)

	session, err := c.CreateSession(ctx, "test", w.Sign(t, "test"), w.Address)
	require.NoError(t, err)
	assert.Equal(t, session.SessionToken, c.SessionToken())
	assert.Equal(t, w.Address, session.WalletAddress)

	current, err := c.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, w.Address, current.WalletAddress)
	assert.True(t, session.ExpiresAt.Equal(current.ExpiresAt))

	require.NoError(t, c.DestroySession(ctx))
	assert.Empty(t, c.SessionToken())

	resumed := sigverifier.NewHTTPClient(srv.URL, sigverifier.WithSessionToken(session.SessionToken))
	_, err = resumed.GetSession(ctx)
	assert.True(t, sigverifier.IsUnauthorized(err))
}
