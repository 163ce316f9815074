package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/layer-3/sigverifier/core"
	"github.com/layer-3/sigverifier/ports"
)

// AuthService handles signature verification and session business logic
type AuthService struct {
	verifier    ports.SignatureVerifier
	sessions    ports.SessionStore
	revocations ports.RevocationStore
	tokenizer   ports.Tokenizer
	eventPub    ports.EventPublisher
	clock       ports.Clock
	logger      *slog.Logger

	accessTTL time.Duration
}

// Deps groups the collaborators of AuthService
type Deps struct {
	Verifier    ports.SignatureVerifier
	Sessions    ports.SessionStore
	Revocations ports.RevocationStore
	Tokenizer   ports.Tokenizer
	Events      ports.EventPublisher
	Clock       ports.Clock
	Logger      *slog.Logger
}

// NewAuthService creates a new authentication service. Access tokens minted
// from sessions live for accessTTL at most.
func NewAuthService(deps Deps, accessTTL time.Duration) *AuthService {
	clock := deps.Clock
	if clock == nil {
		clock = ports.SystemClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthService{
		verifier:    deps.Verifier,
		sessions:    deps.Sessions,
		revocations: deps.Revocations,
		tokenizer:   deps.Tokenizer,
		eventPub:    deps.Events,
		clock:       clock,
		logger:      logger,
		accessTTL:   accessTTL,
	}
}

// AccessTTL is the lifetime of freshly minted access tokens
func (s *AuthService) AccessTTL() time.Duration {
	return s.accessTTL
}

// recoverAndMatch returns the checksummed signer of claim, or
// ErrSignatureRecoveryFailed / ErrSignerMismatch
func (s *AuthService) recoverAndMatch(claim core.SignatureClaim) (string, error) {
	signer, err := s.verifier.RecoverSigner(claim.Message, claim.Signature)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, core.ErrSignatureRecoveryFailed)
	}

	// Case-insensitive comparison: a lowercase or badly checksummed claim
	// still matches its signer
	if !common.IsHexAddress(claim.ExpectedSigner) || common.HexToAddress(claim.ExpectedSigner) != signer {
		return "", core.ErrSignerMismatch
	}

	return signer.Hex(), nil
}

// VerifySignature checks that claim.Signature over claim.Message was produced
// by claim.ExpectedSigner. It has no side effects.
func (s *AuthService) VerifySignature(_ context.Context, claim core.SignatureClaim) (core.VerificationResult, error) {
	signer, err := s.recoverAndMatch(claim)
	if err != nil {
		return core.VerificationResult{}, err
	}

	return core.VerificationResult{
		IsValid:         true,
		Signer:          signer,
		OriginalMessage: claim.Message,
		Timestamp:       s.clock.Now(),
	}, nil
}

// CreateSession verifies claim and opens a session for the signer
func (s *AuthService) CreateSession(ctx context.Context, claim core.SignatureClaim) (core.Session, error) {
	signer, err := s.recoverAndMatch(claim)
	if err != nil {
		return core.Session{}, err
	}

	session, err := s.sessions.Create(ctx, signer, claim.Message, claim.Signature)
	if err != nil {
		return core.Session{}, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.eventPub.PublishSessionCreated(ctx, session.ID, session.WalletAddress); err != nil {
		s.logger.Warn("failed to publish session created event",
			"session_id", session.ID,
			"error", err,
		)
	}

	return session, nil
}

// GetSession resolves a session token. Unknown, expired and empty tokens
// all yield ErrSessionNotFound.
func (s *AuthService) GetSession(ctx context.Context, token string) (core.Session, error) {
	if token == "" {
		return core.Session{}, core.ErrSessionNotFound
	}

	session, ok, err := s.sessions.Get(ctx, token)
	if err != nil {
		return core.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		return core.Session{}, core.ErrSessionNotFound
	}

	return session, nil
}

// DestroySession logs a session out. Destroying an absent session is not an
// error. Access tokens minted from the session stop validating unless the
// revocation store is unavailable, which is logged.
func (s *AuthService) DestroySession(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	session, ok, err := s.sessions.Get(ctx, token)
	if err != nil {
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		return false, nil
	}

	removed, err := s.sessions.Destroy(ctx, token)
	if err != nil {
		return false, fmt.Errorf("failed to destroy session: %w", err)
	}

	if err := s.revocations.InvalidateToken(ctx, session.ID, s.accessTTL); err != nil {
		s.logger.Warn("failed to invalidate session access tokens",
			"session_id", session.ID,
			"error", err,
		)
	}

	if err := s.eventPub.PublishSessionDestroyed(ctx, session.ID, session.WalletAddress); err != nil {
		s.logger.Warn("failed to publish session destroyed event",
			"session_id", session.ID,
			"error", err,
		)
	}

	return removed, nil
}

// SessionsByWallet lists the live sessions of the wallet that owns token
func (s *AuthService) SessionsByWallet(ctx context.Context, token string) ([]core.Session, error) {
	session, err := s.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}

	sessions, err := s.sessions.ListByWallet(ctx, session.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, nil
}

// IssueAccessToken mints a short-lived access token for the session behind
// token
func (s *AuthService) IssueAccessToken(ctx context.Context, token string) (string, time.Time, error) {
	session, err := s.GetSession(ctx, token)
	if err != nil {
		return "", time.Time{}, err
	}

	accessToken, expiresAt, err := s.tokenizer.SessionToAccessToken(session, s.accessTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create access token: %w", err)
	}

	return accessToken, expiresAt, nil
}

// ValidateAccessToken checks an access token and that its session has not
// been logged out
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (core.AccessClaims, error) {
	claims, err := s.tokenizer.AccessTokenToClaims(accessToken)
	if err != nil {
		return core.AccessClaims{}, fmt.Errorf("invalid access token: %w", err)
	}

	invalidated, err := s.revocations.IsTokenInvalidated(ctx, claims.SessionID)
	if err != nil {
		return core.AccessClaims{}, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		return core.AccessClaims{}, core.ErrTokenInvalidated
	}

	return claims, nil
}
