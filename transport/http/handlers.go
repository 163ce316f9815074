package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/sigverifier/core"
	"github.com/layer-3/sigverifier/ports"
	"github.com/layer-3/sigverifier/service"
)

// TimeFormat renders timestamps as ISO-8601 UTC with milliseconds
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// CookieConfig describes the session cookie
type CookieConfig struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	validator   *RequestValidator
	cookie      CookieConfig
	metrics     *Metrics
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, cookie CookieConfig, metrics *Metrics) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		validator:   NewRequestValidator(),
		cookie:      cookie,
		metrics:     metrics,
	}
}

type verificationResponse struct {
	IsValid         bool   `json:"isValid"`
	Signer          string `json:"signer"`
	OriginalMessage string `json:"originalMessage"`
	Timestamp       string `json:"timestamp"`
}

type createSessionResponse struct {
	SessionToken  string `json:"sessionToken"`
	WalletAddress string `json:"walletAddress"`
	ExpiresAt     string `json:"expiresAt"`
}

type sessionResponse struct {
	WalletAddress string `json:"walletAddress"`
	ExpiresAt     string `json:"expiresAt"`
}

type sessionSummary struct {
	ID            string `json:"id"`
	WalletAddress string `json:"walletAddress"`
	CreatedAt     string `json:"createdAt"`
	ExpiresAt     string `json:"expiresAt"`
}

type accessTokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int    `json:"expiresIn"`
	ExpiresAt   string `json:"expiresAt"`
}

type authorizeResponse struct {
	Authorized    bool   `json:"authorized"`
	WalletAddress string `json:"walletAddress"`
	SessionID     string `json:"sessionId"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// VerifySignature checks a message signature against an expected signer
func (h *AuthHandlers) VerifySignature(c *gin.Context) {
	var req verifySignatureRequest
	if err := h.validator.bindJSON(c, &req); err != nil {
		h.metrics.verification("verify", "invalid_request")
		_ = c.Error(err)
		return
	}

	result, err := h.authService.VerifySignature(c.Request.Context(), core.SignatureClaim{
		Message:        req.Message,
		Signature:      req.Signature,
		ExpectedSigner: req.ExpectedSigner,
	})
	if err != nil {
		h.metrics.verification("verify", outcome(err))
		_ = c.Error(signatureFailure(err, msgVerifyMismatch))
		return
	}
	h.metrics.verification("verify", "valid")

	respond(c, http.StatusOK, verificationResponse{
		IsValid:         result.IsValid,
		Signer:          result.Signer,
		OriginalMessage: result.OriginalMessage,
		Timestamp:       formatTime(result.Timestamp),
	})
}

// CreateSession verifies a signature and opens a session for the wallet
func (h *AuthHandlers) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := h.validator.bindJSON(c, &req); err != nil {
		h.metrics.verification("session", "invalid_request")
		_ = c.Error(err)
		return
	}

	session, err := h.authService.CreateSession(c.Request.Context(), core.SignatureClaim{
		Message:        req.Message,
		Signature:      req.Signature,
		ExpectedSigner: req.WalletAddress,
	})
	if err != nil {
		h.metrics.verification("session", outcome(err))
		_ = c.Error(signatureFailure(err, msgSessionMismatch))
		return
	}
	h.metrics.verification("session", "valid")
	h.metrics.Sessions.WithLabelValues("created").Inc()

	h.setSessionCookie(c, session.Token)
	respond(c, http.StatusCreated, createSessionResponse{
		SessionToken:  session.Token,
		WalletAddress: session.WalletAddress,
		ExpiresAt:     formatTime(session.ExpiresAt),
	})
}

// GetSession describes the caller's session without echoing credentials
func (h *AuthHandlers) GetSession(c *gin.Context) {
	session, err := h.authService.GetSession(c.Request.Context(), sessionToken(c, h.cookie.Name))
	if err != nil {
		_ = c.Error(sessionFailure(err))
		return
	}

	respond(c, http.StatusOK, sessionResponse{
		WalletAddress: session.WalletAddress,
		ExpiresAt:     formatTime(session.ExpiresAt),
	})
}

// DestroySession logs out. It succeeds whether or not a session existed.
func (h *AuthHandlers) DestroySession(c *gin.Context) {
	removed, err := h.authService.DestroySession(c.Request.Context(), sessionToken(c, h.cookie.Name))
	h.clearSessionCookie(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if removed {
		h.metrics.Sessions.WithLabelValues("destroyed").Inc()
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": msgSessionDestroyed})
}

// ListSessions lists the live sessions of the caller's wallet
func (h *AuthHandlers) ListSessions(c *gin.Context) {
	sessions, err := h.authService.SessionsByWallet(c.Request.Context(), sessionToken(c, h.cookie.Name))
	if err != nil {
		_ = c.Error(sessionFailure(err))
		return
	}

	out := make([]sessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionSummary{
			ID:            s.ID,
			WalletAddress: s.WalletAddress,
			CreatedAt:     formatTime(s.CreatedAt),
			ExpiresAt:     formatTime(s.ExpiresAt),
		})
	}

	respond(c, http.StatusOK, out)
}

// IssueAccessToken exchanges the session credential for a short-lived
// bearer token other services can verify
func (h *AuthHandlers) IssueAccessToken(c *gin.Context) {
	token, expiresAt, err := h.authService.IssueAccessToken(c.Request.Context(), sessionToken(c, h.cookie.Name))
	if err != nil {
		_ = c.Error(sessionFailure(err))
		return
	}

	respond(c, http.StatusOK, accessTokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.authService.AccessTTL() / time.Second),
		ExpiresAt:   formatTime(expiresAt),
	})
}

// Authorize confirms an access token; AccessAuth has already validated it
func (h *AuthHandlers) Authorize(c *gin.Context) {
	respond(c, http.StatusOK, authorizeResponse{
		Authorized:    true,
		WalletAddress: c.GetString(ctxWalletAddress),
		SessionID:     c.GetString(ctxSessionID),
	})
}

func (h *AuthHandlers) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, token, int(h.cookie.MaxAge/time.Second), "/", "", h.cookie.Secure, true)
}

func (h *AuthHandlers) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, core.ErrSignerMismatch):
		return "mismatch"
	case errors.Is(err, core.ErrSignatureRecoveryFailed):
		return "invalid_signature"
	default:
		return "error"
	}
}

// HealthHandler reports liveness and process uptime
func HealthHandler(clock ports.Clock, startedAt time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := clock.Now()
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": formatTime(now),
			"uptime":    now.Sub(startedAt).Seconds(),
		})
	}
}
