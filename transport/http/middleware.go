package http

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/sigverifier/ports"
	"github.com/layer-3/sigverifier/service"
)

const (
	ctxClientKey     = "clientKey"
	ctxWalletAddress = "walletAddress"
	ctxSessionID     = "sessionID"
)

// ClientKey identifies the caller for rate limiting: the first
// X-Forwarded-For entry, then X-Real-IP, then the connection host, then
// "unknown"
func ClientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}

	return "unknown"
}

// RateLimit gates a route with a fixed-window counter per client key. If the
// store is unreachable the request is let through.
func RateLimit(store ports.RateLimitStore, limit int, window time.Duration, metrics *Metrics, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ClientKey(c.Request)
		c.Set(ctxClientKey, key)

		decision, err := store.Take(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("rate limit store unavailable, allowing request",
				"path", c.FullPath(),
				"error", err,
			)
			c.Next()
			return
		}

		if !decision.Allowed {
			retryAfter := decision.RetryAfterSeconds()
			metrics.RateLimited.WithLabelValues(c.FullPath()).Inc()
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			_ = c.Error(tooManyRequests(retryAfter))
			c.Abort()
			return
		}

		c.Next()
	}
}

// AccessAuth validates the bearer access token and exposes its wallet and
// session to the handlers
func AccessAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			_ = c.Error(unauthorized(msgInvalidAccessToken, nil))
			c.Abort()
			return
		}

		claims, err := authService.ValidateAccessToken(c.Request.Context(), token)
		if err != nil {
			_ = c.Error(accessTokenFailure(err))
			c.Abort()
			return
		}

		c.Set(ctxWalletAddress, claims.WalletAddress)
		c.Set(ctxSessionID, claims.SessionID)

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// sessionToken reads the session credential: the cookie first, then a
// Bearer Authorization header
func sessionToken(c *gin.Context, cookieName string) string {
	if token, err := c.Cookie(cookieName); err == nil && token != "" {
		return token
	}

	token, _ := bearerToken(c.GetHeader("Authorization"))
	return token
}

// ErrorHandler renders the last error attached by a handler or middleware
func ErrorHandler(logger *slog.Logger, production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			logger.Debug("request rejected",
				"path", c.Request.URL.Path,
				"status", apiErr.Status,
				"error", err,
			)
		} else {
			logger.Error("handler error occurred",
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"error", err,
			)
		}

		if !c.Writer.Written() {
			renderError(c, err, production)
		}
	}
}

// Recovery turns a panic into the standard 500 envelope
func Recovery(logger *slog.Logger, production bool) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"error", recovered,
		)
		renderError(c, &panicError{value: recovered}, production)
	})
}

// RequestLogger logs one line per request. Credentials are never logged.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client", ClientKey(c.Request),
		}

		switch {
		case status >= 500:
			logger.Error("HTTP request completed with server error", args...)
		case status >= 400:
			logger.Warn("HTTP request completed with client error", args...)
		default:
			logger.Debug("HTTP request completed", args...)
		}
	}
}
