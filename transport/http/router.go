package http

import (
	"log/slog"
	"net/http"
	"regexp"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/layer-3/sigverifier/ports"
	"github.com/layer-3/sigverifier/service"
)

var localhostOrigin = regexp.MustCompile(`^http://localhost:\d+$`)

// RouterConfig carries the transport settings
type RouterConfig struct {
	Production     bool
	AllowedOrigins []string
	Cookie         CookieConfig
	RateLimit      int
	RateWindow     time.Duration
}

// SetupRouter sets up the Gin router
func SetupRouter(
	authService *service.AuthService,
	limits ports.RateLimitStore,
	metrics *Metrics,
	cfg RouterConfig,
	clock ports.Clock,
	logger *slog.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(
		Recovery(logger, cfg.Production),
		RequestLogger(logger),
		metrics.Middleware(),
		ErrorHandler(logger, cfg.Production),
	)

	handlers := NewAuthHandlers(authService, cfg.Cookie, metrics)
	limited := RateLimit(limits, cfg.RateLimit, cfg.RateWindow, metrics, logger)

	router.GET("/health", HealthHandler(clock, clock.Now()))
	router.GET("/api/metrics", metrics.Handler())

	auth := router.Group("/api/auth")
	{
		auth.POST("/verify-signature", limited, handlers.VerifySignature)
		auth.POST("/session", limited, handlers.CreateSession)
		auth.GET("/session", handlers.GetSession)
		auth.DELETE("/session", handlers.DestroySession)
		auth.GET("/sessions", handlers.ListSessions)
		auth.POST("/session/access-token", handlers.IssueAccessToken)
		auth.GET("/authorize", AccessAuth(authService), handlers.Authorize)
	}

	router.NoRoute(func(c *gin.Context) {
		_ = c.Error(&APIError{Status: http.StatusNotFound, Title: titleNotFound, Message: "Route " + c.Request.URL.Path + " not found"})
	})

	return router
}

// WithCORS admits credentialed browser requests from the configured
// origins, plus any localhost port outside production
func WithCORS(h http.Handler, allowedOrigins []string, production bool) http.Handler {
	return cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool {
			if slices.Contains(allowedOrigins, origin) {
				return true
			}
			return !production && localhostOrigin.MatchString(origin)
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
	}).Handler(h)
}
