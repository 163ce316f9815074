package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/layer-3/sigverifier/adapters/events"
	"github.com/layer-3/sigverifier/adapters/store"
	"github.com/layer-3/sigverifier/adapters/tokenizer"
	"github.com/layer-3/sigverifier/adapters/verifier"
	"github.com/layer-3/sigverifier/internal/config"
	"github.com/layer-3/sigverifier/internal/logger"
	"github.com/layer-3/sigverifier/ports"
	"github.com/layer-3/sigverifier/service"
	transport "github.com/layer-3/sigverifier/transport/http"
)

func newServeCommand() *cobra.Command {
	var configPath, env string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, env)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	cmd.Flags().StringVarP(&env, "env", "e", "", "Environment (development, test, production)")

	return cmd
}

// backend bundles the stores and publisher selected by store.backend
type backend struct {
	sessions    ports.SessionStore
	limits      ports.RateLimitStore
	revocations ports.RevocationStore
	publisher   message.Publisher
	sweeps      []sweep
	close       func() error
}

type sweep struct {
	name     string
	interval time.Duration
	fn       service.SweepFunc
}

func newBackend(cfg *config.Config, clock ports.Clock, log *slog.Logger) (*backend, error) {
	wmLogger := watermill.NewSlogLogger(logger.WithComponent(log, "watermill"))

	if cfg.Store.Backend == config.BackendRedis {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := redis.NewClient(opts)

		publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, wmLogger)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to create redis publisher: %w", err)
		}

		sessions := store.NewRedisSessionStore(client, cfg.Session.TTL, clock)
		return &backend{
			sessions:    sessions,
			limits:      store.NewRedisRateLimitStore(client),
			revocations: store.NewRedisRevocationStore(client),
			publisher:   publisher,
			sweeps: []sweep{
				{"sessions", cfg.Session.CleanupInterval, sessions.CleanupExpired},
			},
			close: func() error {
				return errors.Join(publisher.Close(), client.Close())
			},
		}, nil
	}

	sessions := store.NewMemorySessionStore(cfg.Session.TTL, clock)
	limits := store.NewMemoryRateLimitStore(clock)
	revocations := store.NewMemoryRevocationStore(clock)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, wmLogger)

	return &backend{
		sessions:    sessions,
		limits:      limits,
		revocations: revocations,
		publisher:   pubSub,
		sweeps: []sweep{
			{"sessions", cfg.Session.CleanupInterval, sessions.CleanupExpired},
			{"ratelimit", cfg.RateLimit.SweepInterval, limits.Sweep},
			{"revocations", cfg.RateLimit.SweepInterval, revocations.Sweep},
		},
		close: pubSub.Close,
	}, nil
}

func loadSigningKey(path string, log *slog.Logger) (*ecdsa.PrivateKey, error) {
	if path == "" {
		log.Warn("no token.signing_key_file configured, access tokens will not survive a restart")
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	return key, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Init(logger.Options{Level: cfg.Logger.Level, Format: cfg.Logger.Format})
	log.Info("starting sigverifier",
		"version", version,
		"environment", cfg.Server.Environment,
		"store", cfg.Store.Backend,
	)

	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = io.Discard

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := ports.SystemClock()

	b, err := newBackend(cfg, clock, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.close(); err != nil {
			log.Error("failed to close backend", "error", err)
		}
	}()

	signKey, err := loadSigningKey(cfg.Token.SigningKeyFile, log)
	if err != nil {
		return err
	}

	authService := service.NewAuthService(service.Deps{
		Verifier:    verifier.NewEthVerifier(),
		Sessions:    b.sessions,
		Revocations: b.revocations,
		Tokenizer:   tokenizer.NewJWTTokenizer(signKey, clock),
		Events:      events.NewWatermillPublisher(b.publisher, clock),
		Clock:       clock,
		Logger:      logger.WithComponent(log, "auth"),
	}, cfg.Token.AccessTTL)

	sweeper := service.NewSweeper(logger.WithComponent(log, "sweeper"))
	for _, job := range b.sweeps {
		sweeper.Add(job.name, job.interval, job.fn)
	}
	sweeper.Start(ctx)

	router := transport.SetupRouter(
		authService,
		b.limits,
		transport.NewMetrics(),
		transport.RouterConfig{
			Production:     cfg.Server.IsProduction(),
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Cookie: transport.CookieConfig{
				Name:   cfg.Session.CookieName,
				MaxAge: cfg.Session.TTL,
				Secure: cfg.Server.IsProduction(),
			},
			RateLimit:  cfg.RateLimit.MaxRequests,
			RateWindow: cfg.RateLimit.Window,
		},
		clock,
		logger.WithComponent(log, "http"),
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           transport.WithCORS(router, cfg.Server.AllowedOrigins, cfg.Server.IsProduction()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			stop()
			sweeper.Wait()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		return err
	}
	sweeper.Wait()

	log.Info("server exited gracefully")
	return nil
}
