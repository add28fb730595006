package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edi-spaghetti/cs50w-network/internal/config"
	"github.com/edi-spaghetti/cs50w-network/internal/consumer"
	"github.com/edi-spaghetti/cs50w-network/internal/csrf"
	"github.com/edi-spaghetti/cs50w-network/internal/handler"
	"github.com/edi-spaghetti/cs50w-network/internal/mutation"
	"github.com/edi-spaghetti/cs50w-network/internal/query"
	"github.com/edi-spaghetti/cs50w-network/internal/reconciler"
	"github.com/edi-spaghetti/cs50w-network/internal/repository"
	"github.com/edi-spaghetti/cs50w-network/internal/schema"
	"github.com/edi-spaghetti/cs50w-network/internal/service"
	"github.com/edi-spaghetti/cs50w-network/internal/store"
	"github.com/edi-spaghetti/cs50w-network/pkg/database"
	"github.com/edi-spaghetti/cs50w-network/pkg/jwt"
	pkglog "github.com/edi-spaghetti/cs50w-network/pkg/log"
	"github.com/edi-spaghetti/cs50w-network/pkg/middleware"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "network-service",
	})
	logger := pkglog.L()

	// 3. Init DB and migrate users, posts, follows, likes
	db, err := database.New(cfg.Database.Options())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if err := repository.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	if cfg.Database.Driver == "postgres" {
		// FULL replica identity lets delete events carry the whole row, so the
		// CDC consumer can tell which counters a removed edge touched.
		for _, table := range []string{"follows", "likes"} {
			if err := db.Exec("ALTER TABLE " + table + " REPLICA IDENTITY FULL").Error; err != nil {
				logger.Warn().Err(err).Str("table", table).Msg("could not set REPLICA IDENTITY FULL")
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Init Redis; without it hot-key tracking is off and CSRF tokens live in memory
	var (
		hotKeys   store.HotKeyStore
		csrfStore csrf.Store
	)
	redisStore, err := store.NewRedisHotKeyStore(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable; hot-key tracking disabled, CSRF tokens kept in memory")
		csrfStore = csrf.NewMemoryStore(cfg.Auth.CSRFTTL)
	} else {
		defer redisStore.Close()
		hotKeys = redisStore
		csrfStore = csrf.NewRedisStore(redisStore.Client(), cfg.Auth.CSRFTTL)
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	tracker := store.NewTracker(hotKeys)

	// 5. Create store, planner, executor, svc
	reg := schema.Default()
	repo := repository.NewGormStore(db, reg)
	planner := query.NewPlanner(reg, repo, query.Options{
		PageSize: cfg.Search.PageSize,
		MaxLimit: cfg.Search.MaxLimit,
	})
	executor := mutation.NewExecutor(reg, repo, mutation.WithObserver(tracker))
	svc := service.NewNetworkService(planner, executor, csrfStore, cfg.Storage.Timeout)

	// 6. Create auth middleware
	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token manager; set JWT_SECRET")
	}
	authMiddleware := middleware.NewAuthMiddleware(tokens, csrfStore)

	// 7. Init Kafka consumer
	var kafkaConsumer *consumer.ConfluentConsumer
	if cfg.Kafka.Brokers != "" {
		kc, err := consumer.NewConfluentConsumer(
			cfg.Kafka.Brokers,
			cfg.Kafka.Topics,
			cfg.Kafka.GroupID,
			consumer.NewEdgeHandler(reg, tracker),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka consumer, CDC updates disabled")
		} else {
			if err := kc.Start(ctx); err != nil {
				logger.Warn().Err(err).Msg("failed to start kafka consumer")
			} else {
				kafkaConsumer = kc
			}
		}
	} else {
		logger.Warn().Msg("KAFKA_BROKERS not configured; CDC consumer disabled")
	}

	// 8. Init reconciler and start
	rec := reconciler.New(hotKeys, repo, reg, cfg.Reconciler)
	rec.Start(ctx)
	logger.Info().Dur("interval", cfg.Reconciler.Interval).Int("top_n", cfg.Reconciler.TopN).Msg("reconciler started")

	// 9. Setup Gin router + HTTP server
	httpHandler := handler.NewHandler(svc, authMiddleware)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	httpHandler.RegisterRoutes(r)

	// 10. Start server goroutine
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Info().Str("addr", addr).Msg("network-service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// 11. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		// stop accepting requests before the background workers go away
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
		}

		cancel()

		if kafkaConsumer != nil {
			if err := kafkaConsumer.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing kafka consumer")
			}
		}

		rec.Stop()
		<-rec.Done()
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("network-service stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
