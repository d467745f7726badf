package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"psy-relay/internal/config"
	"psy-relay/internal/db"
	apihttp "psy-relay/internal/http"
	"psy-relay/internal/llm"
	"psy-relay/internal/logging"
	"psy-relay/internal/repository"
	"psy-relay/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	userRepo, closeStore, err := openUserRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("user store", zap.Error(err))
	}
	defer closeStore()

	var denylist service.TokenDenylist
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory token denylist", zap.Error(err))
		} else {
			denylist = service.NewRedisTokenDenylist(redisClient)
		}
		cancel()
	}
	jwtSvc := service.NewJWTServiceWithDenylist(cfg.JWTSecret, cfg.SessionTTL, denylist)

	verifier, err := service.NewGoogleVerifier(ctx, cfg.GoogleClientID, cfg.GoogleCertsURL, logger)
	if err != nil {
		logger.Fatal("identity verifier", zap.Error(err))
	}
	llmClient := llm.NewOpenAIClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTemperature, cfg.LLMTimeout, logger)
	writer := service.NewTranscriptWriter(logger, userRepo, cfg.TranscriptWorkers, cfg.TranscriptQueueSize)

	userSvc := service.NewUserService(logger, userRepo, verifier, jwtSvc)
	chatSvc := service.NewChatService(logger, userRepo, llmClient, writer, cfg.LLMTimeout)

	userHandler := apihttp.NewUserHandler(logger, userSvc, jwtSvc)
	chatHandler := apihttp.NewChatHandler(logger, chatSvc)
	router := apihttp.NewRouter(logger, cfg.AllowedOrigin, jwtSvc, userHandler, chatHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	writer.Close()
	logger.Info("transcript writer drained", zap.Int64("failures", writer.Failures()))
}

// openUserRepository elige la persistencia según STORE_DRIVER y devuelve su función de cierre.
func openUserRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.UserRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repository.NewPgUserRepository(pool), pool.Close, nil

	case config.StoreMemory:
		logger.Warn("using in-memory user store, data is lost on restart")
		return repository.NewMemoryUserRepository(), func() {}, nil

	default:
		client, database, err := db.NewMongo(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoUserRepository(database)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return repo, func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logger.Warn("mongo disconnect", zap.Error(err))
			}
		}, nil
	}
}
