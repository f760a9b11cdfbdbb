package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/bobbybaxter/poke-api-extension/internal/auth"
	"github.com/bobbybaxter/poke-api-extension/internal/cache"
	"github.com/bobbybaxter/poke-api-extension/internal/config"
	"github.com/bobbybaxter/poke-api-extension/internal/database"
	"github.com/bobbybaxter/poke-api-extension/internal/handlers"
	"github.com/bobbybaxter/poke-api-extension/internal/repositories"
	"github.com/bobbybaxter/poke-api-extension/internal/services"
	"github.com/bobbybaxter/poke-api-extension/internal/tasks"
)

const shutdownTimeout = 10 * time.Second

func init() {
	logrus.SetOutput(os.Stdout)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func setLogLevel(level string) {
	logLevel, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', defaulting to Info", level)
		logLevel = logrus.InfoLevel
	}
	logrus.SetLevel(logLevel)
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, assuming environment variables are set.")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	setLogLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userRepo, tokenRepo, closeStore := openStore(ctx, cfg)
	defer closeStore()

	if cfg.Cache.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.Cache.RedisURL)
		if err != nil {
			logrus.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer client.Close()
		userRepo = repositories.NewCachedUserRepository(userRepo, cache.NewUserCache(client, cfg.Cache.UserTTL))
		logrus.Infof("User cache enabled (ttl %s)", cfg.Cache.UserTTL)
	}

	codec, err := auth.NewTokenCodec(cfg.Token.AccessSecret, cfg.Token.AccessTTL)
	if err != nil {
		logrus.Fatalf("Failed to initialise access token codec: %v", err)
	}
	hasher, err := auth.NewPasswordHasher(cfg.Password.Algorithm, cfg.Password.BcryptCost)
	if err != nil {
		logrus.Fatalf("Failed to initialise password hasher: %v", err)
	}

	// Initialize services
	tokenService := services.NewTokenService(userRepo, tokenRepo, codec, cfg.Token)
	authService := services.NewAuthService(userRepo, tokenService, hasher)
	userService := services.NewUserService(userRepo)

	reaper := tasks.NewTokenReaper(tokenRepo, cfg.Sweep)
	if err := reaper.Start(); err != nil {
		logrus.Fatalf("Failed to start token reaper: %v", err)
	}

	// Set Gin to ReleaseMode in production
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := handlers.Router{
		Auth:         handlers.NewAuthHandler(authService, auth.NewCookiePolicy(cfg.Token.RefreshTTL, cfg.Token.CookieSecure)),
		Users:        handlers.NewUserHandler(userService),
		Health:       handlers.NewHealthHandler(),
		Authenticate: auth.Authenticate(codec, userRepo),
		Development:  cfg.IsDevelopment(),
	}.Setup()
	if err != nil {
		logrus.Fatalf("Failed to set up router: %v", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.Infof("Server starting on port %s", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server shutdown failed: %v", err)
	}
	reaper.Stop(shutdownCtx)
}

// openStore wires the repositories selected by STORAGE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config) (repositories.UserRepository, repositories.RefreshTokenRepository, func()) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		store := repositories.NewMemoryStore()
		return store.Users(), store.Tokens(), func() {}
	}

	db, err := database.ConnectDB(cfg.Database)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logrus.Fatalf("Failed to migrate database: %v", err)
		}
	}
	return repositories.NewPostgresUserRepository(db),
		repositories.NewPostgresRefreshTokenRepository(db, cfg.Database.Isolation),
		closeDB(db)
}

func closeDB(db *sqlx.DB) func() {
	return func() {
		if err := db.Close(); err != nil {
			logrus.Warnf("Failed to close database: %v", err)
		}
	}
}
