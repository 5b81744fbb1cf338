package main

import (
	"brokerdesk/backend/internal/api/handler"
	"brokerdesk/backend/internal/chathub"
	"brokerdesk/backend/internal/config"
	"brokerdesk/backend/internal/storage"
	"brokerdesk/backend/internal/telegram"
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	// 1. PostgreSQL
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	// 2. Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// Перевірка з'єднання Redis
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	log.Println("Database and Redis connections established.")
	return db, rdb
}

func main() {
	log.Println("Starting brokerdesk realtime backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 1. Ініціалізація залежностей
	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)
	if err := s.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	files, err := storage.NewFileStore(cfg.UploadDir, "/uploads")
	if err != nil {
		log.Fatalf("Failed to prepare upload dir: %v", err)
	}

	// Telegram relay is optional
	var relay handler.NotificationRelay
	if cfg.TelegramBotToken != "" && cfg.TelegramAlertChatID != 0 {
		notifier, err := telegram.NewNotifier(cfg.TelegramBotToken, cfg.TelegramAlertChatID)
		if err != nil {
			log.Printf("WARNING: Telegram relay disabled: %v", err)
		} else {
			relay = notifier
		}
	}

	// 2. Chat Hub
	hub := chathub.NewManagerService(s)
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	// 3. Gin та роутинг
	auth := handler.NewAuthenticator(cfg.JWTSecret, cfg.JWTTTL)
	h := handler.NewHandler(hub, s, files, auth, relay, cfg.MaxUploadBytes)
	r := handler.NewRouter(h, cfg.UploadDir)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("INFO: listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				return server.Shutdown(ctx)
			},
			"hub": func(ctx context.Context) error {
				stopHub()
				select {
				case <-hubDone(hub):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
			"redis": func(ctx context.Context) error {
				// presence release in the hub needs Redis
				select {
				case <-hubDone(hub):
				case <-ctx.Done():
				}
				return rdb.Close()
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func hubDone(hub *chathub.ManagerService) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		hub.Wait()
		close(done)
	}()
	return done
}
