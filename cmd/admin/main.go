package main

import (
	"brokerdesk/backend/internal/api/handler"
	"brokerdesk/backend/internal/config"
	"brokerdesk/backend/internal/models"
	"brokerdesk/backend/internal/storage"
	"brokerdesk/backend/internal/telegram"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const usage = `Usage: admin <command> [args]

Commands:
  token <user_id> [admin]                          issue a session token, optionally with operator rights
  notify <user_id> <high|medium|low> <title> [text] create and push a notification
  online                                           list users online right now
  reset-presence                                   clear stale presence counters`

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	command := os.Args[1]
	switch command {
	case "token":
		if len(os.Args) < 3 || len(os.Args) > 4 || (len(os.Args) == 4 && os.Args[3] != handler.RoleAdmin) {
			fmt.Println("Usage: admin token <user_id> [admin]")
			os.Exit(1)
		}
		auth := handler.NewAuthenticator(cfg.JWTSecret, cfg.JWTTTL)
		issue := auth.IssueToken
		if len(os.Args) == 4 {
			issue = auth.IssueAdminToken
		}
		token, err := issue(os.Args[2])
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Println(token)

	case "notify":
		if len(os.Args) < 5 {
			fmt.Println("Usage: admin notify <user_id> <high|medium|low> <title> [text]")
			os.Exit(1)
		}
		n := &models.Notification{
			RecipientID: os.Args[2],
			Priority:    os.Args[3],
			Title:       os.Args[4],
			Description: strings.Join(os.Args[5:], " "),
			Type:        models.NotificationIndividual,
		}
		if !models.ValidPriority(n.Priority) {
			fmt.Println("Invalid priority. Use high, medium or low.")
			os.Exit(1)
		}
		if err := notify(ctx, openStorage(cfg, true), n); err != nil {
			log.Fatalf("Error sending notification: %v", err)
		}
		fmt.Printf("Notification %s sent to %s.\n", n.ID, n.RecipientID)
		if n.Priority == models.PriorityHigh {
			relay(cfg, *n)
		}

	case "online":
		users, err := openStorage(cfg, false).OnlineUsers(ctx)
		if err != nil {
			log.Fatalf("Error reading online users: %v", err)
		}
		for _, u := range users {
			fmt.Println(u)
		}

	case "reset-presence":
		n, err := openStorage(cfg, false).ResetPresence(ctx)
		if err != nil {
			log.Fatalf("Error resetting presence: %v", err)
		}
		fmt.Printf("Removed %d presence keys.\n", n)

	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

// openStorage connects Redis, and PostgreSQL only when withDB is set.
func openStorage(cfg *config.Config, withDB bool) *storage.Service {
	var db *gorm.DB
	if withDB {
		var err error
		db, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to connect database: %v", err)
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return storage.NewStorageService(db, rdb)
}

// notify stores n and pushes it to the recipient's live channel.
func notify(ctx context.Context, s storage.Storage, n *models.Notification) error {
	if err := s.CreateNotification(ctx, n); err != nil {
		return err
	}
	evt, err := models.NewEvent(models.EventNewNotification, models.NotificationPush{Notification: *n})
	if err != nil {
		return err
	}
	return s.Publish(ctx, storage.UserChannel(n.RecipientID), evt)
}

func relay(cfg *config.Config, n models.Notification) {
	if cfg.TelegramBotToken == "" || cfg.TelegramAlertChatID == 0 {
		return
	}
	notifier, err := telegram.NewNotifier(cfg.TelegramBotToken, cfg.TelegramAlertChatID)
	if err != nil {
		log.Printf("WARNING: Telegram relay disabled: %v", err)
		return
	}
	if err := notifier.Notify(n); err != nil {
		log.Printf("WARNING: %v", err)
	}
}
