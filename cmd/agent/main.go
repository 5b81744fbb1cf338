// Command agent is a terminal desk for back-office staff: presence, chat and
// live notifications over the brokerdesk realtime backend.
package main

import (
	"brokerdesk/backend/internal/client"
	"brokerdesk/backend/internal/config"
	"brokerdesk/backend/internal/models"
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

var errQuit = errors.New("quit")

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg, err := config.LoadAgent()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	api := client.NewAPI(cfg.ServerURL, cfg.Token)
	session, err := client.NewSession(client.Config{
		UserID:  cfg.UserID,
		Dialer:  &client.WebSocketDialer{ServerURL: cfg.ServerURL, Token: cfg.Token},
		API:     api,
		Alerter: client.BellAlerter{Out: os.Stdout},
		Options: client.Options{
			ReconnectAttempts: cfg.ReconnectAttempts,
			ReconnectDelay:    cfg.ReconnectDelay,
		},
	})
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session.Events.On(client.EventReconnectFailed, func(json.RawMessage) {
		fmt.Println("!! connection lost, type /reconnect to try again")
	})
	// The transport outlives ctx so Unload can still announce offline.
	if err := session.Start(context.Background()); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer session.Unload()

	// Initial state loads in parallel; a failure only degrades the view.
	var convs []models.Conversation
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		convs, err = api.ListConversations(gctx)
		return err
	})
	g.Go(func() error {
		return session.Delivery.LoadNotifications(gctx)
	})
	if err := g.Wait(); err != nil {
		fmt.Printf("error: %v\n", err)
	}

	d := &desk{session: session, api: api, view: newView(session.Store)}
	d.view.prime()
	defer session.Store.Subscribe(d.view.refresh)()

	fmt.Printf("Signed in as %s. %d conversations, %d unread notifications. /help for commands.\n",
		cfg.UserID, len(convs), session.Store.UnreadCount())

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := d.handle(ctx, strings.TrimSpace(line)); err != nil {
				if errors.Is(err, errQuit) {
					return
				}
				fmt.Printf("error: %v\n", err)
			}
		}
	}
}
