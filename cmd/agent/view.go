package main

import (
	"brokerdesk/backend/internal/client"
	"brokerdesk/backend/internal/models"
	"fmt"
	"strings"
	"sync"
)

// view prints what changed in the store since the last refresh.
type view struct {
	store *client.Store

	mu        sync.Mutex
	activeID  string
	printed   int
	seenNotes map[string]bool
	online    string
}

func newView(store *client.Store) *view {
	return &view{store: store, seenNotes: make(map[string]bool)}
}

// prime records the current state without printing it.
func (v *view) prime() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.activeID = v.store.ActiveConversation()
	v.printed = len(v.store.Messages())
	for _, n := range v.store.Notifications() {
		v.seenNotes[n.ID] = true
	}
	v.online = strings.Join(v.store.OnlineUsers(), ", ")
}

func (v *view) refresh() {
	v.mu.Lock()
	defer v.mu.Unlock()

	active := v.store.ActiveConversation()
	msgs := v.store.Messages()
	if active != v.activeID || v.printed > len(msgs) {
		v.activeID = active
		v.printed = 0
		if active != "" {
			fmt.Printf("── conversation %s ──\n", active)
		}
	}
	for _, m := range msgs[v.printed:] {
		printMessage(m)
	}
	v.printed = len(msgs)

	for _, n := range v.store.Notifications() {
		if v.seenNotes[n.ID] {
			continue
		}
		v.seenNotes[n.ID] = true
		if !n.Read {
			fmt.Printf("🔔 [%s] %s %s\n", n.Priority, n.Title, n.Description)
		}
	}

	if online := strings.Join(v.store.OnlineUsers(), ", "); online != v.online {
		v.online = online
		fmt.Println("online:", online)
	}
}

func printMessage(m models.Message) {
	fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format("15:04"), m.SenderID, m.Content)
	for _, a := range m.Attachments {
		fmt.Printf("    📎 %s (%d bytes, %s) %s\n", a.Name, a.Size, a.MimeType, a.URL)
	}
}
