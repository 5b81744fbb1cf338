package client

import (
	"brokerdesk/backend/internal/models"
	"encoding/json"
	"log"
	"sync"
)

// Emitter sends an event to the server.
type Emitter interface {
	Emit(event string, payload any) error
}

// PresenceTracker keeps the store's online set in line with the server and
// announces the current user's own state.
type PresenceTracker struct {
	self   string
	store  *Store
	events *Dispatcher
	conn   Emitter

	mu   sync.Mutex
	offs []func()
}

func NewPresenceTracker(store *Store, events *Dispatcher, conn Emitter) *PresenceTracker {
	return &PresenceTracker{self: store.SelfID(), store: store, events: events, conn: conn}
}

// Bind registers the tracker's handlers. Call it before connecting.
func (p *PresenceTracker) Bind() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.offs = append(p.offs,
		p.events.On(EventConnect, p.onConnect),
		p.events.On(EventReconnect, p.onConnect),
		p.events.On(EventDisconnect, p.onDisconnect),
		p.events.On(models.EventOnlineUsers, p.onSnapshot),
		p.events.On(models.EventUserStatusUpdate, p.onStatus),
	)
}

func (p *PresenceTracker) Unbind() {
	p.mu.Lock()
	offs := p.offs
	p.offs = nil
	p.mu.Unlock()

	for _, off := range offs {
		off()
	}
}

// AnnounceOnline tells the server userID is online and adds it locally.
func (p *PresenceTracker) AnnounceOnline(userID string) {
	p.emitStatus(userID, models.StatusOnline)
	p.store.AddOnline(userID)
}

// AnnounceOffline tells the server userID is offline and removes it locally.
func (p *PresenceTracker) AnnounceOffline(userID string) {
	p.emitStatus(userID, models.StatusOffline)
	p.store.RemoveOnline(userID)
}

// SetVisible is the tab visibility hook.
func (p *PresenceTracker) SetVisible(visible bool) {
	p.store.SetVisible(visible)
	if visible {
		p.AnnounceOnline(p.self)
	} else {
		p.AnnounceOffline(p.self)
	}
}

// Unload is the best-effort page unload hook.
func (p *PresenceTracker) Unload() {
	p.AnnounceOffline(p.self)
}

func (p *PresenceTracker) emitStatus(userID, status string) {
	err := p.conn.Emit(models.EventUserStatusUpdate, models.StatusUpdate{UserID: userID, Status: status})
	if err != nil {
		log.Printf("WARNING: Failed to announce %s as %s: %v", userID, status, err)
	}
}

// onConnect re-registers the user on every fresh transport and restores
// whatever presence the previous one lost.
func (p *PresenceTracker) onConnect(json.RawMessage) {
	if err := p.conn.Emit(models.EventJoin, p.self); err != nil {
		log.Printf("WARNING: Failed to join as %s: %v", p.self, err)
	}
	if p.store.Visible() {
		p.AnnounceOnline(p.self)
	} else {
		p.AnnounceOffline(p.self)
	}
}

func (p *PresenceTracker) onDisconnect(json.RawMessage) {
	if !p.store.Visible() {
		p.store.RemoveOnline(p.self)
	}
}

// onSnapshot replaces the set; self is always included in case the
// snapshot lags behind this connection.
func (p *PresenceTracker) onSnapshot(data json.RawMessage) {
	var users []string
	if err := json.Unmarshal(data, &users); err != nil {
		log.Printf("WARNING: Bad onlineUsers payload: %v", err)
		return
	}
	p.store.ReplaceOnline(append(users, p.self))
}

func (p *PresenceTracker) onStatus(data json.RawMessage) {
	var update models.StatusUpdate
	if err := json.Unmarshal(data, &update); err != nil || update.UserID == "" {
		log.Printf("WARNING: Bad userStatusUpdate payload: %s", data)
		return
	}

	switch update.Status {
	case models.StatusOnline:
		p.store.AddOnline(update.UserID)
	case models.StatusOffline:
		// A stale offline for ourselves can race a reconnect.
		if update.UserID == p.self && p.store.Visible() {
			return
		}
		p.store.RemoveOnline(update.UserID)
	}
}
