package chathub

import (
	"brokerdesk/backend/internal/models"
	"brokerdesk/backend/internal/storage"
	"context"
	"errors"
	"log"
	"sort"
	"sync"
)

// Inbound is one event read from a client connection.
type Inbound struct {
	Client Client
	Event  models.Event
}

// ManagerService is the hub: it owns every local connection, the room
// membership of each connection and the connection's announced presence.
// All state changes happen on the Run goroutine; the mutex only lets other
// goroutines read consistent snapshots.
type ManagerService struct {
	mu      sync.RWMutex
	clients map[string]Client            // connID -> client
	rooms   map[string]map[string]Client // conversationID -> connID -> client
	users   map[string]map[string]Client // userID -> connID -> client
	online  map[string]bool              // connID -> announced online

	// Channels
	RegisterCh   chan Client
	UnregisterCh chan Client
	InboundCh    chan Inbound

	Storage storage.Storage
	done    chan struct{}
}

// NewManagerService creates a hub backed by s.
func NewManagerService(s storage.Storage) *ManagerService {
	return &ManagerService{
		clients:      make(map[string]Client),
		rooms:        make(map[string]map[string]Client),
		users:        make(map[string]map[string]Client),
		online:       make(map[string]bool),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		InboundCh:    make(chan Inbound, 256),
		Storage:      s,
		done:         make(chan struct{}),
	}
}

// Run is the hub loop. It returns when ctx is cancelled, after closing every
// local connection.
func (m *ManagerService) Run(ctx context.Context) {
	log.Println("Chat hub started.")

	broadcasts, err := m.Storage.Subscribe(ctx)
	if err != nil {
		log.Printf("ERROR: Failed to subscribe to Redis, cross-instance fan-out disabled: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			m.releasePresence()
			m.closeAll()
			close(m.done)
			log.Println("Chat hub stopped.")
			return

		case client := <-m.RegisterCh:
			m.register(client)

		case client := <-m.UnregisterCh:
			m.unregister(ctx, client)

		case in := <-m.InboundCh:
			m.handleInbound(ctx, in)

		case b, ok := <-broadcasts:
			if !ok {
				log.Println("WARNING: Redis subscription closed")
				broadcasts = nil
				continue
			}
			m.handleBroadcast(b)
		}
	}
}

// Wait blocks until Run has returned.
func (m *ManagerService) Wait() {
	<-m.done
}

// Register hands a new connection to the hub. It returns false when the hub
// has stopped.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

// Unregister removes a connection; unknown connections are ignored.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Dispatch queues an inbound event. It returns false when the hub has stopped.
func (m *ManagerService) Dispatch(c Client, evt models.Event) bool {
	select {
	case m.InboundCh <- Inbound{Client: c, Event: evt}:
		return true
	case <-m.done:
		return false
	}
}

// ClientCount returns the number of local connections.
func (m *ManagerService) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// RoomMembers returns the connection ids currently joined to a conversation.
func (m *ManagerService) RoomMembers(conversationID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.rooms[conversationID]))
	for id := range m.rooms[conversationID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *ManagerService) register(c Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clients[c.GetConnID()] = c
	if m.users[c.GetUserID()] == nil {
		m.users[c.GetUserID()] = make(map[string]Client)
	}
	m.users[c.GetUserID()][c.GetConnID()] = c
	log.Printf("Client %s (%s) registered", c.GetUserID(), c.GetConnID())
}

func (m *ManagerService) unregister(ctx context.Context, c Client) {
	m.mu.Lock()
	if _, ok := m.clients[c.GetConnID()]; !ok {
		m.mu.Unlock()
		return
	}
	m.leaveRoomLocked(c)
	delete(m.clients, c.GetConnID())
	if conns := m.users[c.GetUserID()]; conns != nil {
		delete(conns, c.GetConnID())
		if len(conns) == 0 {
			delete(m.users, c.GetUserID())
		}
	}
	m.mu.Unlock()

	c.Close()
	m.setPresence(ctx, c, false)
	delete(m.online, c.GetConnID())
	log.Printf("Client %s (%s) unregistered", c.GetUserID(), c.GetConnID())
}

func (m *ManagerService) handleInbound(ctx context.Context, in Inbound) {
	c := in.Client
	m.mu.RLock()
	_, known := m.clients[c.GetConnID()]
	m.mu.RUnlock()
	if !known {
		return
	}

	switch in.Event.Name {
	case models.EventJoin:
		var userID string
		if err := in.Event.Decode(&userID); err != nil || userID != c.GetUserID() {
			log.Printf("WARNING: Client %s sent join for %q, ignoring", c.GetUserID(), userID)
			return
		}
		// Presence comes from the userStatusUpdate that follows, so a hidden
		// tab joining never shows up as online.
		m.sendSnapshot(ctx, c)

	case models.EventUserStatusUpdate:
		var update models.StatusUpdate
		if err := in.Event.Decode(&update); err != nil || update.UserID != c.GetUserID() {
			log.Printf("WARNING: Client %s sent status for %q, ignoring", c.GetUserID(), update.UserID)
			return
		}
		switch update.Status {
		case models.StatusOnline:
			m.setPresence(ctx, c, true)
		case models.StatusOffline:
			m.setPresence(ctx, c, false)
		}

	case models.EventJoinChat:
		var conversationID string
		if err := in.Event.Decode(&conversationID); err != nil || conversationID == "" {
			return
		}
		m.joinRoom(ctx, c, conversationID)

	case models.EventLeaveChat:
		var conversationID string
		if err := in.Event.Decode(&conversationID); err != nil {
			return
		}
		m.mu.Lock()
		if c.GetRoomID() == conversationID {
			m.leaveRoomLocked(c)
		}
		m.mu.Unlock()

	default:
		log.Printf("WARNING: Unknown event %q from %s", in.Event.Name, c.GetUserID())
	}
}

// joinRoom moves c into conversationID, leaving its previous room first.
// Only participants may join.
func (m *ManagerService) joinRoom(ctx context.Context, c Client, conversationID string) {
	if c.GetRoomID() == conversationID {
		return
	}

	conv, err := m.Storage.GetConversation(ctx, conversationID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("ERROR: Failed to load conversation %s: %v", conversationID, err)
		}
		return
	}
	if !conv.HasParticipant(c.GetUserID()) {
		log.Printf("WARNING: %s is not a participant of %s", c.GetUserID(), conversationID)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveRoomLocked(c)
	if m.rooms[conversationID] == nil {
		m.rooms[conversationID] = make(map[string]Client)
	}
	m.rooms[conversationID][c.GetConnID()] = c
	c.SetRoomID(conversationID)
}

func (m *ManagerService) leaveRoomLocked(c Client) {
	roomID := c.GetRoomID()
	if roomID == "" {
		return
	}
	if members := m.rooms[roomID]; members != nil {
		delete(members, c.GetConnID())
		if len(members) == 0 {
			delete(m.rooms, roomID)
		}
	}
	c.SetRoomID("")
}

// send delivers evt without blocking; a client whose buffer is full is dropped.
func (m *ManagerService) send(c Client, evt models.Event) {
	select {
	case c.GetSendChannel() <- evt:
	default:
		log.Printf("WARNING: Client %s (%s) is too slow, dropping connection", c.GetUserID(), c.GetConnID())
		go m.Unregister(c)
	}
}

func (m *ManagerService) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.clients {
		c.Close()
	}
	m.clients = make(map[string]Client)
	m.rooms = make(map[string]map[string]Client)
	m.users = make(map[string]map[string]Client)
}
