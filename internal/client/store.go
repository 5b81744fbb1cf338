package client

import (
	"brokerdesk/backend/internal/models"
	"sort"
	"sync"
)

// Store is the single owner of the session's shared state: the online set,
// the visibility flag, the notification list and the open conversation.
// Readers always get copies.
type Store struct {
	mu sync.RWMutex

	selfID        string
	visible       bool
	online        map[string]struct{}
	notifications []models.Notification
	activeID      string
	messages      []models.Message

	subsMu  sync.Mutex
	nextSub int
	subs    map[int]func()
}

// NewStore returns an empty store for selfID. The tab starts visible.
func NewStore(selfID string) *Store {
	return &Store{
		selfID:  selfID,
		visible: true,
		online:  make(map[string]struct{}),
		subs:    make(map[int]func()),
	}
}

func (s *Store) SelfID() string { return s.selfID }

// Subscribe registers fn to run after every mutation.
func (s *Store) Subscribe(fn func()) (cancel func()) {
	s.subsMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) changed() {
	s.subsMu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Online set

func (s *Store) AddOnline(userID string) {
	s.mu.Lock()
	s.online[userID] = struct{}{}
	s.mu.Unlock()
	s.changed()
}

func (s *Store) RemoveOnline(userID string) {
	s.mu.Lock()
	delete(s.online, userID)
	s.mu.Unlock()
	s.changed()
}

// ReplaceOnline swaps the whole online set for users.
func (s *Store) ReplaceOnline(users []string) {
	next := make(map[string]struct{}, len(users))
	for _, u := range users {
		if u != "" {
			next[u] = struct{}{}
		}
	}

	s.mu.Lock()
	s.online = next
	s.mu.Unlock()
	s.changed()
}

func (s *Store) IsOnline(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.online[userID]
	return ok
}

// OnlineUsers returns the online set, sorted.
func (s *Store) OnlineUsers() []string {
	s.mu.RLock()
	users := make([]string, 0, len(s.online))
	for u := range s.online {
		users = append(users, u)
	}
	s.mu.RUnlock()

	sort.Strings(users)
	return users
}

// Visibility

func (s *Store) SetVisible(visible bool) {
	s.mu.Lock()
	s.visible = visible
	s.mu.Unlock()
	s.changed()
}

func (s *Store) Visible() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible
}

// Notifications, most recent first

func (s *Store) PrependNotification(n models.Notification) {
	s.mu.Lock()
	s.notifications = append([]models.Notification{n}, s.notifications...)
	s.mu.Unlock()
	s.changed()
}

func (s *Store) SetNotifications(list []models.Notification) {
	s.mu.Lock()
	s.notifications = append([]models.Notification(nil), list...)
	s.mu.Unlock()
	s.changed()
}

func (s *Store) MarkAllRead() {
	s.mu.Lock()
	for i := range s.notifications {
		s.notifications[i].Read = true
	}
	s.mu.Unlock()
	s.changed()
}

func (s *Store) RemoveNotification(id string) {
	s.mu.Lock()
	kept := s.notifications[:0]
	for _, n := range s.notifications {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	s.notifications = kept
	s.mu.Unlock()
	s.changed()
}

func (s *Store) Notifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Notification(nil), s.notifications...)
}

func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	unread := 0
	for _, n := range s.notifications {
		if !n.Read {
			unread++
		}
	}
	return unread
}

// Open conversation

// SetActiveConversation selects id and replaces its message history.
func (s *Store) SetActiveConversation(id string, history []models.Message) {
	s.mu.Lock()
	s.activeID = id
	s.messages = append([]models.Message(nil), history...)
	s.mu.Unlock()
	s.changed()
}

func (s *Store) ClearActiveConversation() {
	s.SetActiveConversation("", nil)
}

func (s *Store) ActiveConversation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// AppendMessage adds msg to the open conversation. Messages of any other
// conversation are dropped and false is returned.
func (s *Store) AppendMessage(msg models.Message) bool {
	s.mu.Lock()
	if s.activeID == "" || msg.ConversationID != s.activeID {
		s.mu.Unlock()
		return false
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.changed()
	return true
}

func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.messages...)
}
