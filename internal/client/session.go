package client

import (
	"context"
	"sync"
)

// Config describes one desk session.
type Config struct {
	UserID  string
	Dialer  Dialer
	API     ChatAPI
	Alerter Alerter
	Options Options
}

// Session wires the connection, presence and delivery of one user around a
// shared store and dispatcher.
type Session struct {
	Store    *Store
	Events   *Dispatcher
	Conn     *ConnectionManager
	Presence *PresenceTracker
	Delivery *Delivery

	startOnce sync.Once
	closeOnce sync.Once
}

func NewSession(cfg Config) (*Session, error) {
	if cfg.UserID == "" {
		return nil, ErrNoUser
	}

	store := NewStore(cfg.UserID)
	events := NewDispatcher()
	conn := NewConnectionManager(cfg.UserID, cfg.Dialer, events, cfg.Options)

	return &Session{
		Store:    store,
		Events:   events,
		Conn:     conn,
		Presence: NewPresenceTracker(store, events, conn),
		Delivery: NewDelivery(store, events, conn, cfg.API, cfg.Alerter),
	}, nil
}

// Start registers every handler, then connects.
func (s *Session) Start(ctx context.Context) error {
	var err error
	s.startOnce.Do(func() {
		s.Presence.Bind()
		s.Delivery.Bind()
		err = s.Conn.Connect(ctx)
	})
	return err
}

// Close removes every handler and disconnects. Only the first call has an effect.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Delivery.Unbind()
		s.Presence.Unbind()
		s.Conn.Disconnect()
	})
}

// Unload announces the user offline, best effort, then closes.
func (s *Session) Unload() {
	s.Presence.Unload()
	s.Close()
}
