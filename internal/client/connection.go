package client

import (
	"brokerdesk/backend/internal/config"
	"brokerdesk/backend/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Local lifecycle events. They never travel over the wire.
const (
	EventConnect         = "connect"
	EventReconnect       = "reconnect"
	EventDisconnect      = "disconnect"
	EventConnectError    = "connect_error"
	EventReconnectFailed = "reconnect_failed"
)

func isLifecycleEvent(name string) bool {
	switch name {
	case EventConnect, EventReconnect, EventDisconnect, EventConnectError, EventReconnectFailed:
		return true
	}
	return false
}

// Conn is one open transport. *websocket.Conn satisfies it.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// Dialer opens a transport authenticated as userID.
type Dialer interface {
	Dial(ctx context.Context, userID string) (Conn, error)
}

// WebSocketDialer dials the server's /ws endpoint, passing the user id as a
// query parameter and the session token as a bearer credential.
type WebSocketDialer struct {
	ServerURL string
	Token     string
	Dialer    *websocket.Dialer
}

func (d *WebSocketDialer) Dial(ctx context.Context, userID string) (Conn, error) {
	u, err := url.Parse(d.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"userId": {userID}}.Encode()

	header := http.Header{}
	if d.Token != "" {
		header.Set("Authorization", "Bearer "+d.Token)
	}

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Redacted(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	return conn, nil
}

// Options tunes reconnection.
type Options struct {
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

func DefaultOptions() Options {
	return Options{
		ReconnectAttempts: config.DefaultReconnectAttempts,
		ReconnectDelay:    config.DefaultReconnectDelay,
	}
}

// ConnectionManager owns the single transport of a session. Inbound events,
// and the local lifecycle events, are delivered through the dispatcher.
type ConnectionManager struct {
	userID string
	dialer Dialer
	events *Dispatcher
	opts   Options

	mu     sync.Mutex
	conn   Conn
	active bool
	cancel context.CancelFunc
	run    uint64 // bumped by every Connect; m.conn belongs to this run
	wg     sync.WaitGroup

	writeMu sync.Mutex
}

func NewConnectionManager(userID string, dialer Dialer, events *Dispatcher, opts Options) *ConnectionManager {
	def := DefaultOptions()
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = def.ReconnectAttempts
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = def.ReconnectDelay
	}
	return &ConnectionManager{userID: userID, dialer: dialer, events: events, opts: opts}
}

// Connect opens the transport. It is a no-op while a connection exists or a
// reconnect is in progress. A failed first dial is not returned: it is
// logged, reported as connect_error, and retried in the background. ctx
// bounds the lifetime of the connection, not just the dial.
func (m *ConnectionManager) Connect(ctx context.Context) error {
	if m.userID == "" {
		return ErrNoUser
	}

	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return nil
	}
	if m.cancel != nil {
		m.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.active = true
	m.cancel = cancel
	m.run++
	run := m.run
	m.mu.Unlock()

	// Closing the transport is what unblocks the read loop. A watcher woken by
	// a later Connect must leave the newer run's transport alone.
	m.spawn(runCtx, func() {
		<-runCtx.Done()
		m.mu.Lock()
		var conn Conn
		if m.run == run {
			conn = m.conn
			m.conn = nil
		}
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
	})

	conn, err := m.dialer.Dial(runCtx, m.userID)
	if err != nil {
		m.reportError(err)
		m.spawn(runCtx, func() { m.reconnect(runCtx) })
		return nil
	}
	m.attach(runCtx, conn, EventConnect)
	return nil
}

// Disconnect tears the transport down and stops any reconnect loop. It waits
// for the read loop to exit, so it must not be called from an event handler.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	conn := m.conn
	m.conn = nil
	m.active = false
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	m.wg.Wait()
}

// Connected reports whether a transport is currently open.
func (m *ConnectionManager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Emit sends one event to the server.
func (m *ConnectionManager) Emit(event string, payload any) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	evt, err := models.NewEvent(event, payload)
	if err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteJSON(evt)
}

// spawn runs fn tracked by the wait group unless ctx is already done. The
// check and the Add happen under mu so Disconnect never races a late Add.
func (m *ConnectionManager) spawn(ctx context.Context, fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn()
	}()
	return true
}

func (m *ConnectionManager) attach(ctx context.Context, conn Conn, event string) {
	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.mu.Unlock()

	log.Printf("INFO: %s as %s", event, m.userID)
	m.events.Emit(event, nil)

	if !m.spawn(ctx, func() { m.readLoop(ctx, conn) }) {
		conn.Close()
	}
}

func (m *ConnectionManager) readLoop(ctx context.Context, conn Conn) {
	for {
		var evt models.Event
		if err := conn.ReadJSON(&evt); err != nil {
			m.mu.Lock()
			if m.conn == conn {
				m.conn = nil
			}
			m.mu.Unlock()
			conn.Close()

			if ctx.Err() != nil {
				return
			}
			log.Printf("WARNING: Connection of %s lost: %v", m.userID, err)
			m.events.Emit(EventDisconnect, nil)
			m.reconnect(ctx)
			return
		}

		if isLifecycleEvent(evt.Name) {
			log.Printf("WARNING: Ignoring reserved event %q from server", evt.Name)
			continue
		}
		m.events.Emit(evt.Name, evt.Data)
	}
}

// reconnect retries with a fixed delay. When every attempt fails the manager
// gives up: reconnect_failed is emitted and the session stays offline until
// Connect is called again.
func (m *ConnectionManager) reconnect(ctx context.Context) {
	for attempt := 1; attempt <= m.opts.ReconnectAttempts; attempt++ {
		timer := time.NewTimer(m.opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		conn, err := m.dialer.Dial(ctx, m.userID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("WARNING: Reconnect attempt %d/%d for %s failed", attempt, m.opts.ReconnectAttempts, m.userID)
			m.reportError(err)
			continue
		}
		m.attach(ctx, conn, EventReconnect)
		return
	}

	log.Printf("ERROR: Giving up on %s after %d reconnect attempts", m.userID, m.opts.ReconnectAttempts)
	m.mu.Lock()
	m.active = false
	m.mu.Unlock()
	m.events.Emit(EventReconnectFailed, nil)
}

func (m *ConnectionManager) reportError(err error) {
	log.Printf("ERROR: connect_error for %s: %v", m.userID, err)
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	m.events.Emit(EventConnectError, data)
}
