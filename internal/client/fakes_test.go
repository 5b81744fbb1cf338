package client_test

import (
	"brokerdesk/backend/internal/client"
	"brokerdesk/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

var errDial = errors.New("connection refused")

// fakeConn is an in-process transport: the test pushes server events into
// in and reads what the client wrote from writes.
type fakeConn struct {
	in     chan models.Event
	writes chan models.Event

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan models.Event, 16),
		writes: make(chan models.Event, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadJSON(v any) error {
	select {
	case evt := <-c.in:
		*v.(*models.Event) = evt
		return nil
	case <-c.closed:
		return io.EOF
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.writes <- v.(models.Event)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// push delivers a server event to the client.
func (c *fakeConn) push(t *testing.T, name string, payload any) {
	t.Helper()
	evt, err := models.NewEvent(name, payload)
	require.NoError(t, err)
	c.in <- evt
}

// expect returns the next written event named name, skipping others.
func (c *fakeConn) expect(t *testing.T, name string) models.Event {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case evt := <-c.writes:
			if evt.Name == name {
				return evt
			}
		case <-deadline:
			t.Fatalf("client never sent %q", name)
			return models.Event{}
		}
	}
}

// fakeDialer hands out fakeConns; the first failures dials fail.
type fakeDialer struct {
	mu       sync.Mutex
	failures int
	always   bool
	dials    int
	users    []string

	dialed chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{dialed: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, userID string) (client.Conn, error) {
	d.mu.Lock()
	d.dials++
	d.users = append(d.users, userID)
	fail := d.always || d.failures > 0
	if d.failures > 0 {
		d.failures--
	}
	d.mu.Unlock()

	if fail {
		return nil, errDial
	}
	c := newFakeConn()
	d.dialed <- c
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) next(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.dialed:
		return c
	case <-time.After(waitFor):
		t.Fatal("no connection was dialed")
		return nil
	}
}

// recordingEmitter captures outbound events without a transport.
type recordingEmitter struct {
	mu     sync.Mutex
	err    error
	events []models.Event
}

func (r *recordingEmitter) Emit(event string, payload any) error {
	evt, err := models.NewEvent(event, payload)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.err
}

func (r *recordingEmitter) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, e := range r.events {
		names = append(names, e.Name)
	}
	return names
}

func (r *recordingEmitter) last(t *testing.T) models.Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.events)
	return r.events[len(r.events)-1]
}

// countingAlerter counts plays and can be made to fail.
type countingAlerter struct {
	mu    sync.Mutex
	plays int
	err   error
}

func (a *countingAlerter) Play() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.plays++
	return a.err
}

func (a *countingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.plays
}

// fakeAPI serves canned REST answers.
type fakeAPI struct {
	mu            sync.Mutex
	sender        string
	conversations map[string]*models.Conversation
	notifications []models.Notification
	sendErr       error
	deleted       []string
	nextID        int
}

func newFakeAPI(sender string) *fakeAPI {
	return &fakeAPI{sender: sender, conversations: make(map[string]*models.Conversation)}
}

func (f *fakeAPI) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[id]
	if !ok {
		return nil, &client.APIError{Status: 404, Message: "Not found"}
	}
	cp := *conv
	return &cp, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, conversationID, content string, uploads []client.Upload) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextID++
	msg := &models.Message{
		ID:             fmt.Sprintf("m%d", f.nextID),
		ConversationID: conversationID,
		SenderID:       f.sender,
		Content:        content,
		Attachments:    []models.Attachment{},
	}
	return msg, nil
}

func (f *fakeAPI) DeleteConversation(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	delete(f.conversations, id)
	return nil
}

func (f *fakeAPI) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Notification(nil), f.notifications...), nil
}

func (f *fakeAPI) MarkAllNotificationsRead(ctx context.Context) error { return nil }

func (f *fakeAPI) DeleteNotification(ctx context.Context, id string) error { return nil }
