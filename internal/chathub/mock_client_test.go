package chathub_test

import (
	"brokerdesk/backend/internal/models"
	"sync"
	"time"
)

type MockClient struct {
	connID string
	userID string

	mu     sync.Mutex
	roomID string
	closed bool

	RecvChannel chan models.Event
}

func newMockClient(connID, userID string) *MockClient {
	return &MockClient{
		connID:      connID,
		userID:      userID,
		RecvChannel: make(chan models.Event, 16),
	}
}

func (c *MockClient) GetConnID() string { return c.connID }

func (c *MockClient) GetUserID() string { return c.userID }

func (c *MockClient) GetRoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *MockClient) SetRoomID(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
}

func (c *MockClient) GetSendChannel() chan<- models.Event {
	return c.RecvChannel
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// next returns the next delivered event or false after a short wait.
func (c *MockClient) next() (models.Event, bool) {
	select {
	case evt := <-c.RecvChannel:
		return evt, true
	case <-time.After(500 * time.Millisecond):
		return models.Event{}, false
	}
}
