package chathub

import "brokerdesk/backend/internal/models"

// Client is the interface for one live connection of a user.
// It abstracts the underlying transport so the hub can be driven in tests
// without a real socket. One user may hold several clients (browser tabs,
// desk terminals).
type Client interface {
	// GetConnID returns the identifier of this connection, unique per process.
	GetConnID() string
	// GetUserID returns the authenticated user the connection belongs to.
	GetUserID() string
	// GetRoomID returns the conversation whose live events the connection
	// receives, or "" when it has not joined any.
	GetRoomID() string
	// SetRoomID is called only by the hub goroutine.
	SetRoomID(string)

	// GetSendChannel returns the channel the hub uses to deliver events to
	// this connection. It is a send-only channel.
	GetSendChannel() chan<- models.Event

	// Run starts the read and write pumps.
	Run()
	// Close stops the write pump; safe to call more than once.
	Close()
}
