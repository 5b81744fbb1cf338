package client

import "errors"

var (
	// ErrNoUser is returned when a session has no user id; no connection is opened.
	ErrNoUser = errors.New("no current user")
	// ErrNotConnected is returned by Emit while there is no live connection.
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyInRoom is returned when joining a conversation without leaving the current one.
	ErrAlreadyInRoom = errors.New("already joined to another conversation")
)
