package models

import "encoding/json"

// Websocket event names shared by the hub and the desk client.
const (
	EventJoin             = "join"
	EventJoinChat         = "joinChat"
	EventLeaveChat        = "leaveChat"
	EventUserStatusUpdate = "userStatusUpdate"
	EventOnlineUsers      = "onlineUsers"
	EventNewMessage       = "newMessage"
	EventNewNotification  = "newNotification"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Event is one websocket frame: {"event": "...", "data": ...}.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent encodes payload as the data of a named event.
func NewEvent(name string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: name, Data: data}, nil
}

// Decode unmarshals the event data into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// StatusUpdate is the payload of userStatusUpdate in both directions.
type StatusUpdate struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// NotificationPush is the payload of newNotification.
type NotificationPush struct {
	Notification Notification `json:"notification"`
}
