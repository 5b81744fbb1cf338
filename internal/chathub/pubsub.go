package chathub

import (
	"brokerdesk/backend/internal/storage"
)

// handleBroadcast delivers an event received from Redis to the local
// connections it targets. Room events reach connections joined to that room,
// user events reach every connection of that user, presence events reach
// everyone.
func (m *ManagerService) handleBroadcast(b storage.Broadcast) {
	kind, id := storage.ParseChannel(b.Channel)

	m.mu.RLock()
	var targets []Client
	switch kind {
	case "presence":
		for _, c := range m.clients {
			targets = append(targets, c)
		}
	case "room":
		for _, c := range m.rooms[id] {
			targets = append(targets, c)
		}
	case "user":
		for _, c := range m.users[id] {
			targets = append(targets, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range targets {
		m.send(c, b.Event)
	}
}
