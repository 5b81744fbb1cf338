package chathub

import (
	"brokerdesk/backend/internal/models"
	"brokerdesk/backend/internal/storage"
	"context"
	"log"
	"time"
)

// setPresence records whether connection c counts towards its user being
// online. The user-level status only flips, and is only broadcast, when the
// first connection comes online or the last one goes offline, so a hidden or
// closed second tab never marks a user offline.
func (m *ManagerService) setPresence(ctx context.Context, c Client, online bool) {
	connID := c.GetConnID()
	if m.online[connID] == online {
		return
	}

	var (
		changed bool
		err     error
	)
	if online {
		changed, err = m.Storage.MarkConnectionOnline(ctx, c.GetUserID())
	} else {
		changed, err = m.Storage.MarkConnectionOffline(ctx, c.GetUserID())
	}
	if err != nil {
		log.Printf("ERROR: Failed to update presence of %s: %v", c.GetUserID(), err)
		return
	}
	m.online[connID] = online

	if !changed {
		return
	}
	status := models.StatusOffline
	if online {
		status = models.StatusOnline
	}
	m.publishStatus(ctx, c.GetUserID(), status)
}

func (m *ManagerService) publishStatus(ctx context.Context, userID, status string) {
	evt, err := models.NewEvent(models.EventUserStatusUpdate, models.StatusUpdate{UserID: userID, Status: status})
	if err != nil {
		log.Printf("ERROR: Failed to encode status of %s: %v", userID, err)
		return
	}
	if err := m.Storage.Publish(ctx, storage.PresenceChannel, evt); err != nil {
		log.Printf("ERROR: Failed to publish status of %s: %v", userID, err)
	}
}

// sendSnapshot sends the full online set to c alone.
func (m *ManagerService) sendSnapshot(ctx context.Context, c Client) {
	users, err := m.Storage.OnlineUsers(ctx)
	if err != nil {
		log.Printf("ERROR: Failed to read online users: %v", err)
		return
	}
	if users == nil {
		users = []string{}
	}
	evt, err := models.NewEvent(models.EventOnlineUsers, users)
	if err != nil {
		return
	}
	m.send(c, evt)
}

// releasePresence marks every local online connection offline on shutdown,
// so Redis does not keep counting connections of a dead instance.
func (m *ManagerService) releasePresence() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m.mu.RLock()
	clients := make([]Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.RUnlock()

	for _, c := range clients {
		m.setPresence(ctx, c, false)
	}
}
