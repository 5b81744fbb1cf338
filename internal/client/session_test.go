package client_test

import (
	"brokerdesk/backend/internal/client"
	"brokerdesk/backend/internal/models"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startSession(t *testing.T, userID string) (*client.Session, *fakeDialer, *fakeConn) {
	t.Helper()

	dialer := newFakeDialer()
	s, err := client.NewSession(client.Config{
		UserID:  userID,
		Dialer:  dialer,
		API:     newFakeAPI(userID),
		Alerter: &countingAlerter{},
		Options: fastRetry,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, s.Start(context.Background()))
	return s, dialer, dialer.next(t)
}

func TestNewSession_RequiresUser(t *testing.T) {
	_, err := client.NewSession(client.Config{Dialer: newFakeDialer()})
	assert.ErrorIs(t, err, client.ErrNoUser)
}

func TestSession_StartJoinsAndAnnouncesPresence(t *testing.T) {
	s, _, conn := startSession(t, "A")

	join := conn.expect(t, models.EventJoin)
	var userID string
	require.NoError(t, join.Decode(&userID))
	assert.Equal(t, "A", userID)

	status := conn.expect(t, models.EventUserStatusUpdate)
	var update models.StatusUpdate
	require.NoError(t, status.Decode(&update))
	assert.Equal(t, models.StatusUpdate{UserID: "A", Status: models.StatusOnline}, update)

	conn.push(t, models.EventOnlineUsers, []string{"B"})
	assert.Eventually(t, func() bool {
		users := s.Store.OnlineUsers()
		return len(users) == 2 && users[0] == "A" && users[1] == "B"
	}, waitFor, tick)
}

func TestSession_ReconnectRestoresPresence(t *testing.T) {
	s, dialer, conn := startSession(t, "A")
	conn.expect(t, models.EventUserStatusUpdate)

	// The server saw the old transport die and says A went offline.
	conn.push(t, models.EventUserStatusUpdate, models.StatusUpdate{UserID: "A", Status: models.StatusOffline})
	conn.Close()

	next := dialer.next(t)
	next.expect(t, models.EventJoin)
	status := next.expect(t, models.EventUserStatusUpdate)
	var update models.StatusUpdate
	require.NoError(t, status.Decode(&update))
	assert.Equal(t, models.StatusOnline, update.Status)

	assert.Eventually(t, func() bool { return s.Store.IsOnline("A") }, waitFor, tick)
}

func TestSession_ReconnectRejoinsRoom(t *testing.T) {
	s, dialer, conn := startSession(t, "A")
	require.NoError(t, s.Delivery.JoinConversation("R"))
	conn.expect(t, models.EventJoinChat)

	conn.Close()

	next := dialer.next(t)
	evt := next.expect(t, models.EventJoinChat)
	var room string
	require.NoError(t, evt.Decode(&room))
	assert.Equal(t, "R", room)
}

func TestSession_LiveNotificationReachesStore(t *testing.T) {
	s, _, conn := startSession(t, "D")
	s.Store.SetNotifications([]models.Notification{{ID: "n2"}, {ID: "n1"}})

	conn.push(t, models.EventNewNotification, models.NotificationPush{
		Notification: models.Notification{ID: "n3", RecipientID: "D", Title: "Payout approved"},
	})

	assert.Eventually(t, func() bool { return len(s.Store.Notifications()) == 3 }, waitFor, tick)
	assert.Equal(t, "n3", s.Store.Notifications()[0].ID)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	s, dialer, conn := startSession(t, "A")
	require.NoError(t, s.Delivery.JoinConversation("R"))

	s.Close()
	s.Close()

	assert.True(t, conn.isClosed())
	assert.False(t, s.Conn.Connected())
	for _, name := range []string{
		client.EventConnect, client.EventReconnect, client.EventDisconnect,
		models.EventOnlineUsers, models.EventUserStatusUpdate,
		models.EventNewMessage, models.EventNewNotification,
	} {
		assert.Zero(t, s.Events.Count(name), name)
	}
	assert.Equal(t, 1, dialer.dialCount())
}

func TestSession_UnloadAnnouncesOffline(t *testing.T) {
	s, _, conn := startSession(t, "A")
	conn.expect(t, models.EventUserStatusUpdate)

	s.Unload()

	status := conn.expect(t, models.EventUserStatusUpdate)
	var update models.StatusUpdate
	require.NoError(t, status.Decode(&update))
	assert.Equal(t, models.StatusOffline, update.Status)
	assert.True(t, conn.isClosed())
}
