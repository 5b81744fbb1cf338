package handler_test

import (
	"brokerdesk/backend/internal/api/handler"
	"brokerdesk/backend/internal/chathub"
	"brokerdesk/backend/internal/models"
	"brokerdesk/backend/internal/storage"
	"brokerdesk/backend/internal/storage/storagemock"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func startWebSocketServer(t *testing.T) (*httptest.Server, *chathub.ManagerService, *storagemock.Storage, *handler.Authenticator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := new(storagemock.Storage)
	broadcasts := make(chan storage.Broadcast)
	s.On("Subscribe", mock.Anything).Return((<-chan storage.Broadcast)(broadcasts), nil)

	hub := chathub.NewManagerService(s)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	auth := handler.NewAuthenticator(testSecret, time.Hour)
	h := handler.NewHandler(hub, s, nil, auth, nil, 0)
	server := httptest.NewServer(handler.NewRouter(h, t.TempDir()))

	t.Cleanup(func() {
		server.Close()
		cancel()
		hub.Wait()
	})
	return server, hub, s, auth
}

func wsURL(server *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?" + query
}

func TestServeWebSocket_RejectsForeignToken(t *testing.T) {
	server, hub, _, auth := startWebSocketServer(t)

	token, err := auth.IssueToken("B")
	require.NoError(t, err)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "userId=A&token="+token), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestServeWebSocket_RequiresUserID(t *testing.T) {
	server, _, _, _ := startWebSocketServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, ""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeWebSocket_JoinReturnsSnapshot(t *testing.T) {
	server, hub, s, auth := startWebSocketServer(t)
	s.On("OnlineUsers", mock.Anything).Return([]string{"A", "B"}, nil)
	s.On("MarkConnectionOffline", mock.Anything, "A").Return(true, nil).Maybe()

	token, err := auth.IssueToken("A")
	require.NoError(t, err)

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "userId=A"), header)
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	join, err := models.NewEvent(models.EventJoin, "A")
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(join))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var snapshot models.Event
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, models.EventOnlineUsers, snapshot.Name)

	var users []string
	require.NoError(t, snapshot.Decode(&users))
	assert.ElementsMatch(t, []string{"A", "B"}, users)
}
