package storage_test

import (
	"brokerdesk/backend/internal/models"
	"brokerdesk/backend/internal/storage"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisService(t *testing.T) (*storage.Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return storage.NewStorageService(nil, rdb), mr
}

func TestPresence_FirstAndLastConnection(t *testing.T) {
	s, mr := newRedisService(t)
	ctx := context.Background()

	changed, err := s.MarkConnectionOnline(ctx, "payer_1")
	require.NoError(t, err)
	assert.True(t, changed, "first tab brings the user online")

	changed, err = s.MarkConnectionOnline(ctx, "payer_1")
	require.NoError(t, err)
	assert.False(t, changed, "second tab changes nothing")

	users, err := s.OnlineUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"payer_1"}, users)

	changed, err = s.MarkConnectionOffline(ctx, "payer_1")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.MarkConnectionOffline(ctx, "payer_1")
	require.NoError(t, err)
	assert.True(t, changed, "last tab takes the user offline")

	users, err = s.OnlineUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.False(t, mr.Exists("presence:conns:payer_1"))
}

func TestPresence_ConcurrentTabsStayConsistent(t *testing.T) {
	s, mr := newRedisService(t)
	ctx := context.Background()

	var (
		wg         sync.WaitGroup
		wentOnline atomic.Int32
		wentOff    atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := s.MarkConnectionOnline(ctx, "payer_1")
			assert.NoError(t, err)
			if changed {
				wentOnline.Add(1)
			}
			changed, err = s.MarkConnectionOffline(ctx, "payer_1")
			assert.NoError(t, err)
			if changed {
				wentOff.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, wentOnline.Load(), wentOff.Load())
	assert.GreaterOrEqual(t, wentOnline.Load(), int32(1))
	users, err := s.OnlineUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.False(t, mr.Exists("presence:conns:payer_1"))
}

func TestPresence_Reset(t *testing.T) {
	s, mr := newRedisService(t)
	ctx := context.Background()

	for _, user := range []string{"payer_1", "payer_2", "broker_7"} {
		_, err := s.MarkConnectionOnline(ctx, user)
		require.NoError(t, err)
	}
	require.NoError(t, mr.Set("unrelated", "keep"))

	n, err := s.ResetPresence(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n, "three counters plus the online set")

	users, err := s.OnlineUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Equal(t, []string{"unrelated"}, mr.Keys())
}

func TestPubSub_RoundTrip(t *testing.T) {
	s, _ := newRedisService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broadcasts, err := s.Subscribe(ctx)
	require.NoError(t, err)

	evt, err := models.NewEvent(models.EventNewMessage, models.Message{ID: "m1", ConversationID: "c-42", Content: "hi"})
	require.NoError(t, err)
	require.NoError(t, s.Publish(ctx, storage.RoomChannel("c-42"), evt))

	select {
	case b := <-broadcasts:
		kind, id := storage.ParseChannel(b.Channel)
		assert.Equal(t, "room", kind)
		assert.Equal(t, "c-42", id)
		assert.Equal(t, models.EventNewMessage, b.Event.Name)

		var msg models.Message
		require.NoError(t, b.Event.Decode(&msg))
		assert.Equal(t, "hi", msg.Content)
	case <-time.After(time.Second):
		t.Fatal("broadcast never arrived")
	}

	cancel()
	select {
	case _, open := <-broadcasts:
		assert.False(t, open, "subscription should close with its context")
	case <-time.After(time.Second):
		t.Fatal("subscription outlived its context")
	}
}
