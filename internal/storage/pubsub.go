package storage

import (
	"brokerdesk/backend/internal/models"
	"context"
	"encoding/json"
	"log"
	"strings"
)

// Redis pub/sub channels used for fan-out between server instances.
const (
	channelPrefix      = "chat:"
	roomChannelPrefix  = "chat:room:"
	userChannelPrefix  = "chat:user:"
	PresenceChannel    = "chat:presence"
	subscriptionFilter = "chat:*"
)

// RoomChannel is the channel carrying live events of one conversation.
func RoomChannel(conversationID string) string {
	return roomChannelPrefix + conversationID
}

// UserChannel is the personal channel of one user.
func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

// ParseChannel splits a channel name into its kind ("room", "user" or
// "presence") and target id.
func ParseChannel(channel string) (kind, id string) {
	switch {
	case channel == PresenceChannel:
		return "presence", ""
	case strings.HasPrefix(channel, roomChannelPrefix):
		return "room", strings.TrimPrefix(channel, roomChannelPrefix)
	case strings.HasPrefix(channel, userChannelPrefix):
		return "user", strings.TrimPrefix(channel, userChannelPrefix)
	}
	return "", strings.TrimPrefix(channel, channelPrefix)
}

// Broadcast is one event received from Redis together with its channel.
type Broadcast struct {
	Channel string
	Event   models.Event
}

// Publish публікує подію в Redis Pub/Sub
func (s *Service) Publish(ctx context.Context, channel string, evt models.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return s.Redis.Publish(ctx, channel, payload).Err()
}

// Subscribe listens to every chat channel until ctx is cancelled. The
// returned channel is closed when the subscription ends.
func (s *Service) Subscribe(ctx context.Context) (<-chan Broadcast, error) {
	pubsub := s.Redis.PSubscribe(ctx, subscriptionFilter)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan Broadcast, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var evt models.Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					log.Printf("Error unmarshalling Redis message on %s: %v", msg.Channel, err)
					continue
				}
				select {
				case out <- Broadcast{Channel: msg.Channel, Event: evt}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
