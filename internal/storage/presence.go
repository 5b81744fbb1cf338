package storage

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const onlineSetKey = "presence:online"

func connectionsKey(userID string) string {
	return "presence:conns:" + userID
}

// Both transitions run as one script so a counter and the online set never
// disagree, even with several server instances touching the same user.
var (
	markOnlineScript = redis.NewScript(`
		local n = redis.call('INCR', KEYS[1])
		redis.call('SADD', KEYS[2], ARGV[1])
		return n
	`)

	markOfflineScript = redis.NewScript(`
		local n = redis.call('DECR', KEYS[1])
		if n > 0 then
			return 0
		end
		redis.call('DEL', KEYS[1])
		redis.call('SREM', KEYS[2], ARGV[1])
		return 1
	`)
)

// MarkConnectionOnline counts one more online connection for userID and
// reports whether the user just went from offline to online.
func (s *Service) MarkConnectionOnline(ctx context.Context, userID string) (bool, error) {
	n, err := markOnlineScript.Run(ctx, s.Redis, []string{connectionsKey(userID), onlineSetKey}, userID).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkConnectionOffline drops one online connection for userID and reports
// whether it was the last one.
func (s *Service) MarkConnectionOffline(ctx context.Context, userID string) (bool, error) {
	last, err := markOfflineScript.Run(ctx, s.Redis, []string{connectionsKey(userID), onlineSetKey}, userID).Int64()
	if err != nil {
		return false, err
	}
	return last == 1, nil
}

// OnlineUsers returns the current online snapshot across all server instances.
func (s *Service) OnlineUsers(ctx context.Context) ([]string, error) {
	return s.Redis.SMembers(ctx, onlineSetKey).Result()
}

// ResetPresence clears every presence key. Counters are left behind when an
// instance dies without releasing its connections; run this while no server
// instance is up.
func (s *Service) ResetPresence(ctx context.Context) (int, error) {
	keys := []string{onlineSetKey}
	iter := s.Redis.Scan(ctx, 0, connectionsKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}

	n, err := s.Redis.Del(ctx, keys...).Result()
	return int(n), err
}
