package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const currentSessionKey = "focus:session:current"

// claimCurrentScript registers ARGV[1] as the current session unless one is
// already registered, and refreshes the marker's TTL either way.
var claimCurrentScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
  return ARGV[1]
end
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return cur
`)

// SessionStore is a Redis implementation of app.SessionRegistry. Every
// process pointed at the same Redis adopts the same current session id.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) ClaimCurrent(ctx context.Context, candidateID string) (string, error) {
	id, err := claimCurrentScript.Run(ctx, s.client, []string{currentSessionKey}, candidateID, s.ttl.Milliseconds()).Text()
	if err != nil {
		return "", fmt.Errorf("claim current session: %w", err)
	}
	return id, nil
}

// ReleaseCurrent clears the marker only while it still names sessionID.
func (s *SessionStore) ReleaseCurrent(ctx context.Context, sessionID string) error {
	if err := closeScript.Run(ctx, s.client, []string{currentSessionKey}, sessionID).Err(); err != nil {
		return fmt.Errorf("release current session: %w", err)
	}
	return nil
}
