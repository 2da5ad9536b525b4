package redis

import (
	"context"
	"fmt"
	"time"

	"focus-session-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// The active question of a session lives in focus:{sessionID}:question and
// each question's answer claims in the hash focus:{sessionID}:answers:{questionID}.
// The hash tag keeps both keys of a session in one cluster slot.
var (
	openScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur and cur ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

	closeScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

	claimScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
  return -1
end
local ok = redis.call('HSETNX', KEYS[2], ARGV[2], '1')
redis.call('PEXPIRE', KEYS[2], ARGV[3])
return ok
`)
)

// QuestionGate coordinates the active question across processes with a
// compare-and-swap on the question id.
type QuestionGate struct {
	client *redis.Client
	ttl    time.Duration
}

func NewQuestionGate(client *redis.Client, ttl time.Duration) *QuestionGate {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &QuestionGate{client: client, ttl: ttl}
}

func (g *QuestionGate) Open(ctx context.Context, sessionID, prevID, nextID string) error {
	res, err := openScript.Run(ctx, g.client, []string{activeKey(sessionID)}, prevID, nextID, g.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("open question: %w", err)
	}
	if res == 0 {
		return domain.ErrQuestionConflict
	}
	return nil
}

func (g *QuestionGate) Close(ctx context.Context, sessionID, questionID string) error {
	if err := closeScript.Run(ctx, g.client, []string{activeKey(sessionID)}, questionID).Err(); err != nil {
		return fmt.Errorf("close question: %w", err)
	}
	return nil
}

func (g *QuestionGate) Claim(ctx context.Context, sessionID, questionID, participantID string) error {
	keys := []string{activeKey(sessionID), answersKey(sessionID, questionID)}
	res, err := claimScript.Run(ctx, g.client, keys, questionID, participantID, g.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("claim answer: %w", err)
	}
	switch res {
	case -1:
		return domain.ErrQuestionSealed
	case 0:
		return domain.ErrAlreadyAnswered
	}
	return nil
}

func activeKey(sessionID string) string {
	return "focus:{" + sessionID + "}:question"
}

func answersKey(sessionID, questionID string) string {
	return "focus:{" + sessionID + "}:answers:" + questionID
}
