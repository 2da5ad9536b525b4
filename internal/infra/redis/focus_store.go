package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"focus-session-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// FocusStore keeps the latest focus report per participant in one hash per
// session: HSET focus:{sessionID}:reports {participantID} {json}.
type FocusStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewFocusStore(client *redis.Client, ttl time.Duration) *FocusStore {
	return &FocusStore{client: client, ttl: ttl}
}

func (s *FocusStore) Put(ctx context.Context, sessionID, participantID string, report domain.FocusReport) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	key := reportsKey(sessionID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, participantID, raw)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store focus report: %w", err)
	}
	return nil
}

func (s *FocusStore) Get(ctx context.Context, sessionID, participantID string) (domain.FocusReport, bool, error) {
	raw, err := s.client.HGet(ctx, reportsKey(sessionID), participantID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.FocusReport{}, false, nil
	}
	if err != nil {
		return domain.FocusReport{}, false, fmt.Errorf("read focus report: %w", err)
	}
	var report domain.FocusReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return domain.FocusReport{}, false, fmt.Errorf("decode focus report: %w", err)
	}
	return report, true, nil
}

func (s *FocusStore) All(ctx context.Context, sessionID string) (map[string]domain.FocusReport, error) {
	entries, err := s.client.HGetAll(ctx, reportsKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read focus reports: %w", err)
	}
	out := make(map[string]domain.FocusReport, len(entries))
	for participantID, raw := range entries {
		var report domain.FocusReport
		if err := json.Unmarshal([]byte(raw), &report); err != nil {
			// skip the corrupt entry rather than blank the whole snapshot
			continue
		}
		out[participantID] = report
	}
	return out, nil
}

func (s *FocusStore) Delete(ctx context.Context, sessionID, participantID string) error {
	return s.client.HDel(ctx, reportsKey(sessionID), participantID).Err()
}

func reportsKey(sessionID string) string {
	return "focus:{" + sessionID + "}:reports"
}
