package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"focus-session-service/internal/domain"
	"focus-session-service/internal/infra/memory"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ReportRepository caches computed session reports in Redis as JSON
// (SET focus:report:{sessionID}) and falls back to the loader on a miss.
type ReportRepository struct {
	client *redis.Client
	loader memory.ReportLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewReportRepository(client *redis.Client, loader memory.ReportLoader, ttl time.Duration) *ReportRepository {
	return &ReportRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ReportRepository) GetReport(ctx context.Context, sessionID string) (domain.SessionReport, error) {
	if report, ok := r.cached(ctx, sessionID); ok {
		return report, nil
	}

	result, err, _ := r.sf.Do(sessionID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if report, ok := r.cached(ctx, sessionID); ok {
			return report, nil
		}

		report, err := r.loader.LoadReport(ctx, sessionID)
		if err != nil {
			return domain.SessionReport{}, err
		}

		if ttl := r.ttlWithJitter(); ttl > 0 {
			if raw, err := json.Marshal(report); err == nil {
				_ = r.client.Set(ctx, r.key(sessionID), raw, ttl).Err()
			}
		}
		return report, nil
	})
	if err != nil {
		return domain.SessionReport{}, err
	}
	return result.(domain.SessionReport), nil
}

func (r *ReportRepository) cached(ctx context.Context, sessionID string) (domain.SessionReport, bool) {
	raw, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err != nil {
		return domain.SessionReport{}, false
	}
	var report domain.SessionReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return domain.SessionReport{}, false
	}
	return report, true
}

func (r *ReportRepository) key(sessionID string) string {
	return "focus:report:" + sessionID
}

func (r *ReportRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
