package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"focus-session-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ReportLoader computes a session report from the record store.
type ReportLoader interface {
	LoadReport(ctx context.Context, sessionID string) (domain.SessionReport, error)
}

// ReportRepository caches session reports with a short TTL so dashboards
// polling the same session do not recompute it on every request.
type ReportRepository struct {
	loader ReportLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedReport
}

type cachedReport struct {
	report    domain.SessionReport
	expiresAt time.Time
}

func NewReportRepository(loader ReportLoader, ttl time.Duration) *ReportRepository {
	return &ReportRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedReport),
	}
}

func (r *ReportRepository) GetReport(ctx context.Context, sessionID string) (domain.SessionReport, error) {
	if report, ok := r.cached(sessionID); ok {
		return report, nil
	}

	result, err, _ := r.sf.Do(sessionID, func() (interface{}, error) {
		if report, ok := r.cached(sessionID); ok {
			return report, nil
		}

		now := r.clock()
		report, err := r.loader.LoadReport(ctx, sessionID)
		if err != nil {
			return domain.SessionReport{}, err
		}

		if ttl := r.ttlWithJitter(); ttl > 0 {
			r.mu.Lock()
			r.cache[sessionID] = cachedReport{report: report, expiresAt: now.Add(ttl)}
			r.mu.Unlock()
		}
		return report, nil
	})
	if err != nil {
		return domain.SessionReport{}, err
	}
	return result.(domain.SessionReport), nil
}

func (r *ReportRepository) cached(sessionID string) (domain.SessionReport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[sessionID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.SessionReport{}, false
	}
	return entry.report, true
}

func (r *ReportRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
