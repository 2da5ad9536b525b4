package focus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"focus-session-service/internal/domain"
	"go.uber.org/zap"
)

// Detector runs face detection on the current camera frame. A nil result
// with a nil error means no face was found.
type Detector interface {
	Detect(ctx context.Context) (*Landmarks, error)
}

// Reporter forwards a focus snapshot to the session server.
type Reporter interface {
	Report(ctx context.Context, report domain.FocusReport) error
}

// Tracker drives the focus state machine for one participant. All state
// mutation happens on the Run goroutine; detection runs on a helper
// goroutine and at most one detection is in flight at a time.
type Tracker struct {
	detector       Detector
	reporter       Reporter
	logger         *zap.Logger
	tickInterval   time.Duration
	reportInterval time.Duration
	reportTimeout  time.Duration
	now            func() time.Time

	visibility chan bool

	mu          sync.RWMutex
	latest      State
	subscribers map[chan State]struct{}
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithIntervals overrides the analysis and report ticks.
func WithIntervals(tick, report time.Duration) Option {
	return func(t *Tracker) {
		if tick > 0 {
			t.tickInterval = tick
		}
		if report > 0 {
			t.reportInterval = report
		}
	}
}

// WithLogger sets the logger used for skipped ticks and failed reports.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithClock is used by tests for deterministic report timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker builds a tracker. A nil detector (no camera or model) degrades
// tracking to tab visibility only; a nil reporter disables server reports.
func NewTracker(detector Detector, reporter Reporter, opts ...Option) *Tracker {
	t := &Tracker{
		detector:       detector,
		reporter:       reporter,
		logger:         zap.NewNop(),
		tickInterval:   AnalysisInterval,
		reportInterval: ReportInterval,
		reportTimeout:  time.Second,
		now:            time.Now,
		visibility:     make(chan bool, 1),
		latest:         NewState(),
		subscribers:    make(map[chan State]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if detector == nil {
		t.latest.Cause = CauseVisibilityOnly
	}
	return t
}

// SetTabVisible queues a visibility change; only the latest value is kept.
func (t *Tracker) SetTabVisible(visible bool) {
	for {
		select {
		case t.visibility <- visible:
			return
		default:
			select {
			case <-t.visibility:
			default:
			}
		}
	}
}

// Snapshot returns the latest committed state.
func (t *Tracker) Snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latest
}

// Subscribe returns a channel that receives every committed state. Slow
// readers only ever miss intermediate states, never the latest one.
// The caller must invoke the returned cancel function to avoid leaks.
func (t *Tracker) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 4)

	// The initial state goes in under the lock so publish cannot fill the
	// buffer first; the channel is empty here, so the send never blocks.
	t.mu.Lock()
	t.subscribers[ch] = struct{}{}
	ch <- t.latest
	t.mu.Unlock()

	cancel := func() {
		t.mu.Lock()
		if _, ok := t.subscribers[ch]; ok {
			delete(t.subscribers, ch)
			close(ch)
		}
		t.mu.Unlock()
	}
	return ch, cancel
}

type detection struct {
	landmarks *Landmarks
	err       error
}

// Run ticks the state machine until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	state := t.Snapshot()

	ticker := time.NewTicker(t.tickInterval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	if t.reporter != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.reportLoop(ctx)
		}()
	}

	results := make(chan detection, 1)
	inFlight := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case visible := <-t.visibility:
			state = t.apply(state, "visibility", func(s State) (State, error) {
				return SetTabVisible(s, visible), nil
			})

		case <-ticker.C:
			if !state.IsTabActive {
				state = t.apply(state, "tab hidden", func(s State) (State, error) {
					return TabHidden(s), nil
				})
				continue
			}
			if t.detector == nil {
				continue
			}
			if inFlight {
				t.logger.Debug("skipping tick, detection still in flight")
				continue
			}
			inFlight = true
			wg.Add(1)
			go func() {
				defer wg.Done()
				d := t.detect(ctx)
				select {
				case results <- d:
				case <-ctx.Done():
				}
			}()

		case d := <-results:
			inFlight = false
			if d.err != nil {
				t.logger.Debug("detection failed, tick skipped", zap.Error(d.err))
				continue
			}
			if !state.IsTabActive {
				continue
			}
			state = t.apply(state, "observe", func(s State) (State, error) {
				return Observe(s, d.landmarks)
			})
		}
	}
}

func (t *Tracker) detect(ctx context.Context) (d detection) {
	defer func() {
		if r := recover(); r != nil {
			d = detection{err: fmt.Errorf("detector panic: %v", r)}
		}
	}()
	lm, err := t.detector.Detect(ctx)
	return detection{landmarks: lm, err: err}
}

// apply runs one transition on a copy of the state and commits it only when
// the step succeeds, so a bad frame never corrupts the tracked state.
func (t *Tracker) apply(state State, step string, fn func(State) (State, error)) (next State) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Debug("tick panicked, skipped", zap.String("step", step), zap.Any("panic", r))
			next = state
		}
	}()
	updated, err := fn(state)
	if err != nil {
		t.logger.Debug("tick skipped", zap.String("step", step), zap.Error(err))
		return state
	}
	t.publish(updated)
	return updated
}

func (t *Tracker) publish(state State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest = state
	for ch := range t.subscribers {
		select {
		case ch <- state:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}

// reportLoop forwards the latest snapshot on its own, slower tick. A failed
// report is not queued; the next tick sends whatever is latest then.
func (t *Tracker) reportLoop(ctx context.Context) {
	ticker := time.NewTicker(t.reportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := t.Snapshot().Report(t.now())
			reportCtx, cancel := context.WithTimeout(ctx, t.reportTimeout)
			err := t.reporter.Report(reportCtx, report)
			cancel()
			if err != nil && ctx.Err() == nil {
				t.logger.Warn("focus report failed", zap.Error(err))
			}
		}
	}
}
