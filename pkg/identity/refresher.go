package identity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openwaitlist/waitlist/pkg/metrics"
)

// TokenRefresher renews the in-memory token pair when it expires within
// minValidity, reporting whether a renewal actually happened.
type TokenRefresher interface {
	Refresh(ctx context.Context, minValidity time.Duration) (TokenPair, bool, error)
}

// Persister re-persists the credential pair after a successful renewal.
type Persister interface {
	Save(pair TokenPair) error
}

// EventSink receives identity lifecycle notifications for the audit trail.
// All methods must be non-blocking best effort.
type EventSink interface {
	TokenRefreshed(ctx context.Context, expiry time.Time)
	LoginRequired(ctx context.Context)
}

// Refresher keeps the session token fresh for the life of the process. It is
// a cancellable scheduled task owned by the root lifecycle: Stop (or
// cancelling the context passed to Start) terminates the loop. Refresh
// failures are logged and swallowed; the loop keeps running.
type Refresher struct {
	refresher   TokenRefresher
	store       Persister
	log         *zap.SugaredLogger
	interval    time.Duration
	minValidity time.Duration

	// Events, when set before Start, is notified about each renewal.
	Events EventSink

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewRefresher builds a refresher firing every interval with the given
// minimum-validity threshold. Zero values fall back to 60s / 70s.
func NewRefresher(refresher TokenRefresher, store Persister, log *zap.SugaredLogger, interval, minValidity time.Duration) *Refresher {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if minValidity <= 0 {
		minValidity = 70 * time.Second
	}
	return &Refresher{
		refresher:   refresher,
		store:       store,
		log:         log,
		interval:    interval,
		minValidity: minValidity,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start launches the refresh loop in its own goroutine.
func (r *Refresher) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop terminates the loop and waits for it to exit. Safe to call more than once.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (r *Refresher) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	pair, renewed, err := r.refresher.Refresh(ctx, r.minValidity)
	if err != nil {
		// Best effort only: the token is left to expire naturally.
		r.log.Warnw("Token refresh failed", "error", err)
		metrics.TokenRefreshTotal.WithLabelValues("failed").Inc()
		return
	}
	if !renewed {
		metrics.TokenRefreshTotal.WithLabelValues("skipped").Inc()
		return
	}
	metrics.TokenRefreshTotal.WithLabelValues("renewed").Inc()
	if r.Events != nil {
		r.Events.TokenRefreshed(ctx, pair.Expiry)
	}
	if r.store != nil {
		// Keep the persisted copy in sync with the renewed pair so that
		// external readers never observe a stale token.
		if err := r.store.Save(pair); err != nil {
			r.log.Warnw("Failed to persist renewed token pair", "error", err)
		}
	}
	r.log.Debugw("Token renewed", "expiry", pair.Expiry)
}
