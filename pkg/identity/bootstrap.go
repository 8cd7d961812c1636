package identity

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openwaitlist/waitlist/pkg/metrics"
)

// Authenticator is the handshake side of the identity client.
type Authenticator interface {
	TokenRefresher
	Initialize(ctx context.Context, prior *TokenPair) (TokenPair, bool, error)
}

// CredentialStore is the persistence side of the bootstrap.
type CredentialStore interface {
	Persister
	Load() (TokenPair, bool, error)
}

// Bootstrap drives the startup protocol, executed exactly once at process
// start: initialize the identity client, persist the credential pair, arm
// the periodic refresh. The HTTP server is only mounted by the caller after
// a successful run.
type Bootstrap struct {
	Auth  Authenticator
	Store CredentialStore
	Log   *zap.SugaredLogger

	// Events, when set, records lifecycle outcomes on the audit trail.
	Events EventSink

	// RefreshInterval and MinValidity configure the refresh loop
	// (defaults: 60s and 70s).
	RefreshInterval time.Duration
	MinValidity     time.Duration
}

// Result reports the bootstrap outcome. When Authenticated is false the
// caller must surface the interactive login path and must not mount the
// application. Refresher is non-nil only on the authenticated path and is
// owned by the caller's lifecycle.
type Result struct {
	Authenticated bool
	Refresher     *Refresher
}

// Run executes the sequence. An error means the handshake itself was
// rejected; that is terminal for this process start.
func (b *Bootstrap) Run(ctx context.Context) (*Result, error) {
	prior := b.loadStored()

	pair, authenticated, err := b.Auth.Initialize(ctx, prior)
	if err != nil {
		return nil, fmt.Errorf("identity client initialization failed: %w", err)
	}
	b.Log.Infow("Identity client initialized", "authenticated", authenticated)

	if !authenticated {
		b.Log.Warn("Not authenticated: interactive login required before the portal can start")
		metrics.LoginRequiredTotal.Inc()
		if b.Events != nil {
			b.Events.LoginRequired(ctx)
		}
		return &Result{Authenticated: false}, nil
	}

	if b.Store != nil {
		if err := b.Store.Save(pair); err != nil {
			return nil, fmt.Errorf("failed to persist credential pair: %w", err)
		}
	}

	// The refresher is armed strictly after the authenticated check.
	refresher := NewRefresher(b.Auth, b.Store, b.Log, b.RefreshInterval, b.MinValidity)
	refresher.Events = b.Events
	refresher.Start(ctx)

	return &Result{Authenticated: true, Refresher: refresher}, nil
}

func (b *Bootstrap) loadStored() *TokenPair {
	if b.Store == nil {
		return nil
	}
	pair, found, err := b.Store.Load()
	if err != nil {
		b.Log.Warnw("Could not read persisted credential pair", "error", err)
		return nil
	}
	if !found {
		return nil
	}
	return &pair
}
