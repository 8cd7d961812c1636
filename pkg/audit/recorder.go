package audit

import (
	"context"
	"time"
)

// Recorder adapts the audit service to the identity package's lifecycle
// hooks, turning token renewals and login-required outcomes into trail
// events.
type Recorder struct {
	Service *Service
}

func (r Recorder) TokenRefreshed(ctx context.Context, expiry time.Time) {
	event := Event{
		Type:    EventTokenRefreshed,
		Message: "session token renewed",
	}
	if !expiry.IsZero() {
		event.Details = map[string]string{"expiry": expiry.UTC().Format(time.RFC3339)}
	}
	r.Service.Emit(ctx, event)
}

func (r Recorder) LoginRequired(ctx context.Context) {
	r.Service.Emit(ctx, Event{
		Type:     EventLoginRequired,
		Severity: SeverityWarning,
		Message:  "interactive login required",
	})
}
