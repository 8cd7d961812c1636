// Package audit records the portal's security-relevant actions: signups,
// identity bootstrap outcomes and token lifecycle changes. Events fan out to
// one or more sinks; writing the trail never fails the calling request.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// EventType classifies an audit event.
type EventType string

const (
	EventSignupReceived  EventType = "signup.received"
	EventSignupCompleted EventType = "signup.completed"
	EventSignupConflict  EventType = "signup.conflict"
	EventSignupFailed    EventType = "signup.failed"

	EventEntriesListed EventType = "entries.listed"

	EventTokenRefreshed EventType = "token.refreshed"
	EventLoginRequired  EventType = "login.required"
	EventBootstrapOK    EventType = "bootstrap.authenticated"
)

// Severity indicates how notable an event is.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Actor identifies who triggered the event.
type Actor struct {
	User     string `json:"user,omitempty"`
	Email    string `json:"email,omitempty"`
	SourceIP string `json:"sourceIP,omitempty"`
}

// Target identifies what the event acted on.
type Target struct {
	Kind string `json:"kind,omitempty"`
	Name string `json:"name,omitempty"`
}

// Event is a single audit trail entry.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Severity  Severity          `json:"severity"`
	Timestamp time.Time         `json:"timestamp"`
	Actor     Actor             `json:"actor"`
	Target    Target            `json:"target"`
	Message   string            `json:"message,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// Sink is an audit event destination.
type Sink interface {
	Write(ctx context.Context, event *Event) error
	Close() error
	Name() string
}

// LogSink writes audit events to a structured logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink on a named child logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

func (s *LogSink) Write(_ context.Context, event *Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("severity", string(event.Severity)),
		zap.Time("timestamp", event.Timestamp),
	}
	if event.Actor.User != "" {
		fields = append(fields, zap.String("actor_user", event.Actor.User))
	}
	if event.Actor.Email != "" {
		fields = append(fields, zap.String("actor_email", event.Actor.Email))
	}
	if event.Actor.SourceIP != "" {
		fields = append(fields, zap.String("actor_ip", event.Actor.SourceIP))
	}
	if event.Target.Kind != "" {
		fields = append(fields, zap.String("target_kind", event.Target.Kind))
	}
	if event.Target.Name != "" {
		fields = append(fields, zap.String("target_name", event.Target.Name))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}
	s.logger.Info(event.Message, fields...)
	return nil
}

func (s *LogSink) Close() error { return nil }

func (s *LogSink) Name() string { return "log" }
