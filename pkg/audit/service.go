package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/openwaitlist/waitlist/pkg/config"
	"github.com/openwaitlist/waitlist/pkg/metrics"
)

// Service fans audit events out to the configured sinks. Sink failures are
// counted and logged but never propagated to the caller.
type Service struct {
	sinks map[string]Sink
	log   *zap.SugaredLogger
}

// NewService builds a service with a LogSink, plus a Kafka sink when enabled.
func NewService(log *zap.SugaredLogger, cfg config.Audit) (*Service, error) {
	svc := &Service{
		sinks: map[string]Sink{},
		log:   log,
	}
	logSink := NewLogSink(log.Desugar())
	svc.sinks[logSink.Name()] = logSink

	if cfg.Kafka.Enabled {
		kafkaSink, err := NewKafkaSink(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		svc.sinks[kafkaSink.Name()] = kafkaSink
	}
	return svc, nil
}

// SinkNames returns the registered sink identifiers.
func (s *Service) SinkNames() []string {
	return maps.Keys(s.sinks)
}

// Emit assigns ID, timestamp and default severity, then writes the event to
// every sink.
func (s *Service) Emit(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	for name, sink := range s.sinks {
		if err := sink.Write(ctx, &event); err != nil {
			s.log.Warnw("Failed to write audit event", "sink", name, "event_type", event.Type, "error", err)
			metrics.AuditEventsDropped.WithLabelValues(name).Inc()
			continue
		}
		metrics.AuditEventsEmitted.WithLabelValues(name).Inc()
	}
}

// Close shuts down all sinks, keeping the first error.
func (s *Service) Close() error {
	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
