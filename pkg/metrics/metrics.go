package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Signup metrics
	SignupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waitlist_signups_total",
		Help: "Total number of waitlist signup requests, by result (ok, conflict, failed)",
	}, []string{"result"})
	EntriesListed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waitlist_entries_listed_total",
		Help: "Total number of waitlist entry listings served",
	})

	// Identity bootstrap metrics
	TokenRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waitlist_token_refresh_total",
		Help: "Total number of token refresh attempts, by result (renewed, skipped, failed)",
	}, []string{"result"})
	LoginRequiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waitlist_login_required_total",
		Help: "Total number of bootstrap runs that ended unauthenticated",
	})

	// Mail metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waitlist_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waitlist_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"host"})

	// Audit metrics
	AuditEventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waitlist_audit_events_total",
		Help: "Total number of audit events written, by sink",
	}, []string{"sink"})
	AuditEventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waitlist_audit_events_dropped_total",
		Help: "Total number of audit events that could not be written, by sink",
	}, []string{"sink"})
)

func init() {
	prometheus.MustRegister(
		SignupsTotal,
		EntriesListed,
		TokenRefreshTotal,
		LoginRequiredTotal,
		MailSendSuccess,
		MailSendFailure,
		AuditEventsEmitted,
		AuditEventsDropped,
	)
}

// Handler exposes the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve runs a plain HTTP metrics endpoint on addr. Blocks until the listener fails.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
