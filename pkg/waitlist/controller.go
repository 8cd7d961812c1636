// Package waitlist implements the signup API: it creates waitlist members as
// directory users, sends the confirmation mail and records the audit trail.
package waitlist

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openwaitlist/waitlist/pkg/audit"
	"github.com/openwaitlist/waitlist/pkg/config"
	"github.com/openwaitlist/waitlist/pkg/identity"
	"github.com/openwaitlist/waitlist/pkg/mail"
	"github.com/openwaitlist/waitlist/pkg/metrics"
	"github.com/openwaitlist/waitlist/pkg/ratelimit"
	"github.com/openwaitlist/waitlist/pkg/system"
)

const maxEntriesPageSize = 500

// IdentityDirectory is the subset of the identity connector the signup API
// needs.
type IdentityDirectory interface {
	CreateUser(ctx context.Context, record identity.UserRecord, password string) (string, error)
	ListUsers(ctx context.Context, search string, max int) ([]identity.UserRecord, error)
}

type Controller struct {
	dir     IdentityDirectory
	mailer  mail.Sender
	auditor *audit.Service
	authMW  gin.HandlerFunc
	limiter *ratelimit.IPRateLimiter
	log     *zap.SugaredLogger
	cfg     config.Config

	mailEnabled bool
}

// NewController wires the signup API against the identity directory. mailer
// may be nil when confirmation mail is disabled.
func NewController(
	log *zap.SugaredLogger,
	cfg config.Config,
	dir IdentityDirectory,
	mailer mail.Sender,
	auditor *audit.Service,
	authMW gin.HandlerFunc,
) *Controller {
	return &Controller{
		dir:         dir,
		mailer:      mailer,
		auditor:     auditor,
		authMW:      authMW,
		limiter:     ratelimit.New(ratelimit.DefaultSignupConfig()),
		log:         log,
		cfg:         cfg,
		mailEnabled: mailer != nil,
	}
}

func (ctrl *Controller) BasePath() string { return "waitlist" }

func (ctrl *Controller) Handlers() []gin.HandlerFunc { return nil }

func (ctrl *Controller) Register(rg *gin.RouterGroup) error {
	rg.POST("signup", ctrl.limiter.Middleware(), ctrl.signup)
	rg.GET("entries", ctrl.authMW, ctrl.entries)
	return nil
}

// Close stops the signup rate limiter.
func (ctrl *Controller) Close() {
	ctrl.limiter.Stop()
}

func (ctrl *Controller) signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.SignupsTotal.WithLabelValues("failed").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signup payload: " + err.Error()})
		return
	}

	ctrl.emit(c, audit.Event{
		Type:    audit.EventSignupReceived,
		Actor:   audit.Actor{User: req.Username, Email: req.Email, SourceIP: c.ClientIP()},
		Target:  audit.Target{Kind: "user", Name: req.Username},
		Message: "signup request received",
	})

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	record := identity.UserRecord{
		Username:      req.Username,
		Email:         req.Email,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Enabled:       enabled,
		EmailVerified: req.EmailVerified,
	}

	userID, err := ctrl.dir.CreateUser(c.Request.Context(), record, req.Password)
	switch {
	case errors.Is(err, identity.ErrUserExists):
		metrics.SignupsTotal.WithLabelValues("conflict").Inc()
		ctrl.emit(c, audit.Event{
			Type:     audit.EventSignupConflict,
			Severity: audit.SeverityWarning,
			Actor:    audit.Actor{User: req.Username, Email: req.Email, SourceIP: c.ClientIP()},
			Target:   audit.Target{Kind: "user", Name: req.Username},
			Message:  "signup for existing user",
			Details:  map[string]string{"userID": userID},
		})
		c.JSON(http.StatusConflict, SignupResponse{
			UserID:   userID,
			Username: req.Username,
			Status:   StatusExists,
		})
		return
	case err != nil:
		metrics.SignupsTotal.WithLabelValues("failed").Inc()
		system.GetReqLogger(c, ctrl.log).Errorw("Signup failed", "username", req.Username, "error", err)
		ctrl.emit(c, audit.Event{
			Type:     audit.EventSignupFailed,
			Severity: audit.SeverityWarning,
			Actor:    audit.Actor{User: req.Username, Email: req.Email, SourceIP: c.ClientIP()},
			Target:   audit.Target{Kind: "user", Name: req.Username},
			Message:  "signup failed",
			Details:  map[string]string{"error": err.Error()},
		})
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not create waitlist entry"})
		return
	}

	metrics.SignupsTotal.WithLabelValues("ok").Inc()
	ctrl.emit(c, audit.Event{
		Type:    audit.EventSignupCompleted,
		Actor:   audit.Actor{User: req.Username, Email: req.Email, SourceIP: c.ClientIP()},
		Target:  audit.Target{Kind: "user", Name: req.Username},
		Message: "signup completed",
		Details: map[string]string{"userID": userID},
	})

	ctrl.sendConfirmation(record)

	c.JSON(http.StatusCreated, SignupResponse{
		UserID:   userID,
		Username: req.Username,
		Status:   StatusCreated,
	})
}

// sendConfirmation mails the new member. Mail failures are logged but never
// fail the signup, the user is already created at this point.
func (ctrl *Controller) sendConfirmation(record identity.UserRecord) {
	if !ctrl.mailEnabled || record.Email == "" {
		return
	}

	name := record.FullName()
	if name == "" {
		name = record.Username
	}
	body, err := mail.RenderConfirmation(mail.ConfirmationParams{
		Name:      name,
		Username:  record.Username,
		Product:   ctrl.cfg.Frontend.BrandingName,
		PortalURL: ctrl.cfg.Frontend.BaseURL,
	})
	if err != nil {
		ctrl.log.Errorw("Could not render confirmation mail", "username", record.Username, "error", err)
		return
	}

	subject := mail.ConfirmationSubject(ctrl.cfg.Frontend.BrandingName)
	if err := ctrl.mailer.Send([]string{record.Email}, subject, body); err != nil {
		ctrl.log.Errorw("Could not send confirmation mail", "username", record.Username, "error", err)
	}
}

func (ctrl *Controller) entries(c *gin.Context) {
	search := c.Query("search")

	records, err := ctrl.dir.ListUsers(c.Request.Context(), search, maxEntriesPageSize)
	if err != nil {
		system.GetReqLogger(c, ctrl.log).Errorw("Could not list waitlist entries", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not list waitlist entries"})
		return
	}

	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, Entry{
			ID:            r.ID,
			Username:      r.Username,
			Email:         r.Email,
			FirstName:     r.FirstName,
			LastName:      r.LastName,
			Enabled:       r.Enabled,
			EmailVerified: r.EmailVerified,
			CreatedAt:     r.CreatedAt,
		})
	}

	metrics.EntriesListed.Inc()
	ctrl.emit(c, audit.Event{
		Type:    audit.EventEntriesListed,
		Actor:   audit.Actor{User: c.GetString("username"), SourceIP: c.ClientIP()},
		Target:  audit.Target{Kind: "realm", Name: ctrl.cfg.Keycloak.Realm},
		Message: "waitlist entries listed",
	})

	c.JSON(http.StatusOK, EntriesResponse{Entries: entries, Count: len(entries)})
}

func (ctrl *Controller) emit(c *gin.Context, event audit.Event) {
	if ctrl.auditor == nil {
		return
	}
	ctrl.auditor.Emit(c.Request.Context(), event)
}
