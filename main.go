package main

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/openwaitlist/waitlist/pkg/api"
	"github.com/openwaitlist/waitlist/pkg/audit"
	"github.com/openwaitlist/waitlist/pkg/cli"
	"github.com/openwaitlist/waitlist/pkg/config"
	"github.com/openwaitlist/waitlist/pkg/identity"
	"github.com/openwaitlist/waitlist/pkg/mail"
	"github.com/openwaitlist/waitlist/pkg/metrics"
	"github.com/openwaitlist/waitlist/pkg/system"
	"github.com/openwaitlist/waitlist/pkg/telemetry"
	"github.com/openwaitlist/waitlist/pkg/waitlist"
)

func main() {
	cliConfig := cli.Parse()

	log, err := system.SetupLogger(cliConfig.Debug)
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	defer func() { _ = log.Sync() }()

	log.With("version", system.Version).Info("Starting waitlist portal")
	if cliConfig.Debug {
		cliConfig.Print(log)
	}

	cfg, err := config.Load(cliConfig.ConfigPath)
	if err != nil {
		fail(log, fmt.Errorf("error loading configuration: %w", err))
	}
	cfg.Defaults()
	if cliConfig.ListenAddress != "" {
		cfg.Server.ListenAddress = cliConfig.ListenAddress
	}
	if err := cfg.Validate(); err != nil {
		fail(log, fmt.Errorf("invalid configuration: %w", err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, telemetryShutdown, err := telemetry.Init(ctx, telemetry.FromConfig(cfg.Telemetry, log))
	if err != nil {
		fail(log, fmt.Errorf("error initializing telemetry: %w", err))
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			log.Warnw("Telemetry shutdown failed", "error", err)
		}
	}()

	auditor, err := audit.NewService(log, cfg.Audit)
	if err != nil {
		fail(log, fmt.Errorf("error initializing audit trail: %w", err))
	}
	defer func() {
		if err := auditor.Close(); err != nil {
			log.Warnw("Audit shutdown failed", "error", err)
		}
	}()
	log.Infow("Audit trail initialized", "sinks", auditor.SinkNames())

	connector, err := identity.NewConnector(cfg.Keycloak, log)
	if err != nil {
		fail(log, fmt.Errorf("error configuring identity client: %w", err))
	}
	store := identity.NewStore(cfg.TokenStore.Backend, cfg.TokenStore.Path)

	bootstrap := identity.Bootstrap{
		Auth:            connector,
		Store:           store,
		Log:             log,
		Events:          audit.Recorder{Service: auditor},
		RefreshInterval: cfg.RefreshInterval(),
		MinValidity:     cfg.RefreshMinValidity(),
	}
	result, err := bootstrap.Run(ctx)
	if err != nil {
		fail(log, err)
	}
	if !result.Authenticated {
		_, _ = fmt.Fprintln(os.Stderr, "Not authenticated: run `wlctl login` against the portal realm, then restart waitlistd.")
		os.Exit(1)
	}
	defer result.Refresher.Stop()

	auditor.Emit(ctx, audit.Event{
		Type:    audit.EventBootstrapOK,
		Target:  audit.Target{Kind: "realm", Name: cfg.Keycloak.Realm},
		Message: "identity bootstrap completed",
	})

	var mailer mail.Sender
	if cliConfig.DisableMail || !cfg.Mail.Enabled {
		log.Info("Confirmation mail is disabled")
	} else {
		mailer = mail.NewSender(cfg, log)
	}

	auth, err := api.NewAuth(log, cfg.Keycloak)
	if err != nil {
		fail(log, fmt.Errorf("error initializing token validation: %w", err))
	}

	server := api.NewServer(log.Desugar(), cfg, cliConfig.Debug, auth)
	signupController := waitlist.NewController(log, cfg, connector, mailer, auditor, auth.Middleware())
	defer signupController.Close()
	err = server.RegisterAll([]api.APIController{signupController})
	if err != nil {
		fail(log, fmt.Errorf("error registering API controllers: %w", err))
	}

	if cliConfig.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cliConfig.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("Metrics server failed", "error", err)
			}
		}()
	}

	log.Infow("Mounting portal", "listen_address", cfg.Server.ListenAddress)
	if err := server.Run(ctx); err != nil {
		fail(log, fmt.Errorf("server error: %w", err))
	}
	log.Info("Shutting down")
}

// fail is the terminal failure path: a structured log record plus the
// operator-facing alert on stderr, then exit.
func fail(log *zap.SugaredLogger, err error) {
	log.Errorw("Waitlist portal failed to start", "error", err)
	_, _ = fmt.Fprintf(os.Stderr, "waitlist portal failed to start: %v\n", err)
	_ = log.Sync()
	os.Exit(1)
}
