package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"member-portal/internal/api"
	"member-portal/internal/common/config"
	"member-portal/internal/common/errors"
	"member-portal/internal/common/logger"
	"member-portal/internal/common/observability"
	"member-portal/internal/gateway"
	"member-portal/internal/membership"
	"member-portal/internal/session"
)

// app holds everything a command needs, built once per invocation.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	store   session.Store
	creds   *session.Credentials
	gw      *gateway.Gateway
	api     *api.Client
	plans   *membership.PlanTable
	records *session.Enrollment
	obs     *observability.Observability
	errs    *errors.ErrorHandler
	out     io.Writer
	errOut  io.Writer
}

type appOptions struct {
	configPath string
	logLevel   string
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func newApp(ctx context.Context, opts appOptions, out, errOut io.Writer) (*app, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	log := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		log.Warn("Metrics exporter unavailable", map[string]interface{}{"error": err.Error()})
	}

	store, err := session.Open(cfg.Session)
	if err != nil {
		return nil, err
	}
	if rs, ok := store.(*session.RedisStore); ok {
		if err := retryWithBackoff(func() error { return rs.Ping(ctx) }, 5, 500*time.Millisecond, log, "Redis connection"); err != nil {
			return nil, err
		}
	}

	creds := session.NewCredentials(store)
	gw, err := gateway.New(gateway.Options{
		BaseURL:       cfg.Gateway.BaseURL,
		Timeout:       cfg.RequestTimeout(),
		UserAgent:     cfg.Gateway.UserAgent,
		LoginRoute:    cfg.Gateway.LoginRoute,
		Credentials:   creds,
		Navigator:     loginNavigator(errOut),
		Logger:        log,
		Observability: obs,
	})
	if err != nil {
		return nil, err
	}

	plans, err := membership.PlanTableFromConfig(cfg.Membership.Plans)
	if err != nil {
		return nil, err
	}
	if missing := plans.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, p := range missing {
			names[i] = p.String()
		}
		log.Warn("Membership plans without a provider plan id", map[string]interface{}{"plans": names})
	}

	return &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		creds:   creds,
		gw:      gw,
		api:     api.New(gw, log),
		plans:   plans,
		records: session.NewEnrollment(store),
		obs:     obs,
		errs:    errors.NewErrorHandler(log),
		out:     out,
		errOut:  errOut,
	}, nil
}

func (a *app) newFlow() (*membership.Flow, error) {
	return membership.NewFlow(membership.Options{
		Backend:        a.api,
		Provider:       a.api,
		Plans:          a.plans,
		Records:        a.records,
		ReturnURL:      a.cfg.Membership.ReturnURL,
		CancelURL:      a.cfg.Membership.CancelURL,
		RequireCaptcha: a.cfg.Membership.RequireCaptcha,
		Logger:         a.log,
		Observability:  a.obs,
	})
}

// fail turns err into the message the member sees.
func (a *app) fail(ctx context.Context, op string, err error) error {
	return fmt.Errorf("%s", a.errs.Handle(ctx, op, err))
}

func (a *app) close() {
	a.obs.Shutdown()
	if c, ok := a.store.(io.Closer); ok {
		_ = c.Close()
	}
	_ = a.log.Sync()
}

// loginNavigator is the CLI's login route: tell the member to sign in again.
func loginNavigator(w io.Writer) gateway.Navigator {
	return gateway.NavigatorFunc(func(route string) {
		fmt.Fprintf(w, "Your session has ended. Sign in again with `portal login` (%s).\n", route)
	})
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
