// Package callback receives the browser redirect back from the payment
// provider and resolves the pending enrollment.
package callback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"member-portal/internal/common/errors"
	"member-portal/internal/common/logger"
	"member-portal/internal/membership"
	"member-portal/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resumer is the part of the enrollment flow driven by the redirect.
type Resumer interface {
	Resume(ctx context.Context, query url.Values) (*membership.Outcome, error)
	Cancel(ctx context.Context) (*membership.Outcome, error)
	ConsumeConfirmation(ctx context.Context) (session.Confirmation, error)
}

// ResolveHook runs after a redirect resolves the enrollment and before the
// response is written.
type ResolveHook func(ctx context.Context, out *membership.Outcome) error

type Option func(*Server)

// WithResolveHook installs fn to run synchronously on every resolved outcome.
func WithResolveHook(fn ResolveHook) Option {
	return func(s *Server) { s.onResolved = fn }
}

type Server struct {
	flow       Resumer
	logger     logger.Logger
	errs       *errors.ErrorHandler
	router     chi.Router
	http       *http.Server
	onResolved ResolveHook

	mu       sync.Mutex
	closed   bool
	resolved chan *membership.Outcome
}

type response struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Outcome *membership.Outcome `json:"outcome,omitempty"`
}

func NewServer(addr string, flow Resumer, log logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.Named("callback")
	s := &Server{
		flow:     flow,
		logger:   log,
		errs:     errors.NewErrorHandler(log),
		resolved: make(chan *membership.Outcome, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/payment/success", s.handleSuccess)
	r.Get("/payment/cancel", s.handleCancel)
	r.Get("/payment/confirmation", s.handleConfirmation)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	s.router = r

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Resolved delivers each outcome reached through the redirect endpoints.
// Outcomes are dropped when nobody is reading. The channel is closed by
// Shutdown.
func (s *Server) Resolved() <-chan *membership.Outcome { return s.resolved }

// ListenAndServe blocks until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("Callback server listening", map[string]interface{}{"address": s.http.Addr})
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the listener, waits for in-flight redirects and closes the
// Resolved channel.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.resolved)
	}
	return err
}

func (s *Server) publish(ctx context.Context, out *membership.Outcome) {
	if out == nil {
		return
	}
	if s.onResolved != nil && out.State.Resolved() {
		if err := s.onResolved(ctx, out); err != nil {
			s.logger.Error("Resolve hook failed", map[string]interface{}{
				"state": string(out.State),
				"error": err.Error(),
			})
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.resolved <- out:
	default:
	}
}

func (s *Server) handleSuccess(w http.ResponseWriter, r *http.Request) {
	out, err := s.flow.Resume(r.Context(), r.URL.Query())
	s.finish(w, r, "resume", out, err, "Your membership payment was confirmed.")
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	out, err := s.flow.Cancel(r.Context())
	s.finish(w, r, "cancel", out, err, "")
}

func (s *Server) finish(w http.ResponseWriter, r *http.Request, op string, out *membership.Outcome, err error, okMessage string) {
	s.publish(r.Context(), out)
	if err == nil {
		writeJSON(w, http.StatusOK, response{Success: true, Message: okMessage, Outcome: out})
		return
	}

	msg := s.errs.Handle(r.Context(), op, err)
	status := http.StatusUnprocessableEntity
	switch errors.CodeOf(err) {
	case errors.ErrCodeInvalidTransition, errors.ErrCodeSubmissionInProgress:
		status = http.StatusConflict
	case errors.ErrCodeInvalidSuccessURL:
		status = http.StatusBadRequest
	case errors.ErrCodePaymentCancelled:
		status = http.StatusOK
	}
	writeJSON(w, status, response{Success: false, Message: msg, Outcome: out})
}

func (s *Server) handleConfirmation(w http.ResponseWriter, r *http.Request) {
	conf, err := s.flow.ConsumeConfirmation(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, response{Message: s.errs.Handle(r.Context(), "confirmation", err)})
		return
	}
	writeJSON(w, http.StatusOK, conf)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
