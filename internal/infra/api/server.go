package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/ports/repository"
	"membership-billing/internal/infra/logging"
	"membership-billing/internal/usecase"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Membership usecase.MembershipUseCase
	Complaints usecase.ComplaintUseCase
	Desk       *CheckoutDesk
	Feed       repository.ChangeFeed
	Auth       *AuthManager
	Translator translator

	// CheckoutConfigured is false when the provider section is incomplete.
	CheckoutConfigured bool
	SyncInterval       time.Duration
	RequestTimeout     time.Duration

	// Metrics is served on /metrics; nil uses the default gatherer.
	Metrics http.Handler
	Logger  *zerolog.Logger
}

type Server struct {
	deps Deps
	log  *zerolog.Logger
}

func NewServer(d Deps) (*Server, error) {
	if d.Membership == nil || d.Complaints == nil || d.Desk == nil || d.Auth == nil {
		return nil, errors.New("api: membership, complaints, desk and auth are required")
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 20 * time.Second
	}
	if d.Metrics == nil {
		d.Metrics = promhttp.Handler()
	}
	l := zerolog.Nop()
	if d.Logger != nil {
		l = d.Logger.With().Str("component", "API").Logger()
	}
	return &Server{deps: d, log: &l}, nil
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.deps.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireUser(s.deps.Auth, s.deps.Translator))

		// long lived; no request timeout
		r.Get("/membership/stream", s.handleMembershipStream)

		r.Group(func(r chi.Router) {
			r.Use(Timeout(s.deps.RequestTimeout))

			r.Get("/packages", s.handlePackages)
			r.Get("/membership", s.handleMembership)

			r.Post("/checkout", s.handleCheckoutOpen)
			r.Route("/checkout/{sessionID}", func(r chi.Router) {
				r.Get("/", s.handleCheckoutGet)
				r.Delete("/", s.handleCheckoutTeardown)
				r.Post("/approve", s.handleCheckoutApprove)
				r.Post("/cancel", s.handleCheckoutCancel)
				r.Post("/error", s.handleCheckoutError)
			})

			r.Post("/complaints", s.handleComplaint)
		})
	})
	return r
}

func (s *Server) t(key string, args ...interface{}) string {
	if s.deps.Translator == nil {
		return key
	}
	return s.deps.Translator.T(key, args...)
}

// fail writes the error response; unexpected errors are logged.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _, _ := classify(err); status >= http.StatusInternalServerError {
		l := logging.With(r.Context(), s.log)
		l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else if errors.Is(err, domain.ErrInvalidArgument) {
		s.log.Debug().Err(err).Str("path", r.URL.Path).Msg("bad request")
	}
	writeError(w, r, s.deps.Translator, err)
}
