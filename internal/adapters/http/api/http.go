// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Aygren/balendip-sub000/internal/adapters/export"
	"github.com/Aygren/balendip-sub000/internal/domain/model"
	"github.com/Aygren/balendip-sub000/internal/domain/onboarding"
	"github.com/Aygren/balendip-sub000/internal/domain/pagination"
	service "github.com/Aygren/balendip-sub000/internal/app"
	"github.com/Aygren/balendip-sub000/pkg/logger"
)

// maxBodyBytes bounds JSON request bodies, exports with inline events included.
const maxBodyBytes = 8 << 20

// EventDependencies is what the event routes need.
type EventDependencies interface {
	ListEvents(ctx context.Context, filter model.EventFilter, token string, size int) (pagination.Page, error)
	GetEvent(ctx context.Context, id string) (model.Event, error)
	CreateEventOnce(ctx context.Context, key string, in model.EventInput) (model.Event, bool, error)
	UpdateEvent(ctx context.Context, id string, patch model.EventPatch) (model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// SphereDependencies is what the sphere routes need.
type SphereDependencies interface {
	ListSpheres(ctx context.Context) ([]model.LifeSphere, error)
	CreateSphere(ctx context.Context, in model.SphereInput) (model.LifeSphere, error)
	UpdateSphere(ctx context.Context, id string, patch model.SpherePatch) (model.LifeSphere, error)
	DeleteSphere(ctx context.Context, id string, force bool) error
	SeedDefaultSpheres(ctx context.Context) ([]model.LifeSphere, bool, error)
}

// InsightDependencies is what the analytics and export routes need.
type InsightDependencies interface {
	Analytics(ctx context.Context, from, to string) (service.Analytics, error)
	Export(ctx context.Context, req export.Request) (export.Document, error)
}

// OnboardingDependencies is what the onboarding routes need.
type OnboardingDependencies interface {
	Onboarding(ctx context.Context) (onboarding.Progress, error)
	UpdateOnboarding(ctx context.Context, u onboarding.Update) (onboarding.Progress, error)
	OnboardingAction(ctx context.Context, action string) (onboarding.Progress, error)
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	EventDependencies
	SphereDependencies
	InsightDependencies
	OnboardingDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	eventsHandler     *EventsHandler
	spheresHandler    *SpheresHandler
	insightsHandler   *InsightsHandler
	onboardingHandler *OnboardingHandler
	auth              *Authenticator
	logger            logger.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger used for unexpected handler errors.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, auth *Authenticator, opts ...ServerOption) *Server {
	s := &Server{auth: auth, logger: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	errs := &errorWriter{logger: s.logger}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = newStatsHandler(statsProvider, errs)
	s.eventsHandler = &EventsHandler{deps: deps, errs: errs}
	s.spheresHandler = &SpheresHandler{deps: deps, errs: errs}
	s.insightsHandler = &InsightsHandler{deps: deps, errs: errs}
	s.onboardingHandler = &OnboardingHandler{deps: deps, errs: errs}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.healthHandler.HandleMetrics, "metrics"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(s.auth.Require(h), endpoint))
	}

	route("GET /api/v1/events", "events", s.eventsHandler.HandleList)
	route("POST /api/v1/events", "events", s.eventsHandler.HandleCreate)
	route("GET /api/v1/events/{id}", "event", s.eventsHandler.HandleGet)
	route("PATCH /api/v1/events/{id}", "event", s.eventsHandler.HandleUpdate)
	route("DELETE /api/v1/events/{id}", "event", s.eventsHandler.HandleDelete)

	route("GET /api/v1/spheres", "spheres", s.spheresHandler.HandleList)
	route("POST /api/v1/spheres", "spheres", s.spheresHandler.HandleCreate)
	route("POST /api/v1/spheres/seed", "spheres_seed", s.spheresHandler.HandleSeed)
	route("PATCH /api/v1/spheres/{id}", "sphere", s.spheresHandler.HandleUpdate)
	route("DELETE /api/v1/spheres/{id}", "sphere", s.spheresHandler.HandleDelete)

	route("GET /api/v1/analytics", "analytics", s.insightsHandler.HandleAnalytics)
	route("POST /api/v1/export", "export", s.insightsHandler.HandleExport)

	route("GET /api/v1/onboarding", "onboarding", s.onboardingHandler.HandleGet)
	route("PUT /api/v1/onboarding", "onboarding", s.onboardingHandler.HandleUpdate)
	route("POST /api/v1/onboarding/{action}", "onboarding_action", s.onboardingHandler.HandleAction)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return WrapKind(ErrBadRequest, err)
	}
	return nil
}
