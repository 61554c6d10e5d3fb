package handler

import (
	"context"
	"net/http"
	"time"

	chathandler "github.com/boddenberg/sellernotes-bot-go/internal/chat/handler"
	"github.com/boddenberg/sellernotes-bot-go/internal/chat/service"
	"github.com/boddenberg/sellernotes-bot-go/internal/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Checker reports whether a dependency is usable. Used by /readyz.
type Checker interface {
	Ping(ctx context.Context) error
}

// RouterDeps are the collaborators the router wires into routes.
type RouterDeps struct {
	Chat    *service.ChatService
	Metrics *observability.Metrics
	// Checks are probed by /readyz, keyed by dependency name.
	Checks map[string]Checker
	// MockCRM, when set, is mounted under /mock/crm.
	MockCRM http.Handler
	Logger  *zap.Logger
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	logger := deps.Logger

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler(deps.Checks, logger))
	r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- Bot ---
	r.Post("/api/messages", chathandler.MessagesHandler(deps.Chat, logger))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/dialog", dialogMetricsHandler(deps.Metrics))
	})

	if deps.MockCRM != nil {
		r.Mount("/mock/crm", deps.MockCRM)
	}

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.HealthStatus{Status: "healthy", Services: []domain.ServiceHealth{}})
	}
}

// readyzHandler pings every dependency. Any failure makes the service
// unhealthy (503).
func readyzHandler(checks map[string]Checker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /readyz")
		defer span.End()

		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		status := domain.HealthStatus{Status: "healthy", Services: make([]domain.ServiceHealth, 0, len(checks))}
		for name, c := range checks {
			start := time.Now()
			err := c.Ping(ctx)
			sh := domain.ServiceHealth{
				Name:      name,
				Status:    "up",
				LatencyMs: time.Since(start).Milliseconds(),
			}
			if err != nil {
				logger.Warn("readiness check failed", zap.String("service", name), zap.Error(err))
				sh.Status = "down"
				sh.Error = err.Error()
				status.Status = "unhealthy"
			}
			status.Services = append(status.Services, sh)
		}

		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	}
}

// ============================================================
// Metrics: GET /v1/metrics/dialog
// ============================================================

func dialogMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetDialogSnapshot())
	}
}
