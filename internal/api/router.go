package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type RouterConfig struct {
	Service *appointment.Service
	Store   Pinger
	Redis   *redis.Client // nil when the in-process lock is used
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(MetricsMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.Store, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	h := &handlers{svc: cfg.Service}

	r.Route("/doctors/{doctorID}", func(r chi.Router) {
		r.Get("/availability", h.availability)
		r.Get("/appointments", h.listDoctorAppointments)
		r.Get("/stats", h.doctorStats)
	})
	r.Get("/patients/{patientID}/appointments", h.listPatientAppointments)

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.book)
		r.Get("/{id}", h.get)
		r.Post("/{id}/confirm", h.confirm)
		r.Post("/{id}/cancel", h.cancel)
		r.Post("/{id}/reschedule", h.reschedule)
		r.Post("/{id}/complete", h.complete)
	})

	return r
}
