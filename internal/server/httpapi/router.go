package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every route. accessLog may be nil to disable access logs.
func NewRouter(h *Handler, accessLog *slog.Logger) http.Handler {
	r := chi.NewRouter()
	if accessLog != nil {
		r.Use(RequestLogger(accessLog))
	}
	r.Use(Metrics)

	r.Get("/status", h.Status)
	r.Get("/stats", h.Stats)
	r.Post("/users", h.Register)
	r.Get("/connect", h.Connect)
	r.Get("/disconnect", h.Disconnect)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(h.requireUser)
		r.Get("/users/me", h.Me)
		r.Post("/files", h.Upload)
		r.Get("/files", h.Index)
		r.Get("/files/{id}", h.Show)
		r.Put("/files/{id}/publish", h.Publish)
		r.Put("/files/{id}/unpublish", h.Unpublish)
	})

	r.With(h.optionalUser).Get("/files/{id}/data", h.Data)

	return r
}
