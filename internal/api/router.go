package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// NewRouter registers every endpoint on a chi router.
func NewRouter(engine Engine, auditor Auditor, timeout time.Duration) http.Handler {
	h := NewHandler(engine, auditor)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/users", h.EnsureUserHandler)
	r.Route("/users/{userId}", func(r chi.Router) {
		r.Post("/nodes", h.PlaceHandler)
		r.Get("/balances", h.GetBalancesHandler)
		r.Get("/transactions", h.HistoryHandler)
		r.Get("/tree", h.TreeHandler)
		r.Post("/withdrawals", h.WithdrawHandler)
	})
	r.Get("/nodes/{nodeId}/transitions", h.NodeHistoryHandler)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/users/{userId}/adjustments", h.AdjustHandler)
		r.Delete("/users/{userId}", h.DeactivateHandler)
		r.Delete("/nodes/{nodeId}", h.DeactivateNodeHandler)
		r.Get("/audit", h.AuditAllHandler)
		r.Get("/audit/{userId}", h.AuditUserHandler)
	})

	return r
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		log.WithFields(log.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
		}).Debug("http request")
	})
}
