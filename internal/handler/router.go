package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/bilateralexchange/internal/service"
)

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware.
func NewRouter(svc *service.Service, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	askH := NewAskHandler(svc)
	bidH := NewBidHandler(svc)
	matchH := NewMatchHandler(svc)
	settingsH := NewSettingsHandler(svc)

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Ask routes.
	r.Post("/asks", askH.Create)
	r.Get("/asks", askH.ListByCollateral)
	r.Get("/asks/search", askH.Search)
	r.Get("/asks/{ask_id}", askH.Get)
	r.Put("/asks/{ask_id}", askH.Update)
	r.Delete("/asks/{ask_id}", askH.Cancel)

	// Bid routes.
	r.Post("/bids", bidH.Create)
	r.Get("/bids/search", bidH.Search)
	r.Get("/bids/{bid_id}", bidH.Get)
	r.Put("/bids/{bid_id}", bidH.Update)
	r.Delete("/bids/{bid_id}", bidH.Cancel)

	// Match routes.
	r.Post("/matches", matchH.Execute)
	r.Get("/matches/report", matchH.Report)

	// Settings routes.
	r.Get("/settings", settingsH.Get)
	r.Put("/settings", settingsH.Update)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// sender, status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("sender", r.Header.Get(senderHeader)),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct == "" || !strings.HasPrefix(ct, "application/json") {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
