// Package chi mounts the merchant backend intent endpoint on a Chi router.
// This package is a thin adapter over the stdlib http.Handler in the http
// package; request decoding, validation and intent creation live there.
package chi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpps "github.com/mark3labs/paymentsheet-go/http"
)

// NewRouter creates a Chi router serving the intent endpoint. The router
// recovers from panics, tags each request with an id and logs it.
//
// Example usage:
//
//	creator, _ := httpps.NewStripeIntentCreator(os.Getenv("STRIPE_SECRET_KEY"))
//	r := NewRouter(httpps.NewHandler(creator), slog.Default())
//	http.ListenAndServe(":4242", r)
func NewRouter(handler *httpps.Handler, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	Mount(r, handler)
	return r
}

// Mount registers the intent endpoint on r.
func Mount(r chi.Router, handler *httpps.Handler) {
	r.Post(httpps.IntentsPath, handler.ServeHTTP)
	// OPTIONS request bypass for CORS preflight support
	r.Options(httpps.IntentsPath, handler.ServeHTTP)
}

// RequestLogger logs each request with its status, duration and request id.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
