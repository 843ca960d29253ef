package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"firebaselogin/internal/logger"
	"firebaselogin/internal/login"
	"firebaselogin/internal/metrics"
	"firebaselogin/internal/oauth"
)

const completedPage = `<!doctype html><title>Signed in</title><p>Sign-in complete. You can close this window.</p>`

// Routes holds what the callback server dispatches to. Nil adapters leave
// their route unregistered.
type Routes struct {
	Apple   oauth.Interactive
	Google  oauth.Interactive
	Metrics *metrics.Metrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

// NewRouter wires the provider redirect routes to their adapters.
func NewRouter(routes Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if routes.Google != nil {
		r.Get("/callback/google", handleCallback(login.ProviderGoogle, routes.Google, routes.Metrics))
	}
	if routes.Apple != nil {
		// Apple answers with form_post; GET is accepted for query responses.
		h := handleCallback(login.ProviderApple, routes.Apple, routes.Metrics)
		r.Post("/callback/apple", h)
		r.Get("/callback/apple", h)
	}
	if routes.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", routes.MetricsHandler)
	}

	return r
}

func handleCallback(provider login.Provider, target oauth.Interactive, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			m.ObserveCallback(string(provider), http.StatusBadRequest)
			http.Error(w, "invalid callback", http.StatusBadRequest)
			return
		}

		err := target.Complete(r.Context(), oauth.CallbackFromValues(r.Form))
		status := callbackStatus(err)
		m.ObserveCallback(string(provider), status)
		if err != nil {
			http.Error(w, oauth.CallbackError(err).Error(), status)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(completedPage))
	}
}

func callbackStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, oauth.ErrNoPendingRequest):
		return http.StatusGone
	case errors.Is(err, oauth.ErrStateMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.From(r.Context()).Info("callback request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
