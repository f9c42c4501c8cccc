package http

import (
	"net/http"

	"github.com/JonnyShabli/registry-mailer/pkg/logster"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func DefaultTechOptions() RouterOption {
	return RouterOptions(
		WithRequestID(),
		WithRecover(),
		WithHealthCheck(),
		WithDebugHandler(),
	)
}

func RouterOptions(options ...RouterOption) func(chi.Router) {
	return func(r chi.Router) {
		for _, option := range options {
			option(r)
		}
	}
}

type RouterOption func(chi.Router)

func WithDebugHandler() RouterOption {
	return func(r chi.Router) {
		r.Mount("/debug", middleware.Profiler())
	}
}

func WithRecover() RouterOption {
	return func(r chi.Router) {
		r.Use(middleware.Recoverer)
	}
}

func WithRequestID() RouterOption {
	return func(r chi.Router) {
		r.Use(middleware.RequestID)
	}
}

func WithHealthCheck() RouterOption {
	return func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
	}
}

func WithLogger(loger logster.Logger) RouterOption {
	return func(r chi.Router) {
		r.Use(logster.LogsterMiddleware(loger))
	}
}
