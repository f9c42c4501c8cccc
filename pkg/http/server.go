package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/JonnyShabli/registry-mailer/pkg/logster"
	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

type Config struct {
	Addr         string        `yaml:"addr"`
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

func (c Config) Address() string {
	return c.Addr + ":" + c.Port
}

// NewHandler builds a chi router mounted at basePath. Middleware options must
// come before route options, chi panics otherwise.
func NewHandler(basePath string, options ...RouterOption) http.Handler {
	r := chi.NewRouter()
	r.Route(basePath, func(r chi.Router) {
		for _, option := range options {
			option(r)
		}
	})
	return r
}

// RunServer serves handler until ctx is done, then shuts down gracefully.
func RunServer(ctx context.Context, cfg Config, logger logster.Logger, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorLog:     log.New(logger, "", 0),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("http server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infof("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
