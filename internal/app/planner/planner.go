// Package planner собирает HTTP-сервер планировщика: хранилище, кэш, брокер,
// доменные сервисы и маршруты API.
package planner

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/coin-planner/internal/app/bootstrap"
	"github.com/magabrotheeeer/coin-planner/internal/config"
	"github.com/magabrotheeeer/coin-planner/internal/http/middlewarectx"
	"github.com/magabrotheeeer/coin-planner/internal/lib/jwt"
)

// App — HTTP-сервер планировщика.
type App struct {
	server *http.Server
	logger *slog.Logger
	deps   *bootstrap.Deps
}

// New открывает зависимости и настраивает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	deps, err := bootstrap.Open(ctx, cfg, logger, bootstrap.Options{Migrate: true, Cache: true, Broker: true})
	if err != nil {
		return nil, err
	}
	svc := bootstrap.NewServices(deps, cfg)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, svc,
		jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		middlewarectx.NewLimiter(cfg.RPS, cfg.Burst),
		deps.Pinger(),
	)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		deps:   deps,
	}, nil
}

// Handler возвращает корневой обработчик сервера.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run обслуживает запросы до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	defer a.deps.Close()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		return a.server.Shutdown(timeoutCtx)
	}
}
