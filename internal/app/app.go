// Package app wires the store together: database, health probes,
// repositories, domain services, HTTP surface, and graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	sdkapp "github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/minhhieu1/electronic-store/internal/domain/auth"
	"github.com/minhhieu1/electronic-store/internal/domain/basket"
	"github.com/minhhieu1/electronic-store/internal/domain/deal"
	"github.com/minhhieu1/electronic-store/internal/domain/discount"
	"github.com/minhhieu1/electronic-store/internal/domain/order"
	"github.com/minhhieu1/electronic-store/internal/domain/stock"
	"github.com/minhhieu1/electronic-store/internal/handler"
	"github.com/minhhieu1/electronic-store/internal/repository"
	"github.com/minhhieu1/electronic-store/pkg/health"
	"github.com/minhhieu1/electronic-store/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles
// graceful shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *sdkapp.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New()
	healthSvc.AddCheck(health.Readiness, "postgres", 5*time.Second, health.DatabaseCheck(pool))
	healthSvc.AddCheck(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	basketRepo := repository.NewBasketRepository(pool)
	dealRepo := repository.NewDealRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	apikeyRepo := repository.NewAPIKeyRepository(pool)

	// Domain services.
	ledger := stock.NewLedger(productRepo)
	engine := discount.NewEngine(dealRepo, discount.NewRegistry())
	basketService := basket.NewService(basketRepo, productRepo, ledger)
	orderService := order.NewService(orderRepo, basketRepo, productRepo, ledger, engine)
	dealService := deal.NewService(dealRepo, productRepo)

	// HTTP surface: health probes stay outside authentication, everything
	// under /api/ sits behind the API key middleware.
	h := handler.NewHandler(basketService, orderService, dealService, productRepo)

	apiMux := http.NewServeMux()
	h.Register(apiMux, handler.RequireScope(auth.ScopeAdmin))

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", handler.APIKeyAuth(apikeyRepo, []byte(cfg.APIKeyPepper))(apiMux))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "api_key"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("store-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: flip readiness, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
