package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"routedesk/internal/airtable"
	"routedesk/internal/api"
	"routedesk/internal/buildinfo"
	"routedesk/internal/config"
	"routedesk/internal/events"
	"routedesk/internal/metrics"
	"routedesk/internal/opt"
	"routedesk/internal/store"
	"routedesk/internal/urgency"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	cfg.SetupLogging(os.Stderr)
	metrics.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("cannot open record store")
	}
	defer closeStore()

	broker, closeBroker := openBroker(ctx, cfg)
	defer closeBroker()

	g, err := cfg.Gazetteer()
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.GazetteerFile).Msg("cannot load gazetteer")
	}
	g = g.WithObserver(metrics.ObserveLookup)

	planner := opt.Planner{
		Geo:              g,
		Scorer:           urgency.New(cfg.Location()),
		Depot:            cfg.Depot(),
		TwoOptIterations: cfg.TwoOptIterations,
		Observe:          metrics.ObservePlan,
	}
	srv := api.NewServer(store.Instrument(st, metrics.ObserveStore), g, broker, planner, api.Options{
		Env:             cfg.AppEnv,
		Backend:         cfg.StoreBackend,
		DepotLabel:      cfg.DepotLabel,
		RequestTimeout:  cfg.RequestTimeout,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Production:      cfg.IsProduction(),
	})

	httpSrv := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		log.Info().Str("addr", cfg.AppAddr).Str("backend", cfg.StoreBackend).Str("version", buildinfo.Version).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	wg.Go(func() error {
		// warm the snapshot so the first dashboard load is fast
		if _, err := srv.Orders.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("initial order load failed")
		}
		return nil
	})
	wg.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	if err := wg.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendAirtable:
		client := airtable.New(airtable.Config{
			BaseURL: cfg.AirtableBaseURL,
			BaseID:  cfg.AirtableBaseID,
			Token:   cfg.AirtablePAT,
			RPS:     cfg.AirtableRPS,
		})
		at, err := store.NewAirtable(client, cfg.AirtableOrdersTable, cfg.AirtableRoutesTable)
		if err != nil {
			return nil, nil, err
		}
		return at, func() {}, nil
	case config.BackendPostgres:
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if cfg.DBMigrate {
			if err := pg.MigrateDir(ctx, cfg.DBMigrationsDir); err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		return pg, pg.Close, nil
	default:
		log.Warn().Msg("using in-memory record store; data is lost on restart")
		return store.NewMemory(), func() {}, nil
	}
}

// openBroker uses Redis when configured and falls back to in-process fan-out.
func openBroker(ctx context.Context, cfg *config.Config) (events.Broker, func()) {
	if cfg.RedisURL == "" {
		return events.NewMemory(), func() {}
	}
	rb, err := events.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable; using in-process event broker")
		return events.NewMemory(), func() {}
	}
	return rb, func() { _ = rb.Close() }
}
