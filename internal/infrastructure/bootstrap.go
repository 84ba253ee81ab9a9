package infrastructure

import (
	"context"
	"log/slog"

	"pointspay/internal/config"
	"pointspay/internal/gateway"
	"pointspay/internal/repository"
	"pointspay/internal/service"
	transportChannel "pointspay/internal/transport/channel"
	transportHTTP "pointspay/internal/transport/http"
	transportNATS "pointspay/internal/transport/nats"
	"pointspay/internal/worker"
)

// Bootstrap initialises all dependencies from config and wires up the
// application. Returns the App, a cleanup function, or an error. Everything
// is constructed once here and passed by reference; there are no ambient
// globals.
func Bootstrap(ctx context.Context) (*App, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}

	db, err := connectPostgres(cfg.DSN())
	if err != nil {
		return nil, nil, err
	}

	rdb, err := connectRedis(cfg.RedisAddr())
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	var cleanupFns []func()
	cleanupFns = append(cleanupFns, func() {
		db.Close()
		_ = rdb.Close()
	})

	store := repository.NewLedgerRepo(db, rdb, cfg.DefaultBalance)
	gw := gateway.NewStripeGateway(cfg)

	var servers []Server

	switch cfg.BusProvider {
	case "nats":
		nc, err := connectNats(cfg.NatsAddr())
		if err != nil {
			return nil, runCleanup(cleanupFns), err
		}
		cleanupFns = append(cleanupFns, nc.Close)

		bus := transportNATS.NewBus(nc)
		svc := service.NewPoints(store, gw, bus, cfg)

		servers = append(servers, worker.NewSettlementWorker(svc, nc))
		if addr, apiErr := cfg.ApiAddr(); apiErr == nil {
			servers = append(servers, transportHTTP.NewServer(addr, svc))
		}

	case "channel":
		bus := transportChannel.NewBus(cfg.BusBufferSize)
		svc := service.NewPoints(store, gw, bus, cfg)

		servers = append(servers, worker.NewChannelWorker(svc, bus))
		if addr, apiErr := cfg.ApiAddr(); apiErr == nil {
			servers = append(servers, transportHTTP.NewServer(addr, svc))
		}
	}

	slog.Info("application wired",
		"bus_provider", cfg.BusProvider,
		"min_points", cfg.MinPoints,
		"max_points", cfg.MaxPoints,
		"default_balance", cfg.DefaultBalance,
	)

	return NewApp(servers), runCleanup(cleanupFns), nil
}

// runCleanup returns a single function that calls all cleanup functions in
// reverse order.
func runCleanup(fns []func()) func() {
	return func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	}
}
