package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/library-ledger/internal/config"
	"github.com/example/library-ledger/internal/events"
	httptransport "github.com/example/library-ledger/internal/http"
	"github.com/example/library-ledger/internal/ledger"
	"github.com/example/library-ledger/internal/metrics"
	"github.com/example/library-ledger/internal/persistence"
	"github.com/example/library-ledger/internal/persistence/memory"
	"github.com/example/library-ledger/internal/persistence/redis"
	"github.com/example/library-ledger/internal/persistence/sqlite"
	"github.com/example/library-ledger/internal/persistence/sqlite/migration"
)

var errBrokerUnavailable = errors.New("amqp connection closed")

// app holds the ledger and everything it was built from.
type app struct {
	ledger  *ledger.Ledger
	metrics *metrics.Recorder
	health  map[string]httptransport.HealthCheck
	logger  *slog.Logger
	closers []func() error
}

func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{
		health: make(map[string]httptransport.HealthCheck),
		logger: logger,
	}
	defer func() {
		if err != nil {
			if cerr := a.Close(); cerr != nil {
				logger.Error("failed to release resources", "error", cerr)
			}
		}
	}()

	var (
		snapshots persistence.SnapshotStore
		sessions  persistence.SessionStore
	)

	switch cfg.Store {
	case config.StoreMemory:
		storage := memory.New()
		a.closers = append(a.closers, storage.Close)
		snapshots, sessions = storage, storage
		logger.Warn("using in-memory storage, state is lost on exit")
	default:
		store, err := sqlite.Open(ctx, migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.health["sqlite"] = store.Pool().Ping
		snapshots, sessions = store.Snapshot, store.Sessions
	}

	if cfg.SessionStore == config.SessionStoreRedis {
		redisSessions, err := redis.Connect(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect session store: %w", err)
		}
		a.closers = append(a.closers, redisSessions.Close)
		a.health["redis"] = redisSessions.Ping
		sessions = redisSessions
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.DialAMQP(cfg.AMQPURL, logger)
		if err != nil {
			return nil, fmt.Errorf("connect event broker: %w", err)
		}
		a.closers = append(a.closers, amqpPublisher.Close)
		a.health["amqp"] = func(context.Context) error {
			if !amqpPublisher.IsHealthy() {
				return errBrokerUnavailable
			}
			return nil
		}
		publisher = amqpPublisher
	}

	a.metrics = metrics.NewRecorder()

	a.ledger, err = ledger.New(ctx, ledger.Options{
		Store:          newSnapshotStoreAdapter(snapshots),
		Sessions:       newSessionRepositoryAdapter(sessions),
		Publisher:      publisher,
		Metrics:        a.metrics,
		Logger:         logger,
		Now:            time.Now,
		LoanPeriodDays: cfg.LoanDays,
		SessionTTL:     cfg.SessionTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	return a, nil
}

// Handler assembles the HTTP surface over the ledger.
func (a *app) Handler() http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(a.ledger, a.logger),
		Books:          httptransport.NewBookHandler(a.ledger, a.logger),
		Loans:          httptransport.NewLoanHandler(a.ledger, a.logger),
		Circulation:    httptransport.NewCirculationHandler(a.ledger, a.logger),
		Health:         httptransport.NewHealthHandler(a.health, a.logger),
		Metrics:        a.metrics.Handler(),
		RequireSession: httptransport.RequireSession(a.ledger, a.logger),
		Middleware:     []func(http.Handler) http.Handler{httptransport.RequestLogger(a.logger)},
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
