package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/mailcore/internal/account"
	"github.com/matheus3301/mailcore/internal/api"
	"github.com/matheus3301/mailcore/internal/bus"
	"github.com/matheus3301/mailcore/internal/config"
	"github.com/matheus3301/mailcore/internal/ingest"
	"github.com/matheus3301/mailcore/internal/jobs"
	"github.com/matheus3301/mailcore/internal/lock"
	"github.com/matheus3301/mailcore/internal/logging"
	"github.com/matheus3301/mailcore/internal/mdn"
	"github.com/matheus3301/mailcore/internal/metrics"
	"github.com/matheus3301/mailcore/internal/retention"
	"github.com/matheus3301/mailcore/internal/status"
	"github.com/matheus3301/mailcore/internal/stock"
	"github.com/matheus3301/mailcore/internal/store"
)

// Params holds the resolved account configuration passed to the fx module.
type Params struct {
	Account    string
	SocketPath string // optional override for testing; empty = use default
	ConfigPath string // optional override; empty = ~/.mailcore/config.toml
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideLock,
			provideStore,
			provideBus,
			provideMetrics,
			provideQueue,
			provideRunner,
			provideMachine,
			status.NewInfo,
			provideEngine,
			providePipeline,
			provideRouter,
			provideStock,
			provideMessageService,
			NewServer,
			newMetricsServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = account.ConfigPath()
	}
	return config.Load(path)
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(account.LogPath(p.Account), p.Account, cfg.LogLevel)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := account.EnsureDir(p.Account); err != nil {
		return nil, err
	}
	logger.Info("acquiring account lock", zap.String("account", p.Account))
	l, err := lock.Acquire(account.Dir(p.Account))
	if err != nil {
		return nil, err
	}
	logger.Info("account lock acquired")
	return l, nil
}

// provideStore depends on the lock so that two daemons never migrate the
// same database.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := account.DBPath(p.Account)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideMetrics() *metrics.Metrics {
	return metrics.New()
}

func provideQueue(db *store.DB, logger *zap.Logger) *jobs.Queue {
	return jobs.NewQueue(db, logger.Named("jobs"))
}

func provideRunner(db *store.DB, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *jobs.Runner {
	return jobs.NewRunner(db, logger.Named("jobs"), m, jobs.RunnerConfig{
		PollInterval: cfg.JobPollInterval.Std(),
		MaxTries:     cfg.JobMaxTries,
	})
}

func provideMachine(db *store.DB, b *bus.Bus, q *jobs.Queue, logger *zap.Logger, m *metrics.Metrics) *status.Machine {
	return status.NewMachine(db, b, q, logger.Named("status"), m)
}

func provideEngine(db *store.DB, logger *zap.Logger, m *metrics.Metrics) *mdn.Engine {
	return mdn.NewEngine(db, logger.Named("mdn"), m)
}

func providePipeline(db *store.DB, q *jobs.Queue, b *bus.Bus, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics, r *jobs.Runner) *retention.Pipeline {
	p := retention.NewPipeline(db, q, b, logger.Named("retention"), m, retention.Config{
		HousekeepingDelay: cfg.HousekeepingDelay.Std(),
	})
	// No mail transport is attached to the daemon yet; server-side jobs
	// complete locally.
	p.Register(r, retention.Detached{Logger: logger.Named("remote")})
	return p
}

func provideRouter(db *store.DB, b *bus.Bus, e *mdn.Engine, machine *status.Machine, logger *zap.Logger) *ingest.Router {
	return ingest.NewRouter(db, b, e, machine, logger.Named("ingest"))
}

func provideStock(cfg *config.Config, logger *zap.Logger) (stock.Translator, error) {
	t := stock.NewTable()
	if cfg.StockStrings != "" {
		if err := t.LoadFile(cfg.StockStrings); err != nil {
			return nil, err
		}
		logger.Info("stock strings loaded", zap.String("path", cfg.StockStrings))
	}
	return t, nil
}

func provideMessageService(
	p Params,
	db *store.DB,
	b *bus.Bus,
	machine *status.Machine,
	info *status.Info,
	pipeline *retention.Pipeline,
	router *ingest.Router,
	tr stock.Translator,
) *api.MessageService {
	return api.NewMessageService(p.Account, db, b, machine, info, pipeline, router, tr)
}

func registerLifecycle(
	lc fx.Lifecycle,
	srv *Server,
	ms *metricsServer,
	lk *lock.Lock,
	db *store.DB,
	router *ingest.Router,
	runner *jobs.Runner,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Hooks get a start-bounded context; background work needs its own.
			router.Start(context.Background())
			if err := runner.Start(context.Background()); err != nil {
				router.Stop()
				return err
			}

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
				}
			}()
			ms.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			ms.Stop(ctx)
			if err := runner.Stop(); err != nil {
				logger.Warn("error stopping job runner", zap.Error(err))
			}
			router.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
