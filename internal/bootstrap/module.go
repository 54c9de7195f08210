package bootstrap

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"shelfd/internal/bootstrap/config"
	"shelfd/internal/bootstrap/database"
	"shelfd/internal/bootstrap/logging"
	"shelfd/internal/infrastructure/metrics"
	sqliterepo "shelfd/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "shelfd/internal/infrastructure/persistence/sqlite/uow"
	"shelfd/internal/ports"
	"shelfd/internal/usecase/catalog"
)

const metricsNamespace = "shelf"

// Module wires config, storage and the catalog service. Every command uses it.
var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(provideMetrics),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewCatalogRepository,
			fx.As(new(ports.CatalogRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(provideCatalogService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			if err := sqlDB.Close(); err != nil {
				return err
			}
			logging.Info(logCtx, "database connection closed")
			return nil
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideMetrics() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.New(reg, metricsNamespace)
}

func provideCatalogService(
	cfg config.Config,
	repo ports.CatalogRepository,
	uow ports.UnitOfWork,
	m *metrics.Metrics,
) *catalog.Service {
	return catalog.NewService(repo, uow, catalog.Options{
		SiteName:        cfg.App.SiteName,
		SiteURL:         cfg.App.SiteURL,
		LatestBatchSize: cfg.Resolver.BatchSize,
	}, m)
}
