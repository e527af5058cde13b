package postgres

import (
	"context"

	"github.com/wispbill/wispbill/internal/config"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/sentry"
	"go.uber.org/fx"
)

// IClient is the transaction boundary the services depend on
type IClient interface {
	// WithTx runs fn in a serializable transaction carried on the context.
	// Nested calls join the outer transaction.
	WithTx(ctx context.Context, fn func(context.Context) error) error
}

// Module provides the database handle, the monitored transaction client and
// runs pending migrations when postgres.auto_migrate is set
func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			NewDB,
			NewClient,
		),
		fx.Invoke(registerHooks),
	)
}

// NewClient exposes the DB as an IClient, wrapped with Sentry spans
func NewClient(db *DB, sentrySvc *sentry.Service, logger *logger.Logger) IClient {
	return NewSentryClient(db, sentrySvc, logger)
}

func registerHooks(lc fx.Lifecycle, db *DB, cfg *config.Configuration, logger *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !cfg.Postgres.AutoMigrate {
				return nil
			}
			return Migrate(cfg, logger)
		},
		OnStop: func(ctx context.Context) error {
			db.Close()
			return nil
		},
	})
}
