package postgres

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"trade_engine/internal/modules/config"
	"trade_engine/pkg/db"
)

func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			// nil-менеджер = postgres не сконфигурирован, стораж выберет файлы
			func(ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
				if cfg.DB == "" {
					return nil, nil
				}
				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				if err = poolMaster.Ping(ctx); err != nil {
					return nil, err
				}

				return db.NewPgTxManager(poolMaster), nil
			},
		),
	)
}
