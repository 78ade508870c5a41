package pg

import (
	"context"

	"github.com/jackc/pgx/v5"

	"trade_engine/pkg/db"
)

// EnsureSchema создаёт таблицы при старте, миграций у движка нет.
func EnsureSchema(ctx context.Context, tm *db.PgTxManager) error {
	return tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		stmts := []string{
			`CREATE TABLE IF NOT EXISTS engine_users (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT UNIQUE NOT NULL,
				name TEXT NOT NULL DEFAULT '',
				api_key TEXT NOT NULL DEFAULT '',
				api_secret TEXT NOT NULL DEFAULT '',
				sub_until TIMESTAMPTZ,
				settings JSONB NOT NULL DEFAULT '{}'
			)`,
			`CREATE TABLE IF NOT EXISTS engine_trades (
				id TEXT PRIMARY KEY,
				user_id BIGINT NOT NULL,
				symbol TEXT NOT NULL,
				side TEXT NOT NULL,
				price DOUBLE PRECISION NOT NULL,
				qty DOUBLE PRECISION NOT NULL,
				pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
				ts TIMESTAMPTZ NOT NULL,
				order_response JSONB
			)`,
			`CREATE TABLE IF NOT EXISTS engine_positions (
				user_id BIGINT NOT NULL,
				symbol TEXT NOT NULL,
				side TEXT NOT NULL,
				entry_price DOUBLE PRECISION NOT NULL,
				qty DOUBLE PRECISION NOT NULL,
				opened_at TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (user_id, symbol)
			)`,
		}
		for _, s := range stmts {
			if _, err := tx.Exec(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
}
