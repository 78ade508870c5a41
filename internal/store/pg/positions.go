package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trade_engine/internal/models"
	"trade_engine/pkg/db"
)

// Positions — книга позиций в engine_positions, PK (user_id, symbol).
type Positions struct {
	tm *db.PgTxManager
}

func NewPositions(tm *db.PgTxManager) *Positions {
	return &Positions{tm: tm}
}

func (p *Positions) LoadPositions(ctx context.Context) (out map[models.PosKey]*models.Position, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Positions.LoadPositions: %w", err)
		}
	}()

	out = make(map[models.PosKey]*models.Position)
	err = p.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rows, qErr := tx.Query(ctx, `
			SELECT user_id, symbol, side, entry_price, qty, opened_at
			FROM engine_positions`)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()

		for rows.Next() {
			var (
				key  models.PosKey
				pos  models.Position
				side string
			)
			if sErr := rows.Scan(&key.UserID, &key.Symbol, &side,
				&pos.EntryPrice, &pos.Qty, &pos.OpenedAt); sErr != nil {
				return sErr
			}
			pos.Side = side
			out[key] = &pos
		}
		return rows.Err()
	})
	return out, err
}

// SavePosition с pos == nil удаляет запись (позиция закрыта).
func (p *Positions) SavePosition(ctx context.Context, key models.PosKey, pos *models.Position) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Positions.SavePosition: %w", err)
		}
	}()

	return p.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if pos == nil {
			_, err := tx.Exec(ctx, `
				DELETE FROM engine_positions WHERE user_id = $1 AND symbol = $2`,
				key.UserID, key.Symbol)
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO engine_positions (user_id, symbol, side, entry_price, qty, opened_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, symbol) DO UPDATE SET
				side = EXCLUDED.side,
				entry_price = EXCLUDED.entry_price,
				qty = EXCLUDED.qty,
				opened_at = EXCLUDED.opened_at`,
			key.UserID, key.Symbol, pos.Side, pos.EntryPrice, pos.Qty, pos.OpenedAt)
		return err
	})
}
