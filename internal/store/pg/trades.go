package pg

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"

	"trade_engine/internal/models"
	"trade_engine/pkg/db"
)

// Trades — append-only леджер в engine_trades. UPDATE/DELETE тут не бывает.
type Trades struct {
	tm *db.PgTxManager
}

func NewTrades(tm *db.PgTxManager) *Trades {
	return &Trades{tm: tm}
}

func (t *Trades) AppendTrade(ctx context.Context, trade models.TradeRecord) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Trades.AppendTrade: %w", err)
		}
	}()

	var orderResp []byte
	if trade.OrderResponse != nil {
		orderResp, err = sonic.Marshal(trade.OrderResponse)
		if err != nil {
			return err
		}
	}

	return t.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO engine_trades (id, user_id, symbol, side, price, qty, pnl, ts, order_response)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			trade.ID, trade.UserID, trade.Symbol, string(trade.Side),
			trade.Price, trade.Qty, trade.PnL, trade.TS, orderResp)
		return err
	})
}

func (t *Trades) TradesForUser(ctx context.Context, userID int64, limit int) (trades []models.TradeRecord, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Trades.TradesForUser: %w", err)
		}
	}()

	if limit <= 0 {
		limit = 100
	}

	err = t.tm.RunMaster(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rows, qErr := tx.Query(ctx, `
			SELECT id, user_id, symbol, side, price, qty, pnl, ts, order_response
			FROM engine_trades WHERE user_id = $1
			ORDER BY ts DESC LIMIT $2`, userID, limit)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()

		for rows.Next() {
			var (
				tr        models.TradeRecord
				side      string
				orderResp []byte
			)
			if sErr := rows.Scan(&tr.ID, &tr.UserID, &tr.Symbol, &side,
				&tr.Price, &tr.Qty, &tr.PnL, &tr.TS, &orderResp); sErr != nil {
				return sErr
			}
			tr.Side = models.TradeSide(side)
			if len(orderResp) > 0 {
				var raw any
				if sErr := sonic.Unmarshal(orderResp, &raw); sErr == nil {
					tr.OrderResponse = raw
				}
			}
			trades = append(trades, tr)
		}
		return rows.Err()
	})
	return trades, err
}
