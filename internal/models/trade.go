package models

import "time"

type TradeSide string

const (
	TradeBuy  TradeSide = "BUY"
	TradeSell TradeSide = "SELL"
)

// TradeRecord — запись леджера. После Append не мутируется.
type TradeRecord struct {
	ID     string    `json:"id"` // ULID
	UserID int64     `json:"user_id"`
	Symbol string    `json:"symbol"`
	Side   TradeSide `json:"side"`
	Price  float64   `json:"price"`
	Qty    float64   `json:"qty"`
	// PnL здесь всегда 0 — реализованный результат сводится downstream-ом.
	PnL float64   `json:"pnl"`
	TS  time.Time `json:"ts"`

	// Сырой ответ биржи, либо {"error": ...}, либо {"dry_run": true}.
	OrderResponse any `json:"order_response,omitempty"`
}
