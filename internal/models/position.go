package models

import "time"

const SideLong = "LONG"

// PosKey — составной ключ книги позиций.
type PosKey struct {
	UserID int64
	Symbol string
}

// Position — открытая позиция по (user, symbol). Отсутствие записи = FLAT.
type Position struct {
	Side       string    `json:"side"` // пока только LONG
	EntryPrice float64   `json:"entry_price"`
	Qty        float64   `json:"qty"`
	OpenedAt   time.Time `json:"opened_at"`
}
