package exchange

import (
	"context"

	"github.com/pkg/errors"

	"trade_engine/internal/models"
)

var (
	// ErrAuth — биржа отвергла ключи/права. Отличать от легитимного нуля баланса.
	ErrAuth = errors.New("exchange: auth or rights failure")

	// ErrUnsupported — операция недоступна у данного клиента. Торговля
	// деградирует в no-op, планировщик жить продолжает.
	ErrUnsupported = errors.New("exchange: operation unsupported")
)

// Exchange — ровно тот набор операций, который нужен движку итераций.
type Exchange interface {
	// FetchCandles — OHLCV хронологически (старые -> новые), публичный вызов.
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
	// BalanceUSDT — доступный USDT; ErrAuth, если ключи не подошли.
	BalanceUSDT(ctx context.Context) (float64, error)
	// PlaceOrder — рыночный ордер; возвращает сырой ответ биржи для леджера.
	PlaceOrder(ctx context.Context, side models.TradeSide, qty float64, symbol string) (any, error)
	// ValidateSymbol — существует ли символ в публичных метаданных.
	ValidateSymbol(ctx context.Context, symbol string) (bool, error)
}

// Disabled — клиент без возможностей. Ставится, когда биржевой клиент не
// сконфигурирован: цикл крутится, логирует и ничего не делает.
type Disabled struct{}

func (Disabled) FetchCandles(context.Context, string, string, int) ([]models.Candle, error) {
	return nil, ErrUnsupported
}

func (Disabled) BalanceUSDT(context.Context) (float64, error) {
	return 0, ErrUnsupported
}

func (Disabled) PlaceOrder(context.Context, models.TradeSide, float64, string) (any, error) {
	return nil, ErrUnsupported
}

func (Disabled) ValidateSymbol(context.Context, string) (bool, error) {
	return false, ErrUnsupported
}
