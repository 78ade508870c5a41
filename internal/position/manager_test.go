package position

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_engine/internal/exchange"
	"trade_engine/internal/models"
	"trade_engine/internal/strategy"
	"trade_engine/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeExchange считает вызовы и отдаёт заготовленный ответ/ошибку.
type fakeExchange struct {
	orderCalls int
	orderErr   error
	orderResp  any
}

func (f *fakeExchange) FetchCandles(context.Context, string, string, int) ([]models.Candle, error) {
	return nil, exchange.ErrUnsupported
}
func (f *fakeExchange) BalanceUSDT(context.Context) (float64, error) { return 0, nil }
func (f *fakeExchange) ValidateSymbol(context.Context, string) (bool, error) {
	return true, nil
}
func (f *fakeExchange) PlaceOrder(_ context.Context, side models.TradeSide, qty float64, symbol string) (any, error) {
	f.orderCalls++
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	if f.orderResp != nil {
		return f.orderResp, nil
	}
	return map[string]any{"orderId": "test-1"}, nil
}

type fakeLedger struct {
	trades []models.TradeRecord
	err    error
}

func (f *fakeLedger) AppendTrade(_ context.Context, tr models.TradeRecord) error {
	if f.err != nil {
		return f.err
	}
	f.trades = append(f.trades, tr)
	return nil
}

func testSettings() models.EffectiveSettings {
	return models.EffectiveSettings{
		OrderPercent: 10,
		MinNotional:  5,
		QtyPrecision: 6,

		SilentDustClear: true,
	}
}

func newTestManager(ledger *fakeLedger, dryRun bool) *Manager {
	m := NewManager(NewBook(nil), ledger, dryRun)
	m.now = func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) }
	return m
}

func openReq(ex exchange.Exchange) Request {
	return Request{
		UserID:   7,
		Symbol:   "BTCUSDT",
		Verdict:  strategy.VerdictOpen,
		Price:    50,
		Balance:  100,
		Settings: testSettings(),
		Exchange: ex,
	}
}

func TestApplyOpensFromFlat(t *testing.T) {
	ex := &fakeExchange{}
	ledger := &fakeLedger{}
	m := newTestManager(ledger, false)

	res, err := m.Apply(context.Background(), openReq(ex))
	require.NoError(t, err)
	require.True(t, res.Opened)
	require.NotNil(t, res.Trade)

	// 10% от 100 USDT по 50 -> 0.2
	assert.Equal(t, models.TradeBuy, res.Trade.Side)
	assert.InDelta(t, 0.2, res.Trade.Qty, 1e-9)
	assert.Equal(t, 50.0, res.Trade.Price)
	assert.NotEmpty(t, res.Trade.ID)
	assert.Equal(t, 1, ex.orderCalls)
	require.Len(t, ledger.trades, 1)

	pos, err := m.Book().Get(context.Background(), models.PosKey{UserID: 7, Symbol: "BTCUSDT"})
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, models.SideLong, pos.Side)
	assert.Equal(t, 50.0, pos.EntryPrice)
	assert.InDelta(t, 0.2, pos.Qty, 1e-9)
}

func TestApplyClosesLong(t *testing.T) {
	ex := &fakeExchange{}
	ledger := &fakeLedger{}
	m := newTestManager(ledger, false)

	_, err := m.Apply(context.Background(), openReq(ex))
	require.NoError(t, err)

	req := openReq(ex)
	req.Verdict = strategy.VerdictClose
	req.Price = 55

	res, err := m.Apply(context.Background(), req)
	require.NoError(t, err)
	require.True(t, res.Closed)
	require.NotNil(t, res.Trade)
	assert.Equal(t, models.TradeSell, res.Trade.Side)
	assert.Equal(t, 55.0, res.Trade.Price)
	assert.InDelta(t, 0.2, res.Trade.Qty, 1e-9)
	assert.Equal(t, 2, ex.orderCalls)
	assert.Len(t, ledger.trades, 2)

	pos, err := m.Book().Get(context.Background(), models.PosKey{UserID: 7, Symbol: "BTCUSDT"})
	require.NoError(t, err)
	assert.Nil(t, pos, "после закрытия ключ снят")
}

func TestApplyNoOpTransitions(t *testing.T) {
	ex := &fakeExchange{}
	ledger := &fakeLedger{}
	m := newTestManager(ledger, false)

	// CLOSE в FLAT — ничего
	req := openReq(ex)
	req.Verdict = strategy.VerdictClose
	res, err := m.Apply(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	// открываем и пробуем OPEN ещё раз — ничего
	_, err = m.Apply(context.Background(), openReq(ex))
	require.NoError(t, err)
	res, err = m.Apply(context.Background(), openReq(ex))
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	// NONE — ничего
	req = openReq(ex)
	req.Verdict = strategy.VerdictNone
	res, err = m.Apply(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	assert.Equal(t, 1, ex.orderCalls)
	assert.Len(t, ledger.trades, 1)
}

func TestApplySkipsOpenBelowMinNotional(t *testing.T) {
	ex := &fakeExchange{}
	ledger := &fakeLedger{}
	m := newTestManager(ledger, false)

	req := openReq(ex)
	req.Balance = 10 // 10% = 1 USDT < MinNotional 5

	res, err := m.Apply(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Zero(t, ex.orderCalls)
	assert.Empty(t, ledger.trades)
}

func TestApplySilentDustClear(t *testing.T) {
	ex := &fakeExchange{}
	ledger := &fakeLedger{}
	m := newTestManager(ledger, false)

	key := models.PosKey{UserID: 7, Symbol: "BTCUSDT"}
	require.NoError(t, m.Book().set(context.Background(), key, &models.Position{
		Side: models.SideLong, EntryPrice: 50, Qty: 0.05, OpenedAt: time.Now(),
	}))

	req := openReq(ex)
	req.Verdict = strategy.VerdictClose
	// notional = 0.05*50 = 2.5 < 5 — пыль

	res, err := m.Apply(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Closed)
	assert.True(t, res.SilentClear)
	assert.Nil(t, res.Trade)
	assert.Zero(t, ex.orderCalls, "на биржу за пылью не ходим")
	assert.Empty(t, ledger.trades, "молчаливая очистка не пишет в леджер")

	pos, err := m.Book().Get(context.Background(), key)
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestApplyDustClearAudited(t *testing.T) {
	ex := &fakeExchange{}
	ledger := &fakeLedger{}
	m := newTestManager(ledger, false)

	key := models.PosKey{UserID: 7, Symbol: "BTCUSDT"}
	require.NoError(t, m.Book().set(context.Background(), key, &models.Position{
		Side: models.SideLong, EntryPrice: 50, Qty: 0.05, OpenedAt: time.Now(),
	}))

	req := openReq(ex)
	req.Verdict = strategy.VerdictClose
	req.Settings.SilentDustClear = false

	res, err := m.Apply(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Closed)
	assert.False(t, res.SilentClear)
	require.NotNil(t, res.Trade)
	assert.Equal(t, models.TradeSell, res.Trade.Side)
	assert.Equal(t, map[string]any{"dust_clear": true}, res.Trade.OrderResponse)
	assert.Zero(t, ex.orderCalls, "аудит-запись не ходит на биржу")
	assert.Len(t, ledger.trades, 1)
}

func TestApplyDryRunMarksTrade(t *testing.T) {
	ex := &fakeExchange{}
	ledger := &fakeLedger{}
	m := newTestManager(ledger, true)

	res, err := m.Apply(context.Background(), openReq(ex))
	require.NoError(t, err)
	require.True(t, res.Opened)
	assert.Equal(t, map[string]any{"dry_run": true}, res.Trade.OrderResponse)
	assert.Zero(t, ex.orderCalls, "dry-run не ходит на биржу")

	pos, err := m.Book().Get(context.Background(), models.PosKey{UserID: 7, Symbol: "BTCUSDT"})
	require.NoError(t, err)
	require.NotNil(t, pos, "dry-run честно ведёт позиции")
}

func TestApplyOrderFailureStillTransitions(t *testing.T) {
	ex := &fakeExchange{orderErr: errors.New("bybit: timeout")}
	ledger := &fakeLedger{}
	m := newTestManager(ledger, false)

	res, err := m.Apply(context.Background(), openReq(ex))
	require.NoError(t, err)
	require.True(t, res.Opened)

	// решение принято: переход состоялся, леджер несёт payload ошибки
	assert.Equal(t, map[string]any{"error": "bybit: timeout"}, res.Trade.OrderResponse)
	require.Len(t, ledger.trades, 1)

	pos, err := m.Book().Get(context.Background(), models.PosKey{UserID: 7, Symbol: "BTCUSDT"})
	require.NoError(t, err)
	require.NotNil(t, pos)
}

func TestBookAllAndOpenCount(t *testing.T) {
	b := NewBook(nil)
	ctx := context.Background()

	k1 := models.PosKey{UserID: 1, Symbol: "BTCUSDT"}
	k2 := models.PosKey{UserID: 2, Symbol: "ETHUSDT"}
	require.NoError(t, b.set(ctx, k1, &models.Position{Side: models.SideLong, Qty: 1}))
	require.NoError(t, b.set(ctx, k2, &models.Position{Side: models.SideLong, Qty: 2}))

	assert.Equal(t, 2, b.OpenCount(ctx))

	all, err := b.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	// копия, а не ссылка на арену
	all[k1].Qty = 99
	got, err := b.Get(ctx, k1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Qty)

	require.NoError(t, b.set(ctx, k1, nil))
	assert.Equal(t, 1, b.OpenCount(ctx))
}
