package position

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"

	"trade_engine/internal/exchange"
	"trade_engine/internal/models"
	"trade_engine/internal/strategy"
	"trade_engine/pkg/logger"
)

// Ledger — append-only журнал сделок.
type Ledger interface {
	AppendTrade(ctx context.Context, trade models.TradeRecord) error
}

// Manager — машина состояний FLAT/LONG по ключу (user, symbol).
// Единственный владелец позиций: мутации только через Apply.
type Manager struct {
	book   *Book
	ledger Ledger
	dryRun bool

	now func() time.Time
}

func NewManager(book *Book, ledger Ledger, dryRun bool) *Manager {
	return &Manager{
		book:   book,
		ledger: ledger,
		dryRun: dryRun,
		now:    time.Now,
	}
}

func (m *Manager) Book() *Book { return m.book }

// Request — один юнит работы: вердикт по (user, symbol) на текущей цене.
// Balance <= 0 означает "неизвестен или пуст" — как в исходной системе.
type Request struct {
	UserID   int64
	Symbol   string
	Verdict  strategy.Verdict
	Price    float64
	Balance  float64
	Settings models.EffectiveSettings
	Exchange exchange.Exchange
}

type Result struct {
	Opened      bool
	Closed      bool
	SilentClear bool
	Trade       *models.TradeRecord
}

// Apply применяет вердикт. Переходы по одному ключу сериализованы; всё
// остальное (OPEN при открытой позиции, CLOSE в FLAT, NONE) — no-op.
func (m *Manager) Apply(ctx context.Context, req Request) (Result, error) {
	key := models.PosKey{UserID: req.UserID, Symbol: req.Symbol}
	kl := m.book.keyLock(key)
	kl.Lock()
	defer kl.Unlock()

	pos, err := m.book.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}

	switch {
	case pos == nil && req.Verdict == strategy.VerdictOpen:
		return m.open(ctx, key, req)
	case pos != nil && req.Verdict == strategy.VerdictClose:
		return m.close(ctx, key, pos, req)
	}
	return Result{}, nil
}

func (m *Manager) open(ctx context.Context, key models.PosKey, req Request) (Result, error) {
	qty := OrderQty(req.Settings, req.Price, req.Balance)
	if qty <= 0 {
		return Result{}, nil
	}
	if qty*req.Price < req.Settings.MinNotional {
		return Result{}, nil
	}

	trade := m.execute(ctx, req, models.TradeBuy, qty)
	m.append(ctx, trade)

	pos := &models.Position{
		Side:       models.SideLong,
		EntryPrice: req.Price,
		Qty:        qty,
		OpenedAt:   m.now().UTC(),
	}
	if err := m.book.set(ctx, key, pos); err != nil {
		// позиция уже в арене; стор догоним на следующем цикле
		logger.Error("uid=%d %s: persist position: %v", req.UserID, req.Symbol, err)
	}

	logger.Info("TRADE BUY uid=%d symbol=%s qty=%v price=%v", req.UserID, req.Symbol, qty, req.Price)
	return Result{Opened: true, Trade: &trade}, nil
}

func (m *Manager) close(ctx context.Context, key models.PosKey, pos *models.Position, req Request) (Result, error) {
	notional := pos.Qty * req.Price

	if pos.Qty > 0 && notional >= req.Settings.MinNotional {
		trade := m.execute(ctx, req, models.TradeSell, pos.Qty)
		m.append(ctx, trade)

		if err := m.book.set(ctx, key, nil); err != nil {
			logger.Error("uid=%d %s: clear position: %v", req.UserID, req.Symbol, err)
		}
		logger.Info("TRADE SELL uid=%d symbol=%s qty=%v price=%v", req.UserID, req.Symbol, pos.Qty, req.Price)
		return Result{Closed: true, Trade: &trade}, nil
	}

	// notional меньше минимального — пыль.
	if req.Settings.SilentDustClear {
		// Поведение исходной системы: позиция снимается без записи в леджер.
		// Это теряет cost-basis, поэтому отключаемо (см. DESIGN.md).
		if err := m.book.set(ctx, key, nil); err != nil {
			logger.Error("uid=%d %s: clear dust position: %v", req.UserID, req.Symbol, err)
		}
		logger.Warn("uid=%d %s: dust position cleared silently (qty=%v, notional=%v)",
			req.UserID, req.Symbol, pos.Qty, notional)
		return Result{Closed: true, SilentClear: true}, nil
	}

	// аудит вместо молчания: SELL-запись без похода на биржу
	trade := m.newTrade(req, models.TradeSell, pos.Qty)
	trade.OrderResponse = map[string]any{"dust_clear": true}
	m.append(ctx, trade)
	if err := m.book.set(ctx, key, nil); err != nil {
		logger.Error("uid=%d %s: clear dust position: %v", req.UserID, req.Symbol, err)
	}
	return Result{Closed: true, Trade: &trade}, nil
}

func (m *Manager) newTrade(req Request, side models.TradeSide, qty float64) models.TradeRecord {
	return models.TradeRecord{
		ID:     ulid.Make().String(),
		UserID: req.UserID,
		Symbol: req.Symbol,
		Side:   side,
		Price:  req.Price,
		Qty:    qty,
		PnL:    0,
		TS:     m.now().UTC(),
	}
}

// execute — поход на биржу (или его имитация в dry-run). Ошибка размещения
// не отменяет переход: решение принято, леджер несёт payload ошибки.
func (m *Manager) execute(ctx context.Context, req Request, side models.TradeSide, qty float64) models.TradeRecord {
	trade := m.newTrade(req, side, qty)

	if m.dryRun {
		trade.OrderResponse = map[string]any{"dry_run": true}
		return trade
	}

	resp, err := req.Exchange.PlaceOrder(ctx, side, qty, req.Symbol)
	if err != nil {
		logger.Error("uid=%d %s: place %s order: %v", req.UserID, req.Symbol, side, err)
		trade.OrderResponse = map[string]any{"error": err.Error()}
		return trade
	}
	trade.OrderResponse = resp
	return trade
}

func (m *Manager) append(ctx context.Context, trade models.TradeRecord) {
	if m.ledger == nil {
		return
	}
	if err := m.ledger.AppendTrade(ctx, trade); err != nil {
		logger.Error("uid=%d %s: append trade: %v", trade.UserID, trade.Symbol, err)
	}
}
