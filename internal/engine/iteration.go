package engine

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"trade_engine/internal/exchange"
	"trade_engine/internal/indicator"
	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
	"trade_engine/internal/notify"
	"trade_engine/internal/position"
	"trade_engine/internal/strategy"
	"trade_engine/internal/symbols"
	"trade_engine/pkg/logger"
)

// UserStore — что планировщику нужно от стора юзеров.
type UserStore interface {
	ListEligible(ctx context.Context, now time.Time) ([]*models.UserSettings, error)
	Save(ctx context.Context, user *models.UserSettings) error
}

// ExchangeFactory штампует биржевые клиенты под ключи юзера.
type ExchangeFactory interface {
	ForUser(apiKey, apiSecret string, testnet bool) exchange.Exchange
}

// Scheduler гоняет торговые итерации: каждые Interval секунд по всем
// юзерам с живой подпиской, по всем их символам.
type Scheduler struct {
	cfg      *config.Config
	users    UserStore
	factory  ExchangeFactory
	manager  *position.Manager
	notifier notify.Notifier
	state    *State

	now func() time.Time
}

func NewScheduler(cfg *config.Config, users UserStore, factory ExchangeFactory,
	manager *position.Manager, notifier notify.Notifier, state *State) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		users:    users,
		factory:  factory,
		manager:  manager,
		notifier: notifier,
		state:    state,
		now:      time.Now,
	}
}

// Run — основной цикл. Итерации не перехлёстываются: следующая стартует
// через Interval после завершения предыдущей.
func (s *Scheduler) Run(ctx context.Context) {
	logger.Info("scheduler: started, interval=%s dry_run=%v", s.cfg.Engine.Interval, s.cfg.Engine.DryRun)
	for {
		s.RunIteration(ctx)
		select {
		case <-ctx.Done():
			logger.Info("scheduler: stopped")
			return
		case <-time.After(s.cfg.Engine.Interval):
		}
	}
}

// RunIteration — один проход по всем юзерам. Паника любого юзера или
// символа не валит ни итерацию, ни процесс.
func (s *Scheduler) RunIteration(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("iteration: panic: %v", r)
		}
	}()

	span, ctx := opentracing.StartSpanFromContext(ctx, "iteration")
	defer span.Finish()

	users, err := s.users.ListEligible(ctx, s.now())
	if err != nil {
		logger.Error("iteration: list users: %v", err)
		return
	}
	if s.state != nil {
		s.state.TouchIteration(s.now())
	}
	if len(users) == 0 {
		return
	}

	parallel := s.cfg.Engine.MaxParallelUsers
	if parallel <= 0 {
		parallel = 1
	}
	sem := make(chan struct{}, parallel)

	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		sem <- struct{}{}
		go func(u *models.UserSettings) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("uid=%d: panic in user cycle: %v", u.UserID, r)
				}
			}()
			s.runUser(ctx, u)
		}(u)
	}
	wg.Wait()
}

func (s *Scheduler) runUser(ctx context.Context, u *models.UserSettings) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "user_cycle")
	span.SetTag("user_id", u.UserID)
	defer span.Finish()

	apiKey, apiSecret, err := u.Credentials()
	if err != nil {
		logger.Warn("uid=%d: bad credentials, skipping: %v", u.UserID, err)
		return
	}

	settings := models.ResolveSettings(u.Settings, s.cfg)
	ex := s.factory.ForUser(apiKey, apiSecret, settings.Testnet)

	watch := symbols.Resolve(ctx, ex, settings.Symbols)
	if len(watch) == 0 {
		logger.Warn("uid=%d: empty watchlist, skipping", u.UserID)
		return
	}

	// Баланс один раз на юзера: все символы цикла сайзятся от одного среза.
	balance, err := ex.BalanceUSDT(ctx)
	if err != nil {
		if errors.Is(err, exchange.ErrAuth) {
			logger.Warn("uid=%d: exchange rejected keys, skipping cycle: %v", u.UserID, err)
			return
		}
		// balance=0: открытия отсеются по размеру, закрытия от баланса не зависят
		logger.Error("uid=%d: fetch balance: %v", u.UserID, err)
		balance = 0
	}

	icfg := indicator.Config{
		RSIPeriod:  settings.RSIPeriod,
		FastMA:     settings.FastMA,
		SlowMA:     settings.SlowMA,
		MACDFast:   settings.MACDFast,
		MACDSlow:   settings.MACDSlow,
		MACDSignal: settings.MACDSignal,
	}
	params := strategy.Params{
		RSIOversold:   settings.RSIOversold,
		RSIOverbought: settings.RSIOverbought,
		RSIConfirm:    settings.RSIConfirm,
		MACDThreshold: settings.MACDThreshold,
	}

	for _, sym := range watch {
		s.runSymbol(ctx, u, sym, ex, settings, icfg, params, balance)
	}

	// Запись юзера переписывается после цикла, как в исходном json-сторе.
	if err := s.users.Save(ctx, u); err != nil {
		logger.Error("uid=%d: save user: %v", u.UserID, err)
	}
}

// runSymbol — один юнит (user, symbol). Ошибки и паники гасятся здесь:
// сосед по списку не должен страдать.
func (s *Scheduler) runSymbol(ctx context.Context, u *models.UserSettings, sym string,
	ex exchange.Exchange, settings models.EffectiveSettings,
	icfg indicator.Config, params strategy.Params, balance float64) {

	defer func() {
		if r := recover(); r != nil {
			logger.Error("uid=%d %s: panic in symbol unit: %v", u.UserID, sym, r)
		}
	}()

	candles, err := ex.FetchCandles(ctx, sym, s.cfg.Exchange.Timeframe, s.cfg.Exchange.CandleLimit)
	if err != nil {
		logger.Error("uid=%d %s: fetch candles: %v", u.UserID, sym, err)
		return
	}

	snap := indicator.Compute(models.Closes(candles), icfg)
	if snap.Price <= 0 {
		return
	}
	verdict := strategy.Evaluate(snap, params)

	res, err := s.manager.Apply(ctx, position.Request{
		UserID:   u.UserID,
		Symbol:   sym,
		Verdict:  verdict,
		Price:    snap.Price,
		Balance:  balance,
		Settings: settings,
		Exchange: ex,
	})
	if err != nil {
		logger.Error("uid=%d %s: apply verdict: %v", u.UserID, sym, err)
		return
	}

	switch {
	case res.Opened && res.Trade != nil:
		s.notifier.Sendf("🟢 BUY %s uid=%d qty=%v @ %.8f", sym, u.UserID, res.Trade.Qty, res.Trade.Price)
	case res.Closed && res.SilentClear:
		// пыль снята молча, в чат не шумим
	case res.Closed && res.Trade != nil:
		s.notifier.Sendf("🔴 SELL %s uid=%d qty=%v @ %.8f", sym, u.UserID, res.Trade.Qty, res.Trade.Price)
	}
}
