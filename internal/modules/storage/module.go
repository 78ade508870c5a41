package storage

import (
	"context"

	"go.uber.org/fx"

	"trade_engine/internal/engine"
	"trade_engine/internal/exchange"
	"trade_engine/internal/models"
	"trade_engine/internal/modules/config"
	"trade_engine/internal/notify"
	"trade_engine/internal/position"
	"trade_engine/internal/store/file"
	"trade_engine/internal/store/pg"
	"trade_engine/pkg/db"
	"trade_engine/pkg/logger"
)

// TradeLog — полный журнал сделок: запись для менеджера позиций, чтение
// для /trades в телеграме.
type TradeLog interface {
	AppendTrade(ctx context.Context, trade models.TradeRecord) error
	TradesForUser(ctx context.Context, userID int64, limit int) ([]models.TradeRecord, error)
}

// Module собирает весь persistence- и IO-слой: сторы (pg или файлы),
// книгу позиций, биржевой транспорт и нотифайер.
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(
			newStores,
			newBook,
			newManager,
			newTransport,
			newFactory,
			newExchangeFactory,
			exchange.NewTickerCache,
			newNotifier,
		),
	)
}

type stores struct {
	fx.Out

	Users     engine.UserStore
	Positions position.Store
	Trades    TradeLog
}

// newStores: DSN задан — едем на postgres, иначе json-файлы рядом с процессом.
func newStores(ctx context.Context, cfg *config.Config, tm *db.PgTxManager) (stores, error) {
	if tm != nil {
		if err := pg.EnsureSchema(ctx, tm); err != nil {
			return stores{}, err
		}
		logger.Info("storage: postgres backend")
		return stores{
			Users:     pg.NewUsers(tm),
			Positions: pg.NewPositions(tm),
			Trades:    pg.NewTrades(tm),
		}, nil
	}

	logger.Info("storage: file backend, dir=%s", cfg.Store.Dir)
	return stores{
		Users:     file.NewUsers(cfg.Store.Dir),
		Positions: file.NewPositions(cfg.Store.Dir),
		Trades:    file.NewTrades(cfg.Store.Dir),
	}, nil
}

func newBook(store position.Store) *position.Book {
	return position.NewBook(store)
}

func newManager(cfg *config.Config, book *position.Book, trades TradeLog) *position.Manager {
	return position.NewManager(book, trades, cfg.Engine.DryRun)
}

func newTransport(cfg *config.Config) *exchange.Transport {
	return exchange.NewTransport(exchange.TransportOptions{
		Timeout:        cfg.Exchange.Timeout,
		RequestsPerSec: cfg.Exchange.RequestsPerSec,
	})
}

func newFactory(tr *exchange.Transport) *exchange.Factory {
	return exchange.NewFactory(tr, false)
}

func newExchangeFactory(f *exchange.Factory) engine.ExchangeFactory {
	return f
}

// newNotifier: без телеграм-токена сообщения уходят в stdout — локальная
// отладка и DRY_RUN не требуют бота.
func newNotifier(cfg *config.Config, book *position.Book, trades TradeLog) (notify.Notifier, error) {
	if cfg.Telegram.Token == "" {
		logger.Info("notify: stdout backend (no telegram token)")
		return notify.NewStdout(), nil
	}
	return notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, book, trades)
}
