package engine

import (
	"context"

	"go.uber.org/fx"

	"trade_engine/internal/exchange"
	"trade_engine/internal/modules/config"
	"trade_engine/internal/notify"
	"trade_engine/internal/symbols"
)

func Module() fx.Option {
	return fx.Module("engine",
		fx.Provide(
			NewState,
			NewScheduler,
			NewHealth,
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, s *Scheduler, h *Health,
			tickers *exchange.TickerCache, notifier notify.Notifier) {

			var cancel context.CancelFunc
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					runCtx, c := context.WithCancel(context.Background())
					cancel = c

					tickers.Stream(runCtx, symbols.NormalizeAll(cfg.Symbols))
					if tg, ok := notifier.(*notify.Telegram); ok {
						if err := tg.Start(runCtx); err != nil {
							return err
						}
					}

					go s.Run(runCtx)
					go h.Run(runCtx)
					return nil
				},
				OnStop: func(context.Context) error {
					if cancel != nil {
						cancel()
					}
					return nil
				},
			})
		}),
	)
}
