package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"trade_engine/internal/exchange"
	"trade_engine/internal/modules/config"
	"trade_engine/internal/notify"
	"trade_engine/internal/position"
	"trade_engine/pkg/logger"
)

// State — живость процесса для health-отчёта.
type State struct {
	startedAt time.Time

	lastIterUnix atomic.Int64 // unix seconds
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

func (s *State) TouchIteration(t time.Time) { s.lastIterUnix.Store(t.Unix()) }

func (s *State) LastIteration() time.Time {
	u := s.lastIterUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }

// Health периодически шлёт сводку в чат: живость, юзеры, позиции, цены из WS.
type Health struct {
	cfg      *config.Config
	users    UserStore
	book     *position.Book
	tickers  *exchange.TickerCache
	notifier notify.Notifier
	state    *State
}

func NewHealth(cfg *config.Config, users UserStore, book *position.Book,
	tickers *exchange.TickerCache, notifier notify.Notifier, state *State) *Health {
	return &Health{
		cfg:      cfg,
		users:    users,
		book:     book,
		tickers:  tickers,
		notifier: notifier,
		state:    state,
	}
}

func (h *Health) Run(ctx context.Context) {
	interval := h.cfg.Engine.HealthInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.report(ctx)
		}
	}
}

func (h *Health) report(ctx context.Context) {
	eligible := 0
	if users, err := h.users.ListEligible(ctx, time.Now()); err == nil {
		eligible = len(users)
	} else {
		logger.Error("health: list users: %v", err)
	}

	lastIter := "нет"
	if t := h.state.LastIteration(); !t.IsZero() {
		lastIter = time.Since(t).Round(time.Second).String() + " назад"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "❤️ Движок жив. uptime=%s\n", h.state.Uptime().Round(time.Second))
	fmt.Fprintf(&b, "Юзеров активных: %d, позиций открыто: %d\n", eligible, h.book.OpenCount(ctx))
	fmt.Fprintf(&b, "Последняя итерация: %s", lastIter)

	if prices := h.tickers.Snapshot(); len(prices) > 0 {
		syms := make([]string, 0, len(prices))
		for s := range prices {
			syms = append(syms, s)
		}
		sort.Strings(syms)
		b.WriteString("\nЦены:")
		for _, s := range syms {
			fmt.Fprintf(&b, "\n- %s: %.8g", s, prices[s])
		}
	}

	h.notifier.Send(b.String())
}
