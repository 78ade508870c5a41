package exchange

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsPublicURL = "wss://stream.bybit.com/v5/public/linear"

// TickerCache — последняя цена по символам из публичного WS Bybit.
// Нужен только для health-отчётов; торговые решения ходят по свечам.
type TickerCache struct {
	mu     sync.RWMutex
	prices map[string]float64

	dialer *websocket.Dialer
}

func NewTickerCache() *TickerCache {
	return &TickerCache{
		prices: make(map[string]float64),
		dialer: &websocket.Dialer{},
	}
}

func (t *TickerCache) set(symbol string, price float64) {
	t.mu.Lock()
	t.prices[symbol] = price
	t.mu.Unlock()
}

func (t *TickerCache) LastPrice(symbol string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.prices[symbol]
}

func (t *TickerCache) Snapshot() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]float64, len(t.prices))
	for k, v := range t.prices {
		out[k] = v
	}
	return out
}

// Stream держит подписку на tickers.* с реконнектом, пока жив ctx.
func (t *TickerCache) Stream(ctx context.Context, symbols []string) {
	if len(symbols) == 0 {
		return
	}

	args := make([]string, 0, len(symbols))
	for _, s := range symbols {
		args = append(args, "tickers."+s)
	}

	go func() {
		retry := 0
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			conn, _, err := t.dialer.Dial(wsPublicURL, nil)
			if err != nil {
				retry++
				if retry > 8 {
					retry = 8
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Duration(300*retry) * time.Millisecond):
				}
				continue
			}
			retry = 0
			_ = conn.WriteJSON(map[string]any{"op": "subscribe", "args": args})

			stopPing := make(chan struct{})
			go func() {
				tk := time.NewTicker(20 * time.Second)
				defer tk.Stop()
				for {
					select {
					case <-stopPing:
						return
					case <-ctx.Done():
						return
					case <-tk.C:
						_ = conn.WriteJSON(map[string]string{"op": "ping"})
					}
				}
			}()

			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					close(stopPing)
					_ = conn.Close()
					break
				}
				var frame struct {
					Topic string `json:"topic"`
					Data  struct {
						Symbol    string `json:"symbol"`
						LastPrice string `json:"lastPrice"`
					} `json:"data"`
				}
				if err := json.Unmarshal(msg, &frame); err != nil {
					continue
				}
				if !strings.HasPrefix(frame.Topic, "tickers.") || frame.Data.LastPrice == "" {
					continue
				}
				if px, err := strconv.ParseFloat(frame.Data.LastPrice, 64); err == nil && px > 0 {
					t.set(frame.Data.Symbol, px)
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}()
}
