package models

import (
	"strconv"
	"strings"

	"trade_engine/internal/modules/config"
)

// EffectiveSettings — полностью заполненные торговые параметры юзера на один
// цикл: дефолты из конфига, поверх — то, что юзер переопределил у себя.
type EffectiveSettings struct {
	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64
	RSIConfirm    int

	FastMA int
	SlowMA int

	MACDFast      int
	MACDSlow      int
	MACDSignal    int
	MACDThreshold float64

	OrderPercent float64
	OrderSizeUSD float64
	MinNotional  float64
	QtyPrecision int

	SilentDustClear bool

	Testnet bool
	Symbols []string
}

// ResolveSettings считается один раз на юзера на итерацию.
// Ключи — как в исходной системе, значения приводим из json-типов.
func ResolveSettings(raw map[string]any, cfg *config.Config) EffectiveSettings {
	d := cfg.Defaults
	es := EffectiveSettings{
		RSIPeriod:     d.RSIPeriod,
		RSIOversold:   d.RSIOversold,
		RSIOverbought: d.RSIOverbought,
		RSIConfirm:    d.RSIConfirm,
		FastMA:        d.FastMA,
		SlowMA:        d.SlowMA,
		MACDFast:      d.MACDFast,
		MACDSlow:      d.MACDSlow,
		MACDSignal:    d.MACDSignal,
		MACDThreshold: d.MACDThreshold,
		OrderPercent:  d.OrderPercent,
		OrderSizeUSD:  d.OrderSizeUSD,
		MinNotional:   d.MinNotional,
		QtyPrecision:  d.QtyPrecision,

		SilentDustClear: d.SilentDustClear,

		Testnet: cfg.Exchange.Testnet,
		Symbols: cfg.Symbols,
	}
	if raw == nil {
		return es
	}

	es.RSIPeriod = intFrom(raw, "RSI_PERIOD", es.RSIPeriod)
	es.RSIOversold = floatFrom(raw, "RSI_OVERSOLD", es.RSIOversold)
	es.RSIOverbought = floatFrom(raw, "RSI_OVERBOUGHT", es.RSIOverbought)
	es.RSIConfirm = intFrom(raw, "RSI_CONFIRM", es.RSIConfirm)
	es.FastMA = intFrom(raw, "FAST_MA", es.FastMA)
	es.SlowMA = intFrom(raw, "SLOW_MA", es.SlowMA)
	es.MACDFast = intFrom(raw, "MACD_FAST", es.MACDFast)
	es.MACDSlow = intFrom(raw, "MACD_SLOW", es.MACDSlow)
	es.MACDSignal = intFrom(raw, "MACD_SIGNAL", es.MACDSignal)
	es.MACDThreshold = floatFrom(raw, "MACD_THRESHOLD", es.MACDThreshold)
	es.OrderPercent = floatFrom(raw, "ORDER_PERCENT", es.OrderPercent)
	es.OrderSizeUSD = floatFrom(raw, "ORDER_SIZE_USD", es.OrderSizeUSD)
	es.MinNotional = floatFrom(raw, "MIN_NOTIONAL", es.MinNotional)
	es.QtyPrecision = intFrom(raw, "QTY_PRECISION", es.QtyPrecision)
	es.Testnet = boolFrom(raw, "TESTNET", es.Testnet)

	if syms := symbolsFrom(raw["symbols"]); len(syms) > 0 {
		es.Symbols = syms
	}

	return es
}

func floatFrom(m map[string]any, key string, def float64) float64 {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	}
	return def
}

func intFrom(m map[string]any, key string, def int) int {
	f := floatFrom(m, key, float64(def))
	return int(f)
}

func boolFrom(m map[string]any, key string, def bool) bool {
	v, ok := m[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1"
	case float64:
		return t != 0
	}
	return def
}

// symbolsFrom принимает и список, и строку "BTC/USDT, ETHUSDT".
func symbolsFrom(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
