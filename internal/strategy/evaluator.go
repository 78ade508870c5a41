package strategy

import (
	"math"

	"trade_engine/internal/indicator"
)

type Verdict string

const (
	VerdictNone  Verdict = ""
	VerdictOpen  Verdict = "OPEN"
	VerdictClose Verdict = "CLOSE"
)

// Params — пороги эвалюатора на один вызов.
type Params struct {
	RSIOversold   float64
	RSIOverbought float64
	RSIConfirm    int
	MACDThreshold float64
}

// Evaluate — чистая функция: снапшот индикаторов + пороги -> вердикт.
// Вход — строгое AND (подтверждённый RSI, тренд вверх, MACD выше порога).
// Выход — OR более слабых условий: выходим раньше, чем входим.
// Эта асимметрия сознательная, не "чинить".
func Evaluate(snap indicator.Snapshot, p Params) Verdict {
	confirmBuy, confirmSell := confirm(snap.RSI, p.RSIConfirm, p.RSIOversold, p.RSIOverbought)

	buyOK := confirmBuy && snap.TrendUp() && snap.MACDHist > p.MACDThreshold
	sellOK := confirmSell || !snap.TrendUp() || snap.MACDHist < -p.MACDThreshold

	if buyOK {
		return VerdictOpen
	}
	if sellOK {
		return VerdictClose
	}
	return VerdictNone
}

// confirm: последние n значений RSI все ниже oversold (buy) / все выше
// overbought (sell). Одно шумное значение в окне гасит подтверждение.
// Если валидных (не NaN) значений меньше n — оба false: на недоборе данных
// не торгуем.
func confirm(rsi []float64, n int, oversold, overbought float64) (buy, sell bool) {
	if n <= 0 {
		n = 1
	}
	if len(rsi) < n {
		return false, false
	}

	buy, sell = true, true
	for _, v := range rsi[len(rsi)-n:] {
		if math.IsNaN(v) {
			return false, false
		}
		if v >= oversold {
			buy = false
		}
		if v <= overbought {
			sell = false
		}
	}
	return buy, sell
}
