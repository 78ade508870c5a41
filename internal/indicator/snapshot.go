package indicator

// Config — периоды и спаны, с которыми считается один снапшот.
type Config struct {
	RSIPeriod  int
	FastMA     int
	SlowMA     int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

// Snapshot — всё, что нужно эвалюатору сигнала по одному символу.
// На коротких рядах значения best-effort, а не ошибка: хвост RSI будет NaN,
// EMA затравлена первыми точками. Решает эвалюатор, доверять ли им.
type Snapshot struct {
	Price float64

	RSI     []float64 // весь ряд, NaN в начале окна
	EMAFast float64
	EMASlow float64

	MACDHist float64
}

func Compute(closes []float64, cfg Config) Snapshot {
	snap := Snapshot{}
	if len(closes) == 0 {
		return snap
	}

	snap.Price = closes[len(closes)-1]
	snap.RSI = RSISeries(closes, cfg.RSIPeriod)
	snap.EMAFast = EMA(closes, cfg.FastMA)
	snap.EMASlow = EMA(closes, cfg.SlowMA)

	_, _, hist := MACDHistSeries(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	snap.MACDHist = hist[len(hist)-1]

	return snap
}

// TrendUp: быстрая EMA выше медленной.
func (s Snapshot) TrendUp() bool {
	return s.EMAFast > s.EMASlow
}
