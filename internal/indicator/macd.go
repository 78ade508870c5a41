package indicator

// MACDHistSeries: macd = EMA(fast) - EMA(slow), signal = EMA(macd, signalSpan),
// hist = macd - signal. Дальше по пайплайну уходит только последний hist.
func MACDHistSeries(closes []float64, fast, slow, signalSpan int) (macd, signal, hist []float64) {
	emaFast := EMASeries(closes, fast)
	emaSlow := EMASeries(closes, slow)

	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = emaFast[i] - emaSlow[i]
	}

	signal = EMASeries(macd, signalSpan)

	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = macd[i] - signal[i]
	}
	return macd, signal, hist
}
