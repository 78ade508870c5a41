package indicator

// EMASeries — экспоненциальное среднее с alpha = 2/(span+1), затравка первым
// значением ряда (семантика pandas ewm adjust=False). Одно значение на точку.
func EMASeries(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	if span < 1 {
		span = 1
	}
	alpha := 2.0 / float64(span+1)

	ema := values[0]
	out[0] = ema
	for i := 1; i < len(values); i++ {
		ema = ema + alpha*(values[i]-ema)
		out[i] = ema
	}
	return out
}

// EMA — последняя точка EMASeries; для решений нужна только она.
func EMA(values []float64, span int) float64 {
	s := EMASeries(values, span)
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}
