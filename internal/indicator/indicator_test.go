package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSISeriesWarmupIsNaN(t *testing.T) {
	out := RSISeries([]float64{1, 2, 3, 4, 5}, 3)
	require.Len(t, out, 5)
	for i := 0; i < 3; i++ {
		assert.True(t, math.IsNaN(out[i]), "index %d", i)
	}
	assert.False(t, math.IsNaN(out[3]))
	assert.False(t, math.IsNaN(out[4]))
}

func TestRSISeriesShortInputAllNaN(t *testing.T) {
	out := RSISeries([]float64{1, 2}, 5)
	for i, v := range out {
		assert.True(t, math.IsNaN(v), "index %d", i)
	}
}

func TestRSISeriesPureUptrendIs100(t *testing.T) {
	out := RSISeries([]float64{1, 2, 3}, 2)
	assert.Equal(t, 100.0, out[2])
}

func TestRSISeriesPureDowntrendIsZero(t *testing.T) {
	out := RSISeries([]float64{3, 2, 1}, 2)
	assert.Equal(t, 0.0, out[2])
}

func TestRSISeriesFlatIs50(t *testing.T) {
	// полностью плоский ряд: avgGain и avgLoss оба нули
	out := RSISeries([]float64{5, 5, 5, 5}, 2)
	assert.Equal(t, 50.0, out[2])
	assert.Equal(t, 50.0, out[3])
}

func TestRSISeriesWilderSmoothing(t *testing.T) {
	// period=2: после [1,2,3] avgGain=1, avgLoss=0; шаг на 2:
	// avgGain=(1*1+0)/2=0.5, avgLoss=(0*1+1)/2=0.5 -> RS=1 -> RSI=50
	out := RSISeries([]float64{1, 2, 3, 2}, 2)
	assert.InDelta(t, 50.0, out[3], 1e-9)
}

func TestLastValid(t *testing.T) {
	assert.Equal(t, 10.0, LastValid([]float64{math.NaN(), 10, math.NaN()}, 99))
	assert.Equal(t, 99.0, LastValid([]float64{math.NaN(), math.NaN()}, 99))
	assert.Equal(t, 99.0, LastValid(nil, 99))
}

func TestEMASeriesSeedAndAlpha(t *testing.T) {
	// span=3 -> alpha=0.5, затравка первым значением
	out := EMASeries([]float64{2, 4}, 3)
	require.Len(t, out, 2)
	assert.Equal(t, 2.0, out[0])
	assert.InDelta(t, 3.0, out[1], 1e-9)
}

func TestEMAConstantSeries(t *testing.T) {
	assert.InDelta(t, 7.0, EMA([]float64{7, 7, 7, 7}, 5), 1e-9)
}

func TestEMAEmpty(t *testing.T) {
	assert.Equal(t, 0.0, EMA(nil, 5))
}

func TestMACDHistConstantSeriesIsZero(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	macd, signal, hist := MACDHistSeries(closes, 12, 26, 9)
	require.Len(t, hist, 40)
	for i := range closes {
		assert.InDelta(t, 0.0, macd[i], 1e-9)
		assert.InDelta(t, 0.0, signal[i], 1e-9)
		assert.InDelta(t, 0.0, hist[i], 1e-9)
	}
}

func TestMACDHistPositiveOnUptrend(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	_, _, hist := MACDHistSeries(closes, 12, 26, 9)
	assert.Greater(t, hist[len(hist)-1], 0.0)
}

func TestComputeSnapshot(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	cfg := Config{RSIPeriod: 14, FastMA: 9, SlowMA: 21, MACDFast: 12, MACDSlow: 26, MACDSignal: 9}

	snap := Compute(closes, cfg)
	assert.Equal(t, closes[len(closes)-1], snap.Price)
	assert.Len(t, snap.RSI, len(closes))
	assert.True(t, snap.TrendUp(), "на ап-тренде быстрая EMA выше медленной")
	assert.Greater(t, snap.MACDHist, 0.0)
}

func TestComputeEmptyInput(t *testing.T) {
	snap := Compute(nil, Config{RSIPeriod: 14, FastMA: 9, SlowMA: 21, MACDFast: 12, MACDSlow: 26, MACDSignal: 9})
	assert.Equal(t, 0.0, snap.Price)
}
