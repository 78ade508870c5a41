package symbols

import (
	"context"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"trade_engine/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"BTC/USDT":  "BTCUSDT",
		"btc-usdt":  "BTCUSDT",
		" BTCUSDT ": "BTCUSDT",
		"eth_usdt":  "ETHUSDT",
		"1000PEPE!": "1000PEPE",
		"":          "",
		"///":       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestNormalizeAllDedupesPreservingOrder(t *testing.T) {
	got := NormalizeAll([]string{"btc/usdt", "ETHUSDT", "BTC-USDT", "", "eth_usdt", "XRPUSDT"})
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "XRPUSDT"}, got)
}

type fakeValidator struct {
	valid map[string]bool
	err   error
	calls []string
}

func (f *fakeValidator) ValidateSymbol(_ context.Context, sym string) (bool, error) {
	f.calls = append(f.calls, sym)
	if f.err != nil {
		return false, f.err
	}
	return f.valid[sym], nil
}

func TestResolveFiltersInvalid(t *testing.T) {
	v := &fakeValidator{valid: map[string]bool{"BTCUSDT": true}}
	got := Resolve(context.Background(), v, []string{"btc/usdt", "NOPEUSDT"})
	assert.Equal(t, []string{"BTCUSDT"}, got)
	assert.Equal(t, []string{"BTCUSDT", "NOPEUSDT"}, v.calls)
}

func TestResolveFallsBackWhenNothingValidates(t *testing.T) {
	// валидация лежит целиком — работаем по нормализованному списку
	v := &fakeValidator{err: errors.New("api down")}
	got := Resolve(context.Background(), v, []string{"btc/usdt", "eth-usdt"})
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, got)
}

func TestResolveEmptyInput(t *testing.T) {
	v := &fakeValidator{}
	assert.Nil(t, Resolve(context.Background(), v, nil))
	assert.Nil(t, Resolve(context.Background(), v, []string{"", "///"}))
	assert.Empty(t, v.calls)
}
