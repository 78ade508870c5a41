package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade_engine/internal/modules/config"
)

func TestUserEligible(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Hour)

	u := &UserSettings{UserID: 1, APIKey: EncodeKey("k"), APISecret: EncodeKey("s"), SubUntil: &future}
	assert.True(t, u.Eligible(now))

	expired := *u
	expired.SubUntil = &past
	assert.False(t, expired.Eligible(now))

	noSub := *u
	noSub.SubUntil = nil
	assert.False(t, noSub.Eligible(now))

	noKeys := *u
	noKeys.APISecret = ""
	assert.False(t, noKeys.Eligible(now))

	var nilUser *UserSettings
	assert.False(t, nilUser.Eligible(now))
}

func TestCredentialsRoundTrip(t *testing.T) {
	u := &UserSettings{APIKey: EncodeKey(" my-key "), APISecret: EncodeKey("my-secret")}
	key, secret, err := u.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "my-key", key)
	assert.Equal(t, "my-secret", secret)
}

func TestCredentialsErrors(t *testing.T) {
	u := &UserSettings{APIKey: "%%%not-base64%%%", APISecret: EncodeKey("s")}
	_, _, err := u.Credentials()
	assert.Error(t, err)

	empty := &UserSettings{}
	_, _, err = empty.Credentials()
	assert.Error(t, err)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Defaults = config.TradingDefaults{
		RSIPeriod:     14,
		RSIOversold:   35,
		RSIOverbought: 65,
		RSIConfirm:    1,
		FastMA:        9,
		SlowMA:        21,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
		OrderPercent:  5,
		MinNotional:   5,
		QtyPrecision:  6,

		SilentDustClear: true,
	}
	cfg.Exchange.Testnet = false
	cfg.Symbols = []string{"BTCUSDT"}
	return cfg
}

func TestResolveSettingsDefaults(t *testing.T) {
	es := ResolveSettings(nil, testConfig())
	assert.Equal(t, 14, es.RSIPeriod)
	assert.Equal(t, 35.0, es.RSIOversold)
	assert.Equal(t, 5.0, es.OrderPercent)
	assert.True(t, es.SilentDustClear)
	assert.False(t, es.Testnet)
	assert.Equal(t, []string{"BTCUSDT"}, es.Symbols)
}

func TestResolveSettingsOverrides(t *testing.T) {
	raw := map[string]any{
		"RSI_PERIOD":     float64(7), // json-числа приходят как float64
		"RSI_OVERSOLD":   "30",       // и как строки из старых записей
		"ORDER_SIZE_USD": 25,
		"TESTNET":        true,
		"symbols":        []any{"eth/usdt", "SOLUSDT"},
	}
	es := ResolveSettings(raw, testConfig())

	assert.Equal(t, 7, es.RSIPeriod)
	assert.Equal(t, 30.0, es.RSIOversold)
	assert.Equal(t, 25.0, es.OrderSizeUSD)
	assert.True(t, es.Testnet)
	assert.Equal(t, []string{"eth/usdt", "SOLUSDT"}, es.Symbols)

	// незнакомое значение неправильного типа падает в дефолт
	es = ResolveSettings(map[string]any{"RSI_PERIOD": []int{1}}, testConfig())
	assert.Equal(t, 14, es.RSIPeriod)
}

func TestResolveSettingsSymbolsFromString(t *testing.T) {
	es := ResolveSettings(map[string]any{"symbols": "BTC/USDT, ethusdt ,"}, testConfig())
	assert.Equal(t, []string{"BTC/USDT", "ethusdt"}, es.Symbols)
}

func TestCloses(t *testing.T) {
	candles := []Candle{{Close: 1}, {Close: 2.5}}
	assert.Equal(t, []float64{1, 2.5}, Closes(candles))
	assert.Empty(t, Closes(nil))
}
