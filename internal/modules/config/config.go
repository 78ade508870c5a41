package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	databaseDSN       = "DATABASE_DSN"
)

// Config — сервисная конфигурация движка (итерация, биржа, нотификации, сторы).
type Config struct {
	Telegram struct {
		Token  string
		ChatID int64 // отдельный чат для health-сообщений, 0 = шлём самому юзеру
	}
	DB string // postgres DSN; пусто => файловый стор

	Store struct {
		Dir string // каталог для users.json / trades.json / positions.json
	}

	Engine struct {
		Interval         time.Duration // пауза между итерациями
		HealthInterval   time.Duration
		MaxParallelUsers int // бюджет горутин на итерацию
		DryRun           bool
	}

	Exchange struct {
		Timeframe      string // интервал свечей Bybit ("5" = 5m)
		CandleLimit    int
		Testnet        bool
		RequestsPerSec int
		Timeout        time.Duration
	}

	Symbols []string // общий watchlist, если у юзера не задан свой

	Jaeger struct {
		Host string
		Port int
	}

	Defaults TradingDefaults
}

// TradingDefaults — общесистемная таблица дефолтов торговых параметров.
// Per-user настройки перекрывают её по ключам (см. models.ResolveSettings).
type TradingDefaults struct {
	RSIPeriod     int     `yaml:"rsi_period"`
	RSIOversold   float64 `yaml:"rsi_oversold"`
	RSIOverbought float64 `yaml:"rsi_overbought"`
	RSIConfirm    int     `yaml:"rsi_confirm"`

	FastMA int `yaml:"fast_ma"`
	SlowMA int `yaml:"slow_ma"`

	MACDFast      int     `yaml:"macd_fast"`
	MACDSlow      int     `yaml:"macd_slow"`
	MACDSignal    int     `yaml:"macd_signal"`
	MACDThreshold float64 `yaml:"macd_threshold"`

	OrderPercent float64 `yaml:"order_percent"`
	OrderSizeUSD float64 `yaml:"order_size_usd"`
	MinNotional  float64 `yaml:"min_notional"`
	QtyPrecision int     `yaml:"qty_precision"`

	// Понижать ли позицию молча, когда notional на выходе меньше минимального.
	// Поведение исходной системы; выключается только осознанно.
	SilentDustClear bool `yaml:"silent_dust_clear"`
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("engine.interval", "60s")
	v.SetDefault("engine.health_interval", "5m")
	v.SetDefault("engine.max_parallel_users", 4)
	v.SetDefault("engine.dry_run", true)
	v.SetDefault("exchange.timeframe", "5")
	v.SetDefault("exchange.candle_limit", 300)
	v.SetDefault("exchange.testnet", false)
	v.SetDefault("exchange.requests_per_sec", 5)
	v.SetDefault("exchange.timeout", "12s")
	v.SetDefault("symbols", "BTCUSDT,ETHUSDT")
	v.SetDefault("store.dir", "data")
	v.SetDefault("jaeger.host", "")
	v.SetDefault("jaeger.port", 6831)

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	v.SetConfigFile("configs/" + configFileName)
	if err := v.ReadInConfig(); err != nil {
		// конфиг-файл опционален: всё можно задать через ENV
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrap(err, "read config file")
		}
	}

	cfg := &Config{}
	cfg.DB = v.GetString("db_dsn")
	cfg.Store.Dir = v.GetString("store.dir")
	cfg.Engine.Interval = v.GetDuration("engine.interval")
	cfg.Engine.HealthInterval = v.GetDuration("engine.health_interval")
	cfg.Engine.MaxParallelUsers = v.GetInt("engine.max_parallel_users")
	cfg.Engine.DryRun = v.GetBool("engine.dry_run")
	cfg.Exchange.Timeframe = v.GetString("exchange.timeframe")
	cfg.Exchange.CandleLimit = v.GetInt("exchange.candle_limit")
	cfg.Exchange.Testnet = v.GetBool("exchange.testnet")
	cfg.Exchange.RequestsPerSec = v.GetInt("exchange.requests_per_sec")
	cfg.Exchange.Timeout = v.GetDuration("exchange.timeout")
	cfg.Telegram.Token = v.GetString("telegram.token")
	cfg.Telegram.ChatID = v.GetInt64("telegram.chat_id")
	cfg.Jaeger.Host = v.GetString("jaeger.host")
	cfg.Jaeger.Port = v.GetInt("jaeger.port")

	for _, s := range strings.Split(v.GetString("symbols"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			cfg.Symbols = append(cfg.Symbols, s)
		}
	}

	// ENV с приоритетом над файлом, как в сервис-конфиге бота
	if token := os.Getenv(tokenTelegramENV); token != "" {
		cfg.Telegram.Token = token
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		cfg.DB = dsn
	}
	if v := os.Getenv("DRY_RUN"); v != "" {
		cfg.Engine.DryRun = v == "true" || v == "1"
	}

	defaults, err := loadDefaults("configs/defaults.yaml")
	if err != nil {
		return nil, err
	}
	cfg.Defaults = defaults

	if cfg.Engine.Interval < time.Second {
		cfg.Engine.Interval = time.Second
	}

	return cfg, nil
}

// loadDefaults: сначала ENV (ключи исходной системы), затем yaml поверх.
func loadDefaults(path string) (TradingDefaults, error) {
	d := TradingDefaults{
		RSIPeriod:     intFromEnv("RSI_PERIOD", 14),
		RSIOversold:   floatFromEnv("RSI_OVERSOLD", 35),
		RSIOverbought: floatFromEnv("RSI_OVERBOUGHT", 65),
		RSIConfirm:    intFromEnv("RSI_CONFIRM", 1),
		FastMA:        intFromEnv("FAST_MA", 9),
		SlowMA:        intFromEnv("SLOW_MA", 21),
		MACDFast:      intFromEnv("MACD_FAST", 12),
		MACDSlow:      intFromEnv("MACD_SLOW", 26),
		MACDSignal:    intFromEnv("MACD_SIGNAL", 9),
		MACDThreshold: floatFromEnv("MACD_THRESHOLD", 0.0),
		OrderPercent:  floatFromEnv("ORDER_PERCENT", 5),
		OrderSizeUSD:  floatFromEnv("ORDER_SIZE_USD", 0),
		MinNotional:   floatFromEnv("MIN_NOTIONAL", 5),
		QtyPrecision:  intFromEnv("QTY_PRECISION", 6),

		SilentDustClear: boolFromEnv("SILENT_DUST_CLEAR", true),
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return d, errors.Wrapf(err, "open %s", path)
	}
	defer func() {
		_ = file.Close()
	}()

	if err := yaml.NewDecoder(file).Decode(&d); err != nil {
		return d, errors.Wrapf(err, "decode %s", path)
	}
	return d, nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func boolFromEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "1" || v == "true" || v == "TRUE" {
			return true
		}
		if v == "0" || v == "false" || v == "FALSE" {
			return false
		}
	}
	return def
}
