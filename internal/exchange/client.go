package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"trade_engine/internal/models"
)

const (
	mainnetURL = "https://api.bybit.com"
	testnetURL = "https://api-testnet.bybit.com"

	categoryLinear = "linear"
)

// Client — лёгкий клиент Bybit v5 под один набор ключей. Сетевых вызовов в
// конструкторе нет; все вызовы идут через общий Transport.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	tr        *Transport
}

// Factory штампует per-user клиентов поверх общего транспорта.
type Factory struct {
	tr       *Transport
	disabled bool
}

func NewFactory(tr *Transport, disabled bool) *Factory {
	return &Factory{tr: tr, disabled: disabled}
}

// ForUser: клиент с ключами юзера. При выключенной бирже — заглушка Disabled.
func (f *Factory) ForUser(apiKey, apiSecret string, testnet bool) Exchange {
	if f == nil || f.disabled || f.tr == nil {
		return Disabled{}
	}
	return NewClient(apiKey, apiSecret, testnet, f.tr)
}

// Public — клиент без ключей для публичных вызовов (валидация символов).
func (f *Factory) Public(testnet bool) Exchange {
	return f.ForUser("", "", testnet)
}

func NewClient(apiKey, apiSecret string, testnet bool, tr *Transport) *Client {
	base := mainnetURL
	if testnet {
		base = testnetURL
	}
	return &Client{
		baseURL:   base,
		apiKey:    strings.TrimSpace(apiKey),
		apiSecret: strings.TrimSpace(apiSecret),
		tr:        tr,
	}
}

// sign — HMAC-SHA256 по отсортированной query-строке.
func (c *Client) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(strings.Join(parts, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) withAuth(params map[string]string) map[string]string {
	params["api_key"] = c.apiKey
	params["timestamp"] = strconv.FormatInt(time.Now().UnixMilli(), 10)
	params["sign"] = c.sign(params)
	return params
}

type apiResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// Коды Bybit, означающие проблему с ключами/правами, а не с данными.
func authCode(code int) bool {
	switch code {
	case 10003, 10004, 10005, 10010, 33004:
		return true
	}
	return false
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, auth bool) (*apiResponse, error) {
	if auth {
		if c.apiKey == "" || c.apiSecret == "" {
			return nil, ErrAuth
		}
		params = c.withAuth(params)
	}

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.tr.DoRetry(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	return decodeResponse(path, resp)
}

func (c *Client) post(ctx context.Context, path string, params map[string]string) (*apiResponse, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return nil, ErrAuth
	}
	body, err := json.Marshal(c.withAuth(params))
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	// ордера не ретраим: повтор после таймаута может задублировать сделку
	resp, err := c.tr.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	return decodeResponse(path, resp)
}

func decodeResponse(path string, resp *http.Response) (*apiResponse, error) {
	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: http %d: %s", path, resp.StatusCode, truncate(rb, 200))
	}

	var out apiResponse
	if err := json.Unmarshal(rb, &out); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", path, err)
	}
	if out.RetCode != 0 {
		if authCode(out.RetCode) {
			return nil, fmt.Errorf("%s: code=%d msg=%s: %w", path, out.RetCode, out.RetMsg, ErrAuth)
		}
		return nil, fmt.Errorf("%s: code=%d msg=%s", path, out.RetCode, out.RetMsg)
	}
	return &out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// FetchCandles — /v5/market/kline. Bybit отдаёт свечи новые -> старые,
// разворачиваем в хронологический порядок.
func (c *Client) FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	resp, err := c.get(ctx, "/v5/market/kline", map[string]string{
		"category": categoryLinear,
		"symbol":   symbol,
		"interval": interval,
		"limit":    strconv.Itoa(limit),
	}, false)
	if err != nil {
		return nil, err
	}

	var result struct {
		List [][]string `json:"list"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("kline decode: %w", err)
	}
	if len(result.List) == 0 {
		return nil, fmt.Errorf("kline %s: empty response", symbol)
	}

	out := make([]models.Candle, 0, len(result.List))
	for i := len(result.List) - 1; i >= 0; i-- {
		row := result.List[i]
		if len(row) < 6 {
			continue
		}
		ms, _ := strconv.ParseInt(row[0], 10, 64)
		cd := models.Candle{Start: time.UnixMilli(ms)}
		cd.Open, _ = strconv.ParseFloat(row[1], 64)
		cd.High, _ = strconv.ParseFloat(row[2], 64)
		cd.Low, _ = strconv.ParseFloat(row[3], 64)
		cd.Close, _ = strconv.ParseFloat(row[4], 64)
		cd.Volume, _ = strconv.ParseFloat(row[5], 64)
		if cd.Close <= 0 {
			continue
		}
		out = append(out, cd)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("kline %s: no usable close prices", symbol)
	}
	return out, nil
}

// BalanceUSDT — /v5/account/wallet-balance, accountType=UNIFIED.
func (c *Client) BalanceUSDT(ctx context.Context) (float64, error) {
	resp, err := c.get(ctx, "/v5/account/wallet-balance", map[string]string{
		"accountType": "UNIFIED",
	}, true)
	if err != nil {
		return 0, err
	}

	var result struct {
		List []struct {
			Coin []struct {
				Coin             string `json:"coin"`
				AvailableToTrade string `json:"availableToTrade"`
				AvailableBalance string `json:"availableBalance"`
				WalletBalance    string `json:"walletBalance"`
			} `json:"coin"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return 0, fmt.Errorf("wallet-balance decode: %w", err)
	}

	for _, acc := range result.List {
		for _, coin := range acc.Coin {
			if coin.Coin != "USDT" {
				continue
			}
			for _, raw := range []string{coin.AvailableToTrade, coin.AvailableBalance, coin.WalletBalance} {
				if raw == "" {
					continue
				}
				if f, err := strconv.ParseFloat(raw, 64); err == nil {
					return f, nil
				}
			}
		}
	}
	return 0, nil
}

// PlaceOrder — рыночный ордер /v5/order/create. Возвращает сырой ответ —
// он уходит в леджер как есть.
func (c *Client) PlaceOrder(ctx context.Context, side models.TradeSide, qty float64, symbol string) (any, error) {
	bybitSide := "Buy"
	if side == models.TradeSell {
		bybitSide = "Sell"
	}

	resp, err := c.post(ctx, "/v5/order/create", map[string]string{
		"category":  categoryLinear,
		"symbol":    symbol,
		"side":      bybitSide,
		"orderType": "Market",
		"qty":       strconv.FormatFloat(qty, 'f', -1, 64),
	})
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return map[string]any{"retMsg": resp.RetMsg}, nil
	}
	return raw, nil
}

// ValidateSymbol — публичный /v5/market/instruments-info.
func (c *Client) ValidateSymbol(ctx context.Context, symbol string) (bool, error) {
	resp, err := c.get(ctx, "/v5/market/instruments-info", map[string]string{
		"category": categoryLinear,
		"symbol":   symbol,
	}, false)
	if err != nil {
		return false, err
	}

	var result struct {
		List []struct {
			Symbol string `json:"symbol"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return false, fmt.Errorf("instruments-info decode: %w", err)
	}
	for _, it := range result.List {
		if it.Symbol == symbol {
			return true, nil
		}
	}
	return false, nil
}
