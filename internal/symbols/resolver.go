package symbols

import (
	"context"
	"regexp"
	"strings"

	"trade_engine/pkg/logger"
)

// Validator — единственная способность биржи, нужная резолверу.
type Validator interface {
	ValidateSymbol(ctx context.Context, symbol string) (bool, error)
}

var symRe = regexp.MustCompile(`[^A-Z0-9]`)

// Normalize: BTC/USDT, btc-usdt, " BTCUSDT " -> BTCUSDT.
func Normalize(sym string) string {
	s := strings.ToUpper(strings.TrimSpace(sym))
	return symRe.ReplaceAllString(s, "")
}

// NormalizeAll — нормализация + дедуп с сохранением порядка.
func NormalizeAll(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		ns := Normalize(s)
		if ns == "" {
			continue
		}
		if _, ok := seen[ns]; ok {
			continue
		}
		seen[ns] = struct{}{}
		out = append(out, ns)
	}
	return out
}

// Resolve нормализует список и валидирует по публичным метаданным биржи.
// Невалидные выпадают из рабочего набора на этот цикл. Если не прошёл вообще
// никто — возвращаем нормализованный список как есть: сама валидация могла
// временно лежать, доступность важнее строгости.
func Resolve(ctx context.Context, v Validator, raw []string) []string {
	normalized := NormalizeAll(raw)
	if len(normalized) == 0 {
		return nil
	}

	valid := make([]string, 0, len(normalized))
	for _, s := range normalized {
		ok, err := v.ValidateSymbol(ctx, s)
		if err != nil {
			logger.Warn("symbol %s: validation failed: %v", s, err)
			continue
		}
		if ok {
			valid = append(valid, s)
		} else {
			logger.Warn("symbol %s: not found on exchange, skipping this cycle", s)
		}
	}

	if len(valid) == 0 {
		return normalized
	}
	return valid
}
