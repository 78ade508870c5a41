package position

import (
	"math"

	"trade_engine/internal/models"
)

// FloorQty — усечение вниз до prec десятичных знаков. Именно вниз: заявка на
// чуть больше, чем есть средств, будет отклонена биржей.
func FloorQty(qty float64, prec int) float64 {
	if qty <= 0 {
		return 0
	}
	if prec < 0 {
		prec = 0
	}
	factor := math.Pow(10, float64(prec))
	return math.Floor(qty*factor) / factor
}

// OrderQty — размер ордера в базовом активе.
// Фиксированный USD-размер режем по известному положительному балансу;
// процентный режим без баланса даёт ноль (не на что покупать).
func OrderQty(es models.EffectiveSettings, price, balance float64) float64 {
	if price <= 0 {
		return 0
	}

	var orderUSD float64
	if es.OrderSizeUSD > 0 {
		orderUSD = es.OrderSizeUSD
		if balance > 0 && orderUSD > balance {
			orderUSD = balance
		}
	} else if balance > 0 {
		orderUSD = balance * es.OrderPercent / 100.0
	}

	return FloorQty(orderUSD/price, es.QtyPrecision)
}
