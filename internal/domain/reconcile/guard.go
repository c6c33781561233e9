package reconcile

import (
	"math"

	"github.com/shopspring/decimal"
)

// Verdict resultado de la guarda de precios.
type Verdict struct {
	Allowed          bool
	VariationPercent float64 // +Inf cuando el precio pasa de 0 a >0
}

// EvaluatePriceChange decide si un cambio de precio puede aplicarse al catálogo remoto.
//
// Reglas:
//   - oldPrice nil (primera sincronización o fila solo-whitelist) → permitido.
//   - variación = abs(new-old)/old*100; exactamente en el umbral se permite,
//     se bloquea solo estrictamente por encima.
//   - oldPrice == 0: permitido si new == 0; si no, bloqueado con variación +Inf
//     (caso límite deliberado: nunca se divide por cero).
//
// Determinista y sin I/O: mismos insumos, mismo veredicto.
func EvaluatePriceChange(oldPrice *decimal.Decimal, newPrice decimal.Decimal, maxVariationPct float64) Verdict {
	if oldPrice == nil {
		return Verdict{Allowed: true}
	}
	if oldPrice.IsZero() {
		if newPrice.IsZero() {
			return Verdict{Allowed: true}
		}
		return Verdict{Allowed: false, VariationPercent: math.Inf(1)}
	}

	variation, _ := newPrice.Sub(*oldPrice).Abs().
		Div(*oldPrice).
		Mul(decimal.NewFromInt(100)).
		Float64()

	return Verdict{
		Allowed:          variation <= maxVariationPct,
		VariationPercent: variation,
	}
}
