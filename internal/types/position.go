package types

import (
	"github.com/shopspring/decimal"
)

// SpreadPosition tracks per-leg net quantity and volume-weighted average
// price for one spread execution. Buys are signed positive, sells negative.
type SpreadPosition struct {
	NumeratorQty        float64 `yaml:"numerator_qty" json:"numerator_qty"`
	NumeratorAvgPrice   float64 `yaml:"numerator_avg_price" json:"numerator_avg_price"`
	DenominatorQty      float64 `yaml:"denominator_qty" json:"denominator_qty"`
	DenominatorAvgPrice float64 `yaml:"denominator_avg_price" json:"denominator_avg_price"`
}

// ApplyFill folds one leg fill into the position.
// newAvg = (oldQty*oldAvg + signedQty*fillPrice) / newQty, reset to 0 at flat.
func (p *SpreadPosition) ApplyFill(role LegRole, side Side, quantity, price float64) {
	signed := quantity
	if side == SideSell {
		signed = -quantity
	}

	switch role {
	case LegRoleNumerator:
		p.NumeratorQty, p.NumeratorAvgPrice = applyFill(p.NumeratorQty, p.NumeratorAvgPrice, signed, price)
	case LegRoleDenominator:
		p.DenominatorQty, p.DenominatorAvgPrice = applyFill(p.DenominatorQty, p.DenominatorAvgPrice, signed, price)
	}
}

func applyFill(oldQty, oldAvg, signedQty, price float64) (newQty, newAvg float64) {
	qtyDec := decimal.NewFromFloat(oldQty).Add(decimal.NewFromFloat(signedQty))
	newQty, _ = qtyDec.Float64()

	if qtyDec.IsZero() {
		return 0, 0
	}

	notional := decimal.NewFromFloat(oldQty).Mul(decimal.NewFromFloat(oldAvg)).
		Add(decimal.NewFromFloat(signedQty).Mul(decimal.NewFromFloat(price)))
	newAvg, _ = notional.Div(qtyDec).Float64()

	return newQty, newAvg
}

// NetQuantity is the unhedged synthetic exposure, assuming a strict 1:1 leg
// ratio. The denominator leg hedges the numerator leg, so its signed quantity
// counts against it: a fully hedged execution stays at zero.
func (p *SpreadPosition) NetQuantity() float64 {
	return p.NumeratorQty + p.DenominatorQty
}

// AveragePrice is the derived synthetic average price, numerator average over
// denominator average. Zero when either leg is flat.
func (p *SpreadPosition) AveragePrice() float64 {
	if p.NumeratorAvgPrice == 0 || p.DenominatorAvgPrice == 0 {
		return 0
	}

	avg, _ := decimal.NewFromFloat(p.NumeratorAvgPrice).
		Div(decimal.NewFromFloat(p.DenominatorAvgPrice)).Float64()

	return avg
}
