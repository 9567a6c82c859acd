package execution

import (
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/azuric/pairs/internal/types"
	"github.com/azuric/pairs/pkg/errors"
)

// PriceSource supplies current market levels for leg pricing. Implemented by
// feed.Synthesizer.
type PriceSource interface {
	LastTrade(instrumentID int) optional.Option[types.TradeTick]
	Bid(instrumentID int) optional.Option[types.QuoteTick]
	Ask(instrumentID int) optional.Option[types.QuoteTick]
	Mid(instrumentID int) optional.Option[float64]
}

// roundToTick rounds a price to the nearest tick. When the tick size is
// unknown the price is rounded to 4 decimals instead.
func roundToTick(price, tickSize float64) float64 {
	p := decimal.NewFromFloat(price)
	if tickSize <= 0 {
		rounded, _ := p.Round(4).Float64()

		return rounded
	}

	tick := decimal.NewFromFloat(tickSize)
	rounded, _ := p.Div(tick).Round(0).Mul(tick).Float64()

	return rounded
}

// currentPrice resolves the working price of an instrument: the quote
// midpoint, or the touch side the instrument will be traded at. Falls back
// to the last trade when the needed quotes are missing.
func currentPrice(src PriceSource, instrumentID int, side types.Side, basis types.PriceBasis) (float64, error) {
	switch basis {
	case types.PriceBasisMid:
		if mid := src.Mid(instrumentID); mid.IsSome() {
			return mid.Unwrap(), nil
		}
	case types.PriceBasisTouch:
		bid, ask := src.Bid(instrumentID), src.Ask(instrumentID)

		if side == types.SideBuy && ask.IsSome() {
			return ask.Unwrap().Price, nil
		}

		if side == types.SideSell && bid.IsSome() {
			return bid.Unwrap().Price, nil
		}
	}

	if trade := src.LastTrade(instrumentID); trade.IsSome() {
		return trade.Unwrap().Price, nil
	}

	return 0, errors.Newf(errors.ErrCodeNoMarketPrice, "no market price for instrument %d", instrumentID)
}

// legPrice computes the execution price for one leg from the reference
// spread price and the counterpart leg's current price:
//
//	numerator price   = spreadPrice * denominatorPrice
//	denominator price = numeratorPrice / spreadPrice
//
// counterpartPrice is the current price of the other leg. The result is
// rounded to the priced instrument's tick size.
func legPrice(role types.LegRole, spreadPrice, counterpartPrice float64, instrument types.Instrument) (float64, error) {
	var price float64

	switch role {
	case types.LegRoleNumerator:
		price = spreadPrice * counterpartPrice
	case types.LegRoleDenominator:
		if spreadPrice == 0 {
			return 0, errors.New(errors.ErrCodeZeroSpreadPrice, "reference spread price is zero")
		}

		price = counterpartPrice / spreadPrice
	}

	return roundToTick(price, instrument.TickSize), nil
}
