// Package market implements the price-impact quoting rules for the single
// synthetic instrument traded in a room.
//
// Every trade, buy or sell, moves the price by exactly one step in the
// direction of the trade. Each participant's own trading therefore pushes
// the price against their next trade of the same direction, which makes the
// game zero-sum among participants up to the transaction fees.
//
// Because every sold share was first bought inside the room, net sells can
// never exceed net buys, so the price never drops below the opening price.
//
// All monetary values use shopspring/decimal — never float64 for money.
// The functions here are pure quoting: they perform no balance validation.
// Callers must check the acting participant's cash (buy) or shares (sell)
// before committing a quote.
package market

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// PriceStep is the fixed amount every trade moves the price.
	PriceStep = decimal.NewFromInt(1)

	// FeeRate is the proportional transaction fee charged on every trade.
	FeeRate = decimal.NewFromFloat(0.001)

	// ErrInvalidDirection is returned when a direction string is neither
	// "buy" nor "sell".
	ErrInvalidDirection = errors.New("market: direction must be buy or sell")
)

// Direction is the side of a trade.
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// ParseDirection validates a wire direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Buy, Sell:
		return Direction(s), nil
	}
	return "", ErrInvalidDirection
}

// BuyQuote computes the effect of buying one share at the current price.
//
//	fee  = price * FeeRate
//	cost = price + fee
//	next = price + PriceStep
//
// The buy fee is computed on the pre-trade price while the sell fee is
// computed on the post-trade price. The asymmetry is a deliberate property
// of the game, kept exactly as observed; making the fees symmetric would be
// a behavior change, not a fix.
func BuyQuote(price decimal.Decimal) (cost, fee, next decimal.Decimal) {
	fee = price.Mul(FeeRate)
	cost = price.Add(fee)
	next = price.Add(PriceStep)
	return cost, fee, next
}

// SellQuote computes the effect of selling one share at the current price.
//
//	next     = price - PriceStep
//	fee      = next * FeeRate
//	proceeds = next - fee
func SellQuote(price decimal.Decimal) (proceeds, fee, next decimal.Decimal) {
	next = price.Sub(PriceStep)
	fee = next.Mul(FeeRate)
	proceeds = next.Sub(fee)
	return proceeds, fee, next
}
