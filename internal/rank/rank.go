// Package rank computes mark-to-market equity and standings for a room.
// Pure functions of room state, callable mid-session or at settlement.
package rank

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tickwars/session-engine/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Standing is one participant's place in the room leaderboard.
type Standing struct {
	Participant   model.Participant `json:"participant"`
	Position      int               `json:"position"` // 1-based
	Equity        decimal.Decimal   `json:"equity"`
	Profit        decimal.Decimal   `json:"profit"`
	ProfitPercent decimal.Decimal   `json:"profitPercent"`
}

// Equity is cash plus the mark-to-market value of held shares.
func Equity(p model.Participant, price decimal.Decimal) decimal.Decimal {
	return p.Cash.Add(price.Mul(decimal.NewFromInt(p.Shares)))
}

// Profit is equity relative to the participant's balance at join time.
func Profit(p model.Participant, price decimal.Decimal) decimal.Decimal {
	return Equity(p, price).Sub(p.InitialValue)
}

// ProfitPercent is profit as a percentage of the join-time balance.
// Returns zero if the baseline is zero.
func ProfitPercent(p model.Participant, price decimal.Decimal) decimal.Decimal {
	if p.InitialValue.IsZero() {
		return decimal.Zero
	}
	return Profit(p, price).Div(p.InitialValue).Mul(hundred)
}

// Rank orders participants by descending equity at the given price.
// Equity ties are broken by join order, so the output is a total order:
// its length equals the participant count and equities are non-increasing
// across positions.
func Rank(players map[string]model.Participant, price decimal.Decimal) []Standing {
	standings := make([]Standing, 0, len(players))
	for _, p := range players {
		standings = append(standings, Standing{
			Participant:   p,
			Equity:        Equity(p, price),
			Profit:        Profit(p, price),
			ProfitPercent: ProfitPercent(p, price),
		})
	}

	// Map iteration order is random; establish join order first so the
	// stable sort below breaks equity ties deterministically.
	sort.Slice(standings, func(i, j int) bool {
		return standings[i].Participant.JoinOrder < standings[j].Participant.JoinOrder
	})
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Equity.GreaterThan(standings[j].Equity)
	})

	for i := range standings {
		standings[i].Position = i + 1
	}
	return standings
}
