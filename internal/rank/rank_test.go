package rank

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tickwars/session-engine/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func player(id string, cash float64, shares int64, order int) model.Participant {
	return model.Participant{
		ID:           id,
		Name:         id,
		Cash:         d(cash),
		Shares:       shares,
		InitialValue: d(1000),
		JoinOrder:    order,
	}
}

func TestEquity_CashPlusMarkToMarket(t *testing.T) {
	p := player("a", 899.9, 1, 0)
	eq := Equity(p, d(101))
	if !eq.Equal(d(1000.9)) {
		t.Errorf("expected equity 1000.9, got %s", eq)
	}
}

func TestProfit_RelativeToInitialValue(t *testing.T) {
	p := player("a", 999.8, 0, 0)
	profit := Profit(p, d(100))
	if !profit.Equal(d(-0.2)) {
		t.Errorf("expected profit -0.2, got %s", profit)
	}
	pct := ProfitPercent(p, d(100))
	if !pct.Equal(d(-0.02)) {
		t.Errorf("expected profit percent -0.02, got %s", pct)
	}
}

func TestProfitPercent_ZeroBaseline(t *testing.T) {
	p := model.Participant{ID: "a", Cash: d(50)}
	if !ProfitPercent(p, d(100)).IsZero() {
		t.Error("zero baseline should yield zero profit percent")
	}
}

func TestRank_DescendingByEquity(t *testing.T) {
	players := map[string]model.Participant{
		"low":  player("low", 500, 0, 0),
		"high": player("high", 900, 2, 1), // 900 + 2*100 = 1100
		"mid":  player("mid", 1000, 0, 2),
	}

	standings := Rank(players, d(100))

	if len(standings) != 3 {
		t.Fatalf("expected 3 standings, got %d", len(standings))
	}
	wantOrder := []string{"high", "mid", "low"}
	for i, want := range wantOrder {
		if standings[i].Participant.ID != want {
			t.Errorf("position %d: expected %s, got %s", i+1, want, standings[i].Participant.ID)
		}
		if standings[i].Position != i+1 {
			t.Errorf("expected position %d, got %d", i+1, standings[i].Position)
		}
	}
	for i := 1; i < len(standings); i++ {
		if standings[i].Equity.GreaterThan(standings[i-1].Equity) {
			t.Errorf("equities must be non-increasing: %s > %s at position %d",
				standings[i].Equity, standings[i-1].Equity, i+1)
		}
	}
}

func TestRank_TiesBrokenByJoinOrder(t *testing.T) {
	// Identical equities: join order decides, regardless of map iteration.
	players := map[string]model.Participant{
		"late":  player("late", 1000, 0, 2),
		"early": player("early", 1000, 0, 0),
		"mid":   player("mid", 1000, 0, 1),
	}

	for i := 0; i < 20; i++ { // map order is randomized; exercise it
		standings := Rank(players, d(100))
		want := []string{"early", "mid", "late"}
		for pos, id := range want {
			if standings[pos].Participant.ID != id {
				t.Fatalf("run %d: position %d expected %s, got %s",
					i, pos+1, id, standings[pos].Participant.ID)
			}
		}
	}
}

func TestRank_Empty(t *testing.T) {
	if got := Rank(map[string]model.Participant{}, d(100)); len(got) != 0 {
		t.Errorf("expected empty standings, got %d", len(got))
	}
}
