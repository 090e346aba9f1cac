package market

import (
	"testing"

	"github.com/shopspring/decimal"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestBuyQuote_AtOpeningPrice(t *testing.T) {
	cost, fee, next := BuyQuote(d(100))

	if !fee.Equal(d(0.1)) {
		t.Errorf("expected fee 0.1, got %s", fee)
	}
	if !cost.Equal(d(100.1)) {
		t.Errorf("expected cost 100.1, got %s", cost)
	}
	if !next.Equal(d(101)) {
		t.Errorf("expected next price 101, got %s", next)
	}
}

func TestSellQuote_AtOpeningPrice(t *testing.T) {
	proceeds, fee, next := SellQuote(d(100))

	if !next.Equal(d(99)) {
		t.Errorf("expected next price 99, got %s", next)
	}
	if !fee.Equal(d(0.099)) {
		t.Errorf("expected fee 0.099, got %s", fee)
	}
	if !proceeds.Equal(d(98.901)) {
		t.Errorf("expected proceeds 98.901, got %s", proceeds)
	}
}

func TestFeeAsymmetry_BuyPreTradeSellPostTrade(t *testing.T) {
	// Buy fee is charged on the pre-trade price; sell fee on the post-trade
	// price. From the same starting price the two fees therefore differ by
	// FeeRate * PriceStep.
	_, buyFee, _ := BuyQuote(d(100))
	_, sellFee, _ := SellQuote(d(100))

	diff := buyFee.Sub(sellFee)
	if !diff.Equal(FeeRate.Mul(PriceStep)) {
		t.Errorf("expected fee gap %s, got %s (buy=%s sell=%s)",
			FeeRate.Mul(PriceStep), diff, buyFee, sellFee)
	}
}

func TestPriceWalk_NetOfBuysAndSells(t *testing.T) {
	// After n buys and m sells from P0, the price is P0 + n - m exactly.
	price := d(100)
	for i := 0; i < 7; i++ {
		_, _, price = BuyQuote(price)
	}
	for i := 0; i < 3; i++ {
		_, _, price = SellQuote(price)
	}
	if !price.Equal(d(104)) {
		t.Errorf("expected price 104 after 7 buys and 3 sells, got %s", price)
	}
}

func TestRoundTrip_LosesExactlyTwiceTheFee(t *testing.T) {
	// Buying then immediately selling one share returns to the starting
	// price and costs the trader both fees — never a profit.
	start := d(100)
	cost, buyFee, afterBuy := BuyQuote(start)
	proceeds, sellFee, afterSell := SellQuote(afterBuy)

	if !afterSell.Equal(start) {
		t.Fatalf("round trip should restore price: got %s", afterSell)
	}

	net := proceeds.Sub(cost)
	expected := buyFee.Add(sellFee).Neg()
	if !net.Equal(expected) {
		t.Errorf("round-trip cash delta should be -(buyFee+sellFee)=%s, got %s",
			expected, net)
	}
	if net.GreaterThanOrEqual(decimal.Zero) {
		t.Errorf("round trip must strictly lose money, got %s", net)
	}
}

func TestRoundTrip_ReferenceScenario(t *testing.T) {
	// The canonical scenario: price 100, cash 1000.
	// Buy:  fee 0.1, cost 100.1 → cash 899.9, price 101.
	// Sell: price 100, fee 0.1, proceeds 99.9 → cash 999.8.
	cash := d(1000)

	cost, fee, price := BuyQuote(d(100))
	cash = cash.Sub(cost)
	if !fee.Equal(d(0.1)) || !cash.Equal(d(899.9)) || !price.Equal(d(101)) {
		t.Fatalf("after buy: fee=%s cash=%s price=%s", fee, cash, price)
	}

	proceeds, fee, price := SellQuote(price)
	cash = cash.Add(proceeds)
	if !fee.Equal(d(0.1)) || !proceeds.Equal(d(99.9)) || !price.Equal(d(100)) {
		t.Fatalf("after sell: fee=%s proceeds=%s price=%s", fee, proceeds, price)
	}
	if !cash.Equal(d(999.8)) {
		t.Errorf("expected final cash 999.8, got %s", cash)
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"buy", Buy, false},
		{"sell", Sell, false},
		{"BUY", "", true},
		{"hold", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDirection(tt.in)
		if tt.wantErr {
			if err != ErrInvalidDirection {
				t.Errorf("ParseDirection(%q): expected ErrInvalidDirection, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseDirection(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}
