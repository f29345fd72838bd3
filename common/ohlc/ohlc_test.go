package ohlc

import (
	"errors"
	"testing"
	"time"

	"github.com/rob-Hitchens/trading-bots/currency"
	"github.com/rob-Hitchens/trading-bots/exchanges"
	"github.com/rob-Hitchens/trading-bots/money"
)

var btcclp = currency.NewMarket(currency.BTC, currency.CLP)

func trade(ts time.Time, price, amount string) exchanges.Trade {
	p, err := money.NewFromString(price, currency.CLP)
	if err != nil {
		panic(err)
	}
	a, err := money.NewFromString(amount, currency.BTC)
	if err != nil {
		panic(err)
	}
	return exchanges.Trade{
		Market:    btcclp,
		Price:     p,
		Amount:    a,
		Timestamp: ts,
	}
}

func TestFromTrades(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 8, 1, 12, 0, 30, 0, time.UTC)
	trades := []exchanges.Trade{
		trade(start, "100", "1"),
		trade(start.Add(10*time.Second), "110", "2"),
		trade(start.Add(20*time.Second), "90", "1"),
		trade(start.Add(time.Minute), "95", "3"),
	}

	c, err := FromTrades(trades, time.Minute)
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected: %v but received: %v", 2, c.Len())
	}
	if c.Open[0] != 100 || c.High[0] != 110 || c.Low[0] != 90 || c.Close[0] != 90 {
		t.Fatalf("unexpected first candle %+v", c)
	}
	if c.Volume[0] != 4 {
		t.Fatalf("expected: %v but received: %v", 4, c.Volume[0])
	}
	if c.Close[1] != 95 || c.Volume[1] != 3 {
		t.Fatalf("unexpected second candle %+v", c)
	}
	if !c.Date[0].Equal(start.Truncate(time.Minute)) {
		t.Fatalf("expected: %v but received: %v", start.Truncate(time.Minute), c.Date[0])
	}
}

func TestFromTradesFillsEmptyPeriods(t *testing.T) {
	t.Parallel()
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	trades := []exchanges.Trade{
		trade(start, "100", "1"),
		trade(start.Add(3*time.Minute), "120", "1"),
	}

	c, err := FromTrades(trades, time.Minute)
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if c.Len() != 4 {
		t.Fatalf("expected: %v but received: %v", 4, c.Len())
	}
	// the two empty periods carry the prior close with no volume
	for _, i := range []int{1, 2} {
		if c.Close[i] != 100 || c.Volume[i] != 0 {
			t.Fatalf("unexpected filler candle %d in %+v", i, c)
		}
	}
	if c.Close[3] != 120 {
		t.Fatalf("expected: %v but received: %v", 120, c.Close[3])
	}
}

func TestFromTradesValidation(t *testing.T) {
	t.Parallel()
	if _, err := FromTrades(nil, time.Minute); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected: %v but received: %v", ErrInsufficientData, err)
	}

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if _, err := FromTrades([]exchanges.Trade{trade(ts, "100", "1")}, 0); !errors.Is(err, errPeriodNotPositive) {
		t.Fatalf("expected: %v but received: %v", errPeriodNotPositive, err)
	}

	bad := trade(ts, "0", "1")
	if _, err := FromTrades([]exchanges.Trade{bad}, time.Minute); !errors.Is(err, errPriceNotPositive) {
		t.Fatalf("expected: %v but received: %v", errPriceNotPositive, err)
	}

	bad = trade(time.Time{}, "100", "1")
	if _, err := FromTrades([]exchanges.Trade{bad}, time.Minute); !errors.Is(err, errTimestampNotSet) {
		t.Fatalf("expected: %v but received: %v", errTimestampNotSet, err)
	}
}
