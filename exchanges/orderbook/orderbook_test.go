package orderbook

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/rob-Hitchens/trading-bots/currency"
	"github.com/rob-Hitchens/trading-bots/money"
)

var btcusd = currency.NewMarket(currency.BTC, currency.USD)

func level(price, amount string) Entry {
	return NewEntry(btcusd,
		decimal.RequireFromString(price),
		decimal.RequireFromString(amount))
}

func baseAmount(s string) money.Money {
	return money.New(decimal.RequireFromString(s), currency.BTC)
}

func testBook() *Book {
	return &Book{
		Market: btcusd,
		Bids:   []Entry{level("99", "1"), level("98", "2"), level("97", "3")},
		Asks:   []Entry{level("100", "1"), level("101", "2"), level("102", "3")},
	}
}

func TestQuoteOrdersPartialLevel(t *testing.T) {
	t.Parallel()
	b := &Book{
		Market: btcusd,
		Asks:   []Entry{level("100", "1"), level("101", "2")},
	}

	consumed, err := b.QuoteOrders(Buy, baseAmount("1.5"))
	if !errors.Is(err, nil) {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if len(consumed) != 2 {
		t.Fatalf("expected 2 consumed levels but received %d", len(consumed))
	}
	if !consumed[0].Amount.Equal(baseAmount("1")) ||
		!consumed[1].Amount.Equal(baseAmount("0.5")) {
		t.Fatalf("unexpected consumed amounts: %v", consumed)
	}

	quote, err := b.QuoteAmount(Buy, baseAmount("1.5"))
	if !errors.Is(err, nil) {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	// 100*1 + 101*0.5
	if !quote.Amount().Equal(decimal.RequireFromString("150.5")) {
		t.Fatalf("expected quote amount 150.5 but received %s", quote)
	}

	worst, err := b.QuotePrice(Buy, baseAmount("1.5"))
	if !errors.Is(err, nil) {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if !worst.Amount().Equal(decimal.RequireFromString("101")) {
		t.Fatalf("expected worst touched price 101 but received %s", worst)
	}
}

func TestQuoteConsumedEqualsRequested(t *testing.T) {
	t.Parallel()
	b := testBook()
	for _, amount := range []string{"0.5", "1", "3", "6"} {
		consumed, err := b.QuoteOrders(Buy, baseAmount(amount))
		if !errors.Is(err, nil) {
			t.Fatalf("amount %s: expected: %v but received: %v", amount, nil, err)
		}
		sum := decimal.Zero
		for i := range consumed {
			sum = sum.Add(consumed[i].Amount.Amount())
		}
		if !sum.Equal(decimal.RequireFromString(amount)) {
			t.Fatalf("amount %s: consumed sum %s does not equal request", amount, sum)
		}
	}
}

func TestQuoteInsufficientVolume(t *testing.T) {
	t.Parallel()
	b := testBook()
	// total ask volume is 6
	if _, err := b.QuoteOrders(Buy, baseAmount("6.00000001")); !errors.Is(err, ErrQuotation) {
		t.Fatalf("expected: %v but received: %v", ErrQuotation, err)
	}
	if _, err := b.QuoteAmount(Sell, baseAmount("7")); !errors.Is(err, ErrQuotation) {
		t.Fatalf("expected: %v but received: %v", ErrQuotation, err)
	}
}

func TestQuoteEmptyBook(t *testing.T) {
	t.Parallel()
	b := &Book{Market: btcusd, Bids: []Entry{level("99", "1")}}
	if _, err := b.QuoteOrders(Buy, baseAmount("1")); !errors.Is(err, ErrBookEmpty) {
		t.Fatalf("expected: %v but received: %v", ErrBookEmpty, err)
	}
	if _, err := b.QuoteOrders(Sell, baseAmount("1")); !errors.Is(err, nil) {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
}

func TestQuoteZeroAmountBestPrice(t *testing.T) {
	t.Parallel()
	b := testBook()
	best, err := b.QuoteAveragePrice(Buy, money.Zero(currency.BTC))
	if !errors.Is(err, nil) {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if !best.Amount().Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected best ask 100 but received %s", best)
	}
	best, err = b.QuoteAveragePrice(Sell, money.Zero(currency.BTC))
	if !errors.Is(err, nil) {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if !best.Amount().Equal(decimal.RequireFromString("99")) {
		t.Fatalf("expected best bid 99 but received %s", best)
	}
}

func TestQuoteAveragePrice(t *testing.T) {
	t.Parallel()
	b := testBook()
	avg, err := b.QuoteAveragePrice(Buy, baseAmount("2"))
	if !errors.Is(err, nil) {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	// (100*1 + 101*1) / 2
	if !avg.Amount().Equal(decimal.RequireFromString("100.5")) {
		t.Fatalf("expected average price 100.5 but received %s", avg)
	}
}

func TestQuoteSpreadDetails(t *testing.T) {
	t.Parallel()
	b := testBook()
	bid, ask, spread, err := b.QuoteSpreadDetails(baseAmount("2"))
	if !errors.Is(err, nil) {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if !bid.Amount().Equal(decimal.RequireFromString("98")) {
		t.Fatalf("expected bid 98 but received %s", bid)
	}
	if !ask.Amount().Equal(decimal.RequireFromString("101")) {
		t.Fatalf("expected ask 101 but received %s", ask)
	}
	if !spread.Amount().Equal(decimal.RequireFromString("3")) {
		t.Fatalf("expected spread 3 but received %s", spread)
	}
}

func TestVolumeDetails(t *testing.T) {
	t.Parallel()
	b := testBook()
	total, bid, ask := b.VolumeDetails()
	if !bid.Amount().Equal(decimal.RequireFromString("6")) {
		t.Fatalf("expected bid volume 6 but received %s", bid)
	}
	if !ask.Amount().Equal(decimal.RequireFromString("6")) {
		t.Fatalf("expected ask volume 6 but received %s", ask)
	}
	if !total.Amount().Equal(decimal.RequireFromString("12")) {
		t.Fatalf("expected total volume 12 but received %s", total)
	}
}

func TestVWPrice(t *testing.T) {
	t.Parallel()
	b := testBook()
	vw, err := b.VWPrice()
	if !errors.Is(err, nil) {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	// equal side volumes, top of book 99/100
	if !vw.Amount().Equal(decimal.RequireFromString("99.5")) {
		t.Fatalf("expected vw price 99.5 but received %s", vw)
	}

	empty := &Book{Market: btcusd}
	if _, err := empty.VWPrice(); !errors.Is(err, ErrNoVolume) {
		t.Fatalf("expected: %v but received: %v", ErrNoVolume, err)
	}
}

func TestSideBookSide(t *testing.T) {
	t.Parallel()
	if Buy.BookSide() != "asks" || Sell.BookSide() != "bids" {
		t.Fatal("side to book side flip is wrong")
	}
}

func TestQuoteIsRepeatable(t *testing.T) {
	t.Parallel()
	b := testBook()
	first, err := b.QuoteAmount(Buy, baseAmount("3"))
	if !errors.Is(err, nil) {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	second, err := b.QuoteAmount(Buy, baseAmount("3"))
	if !errors.Is(err, nil) {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if !first.Equal(second) {
		t.Fatalf("expected repeated quotes to match: %s != %s", first, second)
	}
}
