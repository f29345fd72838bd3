package orderbook

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rob-Hitchens/trading-bots/currency"
	"github.com/rob-Hitchens/trading-bots/money"
)

// Vars for the orderbook package
var (
	// ErrBookEmpty is returned when the required book side holds no orders
	ErrBookEmpty = errors.New("order book side is empty")
	// ErrQuotation is returned when the book side does not hold enough volume
	// to cover the requested amount
	ErrQuotation = errors.New("not enough volume on order book to cover quote")
	// ErrNoVolume is returned when a volume weighted price is requested over a
	// book with no volume at all
	ErrNoVolume = errors.New("order book has no volume")
)

// Side defines the taker side of an operation against the book
type Side string

// Operation sides
const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// String implements the stringer interface
func (s Side) String() string {
	return string(s)
}

// BookSide returns the resting book side a taker on this side consumes; the
// quoted side flips relative to the requested side because the taker of a buy
// meets the resting sell orders
func (s Side) BookSide() string {
	if s == Buy {
		return "asks"
	}
	return "bids"
}

// Entry stores a single price level: price in quote currency, amount in base
// currency
type Entry struct {
	Price  money.Money
	Amount money.Money
}

// Book is a two-sided snapshot of resting orders for a market. Bids and asks
// are expected best first (highest bid, lowest ask); the ordering is assumed,
// not verified, by the depth walking quotation methods.
type Book struct {
	Market    currency.Market
	Bids      []Entry
	Asks      []Entry
	Timestamp time.Time
}

// NewEntry converts a raw price/amount pair into a typed book entry for the
// supplied market
func NewEntry(market currency.Market, price, amount decimal.Decimal) Entry {
	return Entry{
		Price:  money.New(price, market.Quote),
		Amount: money.New(amount, market.Base),
	}
}

// QuoteOrders walks the book side that would fill a request of the supplied
// base currency amount, returning the consumed price levels in book order. A
// zero amount quotes the single best price level. It fails with ErrBookEmpty
// when the side holds no orders and ErrQuotation when the side is exhausted
// before the amount is covered.
func (b *Book) QuoteOrders(side Side, amount money.Money) ([]Entry, error) {
	levels := b.Bids
	if side == Buy {
		levels = b.Asks
	}
	if len(levels) == 0 {
		return nil, ErrBookEmpty
	}
	remaining := amount.Amount()
	var consumed []Entry
	for i := range levels {
		take := decimal.Min(levels[i].Amount.Amount(), remaining)
		consumed = append(consumed, Entry{
			Price:  levels[i].Price,
			Amount: money.New(take, b.Market.Base),
		})
		remaining = remaining.Sub(take)
		if remaining.IsZero() {
			break
		}
	}
	if !remaining.IsZero() {
		return nil, ErrQuotation
	}
	return consumed, nil
}

// QuoteAmount returns the total quote currency amount exchanged filling the
// supplied base currency amount
func (b *Book) QuoteAmount(side Side, amount money.Money) (money.Money, error) {
	consumed, err := b.QuoteOrders(side, amount)
	if err != nil {
		return money.Money{}, err
	}
	total := money.Zero(b.Market.Quote)
	for i := range consumed {
		total = total.AddScalar(consumed[i].Price.Mul(consumed[i].Amount.Amount()).Amount())
	}
	return total, nil
}

// QuotePrice returns the price of the last consumed level, the worst price
// touched filling the amount, used as a conservative execution estimate
func (b *Book) QuotePrice(side Side, amount money.Money) (money.Money, error) {
	consumed, err := b.QuoteOrders(side, amount)
	if err != nil {
		return money.Money{}, err
	}
	return consumed[len(consumed)-1].Price, nil
}

// QuoteAveragePrice returns the volume weighted average price filling the
// amount. A zero amount returns the single best price on the side.
func (b *Book) QuoteAveragePrice(side Side, amount money.Money) (money.Money, error) {
	if amount.IsZero() {
		return b.QuotePrice(side, amount)
	}
	quote, err := b.QuoteAmount(side, amount)
	if err != nil {
		return money.Money{}, err
	}
	return quote.Div(amount.Amount())
}

// QuoteBidPrice returns the price received selling the amount into the bids
func (b *Book) QuoteBidPrice(amount money.Money) (money.Money, error) {
	return b.QuotePrice(Sell, amount)
}

// QuoteAskPrice returns the price paid buying the amount from the asks
func (b *Book) QuoteAskPrice(amount money.Money) (money.Money, error) {
	return b.QuotePrice(Buy, amount)
}

// QuoteSpreadDetails returns the bid price, ask price and spread for the
// supplied base currency amount
func (b *Book) QuoteSpreadDetails(amount money.Money) (bid, ask, spread money.Money, err error) {
	bid, err = b.QuoteBidPrice(amount)
	if err != nil {
		return money.Money{}, money.Money{}, money.Money{}, err
	}
	ask, err = b.QuoteAskPrice(amount)
	if err != nil {
		return money.Money{}, money.Money{}, money.Money{}, err
	}
	spread, err = ask.Sub(bid)
	if err != nil {
		return money.Money{}, money.Money{}, money.Money{}, err
	}
	return bid, ask, spread, nil
}

// SpreadDetails returns the top of book bid, ask and spread
func (b *Book) SpreadDetails() (bid, ask, spread money.Money, err error) {
	return b.QuoteSpreadDetails(money.Zero(b.Market.Base))
}

// VolumeBid sums all bid side amounts
func (b *Book) VolumeBid() money.Money {
	return sumAmounts(b.Market.Base, b.Bids)
}

// VolumeAsk sums all ask side amounts
func (b *Book) VolumeAsk() money.Money {
	return sumAmounts(b.Market.Base, b.Asks)
}

// VolumeDetails returns the total, bid and ask volumes of the book
func (b *Book) VolumeDetails() (total, bid, ask money.Money) {
	bid = b.VolumeBid()
	ask = b.VolumeAsk()
	total = bid.AddScalar(ask.Amount())
	return total, bid, ask
}

// VWPrice returns the top of book bid/ask prices weighted by their respective
// side volumes. It fails with ErrNoVolume when the book holds no volume.
func (b *Book) VWPrice() (money.Money, error) {
	total, bidVol, askVol := b.VolumeDetails()
	if total.IsZero() {
		return money.Money{}, ErrNoVolume
	}
	bid, ask, _, err := b.SpreadDetails()
	if err != nil {
		return money.Money{}, err
	}
	sumProd := bidVol.Amount().Mul(bid.Amount()).
		Add(askVol.Amount().Mul(ask.Amount()))
	return money.New(sumProd.Div(total.Amount()), b.Market.Quote), nil
}

func sumAmounts(base currency.Code, entries []Entry) money.Money {
	total := money.Zero(base)
	for i := range entries {
		total = total.AddScalar(entries[i].Amount.Amount())
	}
	return total
}
