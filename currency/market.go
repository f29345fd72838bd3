package currency

import (
	"errors"
	"fmt"
)

// Market errors
var (
	ErrInvalidMarketCode = errors.New("a market code must have 6 characters")
	ErrMarketIsEmpty     = errors.New("market is empty")
)

// Market holds a base/quote currency trading pair. The canonical market code
// is the 6 character concatenation of both currency codes, e.g. BTCCLP.
type Market struct {
	Base  Code `json:"base"`
	Quote Code `json:"quote"`
}

// NewMarket returns a market from a base and quote currency code
func NewMarket(base, quote Code) Market {
	return Market{Base: base, Quote: quote}
}

// MarketFromCode parses a market from its canonical 6 character code
func MarketFromCode(code string) (Market, error) {
	if len(code) != 6 {
		return Market{}, fmt.Errorf("%w, received %q", ErrInvalidMarketCode, code)
	}
	return Market{Base: NewCode(code[:3]), Quote: NewCode(code[3:])}, nil
}

// Code returns the canonical market code
func (m Market) Code() string {
	return m.Base.String() + m.Quote.String()
}

// String implements the stringer interface, interchangeable with Code so a
// market can stand in wherever a raw code string is accepted
func (m Market) String() string {
	return m.Code()
}

// IsEmpty returns whether base or quote are unset
func (m Market) IsEmpty() bool {
	return m.Base.IsEmpty() || m.Quote.IsEmpty()
}

// Equal compares two markets by code
func (m Market) Equal(other Market) bool {
	return m.Code() == other.Code()
}

// Is compares the market against a raw 6 character market code
func (m Market) Is(code string) bool {
	return m.Code() == code
}

// Less reports whether the market code sorts before the other market's code
func (m Market) Less(other Market) bool {
	return m.Code() < other.Code()
}
