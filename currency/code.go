package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Code is an ISO style uppercased currency code, e.g. BTC, CLP
type Code string

// Common currency codes used across the framework
const (
	BTC Code = "BTC"
	BCH Code = "BCH"
	ETH Code = "ETH"
	LTC Code = "LTC"
	XRP Code = "XRP"
	USD Code = "USD"
	CLP Code = "CLP"
)

// commonAliases maps alternate exchange currency identifiers to their
// standardized codes
var commonAliases = map[Code]Code{
	"XBT": BTC,
	"BCC": BCH,
	"DRK": "DASH",
}

// precision holds the number of decimal places amounts are truncated to per
// currency before being submitted to an exchange
var precision = map[Code]int32{
	// Fiat
	"ARS": 2,
	"CLP": 2,
	"COP": 2,
	"PEN": 2,
	"USD": 2,
	// Crypto
	BCH: 8,
	BTC: 8,
	ETH: 9,
	LTC: 8,
}

// NewCode returns an uppercased currency code from the supplied string
func NewCode(s string) Code {
	return Code(strings.ToUpper(strings.TrimSpace(s)))
}

// String implements the stringer interface
func (c Code) String() string {
	return string(c)
}

// IsEmpty returns whether the code is unset
func (c Code) IsEmpty() bool {
	return c == ""
}

// Standardize translates alternate exchange identifiers (XBT, BCC, DRK) to
// their common currency codes
func (c Code) Standardize() Code {
	if std, ok := commonAliases[c]; ok {
		return std
	}
	return c
}

// Precision returns the amount of decimal places the currency supports, 8 is
// assumed when the currency is unlisted
func (c Code) Precision() int32 {
	if p, ok := precision[c]; ok {
		return p
	}
	return 8
}

// Truncate truncates an amount to the currency precision
func (c Code) Truncate(amount decimal.Decimal) decimal.Decimal {
	return amount.Truncate(c.Precision())
}
