package exchanges

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"

	"github.com/rob-Hitchens/trading-bots/currency"
	"github.com/rob-Hitchens/trading-bots/exchanges/orderbook"
	"github.com/rob-Hitchens/trading-bots/money"
)

// Side aliases the orderbook side so call sites only need this package
type Side = orderbook.Side

// Side shorthands
const (
	Buy  = orderbook.Buy
	Sell = orderbook.Sell
)

// OrderType defines how an order executes
type OrderType string

// Supported order types
const (
	Market OrderType = "market"
	Limit  OrderType = "limit"
)

// String implements the stringer interface
func (t OrderType) String() string {
	return string(t)
}

// OrderStatus defines the lifecycle state of an order. The zero value means
// the exchange did not report one.
type OrderStatus string

// Supported order statuses
const (
	StatusOpen     OrderStatus = "open"
	StatusClosed   OrderStatus = "closed"
	StatusCanceled OrderStatus = "canceled"
)

// String implements the stringer interface
func (s OrderStatus) String() string {
	return string(s)
}

// TxType defines the direction of a funding transaction
type TxType string

// Supported transaction types
const (
	TxDeposit    TxType = "deposit"
	TxWithdrawal TxType = "withdrawal"
)

// String implements the stringer interface
func (t TxType) String() string {
	return string(t)
}

// TxStatus defines the settlement state of a funding transaction
type TxStatus string

// Supported transaction statuses
const (
	TxStatusOK       TxStatus = "ok"
	TxStatusPending  TxStatus = "pending"
	TxStatusFailed   TxStatus = "failed"
	TxStatusCanceled TxStatus = "canceled"
)

// String implements the stringer interface
func (s TxStatus) String() string {
	return string(s)
}

// Ticker is a point in time price summary for a market. Fields an exchange
// does not report are left unset.
type Ticker struct {
	Market     currency.Market
	Bid        money.Money
	Ask        money.Money
	Last       money.Money
	Open       money.Money
	High       money.Money
	Low        money.Money
	Close      money.Money
	Change     money.Money
	Percentage decimal.Decimal
	Average    money.Money
	VWAP       money.Money
	Volume     money.Money
	Timestamp  time.Time
}

// Mid returns the midpoint between bid and ask
func (t *Ticker) Mid() (money.Money, error) {
	sum, err := t.Bid.Add(t.Ask)
	if err != nil {
		return money.Money{}, err
	}
	return sum.Div(two)
}

// Spread returns the gap between ask and bid
func (t *Ticker) Spread() (money.Money, error) {
	return t.Ask.Sub(t.Bid)
}

// Balance holds the funds of a single currency. Free and Used are left unset
// when the exchange only reports totals.
type Balance struct {
	Total money.Money
	Free  money.Money
	Used  money.Money
}

// Validate checks that free and used funds account for the total. Balances
// reporting only a total are accepted as is.
func (b *Balance) Validate() error {
	if !b.Total.IsSet() {
		return fmt.Errorf("balance %w", errTotalUnset)
	}
	if !b.Free.IsSet() || !b.Used.IsSet() {
		return nil
	}
	sum, err := b.Free.Add(b.Used)
	if err != nil {
		return err
	}
	if !sum.Equal(b.Total) {
		return fmt.Errorf("balance %w: %s free + %s used != %s total",
			errBalanceMismatch, b.Free, b.Used, b.Total)
	}
	return nil
}

// Trade is an individual fill on a market
type Trade struct {
	ID        string
	Market    currency.Market
	Side      Side
	Amount    money.Money
	Price     money.Money
	Cost      money.Money
	Fee       money.Money
	Timestamp time.Time
}

func (t Trade) when() time.Time { return t.Timestamp }

// Order is a placed instruction to trade on a market
type Order struct {
	ID        string
	Market    currency.Market
	Type      OrderType
	Side      Side
	Status    OrderStatus
	Amount    money.Money
	Remaining money.Money
	Filled    money.Money
	Price     money.Money
	Cost      money.Money
	Fee       money.Money
	Timestamp time.Time
}

func (o Order) when() time.Time { return o.Timestamp }

// Transaction is a funding movement in or out of an exchange wallet
type Transaction struct {
	ID        string
	Type      TxType
	Currency  currency.Code
	Amount    money.Money
	Fee       money.Money
	Status    TxStatus
	Address   string
	TxHash    string
	Timestamp time.Time
}

func (t Transaction) when() time.Time { return t.Timestamp }

// Deposit is a funding transaction into an exchange wallet
type Deposit = Transaction

// Withdrawal is a funding transaction out of an exchange wallet
type Withdrawal = Transaction

// NewDryRunOrder builds a placeholder order that never reached an exchange,
// tagged so downstream accounting can tell it apart from live fills. The
// status is left at the zero value so open order filters skip it.
func NewDryRunOrder(market currency.Market, side Side, typ OrderType, amount money.Money) Order {
	return Order{
		ID:        dryRunID(),
		Market:    market,
		Type:      typ,
		Side:      side,
		Amount:    amount,
		Remaining: amount,
		Timestamp: time.Now(),
	}
}

// NewDryRunWithdrawal builds a placeholder withdrawal that never reached an
// exchange
func NewDryRunWithdrawal(amount money.Money, address string) Transaction {
	return Transaction{
		ID:        dryRunID(),
		Type:      TxWithdrawal,
		Currency:  amount.Currency(),
		Amount:    amount,
		Status:    TxStatusOK,
		Address:   address,
		Timestamp: time.Now(),
	}
}

func dryRunID() string {
	return "dry-run:" + uuid.Must(uuid.NewV4()).String()
}
