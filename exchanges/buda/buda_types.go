package buda

import "time"

// Buda renders money values as [amount, currency] string pairs and paginates
// collections with a meta block.

// Meta describes the pagination cursor of a page based endpoint
type Meta struct {
	CurrentPage int `json:"current_page"`
	TotalPages  int `json:"total_pages"`
}

// TickerData holds the native ticker payload
type TickerData struct {
	MarketID          string   `json:"market_id"`
	MaxBid            []string `json:"max_bid"`
	MinAsk            []string `json:"min_ask"`
	LastPrice         []string `json:"last_price"`
	Volume            []string `json:"volume"`
	PriceVariation24H string   `json:"price_variation_24h"`
}

// OrderBookData holds the native depth payload, entries as [price, amount]
// string pairs, best first
type OrderBookData struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

// TradesPage holds one timestamp keyed page of public trades, entries as
// [unix_ms, amount, price, direction]
type TradesPage struct {
	Timestamp     string     `json:"timestamp"`
	LastTimestamp string     `json:"last_timestamp"`
	Entries       [][]string `json:"entries"`
}

// BalanceData holds the native wallet balance payload
type BalanceData struct {
	ID              string   `json:"id"`
	Amount          []string `json:"amount"`
	AvailableAmount []string `json:"available_amount"`
	FrozenAmount    []string `json:"frozen_amount"`
}

// TransferInfo carries the on-chain details of a deposit or withdrawal
type TransferInfo struct {
	Address string `json:"address"`
	TxHash  string `json:"tx_hash"`
}

// TransferData holds one native deposit or withdrawal
type TransferData struct {
	ID        int64         `json:"id"`
	Currency  string        `json:"currency"`
	State     string        `json:"state"`
	CreatedAt time.Time     `json:"created_at"`
	Amount    []string      `json:"amount"`
	Fee       []string      `json:"fee"`
	Data      *TransferInfo `json:"data"`
}

// TransfersPage holds one page of transfers. Deposits and withdrawals share
// the shape under different keys.
type TransfersPage struct {
	Deposits    []TransferData `json:"deposits"`
	Withdrawals []TransferData `json:"withdrawals"`
	Meta        Meta           `json:"meta"`
}

// OrderData holds one native order
type OrderData struct {
	ID             int64     `json:"id"`
	MarketID       string    `json:"market_id"`
	Type           string    `json:"type"`       // Bid or Ask
	PriceType      string    `json:"price_type"` // market or limit
	State          string    `json:"state"`
	CreatedAt      time.Time `json:"created_at"`
	OriginalAmount []string  `json:"original_amount"`
	Amount         []string  `json:"amount"`
	TradedAmount   []string  `json:"traded_amount"`
	TotalExchanged []string  `json:"total_exchanged"`
	PaidFee        []string  `json:"paid_fee"`
	Limit          []string  `json:"limit"`
}

// OrdersPage holds one page of orders
type OrdersPage struct {
	Orders []OrderData `json:"orders"`
	Meta   Meta        `json:"meta"`
}
