package bitfinex

// Bitfinex v1 renders numbers as strings and timestamps as fractional unix
// seconds; v2 trades use integer ids and millisecond stamps.

// TickerData holds the native v1 ticker payload
type TickerData struct {
	Mid       string `json:"mid"`
	Bid       string `json:"bid"`
	Ask       string `json:"ask"`
	LastPrice string `json:"last_price"`
	Low       string `json:"low"`
	High      string `json:"high"`
	Volume    string `json:"volume"`
	Timestamp string `json:"timestamp"`
}

// BookEntryData holds one depth level
type BookEntryData struct {
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

// OrderBookData holds the native depth payload, best first
type OrderBookData struct {
	Bids []BookEntryData `json:"bids"`
	Asks []BookEntryData `json:"asks"`
}

// TradeV2Data holds one public trade from the v2 endpoint. A negative amount
// marks a sell.
type TradeV2Data struct {
	ID     int64
	MTS    int64
	Amount string
	Price  string
}

// BalanceData holds one wallet entry of the balances listing
type BalanceData struct {
	Type      string `json:"type"`
	Currency  string `json:"currency"`
	Amount    string `json:"amount"`
	Available string `json:"available"`
}

// MovementData holds one deposit or withdrawal movement
type MovementData struct {
	ID               int64  `json:"id"`
	Currency         string `json:"currency"`
	Method           string `json:"method"`
	Type             string `json:"type"` // DEPOSIT or WITHDRAWAL
	Amount           string `json:"amount"`
	Fee              string `json:"fee"`
	Status           string `json:"status"`
	Address          string `json:"address"`
	TXID             string `json:"txid"`
	TimestampCreated string `json:"timestamp_created"`
}

// OrderData holds one native order
type OrderData struct {
	ID                int64  `json:"id"`
	Symbol            string `json:"symbol"`
	Price             string `json:"price"`
	AvgExecutionPrice string `json:"avg_execution_price"`
	Side              string `json:"side"`
	Type              string `json:"type"` // e.g. "exchange limit"
	Timestamp         string `json:"timestamp"`
	IsLive            bool   `json:"is_live"`
	IsCancelled       bool   `json:"is_cancelled"`
	OriginalAmount    string `json:"original_amount"`
	RemainingAmount   string `json:"remaining_amount"`
	ExecutedAmount    string `json:"executed_amount"`
}
