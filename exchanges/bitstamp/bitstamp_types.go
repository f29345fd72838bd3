package bitstamp

// Bitstamp renders numbers as strings and order datetimes in a
// "2006-01-02 15:04:05" layout.

// TickerData holds the native ticker payload
type TickerData struct {
	Last      string `json:"last"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Vwap      string `json:"vwap"`
	Volume    string `json:"volume"`
	Bid       string `json:"bid"`
	Ask       string `json:"ask"`
	Open      string `json:"open"`
	Timestamp string `json:"timestamp"`
}

// OrderBookData holds the native depth payload, entries as [price, amount]
// string pairs, best first
type OrderBookData struct {
	Timestamp string     `json:"timestamp"`
	Bids      [][]string `json:"bids"`
	Asks      [][]string `json:"asks"`
}

// TradeData holds one public trade. Type is "0" for buy and "1" for sell.
type TradeData struct {
	TID    int64  `json:"tid"`
	Date   string `json:"date"`
	Price  string `json:"price"`
	Amount string `json:"amount"`
	Type   string `json:"type"`
}

// WithdrawalData holds one withdrawal request
type WithdrawalData struct {
	ID            int64  `json:"id"`
	Datetime      string `json:"datetime"`
	Currency      string `json:"currency"`
	Amount        string `json:"amount"`
	Status        int    `json:"status"`
	Address       string `json:"address"`
	TransactionID string `json:"transaction_id"`
}

// OpenOrderData holds one open order as listed per market
type OpenOrderData struct {
	ID           string `json:"id"`
	Datetime     string `json:"datetime"`
	Type         string `json:"type"`
	Price        string `json:"price"`
	Amount       string `json:"amount"`
	CurrencyPair string `json:"currency_pair"`
}

// OrderTxData holds one fill of an order status report
type OrderTxData struct {
	TID      int64  `json:"tid"`
	Datetime string `json:"datetime"`
	Price    string `json:"price"`
	Amount   string `json:"amount"`
	Fee      string `json:"fee"`
}

// OrderStatusData holds the status report of a single order
type OrderStatusData struct {
	ID           int64         `json:"id"`
	Status       string        `json:"status"`
	Transactions []OrderTxData `json:"transactions"`
}

// PlaceOrderData holds the acknowledgement of a placed order
type PlaceOrderData struct {
	ID       string `json:"id"`
	Datetime string `json:"datetime"`
	Type     string `json:"type"`
	Price    string `json:"price"`
	Amount   string `json:"amount"`
}
