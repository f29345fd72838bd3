package kraken

// Kraken renders numbers as strings, keys assets with X/Z prefixes and
// returns orders keyed by transaction id.

// TickerData holds the native ticker payload. Array fields carry
// [price, whole lot volume, lot volume] triples, h/l/p carry
// [today, last 24 hours].
type TickerData struct {
	Ask    []string `json:"a"`
	Bid    []string `json:"b"`
	Last   []string `json:"c"`
	Volume []string `json:"v"`
	Vwap   []string `json:"p"`
	High   []string `json:"h"`
	Low    []string `json:"l"`
	Open   string   `json:"o"`
}

// OrderBookData holds the native depth payload, entries as
// [price, volume, timestamp] triples, best first
type OrderBookData struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}

// TransferData holds one deposit or withdrawal status entry
type TransferData struct {
	Method string `json:"method"`
	Asset  string `json:"asset"`
	RefID  string `json:"refid"`
	TxID   string `json:"txid"`
	Info   string `json:"info"` // destination address
	Amount string `json:"amount"`
	Fee    string `json:"fee"`
	Time   int64  `json:"time"`
	Status string `json:"status"`
}

// OrderDescr holds the descr block of an order
type OrderDescr struct {
	Pair      string `json:"pair"`
	Type      string `json:"type"` // buy or sell
	OrderType string `json:"ordertype"`
	Price     string `json:"price"`
	Price2    string `json:"price2"`
}

// OrderData holds one native order as keyed by transaction id
type OrderData struct {
	Descr   OrderDescr `json:"descr"`
	Status  string     `json:"status"`
	OpenTM  float64    `json:"opentm"`
	Vol     string     `json:"vol"`
	VolExec string     `json:"vol_exec"`
	Cost    string     `json:"cost"`
	Fee     string     `json:"fee"`
	Price   string     `json:"price"`
	OFlags  string     `json:"oflags"`
}

// AddOrderResult holds the acknowledgement of a placed order
type AddOrderResult struct {
	TxIDs []string   `json:"txid"`
	Descr OrderDescr `json:"descr"`
}
