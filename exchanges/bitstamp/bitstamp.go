// Package bitstamp adapts the Bitstamp exchange API to the exchange client
// primitives
package bitstamp

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rob-Hitchens/trading-bots/currency"
	"github.com/rob-Hitchens/trading-bots/exchanges"
	"github.com/rob-Hitchens/trading-bots/exchanges/orderbook"
	"github.com/rob-Hitchens/trading-bots/log"
	"github.com/rob-Hitchens/trading-bots/money"
)

// Name is the exchange identifier
const Name = "Bitstamp"

// maxWithdrawalWindow is how far back the withdrawal requests endpoint
// reaches, in seconds
const maxWithdrawalWindow = 50000000

// datetimeLayout is how Bitstamp renders order and transfer datetimes
const datetimeLayout = "2006-01-02 15:04:05"

// API is the native transport surface the adapter consumes
type API interface {
	Ticker(ctx context.Context, pair string) (*TickerData, error)
	OrderBook(ctx context.Context, pair string) (*OrderBookData, error)
	Transactions(ctx context.Context, pair, interval string) ([]TradeData, error)
	AccountBalance(ctx context.Context) (map[string]string, error)
	WithdrawalRequests(ctx context.Context, timeDelta int64) ([]WithdrawalData, error)
	WithdrawBCH(ctx context.Context, address, amount string) (*WithdrawalData, error)
	WithdrawBTC(ctx context.Context, address, amount string) (*WithdrawalData, error)
	WithdrawETH(ctx context.Context, address, amount string) (*WithdrawalData, error)
	WithdrawLTC(ctx context.Context, address, amount string) (*WithdrawalData, error)
	WithdrawXRP(ctx context.Context, address, amount string) (*WithdrawalData, error)
	OpenOrders(ctx context.Context, pair string) ([]OpenOrderData, error)
	OrderStatus(ctx context.Context, id string) (*OrderStatusData, error)
	CancelOrder(ctx context.Context, id string) error
	BuyMarketOrder(ctx context.Context, pair, amount string) (*PlaceOrderData, error)
	SellMarketOrder(ctx context.Context, pair, amount string) (*PlaceOrderData, error)
	BuyLimitOrder(ctx context.Context, pair, amount, price string) (*PlaceOrderData, error)
	SellLimitOrder(ctx context.Context, pair, amount, price string) (*PlaceOrderData, error)
}

// minOrderAmounts is the smallest base amount each market accepts, derived
// from the 10 USD floor Bitstamp lists per pair
var minOrderAmounts = map[currency.Code]string{
	currency.BCH: "0.02",
	currency.BTC: "0.002",
	currency.ETH: "0.05",
	currency.LTC: "0.2",
}

func marketID(market currency.Market) string {
	return strings.ToLower(market.Code())
}

func parseSide(code string) (exchanges.Side, error) {
	switch code {
	case "0":
		return exchanges.Buy, nil
	case "1":
		return exchanges.Sell, nil
	}
	return "", fmt.Errorf("%w: side code %q", exchanges.ErrBadResponse, code)
}

func parseDatetime(s string) time.Time {
	t, err := time.Parse(datetimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// MarketSvc implements the market data primitives for one Bitstamp market
type MarketSvc struct {
	api    API
	market currency.Market
}

// NewMarketSvc returns the market data primitives of a Bitstamp market
func NewMarketSvc(api API, market currency.Market) *MarketSvc {
	return &MarketSvc{api: api, market: market}
}

// Ticker implements exchanges.MarketService
func (s *MarketSvc) Ticker(ctx context.Context) (*exchanges.Ticker, error) {
	data, err := s.api.Ticker(ctx, marketID(s.market))
	if err != nil {
		return nil, err
	}
	quote := s.market.Quote
	ticker := &exchanges.Ticker{Market: s.market}
	for _, f := range []struct {
		dst *money.Money
		src string
		cur currency.Code
	}{
		{&ticker.Bid, data.Bid, quote},
		{&ticker.Ask, data.Ask, quote},
		{&ticker.Last, data.Last, quote},
		{&ticker.Open, data.Open, quote},
		{&ticker.High, data.High, quote},
		{&ticker.Low, data.Low, quote},
		{&ticker.VWAP, data.Vwap, quote},
		{&ticker.Volume, data.Volume, s.market.Base},
	} {
		if *f.dst, err = money.NewFromString(f.src, f.cur); err != nil {
			return nil, err
		}
	}
	ticker.Close = ticker.Last
	if unix, err := strconv.ParseInt(data.Timestamp, 10, 64); err == nil {
		ticker.Timestamp = time.Unix(unix, 0)
	}
	return ticker, nil
}

// OrderBook implements exchanges.MarketService
func (s *MarketSvc) OrderBook(ctx context.Context) (*orderbook.Book, error) {
	data, err := s.api.OrderBook(ctx, marketID(s.market))
	if err != nil {
		return nil, err
	}
	book := &orderbook.Book{Market: s.market, Timestamp: time.Now()}
	sides := []struct {
		dst *[]orderbook.Entry
		src [][]string
	}{{&book.Bids, data.Bids}, {&book.Asks, data.Asks}}
	for _, side := range sides {
		for _, level := range side.src {
			if len(level) != 2 {
				return nil, fmt.Errorf("%w: depth level %v", exchanges.ErrBadResponse, level)
			}
			price, err := decimal.NewFromString(level[0])
			if err != nil {
				return nil, err
			}
			amount, err := decimal.NewFromString(level[1])
			if err != nil {
				return nil, err
			}
			*side.dst = append(*side.dst, orderbook.NewEntry(s.market, price, amount))
		}
	}
	return book, nil
}

// TradesSince implements exchanges.MarketService. The transactions endpoint
// reaches back one day at most, older bounds are logged and served best
// effort.
func (s *MarketSvc) TradesSince(ctx context.Context, since time.Time) ([]exchanges.Trade, error) {
	if since.Before(time.Now().Add(-24 * time.Hour)) {
		log.Warnf(log.ExchSys, "%s: only one day of trades is available", Name)
	}
	data, err := s.api.Transactions(ctx, marketID(s.market), "day")
	if err != nil {
		return nil, err
	}
	trades := make([]exchanges.Trade, 0, len(data))
	for i := range data {
		trade, err := s.parseTrade(&data[i])
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

func (s *MarketSvc) parseTrade(data *TradeData) (exchanges.Trade, error) {
	side, err := parseSide(data.Type)
	if err != nil {
		return exchanges.Trade{}, err
	}
	price, err := money.NewFromString(data.Price, s.market.Quote)
	if err != nil {
		return exchanges.Trade{}, err
	}
	amount, err := money.NewFromString(data.Amount, s.market.Base)
	if err != nil {
		return exchanges.Trade{}, err
	}
	unix, err := strconv.ParseInt(data.Date, 10, 64)
	if err != nil {
		return exchanges.Trade{}, fmt.Errorf("%w: trade date %q", exchanges.ErrBadResponse, data.Date)
	}
	return exchanges.Trade{
		ID:        strconv.FormatInt(data.TID, 10),
		Market:    s.market,
		Side:      side,
		Amount:    amount,
		Price:     price,
		Cost:      money.New(price.Amount().Mul(amount.Amount()), s.market.Quote),
		Timestamp: time.Unix(unix, 0),
	}, nil
}

// WalletSvc implements the funding primitives for one Bitstamp wallet
type WalletSvc struct {
	api  API
	code currency.Code
}

// NewWalletSvc returns the funding primitives of a Bitstamp wallet
func NewWalletSvc(api API, code currency.Code) *WalletSvc {
	return &WalletSvc{api: api, code: code}
}

// Balance implements exchanges.WalletService, picking the wallet keys out of
// the flat account snapshot
func (s *WalletSvc) Balance(ctx context.Context) (*exchanges.Balance, error) {
	snapshot, err := s.api.AccountBalance(ctx)
	if err != nil {
		return nil, err
	}
	prefix := strings.ToLower(s.code.String()) + "_"
	balance := &exchanges.Balance{}
	for _, f := range []struct {
		dst *money.Money
		key string
	}{
		{&balance.Total, prefix + "balance"},
		{&balance.Free, prefix + "available"},
		{&balance.Used, prefix + "reserved"},
	} {
		raw, ok := snapshot[f.key]
		if !ok {
			continue
		}
		if *f.dst, err = money.NewFromString(raw, s.code); err != nil {
			return nil, err
		}
	}
	return balance, nil
}

// Deposits implements exchanges.WalletService. Bitstamp has no endpoint for
// past deposits.
func (s *WalletSvc) Deposits(context.Context) ([]exchanges.Transaction, error) {
	return nil, fmt.Errorf("%w: %s has no endpoint for past deposits",
		exchanges.ErrNotSupported, Name)
}

// Withdrawals implements exchanges.WalletService over the bounded
// withdrawal requests window
func (s *WalletSvc) Withdrawals(ctx context.Context) ([]exchanges.Transaction, error) {
	data, err := s.api.WithdrawalRequests(ctx, maxWithdrawalWindow)
	if err != nil {
		return nil, err
	}
	txs := make([]exchanges.Transaction, 0, len(data))
	for i := range data {
		if currency.NewCode(data[i].Currency) != s.code {
			continue
		}
		tx, err := s.parseWithdrawal(&data[i])
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// Withdraw implements exchanges.WalletService via the per-currency
// withdrawal endpoints. Fee deduction is not supported natively.
func (s *WalletSvc) Withdraw(ctx context.Context, amount money.Money, address string, includesFee bool) (*exchanges.Transaction, error) {
	if includesFee {
		log.Warnf(log.ExchSys, "%s: the subtract fee option is not supported", Name)
	}
	methods := map[currency.Code]func(context.Context, string, string) (*WithdrawalData, error){
		currency.BCH: s.api.WithdrawBCH,
		currency.BTC: s.api.WithdrawBTC,
		currency.ETH: s.api.WithdrawETH,
		currency.LTC: s.api.WithdrawLTC,
		currency.XRP: s.api.WithdrawXRP,
	}
	method, ok := methods[s.code]
	if !ok {
		return nil, fmt.Errorf("%w: no %s withdrawal method for %s",
			exchanges.ErrNotSupported, Name, s.code)
	}
	data, err := method(ctx, address, amount.Amount().String())
	if err != nil {
		return nil, err
	}
	if data.Currency == "" {
		data.Currency = s.code.String()
	}
	if data.Address == "" {
		data.Address = address
	}
	if data.Amount == "" {
		data.Amount = amount.Amount().String()
	}
	tx, err := s.parseWithdrawal(data)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *WalletSvc) parseWithdrawal(data *WithdrawalData) (exchanges.Transaction, error) {
	code := currency.NewCode(data.Currency)
	amount, err := money.NewFromString(data.Amount, code)
	if err != nil {
		return exchanges.Transaction{}, err
	}
	var status exchanges.TxStatus
	switch data.Status {
	case 0, 1:
		status = exchanges.TxStatusPending
	case 2:
		status = exchanges.TxStatusOK
	case 3:
		status = exchanges.TxStatusCanceled
	case 4:
		status = exchanges.TxStatusFailed
	}
	ts := parseDatetime(data.Datetime)
	if ts.IsZero() {
		ts = time.Now()
	}
	return exchanges.Transaction{
		ID:        strconv.FormatInt(data.ID, 10),
		Type:      exchanges.TxWithdrawal,
		Currency:  code,
		Amount:    amount,
		Status:    status,
		Address:   data.Address,
		TxHash:    data.TransactionID,
		Timestamp: ts,
	}, nil
}

// TradingSvc implements the order primitives for one Bitstamp market
type TradingSvc struct {
	api    API
	market currency.Market
}

// NewTradingSvc returns the order primitives of a Bitstamp market
func NewTradingSvc(api API, market currency.Market) *TradingSvc {
	return &TradingSvc{api: api, market: market}
}

// Order implements exchanges.TradingService, aggregating the order's fills
// into filled amount, cost and fee
func (s *TradingSvc) Order(ctx context.Context, id string) (*exchanges.Order, error) {
	data, err := s.api.OrderStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	order := exchanges.Order{
		ID:     strconv.FormatInt(data.ID, 10),
		Market: s.market,
		Status: parseOrderStatus(data.Status),
	}
	filled := money.Zero(s.market.Base)
	cost := money.Zero(s.market.Quote)
	fee := money.Zero(s.market.Quote)
	for i := range data.Transactions {
		tx := &data.Transactions[i]
		amount, err := money.NewFromString(tx.Amount, s.market.Base)
		if err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(tx.Price)
		if err != nil {
			return nil, err
		}
		txFee, err := money.NewFromString(tx.Fee, s.market.Quote)
		if err != nil {
			return nil, err
		}
		if filled, err = filled.Add(amount); err != nil {
			return nil, err
		}
		cost = cost.AddScalar(amount.Amount().Mul(price))
		if fee, err = fee.Add(txFee); err != nil {
			return nil, err
		}
		if order.Timestamp.IsZero() {
			order.Timestamp = parseDatetime(tx.Datetime)
		}
	}
	order.Cost = cost
	order.Fee = fee
	order.Filled = filled
	if order.Status == exchanges.StatusClosed {
		order.Amount = filled
		order.Remaining = money.Zero(s.market.Base)
	}
	if !filled.IsZero() {
		price, err := cost.Div(filled.Amount())
		if err != nil {
			return nil, err
		}
		order.Price = price
	}
	return &order, nil
}

// OpenOrders implements exchanges.TradingService
func (s *TradingSvc) OpenOrders(ctx context.Context) ([]exchanges.Order, error) {
	data, err := s.api.OpenOrders(ctx, marketID(s.market))
	if err != nil {
		return nil, err
	}
	orders := make([]exchanges.Order, 0, len(data))
	for i := range data {
		order, err := s.parseOpenOrder(&data[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// ClosedOrders implements exchanges.TradingService. Bitstamp only lists open
// orders.
func (s *TradingSvc) ClosedOrders(context.Context, time.Time) ([]exchanges.Order, error) {
	return nil, fmt.Errorf("%w: %s only has an endpoint for open orders",
		exchanges.ErrNotSupported, Name)
}

// Place implements exchanges.TradingService. Amounts are truncated to 8
// decimals before submission.
func (s *TradingSvc) Place(ctx context.Context, side exchanges.Side, typ exchanges.OrderType, amount, price money.Money) (*exchanges.Order, error) {
	pair := marketID(s.market)
	amountStr := amount.Truncate(8).Amount().String()

	var data *PlaceOrderData
	var err error
	switch {
	case typ == exchanges.Market && side == exchanges.Buy:
		data, err = s.api.BuyMarketOrder(ctx, pair, amountStr)
	case typ == exchanges.Market && side == exchanges.Sell:
		data, err = s.api.SellMarketOrder(ctx, pair, amountStr)
	case typ == exchanges.Limit && side == exchanges.Buy:
		data, err = s.api.BuyLimitOrder(ctx, pair, amountStr, price.Amount().String())
	case typ == exchanges.Limit && side == exchanges.Sell:
		data, err = s.api.SellLimitOrder(ctx, pair, amountStr, price.Amount().String())
	default:
		return nil, fmt.Errorf("%w: order %s %s", exchanges.ErrNotSupported, typ, side)
	}
	if err != nil {
		return nil, err
	}
	order := exchanges.Order{
		ID:     data.ID,
		Market: s.market,
		Type:   typ,
		Side:   side,
		Status: exchanges.StatusOpen,
	}
	if order.Amount, err = money.NewFromString(data.Amount, s.market.Base); err != nil {
		return nil, err
	}
	order.Remaining = order.Amount
	if typ == exchanges.Limit {
		if order.Price, err = money.NewFromString(data.Price, s.market.Quote); err != nil {
			return nil, err
		}
	}
	order.Timestamp = parseDatetime(data.Datetime)
	if order.Timestamp.IsZero() {
		order.Timestamp = time.Now()
	}
	return &order, nil
}

// Cancel implements exchanges.TradingService
func (s *TradingSvc) Cancel(ctx context.Context, id string) error {
	return s.api.CancelOrder(ctx, id)
}

// MinOrderAmount implements exchanges.TradingService from the static
// per-market floor table. Markets without an entry have no floor.
func (s *TradingSvc) MinOrderAmount(context.Context) (money.Money, error) {
	floor, ok := minOrderAmounts[s.market.Base]
	if !ok {
		return money.Zero(s.market.Base), nil
	}
	return money.NewFromString(floor, s.market.Base)
}

func (s *TradingSvc) parseOpenOrder(data *OpenOrderData) (exchanges.Order, error) {
	side, err := parseSide(data.Type)
	if err != nil {
		return exchanges.Order{}, err
	}
	amount, err := money.NewFromString(data.Amount, s.market.Base)
	if err != nil {
		return exchanges.Order{}, err
	}
	price, err := money.NewFromString(data.Price, s.market.Quote)
	if err != nil {
		return exchanges.Order{}, err
	}
	market := s.market
	if data.CurrencyPair != "" {
		parts := strings.SplitN(data.CurrencyPair, "/", 2)
		if len(parts) == 2 {
			market = currency.NewMarket(currency.NewCode(parts[0]), currency.NewCode(parts[1]))
		}
	}
	return exchanges.Order{
		ID:        data.ID,
		Market:    market,
		Type:      exchanges.Limit,
		Side:      side,
		Status:    exchanges.StatusOpen,
		Amount:    amount,
		Remaining: amount,
		Price:     price,
		Timestamp: parseDatetime(data.Datetime),
	}, nil
}

func parseOrderStatus(status string) exchanges.OrderStatus {
	switch status {
	case "In Queue", "Open":
		return exchanges.StatusOpen
	case "Finished":
		return exchanges.StatusClosed
	}
	return ""
}
