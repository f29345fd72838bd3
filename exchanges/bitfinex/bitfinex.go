// Package bitfinex adapts the Bitfinex exchange API to the exchange client
// primitives
package bitfinex

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
const Name = "Bitfinex"

// walletType is the wallet every client operates on
const walletType = "exchange"

// movementsPageSize is the most movements one call returns
const movementsPageSize = 999

// tradesPageSize is the most v2 trades one call returns
const tradesPageSize = 1000

// closedOrdersWindow is how far back the order history reaches
const closedOrdersWindow = 3 * 24 * time.Hour

// API is the native transport surface the adapter consumes
type API interface {
	Ticker(ctx context.Context, symbol string) (*TickerData, error)
	OrderBook(ctx context.Context, symbol string, limitBids, limitAsks int) (*OrderBookData, error)
	TradesV2(ctx context.Context, symbol string, startMs int64, limit int) ([]TradeV2Data, error)
	Balances(ctx context.Context) ([]BalanceData, error)
	Movements(ctx context.Context, code, until string, limit int) ([]MovementData, error)
	Withdraw(ctx context.Context, method, wallet, amount, address string) (*MovementData, error)
	StatusOrder(ctx context.Context, id int64) (*OrderData, error)
	ActiveOrders(ctx context.Context) ([]OrderData, error)
	OrdersHistory(ctx context.Context, limit int) ([]OrderData, error)
	PlaceOrder(ctx context.Context, amount, price, side, typ, symbol string) (*OrderData, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// WithdrawalFees is the static network fee table the wallet client deducts
// from before submission
var WithdrawalFees = map[currency.Code]decimal.Decimal{
	currency.BCH: decimal.RequireFromString("0.0005"),
	currency.BTC: decimal.RequireFromString("0.0005"),
	currency.ETH: decimal.RequireFromString("0.01"),
	currency.LTC: decimal.RequireFromString("0.01"),
}

// withdrawalMethods maps currencies to Bitfinex withdrawal method names
var withdrawalMethods = map[currency.Code]string{
	currency.BCH: "bcash",
	currency.BTC: "bitcoin",
	currency.ETH: "ethereum",
	currency.LTC: "litecoin",
}

var minOrderAmounts = map[currency.Code]string{
	currency.BCH: "0.02",
	currency.BTC: "0.002",
	currency.ETH: "0.04",
	currency.LTC: "0.02",
}

func symbol(market currency.Market) string {
	return strings.ToLower(market.Code())
}

func symbolV2(market currency.Market) string {
	return "t" + market.Code()
}

// parseUnix parses Bitfinex's fractional unix second stamps
func parseUnix(s string) time.Time {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}
	}
	sec := int64(f)
	return time.Unix(sec, int64((f-float64(sec))*float64(time.Second)))
}

// MarketSvc implements the market data primitives for one Bitfinex market
type MarketSvc struct {
	api    API
	market currency.Market
}

// NewMarketSvc returns the market data primitives of a Bitfinex market
func NewMarketSvc(api API, market currency.Market) *MarketSvc {
	return &MarketSvc{api: api, market: market}
}

// Ticker implements exchanges.MarketService
func (s *MarketSvc) Ticker(ctx context.Context) (*exchanges.Ticker, error) {
	data, err := s.api.Ticker(ctx, symbol(s.market))
	if err != nil {
		return nil, err
	}
	quote := s.market.Quote
	ticker := &exchanges.Ticker{Market: s.market, Timestamp: parseUnix(data.Timestamp)}
	for _, f := range []struct {
		dst *money.Money
		src string
		cur currency.Code
	}{
		{&ticker.Bid, data.Bid, quote},
		{&ticker.Ask, data.Ask, quote},
		{&ticker.Last, data.LastPrice, quote},
		{&ticker.High, data.High, quote},
		{&ticker.Low, data.Low, quote},
		{&ticker.Average, data.Mid, quote},
		{&ticker.Volume, data.Volume, s.market.Base},
	} {
		if *f.dst, err = money.NewFromString(f.src, f.cur); err != nil {
			return nil, err
		}
	}
	ticker.Close = ticker.Last
	return ticker, nil
}

// OrderBook implements exchanges.MarketService, capped at 1000 levels per
// side
func (s *MarketSvc) OrderBook(ctx context.Context) (*orderbook.Book, error) {
	data, err := s.api.OrderBook(ctx, symbol(s.market), 1000, 1000)
	if err != nil {
		return nil, err
	}
	book := &orderbook.Book{Market: s.market, Timestamp: time.Now()}
	sides := []struct {
		dst *[]orderbook.Entry
		src []BookEntryData
	}{{&book.Bids, data.Bids}, {&book.Asks, data.Asks}}
	for _, side := range sides {
		for _, level := range side.src {
			price, err := decimal.NewFromString(level.Price)
			if err != nil {
				return nil, err
			}
			amount, err := decimal.NewFromString(level.Amount)
			if err != nil {
				return nil, err
			}
			*side.dst = append(*side.dst, orderbook.NewEntry(s.market, price, amount))
		}
	}
	return book, nil
}

// TradesSince implements exchanges.MarketService, walking the ascending v2
// pages and de-duplicating overlapping ids
func (s *MarketSvc) TradesSince(ctx context.Context, since time.Time) ([]exchanges.Trade, error) {
	seen := make(map[int64]bool)
	var trades []exchanges.Trade
	cursor := since.UnixMilli()
	for {
		entries, err := s.api.TradesV2(ctx, symbolV2(s.market), cursor, tradesPageSize)
		if err != nil {
			return nil, err
		}
		for i := range entries {
			if seen[entries[i].ID] {
				continue
			}
			seen[entries[i].ID] = true
			trade, err := s.parseTrade(&entries[i])
			if err != nil {
				return nil, err
			}
			trades = append(trades, trade)
		}
		if len(entries) < tradesPageSize {
			return trades, nil
		}
		cursor = entries[len(entries)-1].MTS
	}
}

func (s *MarketSvc) parseTrade(data *TradeV2Data) (exchanges.Trade, error) {
	raw, err := decimal.NewFromString(data.Amount)
	if err != nil {
		return exchanges.Trade{}, err
	}
	price, err := money.NewFromString(data.Price, s.market.Quote)
	if err != nil {
		return exchanges.Trade{}, err
	}
	side := exchanges.Buy
	if raw.IsNegative() {
		side = exchanges.Sell
	}
	amount := money.New(raw.Abs(), s.market.Base)
	return exchanges.Trade{
		ID:        strconv.FormatInt(data.ID, 10),
		Market:    s.market,
		Side:      side,
		Amount:    amount,
		Price:     price,
		Cost:      money.New(price.Amount().Mul(amount.Amount()), s.market.Quote),
		Timestamp: time.UnixMilli(data.MTS),
	}, nil
}

// WalletSvc implements the funding primitives for one Bitfinex exchange
// wallet
type WalletSvc struct {
	api  API
	code currency.Code
}

// NewWalletSvc returns the funding primitives of a Bitfinex wallet
func NewWalletSvc(api API, code currency.Code) *WalletSvc {
	return &WalletSvc{api: api, code: code}
}

// Balance implements exchanges.WalletService, picking the exchange wallet
// entry out of the balances listing
func (s *WalletSvc) Balance(ctx context.Context) (*exchanges.Balance, error) {
	entries, err := s.api.Balances(ctx)
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(s.code.String())
	for i := range entries {
		if entries[i].Currency != want || entries[i].Type != walletType {
			continue
		}
		total, err := money.NewFromString(entries[i].Amount, s.code)
		if err != nil {
			return nil, err
		}
		free, err := money.NewFromString(entries[i].Available, s.code)
		if err != nil {
			return nil, err
		}
		used, err := total.Sub(free)
		if err != nil {
			return nil, err
		}
		return &exchanges.Balance{Total: total, Free: free, Used: used}, nil
	}
	return nil, fmt.Errorf("%w: no %s %s wallet listed",
		exchanges.ErrBadResponse, walletType, s.code)
}

// Deposits implements exchanges.WalletService
func (s *WalletSvc) Deposits(ctx context.Context) ([]exchanges.Transaction, error) {
	return s.movements(ctx, exchanges.TxDeposit)
}

// Withdrawals implements exchanges.WalletService
func (s *WalletSvc) Withdrawals(ctx context.Context) ([]exchanges.Transaction, error) {
	return s.movements(ctx, exchanges.TxWithdrawal)
}

// movements walks the timestamp keyed movement pages backwards,
// de-duplicating overlapping ids. The endpoint mixes deposits and
// withdrawals, filtered here by type.
func (s *WalletSvc) movements(ctx context.Context, typ exchanges.TxType) ([]exchanges.Transaction, error) {
	want := strings.ToUpper(typ.String())
	seen := make(map[int64]bool)
	var txs []exchanges.Transaction
	until := ""
	for {
		entries, err := s.api.Movements(ctx, s.code.String(), until, movementsPageSize)
		if err != nil {
			return nil, err
		}
		for i := range entries {
			if entries[i].Type != want || seen[entries[i].ID] {
				continue
			}
			seen[entries[i].ID] = true
			tx, err := s.parseMovement(&entries[i], typ)
			if err != nil {
				return nil, err
			}
			txs = append(txs, tx)
		}
		if len(entries) < movementsPageSize {
			return txs, nil
		}
		until = entries[len(entries)-1].TimestampCreated
	}
}

func (s *WalletSvc) parseMovement(data *MovementData, typ exchanges.TxType) (exchanges.Transaction, error) {
	amount, err := money.NewFromString(data.Amount, s.code)
	if err != nil {
		return exchanges.Transaction{}, err
	}
	var fee money.Money
	if data.Fee != "" {
		if fee, err = money.NewFromString(data.Fee, s.code); err != nil {
			return exchanges.Transaction{}, err
		}
		fee = fee.Abs()
	}
	var status exchanges.TxStatus
	switch data.Status {
	case "COMPLETED":
		status = exchanges.TxStatusOK
	case "CANCELED":
		status = exchanges.TxStatusCanceled
	case "ZEROCONFIRMED":
		status = exchanges.TxStatusFailed
	}
	return exchanges.Transaction{
		ID:        strconv.FormatInt(data.ID, 10),
		Type:      typ,
		Currency:  s.code,
		Amount:    amount,
		Fee:       fee,
		Status:    status,
		Address:   data.Address,
		TxHash:    data.TXID,
		Timestamp: parseUnix(data.TimestampCreated),
	}, nil
}

// Withdraw implements exchanges.WalletService via the per-currency method
// names. The fee table already deducted any fee upstream.
func (s *WalletSvc) Withdraw(ctx context.Context, amount money.Money, address string, includesFee bool) (*exchanges.Transaction, error) {
	method, ok := withdrawalMethods[s.code]
	if !ok {
		return nil, fmt.Errorf("%w: no %s withdrawal method for %s",
			exchanges.ErrNotSupported, Name, s.code)
	}
	if includesFee {
		log.Warnf(log.ExchSys, "%s: cannot deduct the fee natively, submitting the full amount", Name)
	}
	data, err := s.api.Withdraw(ctx, method, walletType, amount.Amount().String(), address)
	if err != nil {
		return nil, err
	}
	if data.Amount == "" {
		data.Amount = amount.Amount().String()
	}
	if data.Address == "" {
		data.Address = address
	}
	tx, err := s.parseMovement(data, exchanges.TxWithdrawal)
	if err != nil {
		return nil, err
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now()
	}
	return &tx, nil
}

// TradingSvc implements the order primitives for one Bitfinex market
type TradingSvc struct {
	api    API
	market currency.Market
}

// NewTradingSvc returns the order primitives of a Bitfinex market
func NewTradingSvc(api API, market currency.Market) *TradingSvc {
	return &TradingSvc{api: api, market: market}
}

// Order implements exchanges.TradingService
func (s *TradingSvc) Order(ctx context.Context, id string) (*exchanges.Order, error) {
	nativeID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: order id %q", exchanges.ErrOrderNotFound, id)
	}
	data, err := s.api.StatusOrder(ctx, nativeID)
	if err != nil {
		return nil, err
	}
	order, err := parseOrder(data)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OpenOrders implements exchanges.TradingService
func (s *TradingSvc) OpenOrders(ctx context.Context) ([]exchanges.Order, error) {
	data, err := s.api.ActiveOrders(ctx)
	if err != nil {
		return nil, err
	}
	return parseOrders(data)
}

// ClosedOrders implements exchanges.TradingService. The history endpoint
// only reaches back three days, an older since bound fails outright.
func (s *TradingSvc) ClosedOrders(ctx context.Context, since time.Time) ([]exchanges.Order, error) {
	oldest := time.Now().Add(-closedOrdersWindow)
	if since.IsZero() {
		log.Warnf(log.ExchSys, "%s: only three days of closed orders are available", Name)
	} else if since.Before(oldest) {
		return nil, fmt.Errorf("%w: %s only returns orders for the last 3 days",
			exchanges.ErrExchange, Name)
	}
	data, err := s.api.OrdersHistory(ctx, 0)
	if err != nil {
		return nil, err
	}
	orders, err := parseOrders(data)
	if err != nil {
		return nil, err
	}
	closed := orders[:0]
	for _, o := range orders {
		if o.Status == exchanges.StatusClosed {
			closed = append(closed, o)
		}
	}
	return closed, nil
}

// Place implements exchanges.TradingService using the exchange wallet order
// types
func (s *TradingSvc) Place(ctx context.Context, side exchanges.Side, typ exchanges.OrderType, amount, price money.Money) (*exchanges.Order, error) {
	nativeType := walletType + " " + typ.String()
	priceStr := "0"
	if typ == exchanges.Limit {
		priceStr = price.Amount().String()
	}
	data, err := s.api.PlaceOrder(ctx, amount.Amount().String(), priceStr,
		side.String(), nativeType, symbol(s.market))
	if err != nil {
		return nil, err
	}
	order, err := parseOrder(data)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Cancel implements exchanges.TradingService
func (s *TradingSvc) Cancel(ctx context.Context, id string) error {
	nativeID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: order id %q", exchanges.ErrOrderNotFound, id)
	}
	return s.api.DeleteOrder(ctx, nativeID)
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

func parseOrders(data []OrderData) ([]exchanges.Order, error) {
	orders := make([]exchanges.Order, 0, len(data))
	for i := range data {
		order, err := parseOrder(&data[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func parseOrder(data *OrderData) (exchanges.Order, error) {
	market, err := currency.MarketFromCode(strings.ToUpper(data.Symbol))
	if err != nil {
		return exchanges.Order{}, err
	}
	parts := strings.Fields(data.Type)
	if len(parts) != 2 || parts[0] != walletType {
		return exchanges.Order{}, fmt.Errorf("%w: order type %q", exchanges.ErrBadResponse, data.Type)
	}
	status := exchanges.StatusClosed
	switch {
	case data.IsLive:
		status = exchanges.StatusOpen
	case data.IsCancelled:
		status = exchanges.StatusCanceled
	}
	order := exchanges.Order{
		ID:        strconv.FormatInt(data.ID, 10),
		Market:    market,
		Type:      exchanges.OrderType(parts[1]),
		Side:      exchanges.Side(data.Side),
		Status:    status,
		Timestamp: parseUnix(data.Timestamp),
	}
	if order.Amount, err = money.NewFromString(data.OriginalAmount, market.Base); err != nil {
		return exchanges.Order{}, err
	}
	if order.Remaining, err = money.NewFromString(data.RemainingAmount, market.Base); err != nil {
		return exchanges.Order{}, err
	}
	if order.Filled, err = money.NewFromString(data.ExecutedAmount, market.Base); err != nil {
		return exchanges.Order{}, err
	}
	filled := order.Filled
	priceStr := data.Price
	if !filled.IsZero() && data.AvgExecutionPrice != "" {
		priceStr = data.AvgExecutionPrice
	}
	if order.Price, err = money.NewFromString(priceStr, market.Quote); err != nil {
		return exchanges.Order{}, err
	}
	order.Cost = money.New(order.Price.Amount().Mul(filled.Amount()), market.Quote)
	return order, nil
}
