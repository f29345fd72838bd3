// Package buda adapts the Buda exchange API to the exchange client
// primitives
package buda

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
	"github.com/rob-Hitchens/trading-bots/money"
)

// Name is the exchange identifier
const Name = "Buda"

// perPage is the page size of Buda's paginated endpoints
const perPage = 300

// API is the native transport surface the adapter consumes. Implementations
// do the HTTP and signing; the adapter only parses.
type API interface {
	Ticker(ctx context.Context, marketID string) (*TickerData, error)
	OrderBook(ctx context.Context, marketID string) (*OrderBookData, error)
	Trades(ctx context.Context, marketID, timestamp string, limit int) (*TradesPage, error)
	Balance(ctx context.Context, code string) (*BalanceData, error)
	DepositPages(ctx context.Context, code string, page, perPage int) (*TransfersPage, error)
	WithdrawalPages(ctx context.Context, code string, page, perPage int) (*TransfersPage, error)
	Withdraw(ctx context.Context, code, amount, address string, amountIncludesFee bool) (*TransferData, error)
	OrderDetails(ctx context.Context, orderID string) (*OrderData, error)
	OrderPages(ctx context.Context, marketID string, page, perPage int, state string) (*OrdersPage, error)
	NewOrder(ctx context.Context, marketID, side, priceType, amount, limit string) (*OrderData, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// minOrderAmounts is the smallest base amount each market accepts
var minOrderAmounts = map[currency.Code]string{
	currency.BCH: "0.0001",
	currency.BTC: "0.0001",
	currency.ETH: "0.001",
	currency.LTC: "0.00001",
}

var orderStates = map[exchanges.OrderStatus][]string{
	exchanges.StatusOpen:     {"pending", "received"},
	exchanges.StatusClosed:   {"traded"},
	exchanges.StatusCanceled: {"canceling", "canceled"},
}

// marketID renders a market the way Buda keys it, lowercased base-quote
func marketID(market currency.Market) string {
	return strings.ToLower(market.Base.String() + "-" + market.Quote.String())
}

// pairMoney parses Buda's [amount, currency] pair representation
func pairMoney(pair []string) (money.Money, error) {
	if len(pair) != 2 {
		return money.Money{}, fmt.Errorf("%w: money pair %v", exchanges.ErrBadResponse, pair)
	}
	return money.NewFromString(pair[0], currency.NewCode(pair[1]))
}

// priceAmountEntry parses a [price, amount] depth level
func priceAmountEntry(market currency.Market, level []string) (orderbook.Entry, error) {
	if len(level) != 2 {
		return orderbook.Entry{}, fmt.Errorf("%w: depth level %v", exchanges.ErrBadResponse, level)
	}
	price, err := decimal.NewFromString(level[0])
	if err != nil {
		return orderbook.Entry{}, err
	}
	amount, err := decimal.NewFromString(level[1])
	if err != nil {
		return orderbook.Entry{}, err
	}
	return orderbook.NewEntry(market, price, amount), nil
}

// MarketSvc implements the market data primitives for one Buda market
type MarketSvc struct {
	api    API
	market currency.Market
}

// NewMarketSvc returns the market data primitives of a Buda market
func NewMarketSvc(api API, market currency.Market) *MarketSvc {
	return &MarketSvc{api: api, market: market}
}

// Ticker implements exchanges.MarketService. Buda reports neither open nor
// change so both derive from the last price and the 24h variation.
func (s *MarketSvc) Ticker(ctx context.Context) (*exchanges.Ticker, error) {
	data, err := s.api.Ticker(ctx, marketID(s.market))
	if err != nil {
		return nil, err
	}
	last, err := pairMoney(data.LastPrice)
	if err != nil {
		return nil, err
	}
	bid, err := pairMoney(data.MaxBid)
	if err != nil {
		return nil, err
	}
	ask, err := pairMoney(data.MinAsk)
	if err != nil {
		return nil, err
	}
	volume, err := pairMoney(data.Volume)
	if err != nil {
		return nil, err
	}
	variation, err := decimal.NewFromString(data.PriceVariation24H)
	if err != nil {
		return nil, err
	}
	open, err := last.Div(variation.Add(decimal.New(1, 0)))
	if err != nil {
		return nil, err
	}
	change, err := last.Sub(open)
	if err != nil {
		return nil, err
	}
	sum, err := last.Add(open)
	if err != nil {
		return nil, err
	}
	average, err := sum.Div(decimal.New(2, 0))
	if err != nil {
		return nil, err
	}
	return &exchanges.Ticker{
		Market:     s.market,
		Bid:        bid,
		Ask:        ask,
		Last:       last,
		Open:       open,
		Close:      last,
		Change:     change,
		Percentage: variation,
		Average:    average,
		Volume:     volume,
		Timestamp:  time.Now(),
	}, nil
}

// OrderBook implements exchanges.MarketService
func (s *MarketSvc) OrderBook(ctx context.Context) (*orderbook.Book, error) {
	data, err := s.api.OrderBook(ctx, marketID(s.market))
	if err != nil {
		return nil, err
	}
	book := &orderbook.Book{Market: s.market, Timestamp: time.Now()}
	for _, level := range data.Bids {
		entry, err := priceAmountEntry(s.market, level)
		if err != nil {
			return nil, err
		}
		book.Bids = append(book.Bids, entry)
	}
	for _, level := range data.Asks {
		entry, err := priceAmountEntry(s.market, level)
		if err != nil {
			return nil, err
		}
		book.Asks = append(book.Asks, entry)
	}
	return book, nil
}

// TradesSince implements exchanges.MarketService, walking the timestamp
// keyed pages until the cursor crosses since
func (s *MarketSvc) TradesSince(ctx context.Context, since time.Time) ([]exchanges.Trade, error) {
	var trades []exchanges.Trade
	cursor := ""
	for {
		page, err := s.api.Trades(ctx, marketID(s.market), cursor, perPage)
		if err != nil {
			return nil, err
		}
		for _, entry := range page.Entries {
			trade, err := s.parseTrade(entry)
			if err != nil {
				return nil, err
			}
			trades = append(trades, trade)
		}
		if len(page.Entries) == 0 || page.LastTimestamp == "" {
			return trades, nil
		}
		lastMs, err := strconv.ParseInt(page.LastTimestamp, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: trade cursor %q", exchanges.ErrBadResponse, page.LastTimestamp)
		}
		if lastMs/1000 <= since.Unix() {
			return trades, nil
		}
		cursor = page.LastTimestamp
	}
}

// parseTrade parses a [unix_ms, amount, price, direction] public trade entry
func (s *MarketSvc) parseTrade(entry []string) (exchanges.Trade, error) {
	if len(entry) != 4 {
		return exchanges.Trade{}, fmt.Errorf("%w: trade entry %v", exchanges.ErrBadResponse, entry)
	}
	ms, err := strconv.ParseInt(entry[0], 10, 64)
	if err != nil {
		return exchanges.Trade{}, err
	}
	amount, err := money.NewFromString(entry[1], s.market.Base)
	if err != nil {
		return exchanges.Trade{}, err
	}
	price, err := money.NewFromString(entry[2], s.market.Quote)
	if err != nil {
		return exchanges.Trade{}, err
	}
	return exchanges.Trade{
		Market:    s.market,
		Side:      exchanges.Side(entry[3]),
		Amount:    amount,
		Price:     price,
		Cost:      money.New(amount.Amount().Mul(price.Amount()), s.market.Quote),
		Timestamp: time.UnixMilli(ms),
	}, nil
}

// WalletSvc implements the funding primitives for one Buda wallet
type WalletSvc struct {
	api  API
	code currency.Code
}

// NewWalletSvc returns the funding primitives of a Buda wallet
func NewWalletSvc(api API, code currency.Code) *WalletSvc {
	return &WalletSvc{api: api, code: code}
}

// Balance implements exchanges.WalletService. Used funds derive from total
// minus available.
func (s *WalletSvc) Balance(ctx context.Context) (*exchanges.Balance, error) {
	data, err := s.api.Balance(ctx, s.code.String())
	if err != nil {
		return nil, err
	}
	total, err := pairMoney(data.Amount)
	if err != nil {
		return nil, err
	}
	free, err := pairMoney(data.AvailableAmount)
	if err != nil {
		return nil, err
	}
	used, err := total.Sub(free)
	if err != nil {
		return nil, err
	}
	return &exchanges.Balance{Total: total, Free: free, Used: used}, nil
}

// Deposits implements exchanges.WalletService
func (s *WalletSvc) Deposits(ctx context.Context) ([]exchanges.Transaction, error) {
	return s.transfers(ctx, exchanges.TxDeposit, s.api.DepositPages)
}

// Withdrawals implements exchanges.WalletService
func (s *WalletSvc) Withdrawals(ctx context.Context) ([]exchanges.Transaction, error) {
	return s.transfers(ctx, exchanges.TxWithdrawal, s.api.WithdrawalPages)
}

func (s *WalletSvc) transfers(ctx context.Context, typ exchanges.TxType, fetch func(context.Context, string, int, int) (*TransfersPage, error)) ([]exchanges.Transaction, error) {
	var txs []exchanges.Transaction
	page := 1
	for {
		data, err := fetch(ctx, s.code.String(), page, perPage)
		if err != nil {
			return nil, err
		}
		entries := data.Deposits
		if typ == exchanges.TxWithdrawal {
			entries = data.Withdrawals
		}
		for i := range entries {
			tx, err := parseTransfer(&entries[i], typ)
			if err != nil {
				return nil, err
			}
			txs = append(txs, tx)
		}
		page = data.Meta.CurrentPage + 1
		if page > data.Meta.TotalPages {
			return txs, nil
		}
	}
}

// Withdraw implements exchanges.WalletService. Buda deducts the network fee
// from the requested amount natively when includesFee is set.
func (s *WalletSvc) Withdraw(ctx context.Context, amount money.Money, address string, includesFee bool) (*exchanges.Transaction, error) {
	data, err := s.api.Withdraw(ctx, s.code.String(), amount.Amount().String(), address, includesFee)
	if err != nil {
		return nil, err
	}
	tx, err := parseTransfer(data, exchanges.TxWithdrawal)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func parseTransfer(data *TransferData, typ exchanges.TxType) (exchanges.Transaction, error) {
	amount, err := pairMoney(data.Amount)
	if err != nil {
		return exchanges.Transaction{}, err
	}
	fee, err := pairMoney(data.Fee)
	if err != nil {
		return exchanges.Transaction{}, err
	}
	tx := exchanges.Transaction{
		ID:        strconv.FormatInt(data.ID, 10),
		Type:      typ,
		Currency:  currency.NewCode(data.Currency),
		Amount:    amount,
		Fee:       fee,
		Status:    parseTxStatus(data.State),
		Timestamp: data.CreatedAt,
	}
	if data.Data != nil {
		tx.Address = data.Data.Address
		tx.TxHash = data.Data.TxHash
	}
	return tx, nil
}

func parseTxStatus(state string) exchanges.TxStatus {
	if strings.Contains(state, "pending") {
		return exchanges.TxStatusPending
	}
	switch state {
	case "confirmed":
		return exchanges.TxStatusOK
	case "rejected":
		return exchanges.TxStatusFailed
	case "anulled", "retained":
		return exchanges.TxStatusCanceled
	}
	return ""
}

// TradingSvc implements the order primitives for one Buda market
type TradingSvc struct {
	api    API
	market currency.Market
}

// NewTradingSvc returns the order primitives of a Buda market
func NewTradingSvc(api API, market currency.Market) *TradingSvc {
	return &TradingSvc{api: api, market: market}
}

// Order implements exchanges.TradingService
func (s *TradingSvc) Order(ctx context.Context, id string) (*exchanges.Order, error) {
	data, err := s.api.OrderDetails(ctx, id)
	if err != nil {
		return nil, err
	}
	order, err := parseOrder(data)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OpenOrders implements exchanges.TradingService, merging the pending and
// received states
func (s *TradingSvc) OpenOrders(ctx context.Context) ([]exchanges.Order, error) {
	return s.ordersInStates(ctx, orderStates[exchanges.StatusOpen], time.Time{})
}

// ClosedOrders implements exchanges.TradingService
func (s *TradingSvc) ClosedOrders(ctx context.Context, since time.Time) ([]exchanges.Order, error) {
	return s.ordersInStates(ctx, orderStates[exchanges.StatusClosed], since)
}

// ordersInStates walks the order pages of each state. Pages run newest
// first, so a non-zero since stops paging once a page ends before it.
func (s *TradingSvc) ordersInStates(ctx context.Context, states []string, since time.Time) ([]exchanges.Order, error) {
	var orders []exchanges.Order
	for _, state := range states {
		page := 1
		for {
			data, err := s.api.OrderPages(ctx, marketID(s.market), page, perPage, state)
			if err != nil {
				return nil, err
			}
			for i := range data.Orders {
				order, err := parseOrder(&data.Orders[i])
				if err != nil {
					return nil, err
				}
				orders = append(orders, order)
			}
			if n := len(data.Orders); n > 0 && !since.IsZero() &&
				data.Orders[n-1].CreatedAt.Before(since) {
				break
			}
			page = data.Meta.CurrentPage + 1
			if page > data.Meta.TotalPages {
				break
			}
		}
	}
	return orders, nil
}

// Place implements exchanges.TradingService
func (s *TradingSvc) Place(ctx context.Context, side exchanges.Side, typ exchanges.OrderType, amount, price money.Money) (*exchanges.Order, error) {
	nativeSide := "Bid"
	if side == exchanges.Sell {
		nativeSide = "Ask"
	}
	limit := ""
	if typ == exchanges.Limit {
		limit = price.Amount().String()
	}
	data, err := s.api.NewOrder(ctx, marketID(s.market), nativeSide,
		typ.String(), amount.Amount().String(), limit)
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

func parseOrder(data *OrderData) (exchanges.Order, error) {
	parts := strings.SplitN(data.MarketID, "-", 2)
	if len(parts) != 2 {
		return exchanges.Order{}, fmt.Errorf("%w: market id %q", exchanges.ErrBadResponse, data.MarketID)
	}
	market := currency.NewMarket(currency.NewCode(parts[0]), currency.NewCode(parts[1]))
	side := exchanges.Buy
	if data.Type == "Ask" {
		side = exchanges.Sell
	}
	original, err := pairMoney(data.OriginalAmount)
	if err != nil {
		return exchanges.Order{}, err
	}
	remaining, err := pairMoney(data.Amount)
	if err != nil {
		return exchanges.Order{}, err
	}
	traded, err := pairMoney(data.TradedAmount)
	if err != nil {
		return exchanges.Order{}, err
	}
	exchanged, err := pairMoney(data.TotalExchanged)
	if err != nil {
		return exchanges.Order{}, err
	}
	fee, err := pairMoney(data.PaidFee)
	if err != nil {
		return exchanges.Order{}, err
	}
	var price money.Money
	if data.PriceType == "limit" && len(data.Limit) == 2 {
		if price, err = pairMoney(data.Limit); err != nil {
			return exchanges.Order{}, err
		}
	}
	// the effective price of a filled order beats the requested limit
	if !exchanged.IsZero() && !traded.IsZero() {
		if price, err = exchanged.Div(traded.Amount()); err != nil {
			return exchanges.Order{}, err
		}
	}
	return exchanges.Order{
		ID:        strconv.FormatInt(data.ID, 10),
		Market:    market,
		Type:      exchanges.OrderType(data.PriceType),
		Side:      side,
		Status:    parseOrderStatus(data.State),
		Amount:    original,
		Remaining: remaining,
		Filled:    traded,
		Price:     price,
		Cost:      exchanged,
		Fee:       fee,
		Timestamp: data.CreatedAt,
	}, nil
}

func parseOrderStatus(state string) exchanges.OrderStatus {
	for status, states := range orderStates {
		for _, s := range states {
			if s == state {
				return status
			}
		}
	}
	return ""
}
