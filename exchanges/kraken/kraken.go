// Package kraken adapts the Kraken exchange API to the exchange client
// primitives
package kraken

import (
	"context"
	"fmt"
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
const Name = "Kraken"

// API is the native transport surface the adapter consumes
type API interface {
	Ticker(ctx context.Context, pair string) (*TickerData, error)
	OrderBook(ctx context.Context, pair string) (*OrderBookData, error)
	Balance(ctx context.Context) (map[string]string, error)
	DepositStatus(ctx context.Context, asset, method string) ([]TransferData, error)
	WithdrawStatus(ctx context.Context, asset, method string) ([]TransferData, error)
	Withdraw(ctx context.Context, asset, amount, address string) (string, error)
	QueryOrders(ctx context.Context, ids []string) (map[string]OrderData, error)
	OpenOrders(ctx context.Context) (map[string]OrderData, error)
	ClosedOrders(ctx context.Context, start int64) (map[string]OrderData, error)
	AddOrder(ctx context.Context, pair, side, orderType, volume, price string) (*AddOrderResult, error)
	CancelOrder(ctx context.Context, id string) error
}

// WithdrawalFees is the static network fee table the wallet client deducts
// from before submission
var WithdrawalFees = map[currency.Code]decimal.Decimal{
	currency.BCH: decimal.RequireFromString("0.0005"),
	currency.BTC: decimal.RequireFromString("0.0005"),
	currency.ETH: decimal.RequireFromString("0.01"),
	currency.LTC: decimal.RequireFromString("0.01"),
}

var minOrderAmounts = map[currency.Code]string{
	currency.BCH: "0.002",
	currency.BTC: "0.002",
	currency.ETH: "0.02",
	currency.LTC: "0.002",
}

type assetMethod struct {
	asset  string
	method string
}

var depositMethods = map[currency.Code]assetMethod{
	currency.BCH: {"BCH", "Bitcoin Cash"},
	currency.BTC: {"XBT", "Bitcoin"},
	currency.ETH: {"XETH", "Ether (Hex)"},
	currency.LTC: {"LTC", "Litecoin"},
}

var withdrawalMethods = map[currency.Code]assetMethod{
	currency.BCH: {"BCH", "Bitcoin Cash"},
	currency.BTC: {"XBT", "Bitcoin"},
	currency.ETH: {"XETH", "Ether"},
	currency.LTC: {"LTC", "Litecoin"},
}

// pairID renders a market the way Kraken keys it, BTC as XBT
func pairID(market currency.Market) string {
	return strings.ReplaceAll(market.Code(), "BTC", "XBT")
}

// balanceAsset renders a currency the way the balance snapshot keys it,
// X prefixed crypto and Z prefixed fiat for the legacy assets
func balanceAsset(code currency.Code) string {
	switch code {
	case currency.BTC:
		return "XXBT"
	case currency.ETH:
		return "XETH"
	case currency.USD:
		return "ZUSD"
	}
	return code.String()
}

// parsePair normalizes a Kraken pair back into a market, stripping X/Z
// prefixes and legacy codes through the common aliases
func parsePair(pair string) (currency.Market, error) {
	clean := strings.ReplaceAll(pair, "XBT", "BTC")
	market, err := currency.MarketFromCode(clean)
	if err != nil {
		return currency.Market{}, fmt.Errorf("%w: pair %q", exchanges.ErrBadResponse, pair)
	}
	return currency.NewMarket(market.Base.Standardize(), market.Quote.Standardize()), nil
}

// MarketSvc implements the market data primitives for one Kraken market
type MarketSvc struct {
	api    API
	market currency.Market
}

// NewMarketSvc returns the market data primitives of a Kraken market
func NewMarketSvc(api API, market currency.Market) *MarketSvc {
	return &MarketSvc{api: api, market: market}
}

// Ticker implements exchanges.MarketService
func (s *MarketSvc) Ticker(ctx context.Context) (*exchanges.Ticker, error) {
	data, err := s.api.Ticker(ctx, pairID(s.market))
	if err != nil {
		return nil, err
	}
	quote := s.market.Quote
	ticker := &exchanges.Ticker{Market: s.market, Timestamp: time.Now()}
	for _, f := range []struct {
		dst   *money.Money
		src   []string
		index int
		cur   currency.Code
	}{
		{&ticker.Bid, data.Bid, 0, quote},
		{&ticker.Ask, data.Ask, 0, quote},
		{&ticker.Last, data.Last, 0, quote},
		{&ticker.High, data.High, 1, quote},
		{&ticker.Low, data.Low, 1, quote},
		{&ticker.VWAP, data.Vwap, 1, quote},
		{&ticker.Volume, data.Volume, 1, s.market.Base},
	} {
		if len(f.src) <= f.index {
			return nil, fmt.Errorf("%w: short ticker field", exchanges.ErrBadResponse)
		}
		if *f.dst, err = money.NewFromString(f.src[f.index], f.cur); err != nil {
			return nil, err
		}
	}
	ticker.Close = ticker.Last
	if data.Open != "" {
		if ticker.Open, err = money.NewFromString(data.Open, quote); err != nil {
			return nil, err
		}
	}
	return ticker, nil
}

// OrderBook implements exchanges.MarketService
func (s *MarketSvc) OrderBook(ctx context.Context) (*orderbook.Book, error) {
	data, err := s.api.OrderBook(ctx, pairID(s.market))
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
			if len(level) < 2 {
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

// TradesSince implements exchanges.MarketService. Kraken public trade
// history is not wired up.
func (s *MarketSvc) TradesSince(context.Context, time.Time) ([]exchanges.Trade, error) {
	return nil, fmt.Errorf("%w: %s public trade history", exchanges.ErrNotSupported, Name)
}

// WalletSvc implements the funding primitives for one Kraken wallet
type WalletSvc struct {
	api  API
	code currency.Code
}

// NewWalletSvc returns the funding primitives of a Kraken wallet
func NewWalletSvc(api API, code currency.Code) *WalletSvc {
	return &WalletSvc{api: api, code: code}
}

// Balance implements exchanges.WalletService. Kraken reports totals only,
// free and used stay unknown.
func (s *WalletSvc) Balance(ctx context.Context) (*exchanges.Balance, error) {
	log.Warnf(log.ExchSys, "%s: only the total balance is reported", Name)
	snapshot, err := s.api.Balance(ctx)
	if err != nil {
		return nil, err
	}
	raw, ok := snapshot[balanceAsset(s.code)]
	if !ok {
		return nil, fmt.Errorf("%w: no %s balance listed", exchanges.ErrBadResponse, s.code)
	}
	total, err := money.NewFromString(raw, s.code)
	if err != nil {
		return nil, err
	}
	return &exchanges.Balance{Total: total}, nil
}

// Deposits implements exchanges.WalletService over the per-currency
// (asset, method) dispatch table
func (s *WalletSvc) Deposits(ctx context.Context) ([]exchanges.Transaction, error) {
	am, ok := depositMethods[s.code]
	if !ok {
		return nil, fmt.Errorf("%w: no %s deposit method for %s",
			exchanges.ErrNotSupported, Name, s.code)
	}
	data, err := s.api.DepositStatus(ctx, am.asset, am.method)
	if err != nil {
		return nil, err
	}
	return s.parseTransfers(data, exchanges.TxDeposit)
}

// Withdrawals implements exchanges.WalletService over the per-currency
// (asset, method) dispatch table
func (s *WalletSvc) Withdrawals(ctx context.Context) ([]exchanges.Transaction, error) {
	am, ok := withdrawalMethods[s.code]
	if !ok {
		return nil, fmt.Errorf("%w: no %s withdrawal method for %s",
			exchanges.ErrNotSupported, Name, s.code)
	}
	data, err := s.api.WithdrawStatus(ctx, am.asset, am.method)
	if err != nil {
		return nil, err
	}
	return s.parseTransfers(data, exchanges.TxWithdrawal)
}

// Withdraw implements exchanges.WalletService. The acknowledgement only
// carries a reference id.
func (s *WalletSvc) Withdraw(ctx context.Context, amount money.Money, address string, includesFee bool) (*exchanges.Transaction, error) {
	am, ok := withdrawalMethods[s.code]
	if !ok {
		return nil, fmt.Errorf("%w: no %s withdrawal method for %s",
			exchanges.ErrNotSupported, Name, s.code)
	}
	if includesFee {
		log.Warnf(log.ExchSys, "%s: cannot deduct the fee natively, submitting the full amount", Name)
	}
	refID, err := s.api.Withdraw(ctx, am.asset, amount.Amount().String(), address)
	if err != nil {
		return nil, err
	}
	return &exchanges.Transaction{
		ID:        refID,
		Type:      exchanges.TxWithdrawal,
		Currency:  s.code,
		Amount:    amount,
		Status:    exchanges.TxStatusPending,
		Address:   address,
		Timestamp: time.Now(),
	}, nil
}

func (s *WalletSvc) parseTransfers(data []TransferData, typ exchanges.TxType) ([]exchanges.Transaction, error) {
	txs := make([]exchanges.Transaction, 0, len(data))
	for i := range data {
		amount, err := money.NewFromString(data[i].Amount, s.code)
		if err != nil {
			return nil, err
		}
		var fee money.Money
		if data[i].Fee != "" {
			if fee, err = money.NewFromString(data[i].Fee, s.code); err != nil {
				return nil, err
			}
		}
		txs = append(txs, exchanges.Transaction{
			ID:        data[i].RefID,
			Type:      typ,
			Currency:  s.code,
			Amount:    amount,
			Fee:       fee,
			Status:    parseTxStatus(data[i].Status),
			Address:   data[i].Info,
			TxHash:    data[i].TxID,
			Timestamp: time.Unix(data[i].Time, 0),
		})
	}
	return txs, nil
}

func parseTxStatus(status string) exchanges.TxStatus {
	switch status {
	case "Success", "Settled":
		return exchanges.TxStatusOK
	case "Failure":
		return exchanges.TxStatusFailed
	case "Initial", "Pending", "On hold":
		return exchanges.TxStatusPending
	}
	return ""
}

// TradingSvc implements the order primitives for one Kraken market
type TradingSvc struct {
	api    API
	market currency.Market
}

// NewTradingSvc returns the order primitives of a Kraken market
func NewTradingSvc(api API, market currency.Market) *TradingSvc {
	return &TradingSvc{api: api, market: market}
}

// Order implements exchanges.TradingService
func (s *TradingSvc) Order(ctx context.Context, id string) (*exchanges.Order, error) {
	result, err := s.api.QueryOrders(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	data, ok := result[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %q", exchanges.ErrOrderNotFound, id)
	}
	order, err := parseOrder(id, &data)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// OpenOrders implements exchanges.TradingService
func (s *TradingSvc) OpenOrders(ctx context.Context) ([]exchanges.Order, error) {
	result, err := s.api.OpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	return parseOrderMap(result)
}

// ClosedOrders implements exchanges.TradingService
func (s *TradingSvc) ClosedOrders(ctx context.Context, since time.Time) ([]exchanges.Order, error) {
	var start int64
	if !since.IsZero() {
		start = since.Unix()
	}
	result, err := s.api.ClosedOrders(ctx, start)
	if err != nil {
		return nil, err
	}
	return parseOrderMap(result)
}

// Place implements exchanges.TradingService. The acknowledgement carries no
// order body, so the order echoes the request under the returned id.
func (s *TradingSvc) Place(ctx context.Context, side exchanges.Side, typ exchanges.OrderType, amount, price money.Money) (*exchanges.Order, error) {
	priceStr := ""
	if typ == exchanges.Limit {
		priceStr = price.Amount().String()
	}
	result, err := s.api.AddOrder(ctx, pairID(s.market), side.String(),
		typ.String(), amount.Amount().String(), priceStr)
	if err != nil {
		return nil, err
	}
	if len(result.TxIDs) == 0 {
		return nil, fmt.Errorf("%w: no transaction id returned", exchanges.ErrBadResponse)
	}
	return &exchanges.Order{
		ID:        result.TxIDs[0],
		Market:    s.market,
		Type:      typ,
		Side:      side,
		Status:    exchanges.StatusOpen,
		Amount:    amount,
		Remaining: amount,
		Price:     price,
		Timestamp: time.Now(),
	}, nil
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

func parseOrderMap(result map[string]OrderData) ([]exchanges.Order, error) {
	orders := make([]exchanges.Order, 0, len(result))
	for id := range result {
		data := result[id]
		order, err := parseOrder(id, &data)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func parseOrder(id string, data *OrderData) (exchanges.Order, error) {
	market, err := parsePair(data.Descr.Pair)
	if err != nil {
		return exchanges.Order{}, err
	}
	sec := int64(data.OpenTM)
	order := exchanges.Order{
		ID:        id,
		Market:    market,
		Type:      exchanges.OrderType(data.Descr.OrderType),
		Side:      exchanges.Side(data.Descr.Type),
		Status:    parseOrderStatus(data.Status),
		Timestamp: time.Unix(sec, int64((data.OpenTM-float64(sec))*float64(time.Second))),
	}
	amount, err := money.NewFromString(data.Vol, market.Base)
	if err != nil {
		return exchanges.Order{}, err
	}
	filled, err := money.NewFromString(data.VolExec, market.Base)
	if err != nil {
		return exchanges.Order{}, err
	}
	order.Amount = amount
	order.Filled = filled
	if order.Remaining, err = amount.Sub(filled); err != nil {
		return exchanges.Order{}, err
	}
	if data.Cost != "" {
		if order.Cost, err = money.NewFromString(data.Cost, market.Quote); err != nil {
			return exchanges.Order{}, err
		}
	}
	// prefer the average execution price, fall back to the limit price
	for _, raw := range []string{data.Price, data.Descr.Price, data.Descr.Price2} {
		if raw == "" || raw == "0" {
			continue
		}
		if order.Price, err = money.NewFromString(raw, market.Quote); err != nil {
			return exchanges.Order{}, err
		}
		break
	}
	// the fee currency depends on the fciq/fcib order flags
	if data.Fee != "" {
		var feeCur currency.Code
		switch {
		case strings.Contains(data.OFlags, "fciq"):
			feeCur = market.Quote
		case strings.Contains(data.OFlags, "fcib"):
			feeCur = market.Base
		}
		if !feeCur.IsEmpty() {
			if order.Fee, err = money.NewFromString(data.Fee, feeCur); err != nil {
				return exchanges.Order{}, err
			}
		}
	}
	return order, nil
}

func parseOrderStatus(status string) exchanges.OrderStatus {
	switch status {
	case "pending", "open":
		return exchanges.StatusOpen
	case "closed":
		return exchanges.StatusClosed
	case "canceled", "expired":
		return exchanges.StatusCanceled
	}
	return ""
}
