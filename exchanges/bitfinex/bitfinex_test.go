package bitfinex

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/rob-Hitchens/trading-bots/currency"
	"github.com/rob-Hitchens/trading-bots/exchanges"
	"github.com/rob-Hitchens/trading-bots/money"
)

var btcusd = currency.NewMarket(currency.BTC, currency.USD)

type fakeAPI struct {
	ticker        *TickerData
	book          *OrderBookData
	tradePages    [][]TradeV2Data
	balances      []BalanceData
	movementPages [][]MovementData
	order         *OrderData
	active        []OrderData
	history       []OrderData
	gotSymbol     string
	gotAmount     string
	gotMethod     string
	gotType       string
	deletedID     int64
	tradeCalls    int
	movementCalls int
}

func (f *fakeAPI) Ticker(_ context.Context, symbol string) (*TickerData, error) {
	f.gotSymbol = symbol
	return f.ticker, nil
}

func (f *fakeAPI) OrderBook(_ context.Context, symbol string, limitBids, limitAsks int) (*OrderBookData, error) {
	f.gotSymbol = symbol
	return f.book, nil
}

func (f *fakeAPI) TradesV2(_ context.Context, symbol string, startMs int64, limit int) ([]TradeV2Data, error) {
	f.gotSymbol = symbol
	page := f.tradePages[f.tradeCalls]
	f.tradeCalls++
	return page, nil
}

func (f *fakeAPI) Balances(context.Context) ([]BalanceData, error) {
	return f.balances, nil
}

func (f *fakeAPI) Movements(_ context.Context, code, until string, limit int) ([]MovementData, error) {
	page := f.movementPages[f.movementCalls]
	f.movementCalls++
	return page, nil
}

func (f *fakeAPI) Withdraw(_ context.Context, method, wallet, amount, address string) (*MovementData, error) {
	f.gotMethod, f.gotAmount = method, amount
	return &MovementData{ID: 7, Type: "WITHDRAWAL", Amount: amount, Address: address}, nil
}

func (f *fakeAPI) StatusOrder(_ context.Context, id int64) (*OrderData, error) {
	return f.order, nil
}

func (f *fakeAPI) ActiveOrders(context.Context) ([]OrderData, error) {
	return f.active, nil
}

func (f *fakeAPI) OrdersHistory(_ context.Context, limit int) ([]OrderData, error) {
	return f.history, nil
}

func (f *fakeAPI) PlaceOrder(_ context.Context, amount, price, side, typ, symbol string) (*OrderData, error) {
	f.gotSymbol, f.gotAmount, f.gotType = symbol, amount, typ
	return &OrderData{
		ID: 1, Symbol: symbol, Price: price, Side: side, Type: typ,
		Timestamp:       strconv.FormatInt(time.Now().Unix(), 10),
		IsLive:          true,
		OriginalAmount:  amount,
		RemainingAmount: amount,
		ExecutedAmount:  "0",
	}, nil
}

func (f *fakeAPI) DeleteOrder(_ context.Context, id int64) error {
	f.deletedID = id
	return nil
}

func TestTicker(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{ticker: &TickerData{
		Mid: "50050", Bid: "50000", Ask: "50100", LastPrice: "50075",
		Low: "49000", High: "51000", Volume: "120.5",
		Timestamp: "1619876400.0",
	}}
	svc := NewMarketSvc(api, btcusd)

	ticker, err := svc.Ticker(context.Background())
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if api.gotSymbol != "btcusd" {
		t.Fatalf("expected symbol btcusd, received %q", api.gotSymbol)
	}
	if !ticker.Close.Equal(money.NewFromFloat(50075, currency.USD)) {
		t.Fatalf("expected close to mirror last, received %s", ticker.Close)
	}
	if !ticker.Average.Equal(money.NewFromFloat(50050, currency.USD)) {
		t.Fatalf("unexpected average %s", ticker.Average)
	}
}

func TestTradesSinceDeduplicates(t *testing.T) {
	t.Parallel()
	full := make([]TradeV2Data, tradesPageSize)
	for i := range full {
		full[i] = TradeV2Data{ID: int64(i), MTS: int64(1000 + i), Amount: "0.1", Price: "50000"}
	}
	second := []TradeV2Data{
		{ID: int64(tradesPageSize - 1), MTS: int64(1000 + tradesPageSize - 1), Amount: "0.1", Price: "50000"},
		{ID: int64(tradesPageSize), MTS: int64(1000 + tradesPageSize), Amount: "-0.2", Price: "50100"},
	}
	api := &fakeAPI{tradePages: [][]TradeV2Data{full, second}}
	svc := NewMarketSvc(api, btcusd)

	trades, err := svc.TradesSince(context.Background(), time.UnixMilli(1000))
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if api.gotSymbol != "tBTCUSD" {
		t.Fatalf("expected v2 symbol tBTCUSD, received %q", api.gotSymbol)
	}
	if len(trades) != tradesPageSize+1 {
		t.Fatalf("expected overlap de-duplicated, received %d trades", len(trades))
	}
	last := trades[len(trades)-1]
	if last.Side != exchanges.Sell || !last.Amount.Equal(money.NewFromFloat(0.2, currency.BTC)) {
		t.Fatalf("negative amounts must parse as sells, received %+v", last)
	}
}

func TestBalancePicksExchangeWallet(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{balances: []BalanceData{
		{Type: "margin", Currency: "btc", Amount: "9", Available: "9"},
		{Type: "exchange", Currency: "btc", Amount: "2", Available: "1.5"},
	}}
	svc := NewWalletSvc(api, currency.BTC)

	balance, err := svc.Balance(context.Background())
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if !balance.Total.Equal(money.NewFromFloat(2, currency.BTC)) ||
		!balance.Used.Equal(money.NewFromFloat(0.5, currency.BTC)) {
		t.Fatalf("unexpected balance %+v", balance)
	}
}

func TestMovementsFilterTypeAndDedup(t *testing.T) {
	t.Parallel()
	full := make([]MovementData, movementsPageSize)
	for i := range full {
		typ := "DEPOSIT"
		if i%2 == 0 {
			typ = "WITHDRAWAL"
		}
		full[i] = MovementData{
			ID: int64(i), Currency: "BTC", Type: typ, Amount: "0.1",
			Status: "COMPLETED", TimestampCreated: "1600000000.0",
		}
	}
	second := []MovementData{full[movementsPageSize-1]}
	api := &fakeAPI{movementPages: [][]MovementData{full, second}}
	svc := NewWalletSvc(api, currency.BTC)

	deposits, err := svc.Deposits(context.Background())
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if api.movementCalls != 2 {
		t.Fatalf("expected both pages walked, calls=%d", api.movementCalls)
	}
	want := movementsPageSize / 2
	if len(deposits) != want {
		t.Fatalf("expected %d deposits, received %d", want, len(deposits))
	}
	for _, d := range deposits {
		if d.Type != exchanges.TxDeposit || d.Status != exchanges.TxStatusOK {
			t.Fatalf("unexpected deposit %+v", d)
		}
	}
}

func TestWithdrawMethodDispatch(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	svc := NewWalletSvc(api, currency.ETH)

	_, err := svc.Withdraw(context.Background(), money.NewFromFloat(1.5, currency.ETH), "addr", false)
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if api.gotMethod != "ethereum" || api.gotAmount != "1.5" {
		t.Fatalf("unexpected dispatch method=%q amount=%q", api.gotMethod, api.gotAmount)
	}

	xrp := NewWalletSvc(api, currency.XRP)
	_, err = xrp.Withdraw(context.Background(), money.NewFromFloat(10, currency.XRP), "addr", false)
	if !errors.Is(err, exchanges.ErrNotSupported) {
		t.Fatalf("expected: %v but received: %v", exchanges.ErrNotSupported, err)
	}
}

func TestWalletClientDeductsFeeBeforeSubmission(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	base := exchanges.Base{Credentials: map[string]string{"api_key": "k", "api_secret": "s"}}
	wc, err := NewWalletClient(base, currency.BTC, api)
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}

	_, err = wc.RequestWithdrawal(context.Background(), money.NewFromFloat(1, currency.BTC), "addr", true)
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if api.gotAmount != "0.9995" {
		t.Fatalf("expected net amount 0.9995 submitted, received %q", api.gotAmount)
	}
}

func TestClosedOrdersWindow(t *testing.T) {
	t.Parallel()
	svc := NewTradingSvc(&fakeAPI{history: []OrderData{}}, btcusd)

	_, err := svc.ClosedOrders(context.Background(), time.Now().Add(-96*time.Hour))
	if !errors.Is(err, exchanges.ErrExchange) {
		t.Fatalf("expected: %v but received: %v", exchanges.ErrExchange, err)
	}

	if _, err := svc.ClosedOrders(context.Background(), time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
}

func TestClosedOrdersFilterStatus(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{history: []OrderData{
		{
			ID: 1, Symbol: "btcusd", Type: "exchange limit", Side: "buy",
			Timestamp: "1600000000.0", IsLive: false, IsCancelled: false,
			OriginalAmount: "1", RemainingAmount: "0", ExecutedAmount: "1",
			Price: "50000", AvgExecutionPrice: "50050",
		},
		{
			ID: 2, Symbol: "btcusd", Type: "exchange limit", Side: "sell",
			Timestamp: "1600000100.0", IsLive: false, IsCancelled: true,
			OriginalAmount: "1", RemainingAmount: "1", ExecutedAmount: "0",
			Price: "51000",
		},
	}}
	svc := NewTradingSvc(api, btcusd)

	orders, err := svc.ClosedOrders(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if len(orders) != 1 || orders[0].ID != "1" {
		t.Fatalf("expected only settled orders, received %+v", orders)
	}
	if !orders[0].Price.Equal(money.NewFromFloat(50050, currency.USD)) {
		t.Fatalf("expected average execution price, received %s", orders[0].Price)
	}
	if !orders[0].Cost.Equal(money.NewFromFloat(50050, currency.USD)) {
		t.Fatalf("unexpected cost %s", orders[0].Cost)
	}
	if !orders[0].Filled.Equal(money.NewFromFloat(1, currency.BTC)) {
		t.Fatalf("unexpected filled %s", orders[0].Filled)
	}
}

func TestPlaceOrderNativeType(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	svc := NewTradingSvc(api, btcusd)

	order, err := svc.Place(context.Background(), exchanges.Buy, exchanges.Limit,
		money.NewFromFloat(0.5, currency.BTC), money.NewFromFloat(50000, currency.USD))
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if api.gotType != "exchange limit" {
		t.Fatalf("expected native type \"exchange limit\", received %q", api.gotType)
	}
	if order.Status != exchanges.StatusOpen || order.Type != exchanges.Limit {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestMinOrderAmount(t *testing.T) {
	t.Parallel()
	svc := NewTradingSvc(&fakeAPI{}, currency.NewMarket(currency.ETH, currency.USD))
	minAmount, err := svc.MinOrderAmount(context.Background())
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if !minAmount.Equal(money.NewFromFloat(0.04, currency.ETH)) {
		t.Fatalf("unexpected minimum %s", minAmount)
	}

	// unmapped markets have no floor
	xrp := NewTradingSvc(&fakeAPI{}, currency.NewMarket(currency.XRP, currency.USD))
	minAmount, err = xrp.MinOrderAmount(context.Background())
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if !minAmount.Equal(money.Zero(currency.XRP)) {
		t.Fatalf("expected: %v but received: %v", money.Zero(currency.XRP), minAmount)
	}
}
