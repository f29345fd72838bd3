package buda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rob-Hitchens/trading-bots/currency"
	"github.com/rob-Hitchens/trading-bots/exchanges"
	"github.com/rob-Hitchens/trading-bots/money"
)

var btcclp = currency.NewMarket(currency.BTC, currency.CLP)

type fakeAPI struct {
	ticker        *TickerData
	book          *OrderBookData
	tradePages    []*TradesPage
	balance       *BalanceData
	transferPages []*TransfersPage
	orderPages    map[string][]*OrdersPage
	order         *OrderData
	placed        *OrderData
	cancelledID   string
	gotMarketID   string
	gotAmount     string
	gotIncluded   bool
	tradeCalls    int
	transferCalls int
}

func (f *fakeAPI) Ticker(_ context.Context, marketID string) (*TickerData, error) {
	f.gotMarketID = marketID
	return f.ticker, nil
}

func (f *fakeAPI) OrderBook(_ context.Context, marketID string) (*OrderBookData, error) {
	f.gotMarketID = marketID
	return f.book, nil
}

func (f *fakeAPI) Trades(_ context.Context, marketID, timestamp string, limit int) (*TradesPage, error) {
	f.gotMarketID = marketID
	page := f.tradePages[f.tradeCalls]
	f.tradeCalls++
	return page, nil
}

func (f *fakeAPI) Balance(_ context.Context, code string) (*BalanceData, error) {
	return f.balance, nil
}

func (f *fakeAPI) DepositPages(_ context.Context, code string, page, perPage int) (*TransfersPage, error) {
	f.transferCalls++
	return f.transferPages[page-1], nil
}

func (f *fakeAPI) WithdrawalPages(_ context.Context, code string, page, perPage int) (*TransfersPage, error) {
	f.transferCalls++
	return f.transferPages[page-1], nil
}

func (f *fakeAPI) Withdraw(_ context.Context, code, amount, address string, amountIncludesFee bool) (*TransferData, error) {
	f.gotAmount, f.gotIncluded = amount, amountIncludesFee
	return &TransferData{
		ID: 9, Currency: code, State: "pending_confirmation",
		Amount: []string{amount, code}, Fee: []string{"0.0005", code},
		CreatedAt: time.Now(),
	}, nil
}

func (f *fakeAPI) OrderDetails(_ context.Context, orderID string) (*OrderData, error) {
	if f.order == nil {
		return nil, errors.New("not found")
	}
	return f.order, nil
}

func (f *fakeAPI) OrderPages(_ context.Context, marketID string, page, perPage int, state string) (*OrdersPage, error) {
	pages := f.orderPages[state]
	if len(pages) == 0 {
		return &OrdersPage{Meta: Meta{CurrentPage: 1, TotalPages: 1}}, nil
	}
	return pages[page-1], nil
}

func (f *fakeAPI) NewOrder(_ context.Context, marketID, side, priceType, amount, limit string) (*OrderData, error) {
	f.placed = &OrderData{
		ID: 1, MarketID: marketID, Type: side, PriceType: priceType,
		State: "received", CreatedAt: time.Now(),
		OriginalAmount: []string{amount, "BTC"},
		Amount:         []string{amount, "BTC"},
		TradedAmount:   []string{"0", "BTC"},
		TotalExchanged: []string{"0", "CLP"},
		PaidFee:        []string{"0", "BTC"},
		Limit:          []string{limit, "CLP"},
	}
	if priceType == "market" {
		f.placed.Limit = nil
	}
	return f.placed, nil
}

func (f *fakeAPI) CancelOrder(_ context.Context, orderID string) error {
	f.cancelledID = orderID
	return nil
}

func TestTicker(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{ticker: &TickerData{
		MaxBid:            []string{"836000.0", "CLP"},
		MinAsk:            []string{"838000.0", "CLP"},
		LastPrice:         []string{"837000.0", "CLP"},
		Volume:            []string{"112.0", "BTC"},
		PriceVariation24H: "0.05",
	}}
	svc := NewMarketSvc(api, btcclp)

	ticker, err := svc.Ticker(context.Background())
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if api.gotMarketID != "btc-clp" {
		t.Fatalf("expected market id btc-clp, received %q", api.gotMarketID)
	}
	if !ticker.Last.Equal(money.NewFromFloat(837000, currency.CLP)) {
		t.Fatalf("unexpected last %s", ticker.Last)
	}
	wantOpen := decimal.RequireFromString("837000").
		Div(decimal.RequireFromString("1.05"))
	if !ticker.Open.Amount().Equal(wantOpen) {
		t.Fatalf("expected open %s, received %s", wantOpen, ticker.Open)
	}
	if !ticker.Close.Equal(ticker.Last) {
		t.Fatalf("expected close to mirror last, received %s", ticker.Close)
	}
	if !ticker.Percentage.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("unexpected percentage %s", ticker.Percentage)
	}
	wantChange := decimal.RequireFromString("837000").Sub(wantOpen)
	if !ticker.Change.Amount().Equal(wantChange) {
		t.Fatalf("expected change %s, received %s", wantChange, ticker.Change)
	}
	wantAverage := decimal.RequireFromString("837000").Add(wantOpen).
		Div(decimal.RequireFromString("2"))
	if !ticker.Average.Amount().Equal(wantAverage) {
		t.Fatalf("expected average %s, received %s", wantAverage, ticker.Average)
	}
}

func TestOrderBook(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{book: &OrderBookData{
		Bids: [][]string{{"836000.0", "0.5"}, {"835000.0", "1.2"}},
		Asks: [][]string{{"838000.0", "0.3"}},
	}}
	svc := NewMarketSvc(api, btcclp)

	book, err := svc.OrderBook(context.Background())
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if len(book.Bids) != 2 || len(book.Asks) != 1 {
		t.Fatalf("unexpected depth %+v", book)
	}
	if !book.Bids[0].Price.Equal(money.NewFromFloat(836000, currency.CLP)) ||
		!book.Bids[0].Amount.Equal(money.NewFromFloat(0.5, currency.BTC)) {
		t.Fatalf("unexpected best bid %+v", book.Bids[0])
	}
}

func TestTradesSincePagination(t *testing.T) {
	t.Parallel()
	now := time.Now()
	since := now.Add(-time.Hour)
	newer := now.Add(-10 * time.Minute).UnixMilli()
	older := now.Add(-2 * time.Hour).UnixMilli()
	api := &fakeAPI{tradePages: []*TradesPage{
		{
			LastTimestamp: decimal.NewFromInt(newer).String(),
			Entries:       [][]string{{decimal.NewFromInt(newer).String(), "0.5", "837000.0", "sell"}},
		},
		{
			LastTimestamp: decimal.NewFromInt(older).String(),
			Entries:       [][]string{{decimal.NewFromInt(older).String(), "1.0", "836000.0", "buy"}},
		},
	}}
	svc := NewMarketSvc(api, btcclp)

	trades, err := svc.TradesSince(context.Background(), since)
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if api.tradeCalls != 2 {
		t.Fatalf("expected paging to stop after the cursor crossed since, calls=%d", api.tradeCalls)
	}
	if len(trades) != 2 || trades[0].Side != exchanges.Sell {
		t.Fatalf("unexpected trades %+v", trades)
	}
	if !trades[0].Cost.Equal(money.NewFromFloat(418500, currency.CLP)) {
		t.Fatalf("unexpected cost %s", trades[0].Cost)
	}
}

func TestBalance(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{balance: &BalanceData{
		ID:              "BTC",
		Amount:          []string{"1.5", "BTC"},
		AvailableAmount: []string{"1.0", "BTC"},
	}}
	svc := NewWalletSvc(api, currency.BTC)

	balance, err := svc.Balance(context.Background())
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if !balance.Used.Equal(money.NewFromFloat(0.5, currency.BTC)) {
		t.Fatalf("expected used BTC 0.5, received %s", balance.Used)
	}
	if err := balance.Validate(); err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
}

func TestDepositsPagination(t *testing.T) {
	t.Parallel()
	now := time.Now()
	api := &fakeAPI{transferPages: []*TransfersPage{
		{
			Deposits: []TransferData{{
				ID: 1, Currency: "BTC", State: "confirmed", CreatedAt: now,
				Amount: []string{"0.5", "BTC"}, Fee: []string{"0", "BTC"},
				Data: &TransferInfo{Address: "addr1", TxHash: "hash1"},
			}},
			Meta: Meta{CurrentPage: 1, TotalPages: 2},
		},
		{
			Deposits: []TransferData{{
				ID: 2, Currency: "BTC", State: "rejected", CreatedAt: now.Add(-time.Hour),
				Amount: []string{"0.2", "BTC"}, Fee: []string{"0", "BTC"},
			}},
			Meta: Meta{CurrentPage: 2, TotalPages: 2},
		},
	}}
	svc := NewWalletSvc(api, currency.BTC)

	deposits, err := svc.Deposits(context.Background())
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if api.transferCalls != 2 || len(deposits) != 2 {
		t.Fatalf("expected both pages walked, calls=%d deposits=%d", api.transferCalls, len(deposits))
	}
	if deposits[0].Status != exchanges.TxStatusOK || deposits[0].Address != "addr1" {
		t.Fatalf("unexpected deposit %+v", deposits[0])
	}
	if deposits[1].Status != exchanges.TxStatusFailed {
		t.Fatalf("unexpected status %q", deposits[1].Status)
	}
}

func TestWithdrawNativeFeeFlag(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	svc := NewWalletSvc(api, currency.BTC)

	tx, err := svc.Withdraw(context.Background(), money.NewFromFloat(1, currency.BTC), "addr", true)
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if api.gotAmount != "1" || !api.gotIncluded {
		t.Fatalf("expected native includes-fee submission, amount=%q flag=%v",
			api.gotAmount, api.gotIncluded)
	}
	if tx.Status != exchanges.TxStatusPending {
		t.Fatalf("expected pending, received %q", tx.Status)
	}
}

func TestOpenOrdersMergesStates(t *testing.T) {
	t.Parallel()
	now := time.Now()
	mk := func(id int64, state string) *OrdersPage {
		return &OrdersPage{
			Orders: []OrderData{{
				ID: id, MarketID: "btc-clp", Type: "Bid", PriceType: "limit",
				State: state, CreatedAt: now,
				OriginalAmount: []string{"1", "BTC"},
				Amount:         []string{"1", "BTC"},
				TradedAmount:   []string{"0", "BTC"},
				TotalExchanged: []string{"0", "CLP"},
				PaidFee:        []string{"0", "BTC"},
				Limit:          []string{"836000", "CLP"},
			}},
			Meta: Meta{CurrentPage: 1, TotalPages: 1},
		}
	}
	api := &fakeAPI{orderPages: map[string][]*OrdersPage{
		"pending":  {mk(1, "pending")},
		"received": {mk(2, "received")},
	}}
	svc := NewTradingSvc(api, btcclp)

	orders, err := svc.OpenOrders(context.Background())
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected both open states merged, received %d", len(orders))
	}
	for _, o := range orders {
		if o.Status != exchanges.StatusOpen {
			t.Fatalf("unexpected status %q", o.Status)
		}
	}
}

func TestParseOrderEffectivePrice(t *testing.T) {
	t.Parallel()
	data := &OrderData{
		ID: 7, MarketID: "btc-clp", Type: "Ask", PriceType: "limit",
		State: "traded", CreatedAt: time.Now(),
		OriginalAmount: []string{"1", "BTC"},
		Amount:         []string{"0", "BTC"},
		TradedAmount:   []string{"1", "BTC"},
		TotalExchanged: []string{"840000", "CLP"},
		PaidFee:        []string{"0.001", "BTC"},
		Limit:          []string{"836000", "CLP"},
	}
	order, err := parseOrder(data)
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if order.Side != exchanges.Sell || order.Status != exchanges.StatusClosed {
		t.Fatalf("unexpected order %+v", order)
	}
	if !order.Price.Equal(money.NewFromFloat(840000, currency.CLP)) {
		t.Fatalf("expected effective price CLP 840000, received %s", order.Price)
	}
	if !order.Filled.Equal(money.NewFromFloat(1, currency.BTC)) {
		t.Fatalf("unexpected filled %s", order.Filled)
	}
}

func TestMinOrderAmount(t *testing.T) {
	t.Parallel()
	svc := NewTradingSvc(&fakeAPI{}, btcclp)
	minAmount, err := svc.MinOrderAmount(context.Background())
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if !minAmount.Equal(money.NewFromFloat(0.0001, currency.BTC)) {
		t.Fatalf("unexpected minimum %s", minAmount)
	}

	// unmapped markets have no floor
	other := NewTradingSvc(&fakeAPI{}, currency.NewMarket(currency.XRP, currency.CLP))
	minAmount, err = other.MinOrderAmount(context.Background())
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if !minAmount.Equal(money.Zero(currency.XRP)) {
		t.Fatalf("expected: %v but received: %v", money.Zero(currency.XRP), minAmount)
	}
}

func TestNewTradingClientRequiresCredentials(t *testing.T) {
	t.Parallel()
	_, err := NewTradingClient(exchanges.Base{}, btcclp, &fakeAPI{})
	if !errors.Is(err, exchanges.ErrAuthentication) {
		t.Fatalf("expected: %v but received: %v", exchanges.ErrAuthentication, err)
	}

	base := exchanges.Base{Credentials: map[string]string{"api_key": "k", "api_secret": "s"}}
	tc, err := NewTradingClient(base, btcclp, &fakeAPI{})
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if tc.Name != Name || tc.Wallets.Base.Currency != currency.BTC {
		t.Fatalf("unexpected client %+v", tc)
	}
}

func TestPlaceOrderThroughClient(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{}
	base := exchanges.Base{Credentials: map[string]string{"api_key": "k", "api_secret": "s"}}
	tc, err := NewTradingClient(base, btcclp, api)
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}

	order, err := tc.PlaceLimitOrder(context.Background(), exchanges.Buy,
		money.NewFromFloat(0.5, currency.BTC), money.NewFromFloat(836000, currency.CLP))
	if err != nil {
		t.Fatalf("expected: %v but received: %v", nil, err)
	}
	if api.placed == nil || api.placed.Type != "Bid" || api.placed.PriceType != "limit" {
		t.Fatalf("unexpected native order %+v", api.placed)
	}
	if order.Status != exchanges.StatusOpen {
		t.Fatalf("unexpected status %q", order.Status)
	}
}
