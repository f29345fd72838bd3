// Package anytoany implements a conversion pipeline bot: deposits arriving
// in one currency are converted on the market and optionally withdrawn in the
// other currency. Progress is tracked per deposit in the store so partially
// converted deposits resume on the next run.
package anytoany

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/rob-Hitchens/trading-bots/bots"
	"github.com/rob-Hitchens/trading-bots/currency"
	"github.com/rob-Hitchens/trading-bots/exchanges"
	"github.com/rob-Hitchens/trading-bots/exchanges/buda"
	"github.com/rob-Hitchens/trading-bots/log"
	"github.com/rob-Hitchens/trading-bots/money"
	"github.com/rob-Hitchens/trading-bots/store"
)

// Label identifies the bot in the registry and the settings file
const Label = "AnyToAny"

// AnyAddress matches deposits from any source address
const AnyAddress = "Any"

var errNoCompatibleMarket = errors.New("currencies do not form a market with the trading client")

// Config is the bot's settings block
type Config struct {
	FromCurrency string `yaml:"from_currency"`
	From         struct {
		Address string `yaml:"address"`
	} `yaml:"from"`
	ToCurrency string `yaml:"to_currency"`
	To         struct {
		Withdraw bool   `yaml:"withdraw"`
		Address  string `yaml:"address"`
	} `yaml:"to"`
}

// depositState tracks the conversion progress of a single deposit
type depositState struct {
	Status            exchanges.TxStatus `json:"status"`
	OriginalAmount    decimal.Decimal    `json:"original_amount"`
	ConvertedAmount   decimal.Decimal    `json:"converted_amount"`
	ConvertedValue    decimal.Decimal    `json:"converted_value"`
	Orders            []string           `json:"orders"`
	PendingWithdrawal bool               `json:"pending_withdrawal"`
}

// Bot converts incoming deposits from one currency into another
type Bot struct {
	cfg      Config
	from, to currency.Code
	side     exchanges.Side
	client   *exchanges.TradingClient
	store    *store.Store
	logger   *log.SubLogger
	start    time.Time
	deposits map[string]*depositState
}

// New returns a conversion bot trading through client. The client's market
// must pair the from and to currencies, the conversion side follows from
// which leg the from currency sits on.
func New(cfg Config, client *exchanges.TradingClient, st *store.Store, logger *log.SubLogger) (*Bot, error) {
	from := currency.NewCode(cfg.FromCurrency)
	to := currency.NewCode(cfg.ToCurrency)
	side, err := conversionSide(client.Market, from, to)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.BotSys
	}
	b := &Bot{
		cfg:    cfg,
		from:   from,
		to:     to,
		side:   side,
		client: client,
		store:  st,
		logger: logger,
		start:  time.Now(),
	}
	if err := b.loadState(); err != nil {
		return nil, err
	}
	return b, nil
}

// Factory registers the bot from the settings file, trading on Buda through
// the supplied transport
func Factory(api buda.API) bots.Factory {
	return func(env *bots.Env) (bots.Bot, error) {
		var cfg Config
		if err := env.Settings.BotConfig(Label, &cfg); err != nil {
			return nil, err
		}
		from := currency.NewCode(cfg.FromCurrency)
		to := currency.NewCode(cfg.ToCurrency)
		market := currency.NewMarket(from, to)
		if _, err := conversionSide(market, from, to); err != nil {
			return nil, err
		}
		creds, err := env.Settings.ExchangeCredentials(buda.Name)
		if err != nil {
			return nil, err
		}
		client, err := buda.NewTradingClient(exchanges.Base{
			Credentials: creds,
			Timeout:     env.Timeout(),
			DryRun:      env.DryRun(),
			Logger:      env.Logger,
		}, market, api)
		if err != nil {
			return nil, err
		}
		return New(cfg, client, env.Store, env.Logger)
	}
}

// conversionSide resolves which market side converts from into to. Selling
// converts the base leg, buying converts the quote leg.
func conversionSide(market currency.Market, from, to currency.Code) (exchanges.Side, error) {
	switch {
	case market.Base == from && market.Quote == to:
		return exchanges.Sell, nil
	case market.Quote == from && market.Base == to:
		return exchanges.Buy, nil
	}
	return "", errors.Wrapf(errNoCompatibleMarket, "%s to %s on %s", from, to, market)
}

// Label implements bots.Bot
func (b *Bot) Label() string { return Label }

// Algorithm implements bots.Bot
func (b *Bot) Algorithm(ctx context.Context) error {
	log.Infof(b.logger, "Checking for new %s deposits", b.from)
	if err := b.updateDeposits(ctx); err != nil {
		return err
	}
	log.Infoln(b.logger, "Converting pending amounts")
	if err := b.processConversions(ctx); err != nil {
		return err
	}
	if b.cfg.To.Withdraw {
		log.Infoln(b.logger, "Processing pending withdrawals")
		if err := b.processWithdrawals(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Abort implements bots.Bot
func (b *Bot) Abort(context.Context) error { return nil }

// PostExecute implements bots.Bot, persisting the conversion state
func (b *Bot) PostExecute(context.Context) error {
	return b.saveState()
}

func (b *Bot) storeKey() string {
	return b.from.String() + "_deposits"
}

func (b *Bot) loadState() error {
	b.deposits = make(map[string]*depositState)
	err := b.store.GetJSON(b.storeKey(), &b.deposits)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

func (b *Bot) saveState() error {
	return b.store.SetJSON(b.storeKey(), b.deposits)
}

// fromWallet holds the currency deposits arrive in, toWallet the converted
// currency
func (b *Bot) fromWallet() *exchanges.WalletClient {
	if b.side == exchanges.Sell {
		return b.client.Wallets.Base
	}
	return b.client.Wallets.Quote
}

func (b *Bot) toWallet() *exchanges.WalletClient {
	if b.side == exchanges.Sell {
		return b.client.Wallets.Quote
	}
	return b.client.Wallets.Base
}

// updateDeposits folds newly fetched deposits into the tracked state
func (b *Bot) updateDeposits(ctx context.Context) error {
	incoming, err := b.fromWallet().FetchDepositsSince(ctx, b.start)
	if err != nil {
		return err
	}
	for i := range incoming {
		d := &incoming[i]
		if b.cfg.From.Address != "" && b.cfg.From.Address != AnyAddress &&
			d.Address != b.cfg.From.Address {
			continue
		}
		trackDeposit(b.deposits, d, b.cfg.To.Withdraw)
	}
	return b.saveState()
}

// trackDeposit registers a deposit or refreshes the status of a known one
func trackDeposit(deposits map[string]*depositState, d *exchanges.Transaction, withdraw bool) {
	if state, ok := deposits[d.ID]; ok {
		state.Status = d.Status
		return
	}
	deposits[d.ID] = &depositState{
		Status:            d.Status,
		OriginalAmount:    d.Amount.Amount(),
		PendingWithdrawal: withdraw,
	}
}

// processConversions places market orders for the unconverted remainder of
// each settled deposit
func (b *Bot) processConversions(ctx context.Context) error {
	for _, state := range b.deposits {
		remaining := state.OriginalAmount.Sub(state.ConvertedAmount)
		if state.Status != exchanges.TxStatusOK || !remaining.IsPositive() {
			continue
		}
		amount, err := b.orderAmount(ctx, remaining)
		if err != nil {
			return err
		}
		order, err := b.client.PlaceMarketOrder(ctx, b.side, amount)
		if err != nil {
			return err
		}
		log.Infof(b.logger, "%s market order placed, waiting for traded state", b.side)
		order, err = b.waitForClose(ctx, order)
		if err != nil {
			return err
		}
		log.Infof(b.logger, "%s order traded, updating store values", b.side)
		applyOrder(state, order, b.side, b.to)
		if err := b.saveState(); err != nil {
			return err
		}
	}
	return nil
}

// orderAmount converts the remainder into a base currency order amount. When
// buying, the remainder is quote currency to spend and translates through
// the best ask.
func (b *Bot) orderAmount(ctx context.Context, remaining decimal.Decimal) (money.Money, error) {
	base := b.client.Market.Base
	if b.side == exchanges.Sell {
		return money.New(remaining, base).TruncateToCurrency(), nil
	}
	book, err := b.client.FetchOrderBook(ctx)
	if err != nil {
		return money.Money{}, err
	}
	ask, err := book.QuoteAskPrice(money.Zero(base))
	if err != nil {
		return money.Money{}, err
	}
	return money.New(remaining.Div(ask.Amount()), base).TruncateToCurrency(), nil
}

// waitForClose polls the order until the exchange reports it settled
func (b *Bot) waitForClose(ctx context.Context, order *exchanges.Order) (*exchanges.Order, error) {
	for order.Status != exchanges.StatusClosed {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
		var err error
		if order, err = b.client.FetchOrder(ctx, order.ID); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// applyOrder books a settled order against the deposit state. The converted
// amount tracks the from currency consumed, the converted value the to
// currency obtained net of fees.
func applyOrder(state *depositState, order *exchanges.Order, side exchanges.Side, to currency.Code) {
	filled := order.Filled.Amount()
	if !order.Filled.IsSet() {
		filled = order.Amount.Amount().Sub(order.Remaining.Amount())
	}
	if side == exchanges.Buy {
		state.ConvertedAmount = state.ConvertedAmount.Add(order.Cost.Amount())
		state.ConvertedValue = state.ConvertedValue.Add(filled)
	} else {
		state.ConvertedAmount = state.ConvertedAmount.Add(filled)
		state.ConvertedValue = state.ConvertedValue.Add(order.Cost.Amount())
	}
	// the fee would otherwise interfere with the withdrawal amount
	if order.Fee.IsSet() && order.Fee.Currency() == to {
		state.ConvertedValue = state.ConvertedValue.Sub(order.Fee.Amount())
	}
	state.Orders = append(state.Orders, order.ID)
}

// readyToWithdraw reports whether a deposit is fully converted and still
// awaiting its withdrawal
func readyToWithdraw(state *depositState) bool {
	return state.Status == exchanges.TxStatusOK &&
		state.PendingWithdrawal &&
		state.ConvertedAmount.GreaterThanOrEqual(state.OriginalAmount)
}

// processWithdrawals requests a withdrawal for every fully converted deposit
func (b *Bot) processWithdrawals(ctx context.Context) error {
	for id, state := range b.deposits {
		if !readyToWithdraw(state) {
			continue
		}
		amount := money.New(state.ConvertedValue, b.to).TruncateToCurrency()
		balance, err := b.toWallet().FetchBalance(ctx)
		if err != nil {
			return err
		}
		available := balance.Free
		if !available.IsSet() {
			available = balance.Total
		}
		if short, err := available.LessThan(amount); err != nil || short {
			log.Warnf(b.logger, "Available balance not enough for withdrawal amount %s", amount)
			continue
		}
		tx, err := b.toWallet().RequestWithdrawal(ctx, amount, b.cfg.To.Address, true)
		if err != nil {
			return err
		}
		if tx.Status == exchanges.TxStatusFailed || tx.Status == exchanges.TxStatusCanceled {
			log.Warnln(b.logger, "Withdrawal failed")
			continue
		}
		log.Infof(b.logger, "%s withdrawal request received, updating store values", b.to)
		state.PendingWithdrawal = false
		if err := b.saveState(); err != nil {
			return err
		}
		log.Debugf(b.logger, "Deposit %s fully processed", id)
	}
	return nil
}
