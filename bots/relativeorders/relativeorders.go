// Package relativeorders implements a market making bot that keeps one buy
// and one sell limit order offset from the market mid price by configured
// multipliers.
package relativeorders

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/rob-Hitchens/trading-bots/bots"
	"github.com/rob-Hitchens/trading-bots/currency"
	"github.com/rob-Hitchens/trading-bots/exchanges"
	"github.com/rob-Hitchens/trading-bots/exchanges/buda"
	"github.com/rob-Hitchens/trading-bots/log"
	"github.com/rob-Hitchens/trading-bots/money"
)

// Label identifies the bot in the registry and the settings file
const Label = "RelativeOrders"

// Config is the bot's settings block
type Config struct {
	Market string `yaml:"market"`
	Prices struct {
		BuyMultiplier  float64 `yaml:"buy_multiplier"`
		SellMultiplier float64 `yaml:"sell_multiplier"`
	} `yaml:"prices"`
	Amounts struct {
		MaxBase  float64 `yaml:"max_base"`
		MaxQuote float64 `yaml:"max_quote"`
	} `yaml:"amounts"`
}

// Bot deploys relative orders around the mid price on a single market
type Bot struct {
	cfg    Config
	market currency.Market
	client *exchanges.TradingClient
	logger *log.SubLogger
}

// New returns a relative orders bot trading through client
func New(cfg Config, client *exchanges.TradingClient, logger *log.SubLogger) (*Bot, error) {
	market, err := currency.MarketFromCode(cfg.Market)
	if err != nil {
		return nil, err
	}
	if cfg.Prices.BuyMultiplier <= 0 || cfg.Prices.SellMultiplier <= 0 {
		return nil, errors.New("price multipliers must be positive")
	}
	if logger == nil {
		logger = log.BotSys
	}
	return &Bot{cfg: cfg, market: market, client: client, logger: logger}, nil
}

// Factory registers the bot from the settings file, trading on Buda through
// the supplied transport
func Factory(api buda.API) bots.Factory {
	return func(env *bots.Env) (bots.Bot, error) {
		var cfg Config
		if err := env.Settings.BotConfig(Label, &cfg); err != nil {
			return nil, err
		}
		market, err := currency.MarketFromCode(cfg.Market)
		if err != nil {
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
		return New(cfg, client, env.Logger)
	}
}

// Label implements bots.Bot
func (b *Bot) Label() string { return Label }

// Algorithm implements bots.Bot
func (b *Bot) Algorithm(ctx context.Context) error {
	log.Infof(b.logger, "Preparing prices for %s", b.market)
	ticker, err := b.client.FetchTicker(ctx)
	if err != nil {
		return err
	}
	mid, err := ticker.Mid()
	if err != nil {
		return err
	}
	log.Infof(b.logger, "%s prices: Bid: %s | Ask: %s | Middle: %s",
		b.market.Base, ticker.Bid, ticker.Ask, mid)

	log.Infoln(b.logger, "Closing open orders")
	if _, err := b.client.CancelAllOrders(ctx); err != nil {
		return err
	}

	baseAvailable, quoteAvailable, err := b.availableAmounts(ctx)
	if err != nil {
		return err
	}

	minAmount, err := b.client.MinOrderAmount(ctx)
	if err != nil {
		return err
	}
	planned := plan(b.cfg, mid, baseAvailable, quoteAvailable, minAmount)

	log.Infof(b.logger, "Deploying %d new orders", len(planned))
	for _, p := range planned {
		if _, err := b.client.PlaceLimitOrder(ctx, p.Side, p.Amount, p.Price); err != nil {
			return err
		}
	}
	return nil
}

// Abort implements bots.Bot, pulling all resting orders off the market
func (b *Bot) Abort(ctx context.Context) error {
	log.Errorln(b.logger, "Aborting strategy, cancelling all orders")
	if _, err := b.client.CancelAllOrders(ctx); err != nil {
		return errors.Wrap(err, "some orders might not be cancelled")
	}
	log.Infoln(b.logger, "All open orders were cancelled")
	return nil
}

// PostExecute implements bots.Bot
func (b *Bot) PostExecute(context.Context) error { return nil }

// availableAmounts caps the free wallet balances at the configured maximums
func (b *Bot) availableAmounts(ctx context.Context) (base, quote money.Money, err error) {
	baseBalance, err := b.client.Wallets.Base.FetchBalance(ctx)
	if err != nil {
		return money.Money{}, money.Money{}, err
	}
	quoteBalance, err := b.client.Wallets.Quote.FetchBalance(ctx)
	if err != nil {
		return money.Money{}, money.Money{}, err
	}
	base = capAt(baseBalance.Free, money.NewFromFloat(b.cfg.Amounts.MaxBase, b.market.Base))
	quote = capAt(quoteBalance.Free, money.NewFromFloat(b.cfg.Amounts.MaxQuote, b.market.Quote))
	log.Debugf(b.logger, "Amounts | Bid: %s | Ask: %s", quote, base)
	return base, quote, nil
}

func capAt(available, maximum money.Money) money.Money {
	if !available.IsSet() {
		return maximum
	}
	if less, err := available.LessThan(maximum); err == nil && less {
		return available
	}
	return maximum
}

// Order is a planned limit order deployment
type Order struct {
	Side   exchanges.Side
	Amount money.Money
	Price  money.Money
}

// plan derives the orders to deploy. Amounts below the market minimum are
// dropped, the buy amount converts the available quote at the offset price.
func plan(cfg Config, mid, baseAvailable, quoteAvailable, minAmount money.Money) []Order {
	base := baseAvailable.Currency()
	var planned []Order

	buyPrice := mid.Mul(decimal.NewFromFloat(cfg.Prices.BuyMultiplier)).TruncateToCurrency()
	if buyPrice.IsPositive() {
		buyAmount := money.New(
			quoteAvailable.Amount().Div(buyPrice.Amount()), base).TruncateToCurrency()
		if above, err := buyAmount.GreaterThan(minAmount); err == nil && above {
			planned = append(planned, Order{Side: exchanges.Buy, Amount: buyAmount, Price: buyPrice})
		}
	}

	sellPrice := mid.Mul(decimal.NewFromFloat(cfg.Prices.SellMultiplier)).TruncateToCurrency()
	sellAmount := baseAvailable.TruncateToCurrency()
	if above, err := sellAmount.GreaterThan(minAmount); err == nil && above {
		planned = append(planned, Order{Side: exchanges.Sell, Amount: sellAmount, Price: sellPrice})
	}
	return planned
}
