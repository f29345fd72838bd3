// Package technicalanalysis implements a mean reversion bot. Candles are
// built from the trade history of a reference market, Bollinger bands and
// the relative strength index decide when to open a position against the
// band breakout and when to close it back.
package technicalanalysis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/thrasher-corp/gct-ta/indicators"

	"github.com/rob-Hitchens/trading-bots/bots"
	"github.com/rob-Hitchens/trading-bots/common/ohlc"
	"github.com/rob-Hitchens/trading-bots/currency"
	"github.com/rob-Hitchens/trading-bots/exchanges"
	"github.com/rob-Hitchens/trading-bots/exchanges/bitstamp"
	"github.com/rob-Hitchens/trading-bots/exchanges/buda"
	"github.com/rob-Hitchens/trading-bots/log"
	"github.com/rob-Hitchens/trading-bots/money"
	"github.com/rob-Hitchens/trading-bots/store"
)

// Label identifies the bot in the registry and the settings file
const Label = "TechnicalAnalysis"

// lookback is the trade history window the candles are built from
const lookback = 24 * time.Hour

var errNotEnoughCandles = errors.New("not enough candles for the indicator periods")

// Config is the bot's settings block
type Config struct {
	Market  string `yaml:"market"`
	Amounts struct {
		MaxBase  float64 `yaml:"max_base"`
		MaxQuote float64 `yaml:"max_quote"`
	} `yaml:"amounts"`
	Indicators struct {
		Bbands struct {
			Periods int `yaml:"periods"`
		} `yaml:"bbands"`
		RSI struct {
			Periods    int     `yaml:"periods"`
			Overbought float64 `yaml:"overbought"`
			Oversold   float64 `yaml:"oversold"`
		} `yaml:"rsi"`
	} `yaml:"indicators"`
	Reference struct {
		Market         string `yaml:"market"`
		CandleInterval string `yaml:"candle_interval"`
	} `yaml:"reference"`
}

// position is the bot's open exposure, persisted across runs
type position struct {
	Status string          `json:"status"`
	Side   exchanges.Side  `json:"side,omitempty"`
	Amount decimal.Decimal `json:"amount"`
}

const (
	statusOpen   = "open"
	statusClosed = "closed"
)

// Bot trades band breakouts on a market using a reference market's history
type Bot struct {
	cfg       Config
	market    currency.Market
	interval  time.Duration
	trading   *exchanges.TradingClient
	reference *exchanges.MarketClient
	store     *store.Store
	logger    *log.SubLogger
}

// New returns a technical analysis bot trading through trading, with candle
// data sourced from reference. The reference market must share the traded
// base currency.
func New(cfg Config, trading *exchanges.TradingClient, reference *exchanges.MarketClient, st *store.Store, logger *log.SubLogger) (*Bot, error) {
	market, err := currency.MarketFromCode(cfg.Market)
	if err != nil {
		return nil, err
	}
	if reference.Market.Base != market.Base {
		return nil, errors.Errorf("reference market %s does not share base %s",
			reference.Market, market.Base)
	}
	interval, err := time.ParseDuration(cfg.Reference.CandleInterval)
	if err != nil {
		return nil, errors.Wrap(err, "parsing candle interval")
	}
	if cfg.Indicators.Bbands.Periods <= 0 || cfg.Indicators.RSI.Periods <= 0 {
		return nil, errors.New("indicator periods must be positive")
	}
	if logger == nil {
		logger = log.BotSys
	}
	return &Bot{
		cfg:       cfg,
		market:    market,
		interval:  interval,
		trading:   trading,
		reference: reference,
		store:     st,
		logger:    logger,
	}, nil
}

// Factory registers the bot from the settings file: trading on Buda, candle
// data from Bitstamp
func Factory(budaAPI buda.API, bitstampAPI bitstamp.API) bots.Factory {
	return func(env *bots.Env) (bots.Bot, error) {
		var cfg Config
		if err := env.Settings.BotConfig(Label, &cfg); err != nil {
			return nil, err
		}
		market, err := currency.MarketFromCode(cfg.Market)
		if err != nil {
			return nil, err
		}
		refMarket, err := currency.MarketFromCode(cfg.Reference.Market)
		if err != nil {
			return nil, err
		}
		creds, err := env.Settings.ExchangeCredentials(buda.Name)
		if err != nil {
			return nil, err
		}
		base := exchanges.Base{
			Credentials: creds,
			Timeout:     env.Timeout(),
			DryRun:      env.DryRun(),
			Logger:      env.Logger,
		}
		trading, err := buda.NewTradingClient(base, market, budaAPI)
		if err != nil {
			return nil, err
		}
		reference, err := bitstamp.NewMarketClient(exchanges.Base{
			Timeout: env.Timeout(),
			Logger:  env.Logger,
		}, refMarket, bitstampAPI)
		if err != nil {
			return nil, err
		}
		return New(cfg, trading, reference, env.Store, env.Logger)
	}
}

// Label implements bots.Bot
func (b *Bot) Label() string { return Label }

// Algorithm implements bots.Bot
func (b *Bot) Algorithm(ctx context.Context) error {
	log.Infof(b.logger, "Getting trades from %s %s", b.reference.Name, b.reference.Market)
	trades, err := b.reference.FetchTradesSince(ctx, time.Now().Add(-lookback))
	if err != nil {
		return err
	}
	candles, err := ohlc.FromTrades(trades, b.interval)
	if err != nil {
		return err
	}

	snap, err := latestIndicators(candles.Close,
		b.cfg.Indicators.Bbands.Periods, b.cfg.Indicators.RSI.Periods)
	if err != nil {
		return err
	}
	log.Infof(b.logger, "BB_lower: %.2f | BB_middle: %.2f | BB_upper: %.2f",
		snap.lower, snap.middle, snap.upper)
	log.Infof(b.logger, "RSI: %.2f", snap.rsi)

	pos := position{Status: statusClosed}
	if err := b.store.GetJSON("position", &pos); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if pos.Status == statusClosed {
		pos, err = b.tryOpen(ctx, snap, pos)
	} else {
		pos, err = b.tryClose(ctx, snap, pos)
	}
	if err != nil {
		return err
	}
	return b.store.SetJSON("position", pos)
}

// Abort implements bots.Bot
func (b *Bot) Abort(context.Context) error { return nil }

// PostExecute implements bots.Bot
func (b *Bot) PostExecute(context.Context) error { return nil }

// tryOpen enters a position when price breaks a band and the RSI confirms
// the extreme
func (b *Bot) tryOpen(ctx context.Context, snap indicatorSnapshot, pos position) (position, error) {
	log.Infoln(b.logger, "Position is closed, checking to open")
	side, ok := openSignal(snap, b.cfg.Indicators.RSI.Oversold, b.cfg.Indicators.RSI.Overbought)
	if !ok {
		log.Infoln(b.logger, "Market conditions unmet to open position")
		return pos, nil
	}
	if side == exchanges.Buy {
		log.Infoln(b.logger, "Market oversold! Buying")
	} else {
		log.Infoln(b.logger, "Market overbought! Selling")
	}
	amount := b.openAmount(side, snap.last)
	order, err := b.trading.PlaceMarketOrder(ctx, side, amount)
	if err != nil {
		return pos, err
	}
	return position{Status: statusOpen, Side: side, Amount: order.Amount.Amount()}, nil
}

// tryClose unwinds the position once the RSI returns to neutral territory
func (b *Bot) tryClose(ctx context.Context, snap indicatorSnapshot, pos position) (position, error) {
	log.Infoln(b.logger, "Position is open, checking to close")
	if !closeSignal(snap.rsi, pos.Side) {
		log.Infoln(b.logger, "Market conditions unmet to close position")
		return pos, nil
	}
	log.Infoln(b.logger, "Market is back to normal, closing position")
	amount := money.New(pos.Amount, b.market.Base).TruncateToCurrency()
	order, err := b.trading.PlaceMarketOrder(ctx, opposite(pos.Side), amount)
	if err != nil {
		return pos, err
	}
	filled := order.Filled.Amount()
	if !order.Filled.IsSet() {
		filled = order.Amount.Amount().Sub(order.Remaining.Amount())
	}
	remaining := pos.Amount.Sub(filled)
	if remaining.IsPositive() {
		pos.Amount = remaining
		return pos, nil
	}
	return position{Status: statusClosed}, nil
}

// openAmount sizes the entry: sells commit the base maximum, buys convert
// the quote maximum at the last close
func (b *Bot) openAmount(side exchanges.Side, last float64) money.Money {
	if side == exchanges.Sell {
		return money.NewFromFloat(b.cfg.Amounts.MaxBase, b.market.Base).TruncateToCurrency()
	}
	quote := decimal.NewFromFloat(b.cfg.Amounts.MaxQuote)
	price := decimal.NewFromFloat(last)
	return money.New(quote.Div(price), b.market.Base).TruncateToCurrency()
}

func opposite(side exchanges.Side) exchanges.Side {
	if side == exchanges.Buy {
		return exchanges.Sell
	}
	return exchanges.Buy
}

// indicatorSnapshot is the latest indicator state derived from the candles
type indicatorSnapshot struct {
	last   float64
	lower  float64
	middle float64
	upper  float64
	rsi    float64
}

// latestIndicators computes the closing Bollinger bands and RSI values
func latestIndicators(closes []float64, bbandsPeriods, rsiPeriods int) (indicatorSnapshot, error) {
	need := bbandsPeriods
	if rsiPeriods+1 > need {
		need = rsiPeriods + 1
	}
	if len(closes) < need {
		return indicatorSnapshot{}, errors.Wrapf(errNotEnoughCandles,
			"%d candles, need %d", len(closes), need)
	}
	upper, middle, lower := indicators.BBANDS(closes, bbandsPeriods, 2.0, 2.0, indicators.Sma)
	rsi := indicators.RSI(closes, rsiPeriods)
	return indicatorSnapshot{
		last:   closes[len(closes)-1],
		lower:  lower[len(lower)-1],
		middle: middle[len(middle)-1],
		upper:  upper[len(upper)-1],
		rsi:    rsi[len(rsi)-1],
	}, nil
}

// openSignal reports the entry side when price sits outside the bands with a
// confirming RSI extreme
func openSignal(snap indicatorSnapshot, oversold, overbought float64) (exchanges.Side, bool) {
	switch {
	case snap.last < snap.lower && snap.rsi < oversold:
		return exchanges.Buy, true
	case snap.last > snap.upper && snap.rsi > overbought:
		return exchanges.Sell, true
	}
	return "", false
}

// closeSignal reports whether the RSI has recovered past the neutral edge of
// the side's extreme
func closeSignal(rsi float64, side exchanges.Side) bool {
	if side == exchanges.Buy {
		return rsi >= 30
	}
	return rsi <= 70
}

