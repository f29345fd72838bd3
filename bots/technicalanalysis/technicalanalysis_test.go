package technicalanalysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rob-Hitchens/trading-bots/common/ohlc"
	"github.com/rob-Hitchens/trading-bots/currency"
	"github.com/rob-Hitchens/trading-bots/exchanges"
	"github.com/rob-Hitchens/trading-bots/exchanges/orderbook"
	"github.com/rob-Hitchens/trading-bots/money"
)

func testConfig() Config {
	cfg := Config{Market: "BTCCLP"}
	cfg.Amounts.MaxBase = 1
	cfg.Amounts.MaxQuote = 1000000
	cfg.Indicators.Bbands.Periods = 20
	cfg.Indicators.RSI.Periods = 14
	cfg.Indicators.RSI.Overbought = 70
	cfg.Indicators.RSI.Oversold = 30
	cfg.Reference.Market = "BTCUSD"
	cfg.Reference.CandleInterval = "5m"
	return cfg
}

type stubMarketSvc struct{}

func (stubMarketSvc) Ticker(context.Context) (*exchanges.Ticker, error) { return nil, nil }
func (stubMarketSvc) OrderBook(context.Context) (*orderbook.Book, error) {
	return nil, nil
}
func (stubMarketSvc) TradesSince(context.Context, time.Time) ([]exchanges.Trade, error) {
	return nil, nil
}

func referenceClient(t *testing.T, market currency.Market) *exchanges.MarketClient {
	t.Helper()
	client, err := exchanges.NewMarketClient(
		exchanges.Base{Name: "Reference"}, market, stubMarketSvc{})
	require.NoError(t, err)
	return client
}

func TestNewValidatesReferenceBase(t *testing.T) {
	reference := referenceClient(t, currency.NewMarket(currency.ETH, currency.USD))
	_, err := New(testConfig(), nil, reference, nil, nil)
	assert.Error(t, err, "the reference market must share the traded base currency")

	reference = referenceClient(t, currency.NewMarket(currency.BTC, currency.USD))
	_, err = New(testConfig(), nil, reference, nil, nil)
	assert.NoError(t, err)
}

func TestCandleCloses(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	trade := func(offset time.Duration, price float64) exchanges.Trade {
		return exchanges.Trade{
			Price:     money.NewFromFloat(price, currency.USD),
			Amount:    money.NewFromFloat(1, currency.BTC),
			Timestamp: start.Add(offset),
		}
	}
	trades := []exchanges.Trade{
		trade(0, 100),
		trade(2*time.Minute, 101),
		trade(4*time.Minute, 102),
		trade(6*time.Minute, 103),
		trade(11*time.Minute, 104),
	}
	candles, err := ohlc.FromTrades(trades, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []float64{102, 103, 104}, candles.Close)
}

func TestLatestIndicatorsRequiresEnoughCandles(t *testing.T) {
	_, err := latestIndicators([]float64{1, 2, 3}, 20, 14)
	assert.ErrorIs(t, err, errNotEnoughCandles)
}

func TestLatestIndicators(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i%5)
	}
	snap, err := latestIndicators(closes, 20, 14)
	require.NoError(t, err)
	assert.Equal(t, closes[len(closes)-1], snap.last)
	assert.Greater(t, snap.upper, snap.middle)
	assert.Less(t, snap.lower, snap.middle)
	assert.Greater(t, snap.rsi, 0.0)
	assert.Less(t, snap.rsi, 100.0)
}

func TestOpenSignal(t *testing.T) {
	buy := indicatorSnapshot{last: 95, lower: 96, upper: 104, rsi: 25}
	side, ok := openSignal(buy, 30, 70)
	require.True(t, ok)
	assert.Equal(t, exchanges.Buy, side, "oversold breakouts below the band open long")

	sell := indicatorSnapshot{last: 105, lower: 96, upper: 104, rsi: 75}
	side, ok = openSignal(sell, 30, 70)
	require.True(t, ok)
	assert.Equal(t, exchanges.Sell, side, "overbought breakouts above the band open short")

	flat := indicatorSnapshot{last: 100, lower: 96, upper: 104, rsi: 50}
	_, ok = openSignal(flat, 30, 70)
	assert.False(t, ok)

	unconfirmed := indicatorSnapshot{last: 95, lower: 96, upper: 104, rsi: 45}
	_, ok = openSignal(unconfirmed, 30, 70)
	assert.False(t, ok, "a band breakout without an RSI extreme stays flat")
}

func TestCloseSignal(t *testing.T) {
	assert.True(t, closeSignal(35, exchanges.Buy), "long positions close once RSI recovers past 30")
	assert.False(t, closeSignal(25, exchanges.Buy))
	assert.True(t, closeSignal(65, exchanges.Sell), "short positions close once RSI falls past 70")
	assert.False(t, closeSignal(75, exchanges.Sell))
}

func TestOpenAmount(t *testing.T) {
	reference := referenceClient(t, currency.NewMarket(currency.BTC, currency.USD))
	bot, err := New(testConfig(), nil, reference, nil, nil)
	require.NoError(t, err)

	sell := bot.openAmount(exchanges.Sell, 1000000)
	assert.Equal(t, "BTC 1", sell.String(), "sells commit the base maximum")

	buy := bot.openAmount(exchanges.Buy, 2000000)
	assert.Equal(t, "BTC 0.5", buy.String(), "buys convert the quote maximum at the last close")
}
