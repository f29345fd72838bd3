// Package ohlc collates trade history into fixed time period candles
package ohlc

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rob-Hitchens/trading-bots/currency"
	"github.com/rob-Hitchens/trading-bots/exchanges"
)

// Collation errors
var (
	ErrInsufficientData  = errors.New("insufficient trade data to collate")
	errTimestampNotSet   = errors.New("trade timestamp not set")
	errPriceNotPositive  = errors.New("trade price not positive")
	errPeriodNotPositive = errors.New("time period must be positive")
)

// Candles contains collated data for a market over a fixed time period.
// Periods without price action carry the previous close with zero volume so
// the series stays gapless for indicator windows.
type Candles struct {
	Market     currency.Market
	Exchange   string
	TimePeriod time.Duration
	Open       []float64
	High       []float64
	Low        []float64
	Close      []float64
	Volume     []float64
	Date       []time.Time
}

// Len returns the candle count
func (c *Candles) Len() int {
	return len(c.Close)
}

// FromTrades collates candles out of trade history for the time period.
// Trade order does not matter, the history is sorted before collation.
func FromTrades(trades []exchanges.Trade, period time.Duration) (*Candles, error) {
	if period <= 0 {
		return nil, errPeriodNotPositive
	}
	if err := validate(trades); err != nil {
		return nil, err
	}

	trades = append([]exchanges.Trade(nil), trades...)
	sort.Slice(trades, func(i, j int) bool {
		return trades[i].Timestamp.Before(trades[j].Timestamp)
	})

	c := &Candles{
		Market:     trades[0].Market,
		TimePeriod: period,
	}

	start := trades[0].Timestamp.Truncate(period)
	end := trades[len(trades)-1].Timestamp
	i := 0
	var lastClose float64
	for t := start; !t.After(end); t = t.Add(period) {
		bucketEnd := t.Add(period)

		var open, high, low, closePrice, volume float64
		n := 0
		for ; i < len(trades) && trades[i].Timestamp.Before(bucketEnd); i++ {
			price, _ := trades[i].Price.Amount().Float64()
			amount, _ := trades[i].Amount.Amount().Float64()
			if n == 0 {
				open, high, low = price, price, price
			}
			if price > high {
				high = price
			}
			if price < low {
				low = price
			}
			closePrice = price
			volume += amount
			n++
		}

		// no price action, carry the previous close
		if n == 0 {
			open, high, low, closePrice = lastClose, lastClose, lastClose, lastClose
		}
		c.Open = append(c.Open, open)
		c.High = append(c.High, high)
		c.Low = append(c.Low, low)
		c.Close = append(c.Close, closePrice)
		c.Volume = append(c.Volume, volume)
		c.Date = append(c.Date, t)
		lastClose = closePrice
	}
	return c, nil
}

func validate(trades []exchanges.Trade) error {
	if len(trades) == 0 {
		return ErrInsufficientData
	}
	for i := range trades {
		if trades[i].Timestamp.IsZero() {
			return fmt.Errorf("%w for element %d", errTimestampNotSet, i)
		}
		if !trades[i].Price.IsPositive() {
			return fmt.Errorf("%w for element %d", errPriceNotPositive, i)
		}
	}
	return nil
}
