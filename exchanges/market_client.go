package exchanges

import (
	"context"
	"fmt"
	"time"

	"github.com/rob-Hitchens/trading-bots/currency"
	"github.com/rob-Hitchens/trading-bots/exchanges/orderbook"
	"github.com/rob-Hitchens/trading-bots/log"
)

// MarketClient exposes public market data for a single exchange market.
// Methods are synchronous and safe to call without credentials.
type MarketClient struct {
	Base
	Market currency.Market

	svc MarketService
}

// NewMarketClient binds a market data service to a market
func NewMarketClient(base Base, market currency.Market, svc MarketService) (*MarketClient, error) {
	if market.IsEmpty() {
		return nil, currency.ErrMarketIsEmpty
	}
	if svc == nil {
		return nil, fmt.Errorf("%s: %w: nil market service", base.Name, ErrNotSupported)
	}
	return &MarketClient{Base: base, Market: market, svc: svc}, nil
}

// FetchTicker returns the current price summary for the market
func (c *MarketClient) FetchTicker(ctx context.Context) (*Ticker, error) {
	var ticker *Ticker
	err := c.fetch(ctx, "ticker "+c.Market.String(), "", ErrBadResponse,
		func(ctx context.Context) (string, error) {
			var err error
			ticker, err = c.svc.Ticker(ctx)
			if err != nil {
				return "", err
			}
			if ticker == nil {
				return "", ErrNullResponse
			}
			return "last " + ticker.Last.String(), nil
		})
	if err != nil {
		return nil, err
	}
	return ticker, nil
}

// FetchOrderBook returns the current depth snapshot for the market
func (c *MarketClient) FetchOrderBook(ctx context.Context) (*orderbook.Book, error) {
	var book *orderbook.Book
	err := c.fetch(ctx, "order book "+c.Market.String(), "", ErrBadResponse,
		func(ctx context.Context) (string, error) {
			var err error
			book, err = c.svc.OrderBook(ctx)
			if err != nil {
				return "", err
			}
			if book == nil {
				return "", ErrNullResponse
			}
			return fmt.Sprintf("%d bids, %d asks", len(book.Bids), len(book.Asks)), nil
		})
	if err != nil {
		return nil, err
	}
	if bid, ask, spread, err := book.SpreadDetails(); err == nil {
		log.Debugf(log.OrderBook, "%s bid %s ask %s spread %s", c.Market, bid, ask, spread)
	}
	return book, nil
}

// FetchTradesSince returns the market's fills stamped at or after since,
// oldest first
func (c *MarketClient) FetchTradesSince(ctx context.Context, since time.Time) ([]Trade, error) {
	var trades []Trade
	err := c.fetchSince(ctx, "trades "+c.Market.String(), since, ErrBadResponse,
		func(ctx context.Context) (string, error) {
			var err error
			trades, err = c.svc.TradesSince(ctx, since)
			if err != nil {
				return "", err
			}
			trades = filterSince(trades, since)
			sortByTimestamp(trades, false)
			return countSummary(len(trades)), nil
		})
	if err != nil {
		return nil, err
	}
	return trades, nil
}
