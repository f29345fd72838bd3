package exchanges

import (
	"context"
	"fmt"
	"time"

	"github.com/rob-Hitchens/trading-bots/exchanges/validate"
	"github.com/rob-Hitchens/trading-bots/log"
	"github.com/rob-Hitchens/trading-bots/money"
)

// Wallets pairs the funding clients backing a traded market
type Wallets struct {
	Base  *WalletClient
	Quote *WalletClient
}

// TradingClient exposes order management for a single exchange market. It
// layers on top of the market data client and carries a wallet client per
// market leg.
type TradingClient struct {
	MarketClient
	Wallets Wallets

	svc TradingService

	// minOrder caches the market's minimum order amount after the first
	// lookup. Instances are not shared across goroutines.
	minOrder      money.Money
	minOrderKnown bool
}

// NewTradingClient binds a trading service to a market data client and its
// wallets
func NewTradingClient(mc *MarketClient, wallets Wallets, svc TradingService) (*TradingClient, error) {
	if mc == nil {
		return nil, fmt.Errorf("%w: nil market client", ErrNotSupported)
	}
	if svc == nil {
		return nil, fmt.Errorf("%s: %w: nil trading service", mc.Name, ErrNotSupported)
	}
	return &TradingClient{MarketClient: *mc, Wallets: wallets, svc: svc}, nil
}

// MinOrderAmount returns the smallest base amount the market accepts, cached
// after the first successful lookup
func (c *TradingClient) MinOrderAmount(ctx context.Context) (money.Money, error) {
	if c.minOrderKnown {
		return c.minOrder, nil
	}
	var minAmount money.Money
	err := c.fetch(ctx, "min order amount "+c.Market.String(), "", ErrBadResponse,
		func(ctx context.Context) (string, error) {
			var err error
			minAmount, err = c.svc.MinOrderAmount(ctx)
			if err != nil {
				return "", err
			}
			return minAmount.String(), nil
		})
	if err != nil {
		return money.Money{}, err
	}
	c.minOrder = minAmount
	c.minOrderKnown = true
	return minAmount, nil
}

// PlaceMarketOrder submits an order filling immediately at the best
// available prices
func (c *TradingClient) PlaceMarketOrder(ctx context.Context, side Side, amount money.Money) (*Order, error) {
	return c.PlaceOrder(ctx, side, Market, amount, money.Money{})
}

// PlaceLimitOrder submits an order resting at price until filled or
// cancelled
func (c *TradingClient) PlaceLimitOrder(ctx context.Context, side Side, amount, price money.Money) (*Order, error) {
	return c.PlaceOrder(ctx, side, Limit, amount, price)
}

// PlaceOrder submits an order after pre-flight validation. Amounts below the
// market minimum fail with ErrOrderTooSmall before anything is sent. Dry run
// returns a synthetic order instead of submitting.
func (c *TradingClient) PlaceOrder(ctx context.Context, side Side, typ OrderType, amount, price money.Money) (*Order, error) {
	err := validate.All(
		validate.Check(func() error {
			if side != Buy && side != Sell {
				return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, side)
			}
			return nil
		}),
		validate.Check(func() error {
			if amount.Currency() != c.Market.Base {
				return fmt.Errorf("%w: amount %s on market %s",
					ErrInvalidOrder, amount, c.Market)
			}
			if !amount.IsPositive() {
				return fmt.Errorf("%w: non-positive amount %s", ErrInvalidOrder, amount)
			}
			return nil
		}),
		validate.Check(func() error {
			if typ != Limit {
				return nil
			}
			if price.Currency() != c.Market.Quote || !price.IsPositive() {
				return fmt.Errorf("%w: limit price %s on market %s",
					ErrInvalidOrder, price, c.Market)
			}
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}

	minAmount, err := c.MinOrderAmount(ctx)
	if err != nil {
		return nil, err
	}
	if small, err := amount.LessThan(minAmount); err != nil || small {
		return nil, NewError(ErrOrderTooSmall,
			fmt.Sprintf("%s: %s below the %s market minimum %s",
				c.Name, amount, c.Market, minAmount), err)
	}

	if c.DryRun {
		order := NewDryRunOrder(c.Market, side, typ, amount)
		order.Price = price
		log.Warnf(c.logger(), "%s: dry run, %s %s order %s for %s not submitted",
			c.Name, side, typ, order.ID, amount)
		return &order, nil
	}

	var order *Order
	err = c.fetch(ctx, fmt.Sprintf("%s %s order for %s", side, typ, amount),
		"", ErrOrderNotPlaced,
		func(ctx context.Context) (string, error) {
			var err error
			order, err = c.svc.Place(ctx, side, typ, amount, price)
			if err != nil {
				return "", err
			}
			if order == nil {
				return "", ErrNullResponse
			}
			return "id " + order.ID, nil
		})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CancelOrder cancels a single order by id. Dry run is a logged no-op.
func (c *TradingClient) CancelOrder(ctx context.Context, id string) error {
	if c.DryRun {
		log.Warnf(c.logger(), "%s: dry run, order %s not cancelled", c.Name, id)
		return nil
	}
	return c.fetch(ctx, "cancellation of order "+id, "", ErrOrderNotFound,
		func(ctx context.Context) (string, error) {
			return "", c.svc.Cancel(ctx, id)
		})
}

// CancelOrders cancels the given orders, in one batch call when the exchange
// offers one and one by one otherwise. It returns the ids cancelled before
// any failure.
func (c *TradingClient) CancelOrders(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if c.DryRun {
		log.Warnf(c.logger(), "%s: dry run, %d order(s) not cancelled", c.Name, len(ids))
		return ids, nil
	}
	if batch, ok := c.svc.(BatchCanceler); ok {
		var cancelled []string
		err := c.fetch(ctx, fmt.Sprintf("cancellation of %d order(s)", len(ids)),
			"", ErrOrderNotFound,
			func(ctx context.Context) (string, error) {
				var err error
				cancelled, err = batch.CancelBatch(ctx, ids)
				if err != nil {
					return "", err
				}
				return countSummary(len(cancelled)), nil
			})
		return cancelled, err
	}
	cancelled := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := c.CancelOrder(ctx, id); err != nil {
			return cancelled, err
		}
		cancelled = append(cancelled, id)
	}
	return cancelled, nil
}

// CancelAllOrders cancels every open order on the market
func (c *TradingClient) CancelAllOrders(ctx context.Context) ([]string, error) {
	open, err := c.FetchOpenOrders(ctx, 0)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(open))
	for _, o := range open {
		ids = append(ids, o.ID)
	}
	return c.CancelOrders(ctx, ids)
}

// FetchOrder returns a single order by id
func (c *TradingClient) FetchOrder(ctx context.Context, id string) (*Order, error) {
	var order *Order
	err := c.fetch(ctx, "order "+id, "", ErrOrderNotFound,
		func(ctx context.Context) (string, error) {
			var err error
			order, err = c.svc.Order(ctx, id)
			if err != nil {
				return "", err
			}
			if order == nil {
				return "", ErrNullResponse
			}
			return string(order.Status), nil
		})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// FetchOpenOrders returns the market's open orders, newest first, capped at
// limit
func (c *TradingClient) FetchOpenOrders(ctx context.Context, limit int) ([]Order, error) {
	var orders []Order
	err := c.fetchLimit(ctx, "open orders "+c.Market.String(), limit, ErrBadResponse,
		func(ctx context.Context) (string, error) {
			var err error
			orders, err = c.svc.OpenOrders(ctx)
			if err != nil {
				return "", err
			}
			orders = c.pipeline(orders, limit)
			return countSummary(len(orders)), nil
		})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// FetchClosedOrders returns the market's settled orders, newest first,
// capped at limit
func (c *TradingClient) FetchClosedOrders(ctx context.Context, limit int) ([]Order, error) {
	var orders []Order
	err := c.fetchLimit(ctx, "closed orders "+c.Market.String(), limit, ErrBadResponse,
		func(ctx context.Context) (string, error) {
			var err error
			orders, err = c.svc.ClosedOrders(ctx, time.Time{})
			if err != nil {
				return "", err
			}
			orders = c.pipeline(orders, limit)
			return countSummary(len(orders)), nil
		})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// FetchClosedOrdersSince returns settled orders stamped at or after since,
// newest first
func (c *TradingClient) FetchClosedOrdersSince(ctx context.Context, since time.Time) ([]Order, error) {
	var orders []Order
	err := c.fetchSince(ctx, "closed orders "+c.Market.String(), since, ErrBadResponse,
		func(ctx context.Context) (string, error) {
			var err error
			orders, err = c.svc.ClosedOrders(ctx, since)
			if err != nil {
				return "", err
			}
			orders = filterSince(c.pipeline(orders, 0), since)
			return countSummary(len(orders)), nil
		})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// pipeline applies the shared order post-processing: keep own market, newest
// first, cap at limit
func (c *TradingClient) pipeline(orders []Order, limit int) []Order {
	own := make([]Order, 0, len(orders))
	for _, o := range orders {
		if o.Market.Equal(c.Market) {
			own = append(own, o)
		}
	}
	sortByTimestamp(own, true)
	return filterLimit(own, limit)
}
