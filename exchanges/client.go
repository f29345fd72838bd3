package exchanges

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/rob-Hitchens/trading-bots/exchanges/orderbook"
	"github.com/rob-Hitchens/trading-bots/log"
	"github.com/rob-Hitchens/trading-bots/money"
)

// DefaultTimeout bounds a single remote call when the configuration does not
// set one
const DefaultTimeout = 15 * time.Second

var (
	errTotalUnset      = errors.New("total amount unset")
	errBalanceMismatch = errors.New("mismatch")

	two = decimal.NewFromInt(2)
)

// MarketService supplies the public market data primitives of one exchange
// market. Implementations parse native payloads into domain types and never
// filter or sort; the clients own that.
type MarketService interface {
	Ticker(ctx context.Context) (*Ticker, error)
	OrderBook(ctx context.Context) (*orderbook.Book, error)
	TradesSince(ctx context.Context, since time.Time) ([]Trade, error)
}

// WalletService supplies the funding primitives of one exchange wallet
type WalletService interface {
	Balance(ctx context.Context) (*Balance, error)
	Deposits(ctx context.Context) ([]Transaction, error)
	Withdrawals(ctx context.Context) ([]Transaction, error)
	// Withdraw submits a withdrawal for amount to address. When includesFee
	// is set the exchange deducts its fee from amount rather than on top,
	// for venues that support it natively.
	Withdraw(ctx context.Context, amount money.Money, address string, includesFee bool) (*Transaction, error)
}

// TradingService supplies the order management primitives of one exchange
// market
type TradingService interface {
	Order(ctx context.Context, id string) (*Order, error)
	OpenOrders(ctx context.Context) ([]Order, error)
	// ClosedOrders returns settled orders no older than since. A zero since
	// means no lower bound.
	ClosedOrders(ctx context.Context, since time.Time) ([]Order, error)
	Place(ctx context.Context, side Side, typ OrderType, amount, price money.Money) (*Order, error)
	Cancel(ctx context.Context, id string) error
	MinOrderAmount(ctx context.Context) (money.Money, error)
}

// BatchCanceler is implemented by trading services whose exchange offers a
// single call cancelling several orders
type BatchCanceler interface {
	CancelBatch(ctx context.Context, ids []string) ([]string, error)
}

// Base carries the state shared by every client kind. Credentials are only
// inspected when an authenticated primitive runs, so public market data
// clients work without any.
type Base struct {
	Name        string
	Credentials map[string]string
	Timeout     time.Duration
	DryRun      bool
	Limiter     *rate.Limiter
	Logger      *log.SubLogger
}

func (b *Base) logger() *log.SubLogger {
	if b.Logger != nil {
		return b.Logger
	}
	return log.ExchSys
}

// CheckCredentials fails when any of the named credential keys is missing or
// empty
func (b *Base) CheckCredentials(keys ...string) error {
	for _, k := range keys {
		if b.Credentials[k] == "" {
			return NewError(ErrAuthentication,
				fmt.Sprintf("%s credential %q missing", b.Name, k), nil)
		}
	}
	return nil
}

// callCtx derives the deadline-bounded context every remote primitive runs
// under
func (b *Base) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// fetch runs one remote primitive: waits on the limiter, logs the attempt,
// re-types any failure into the taxonomy under kind, and logs the summary op
// reports on success. Errors surface immediately and are never retried.
func (b *Base) fetch(ctx context.Context, entity, suffix string, kind error, op func(ctx context.Context) (string, error)) error {
	if b.Limiter != nil {
		if err := b.Limiter.Wait(ctx); err != nil {
			return NewError(ErrRequestTimeout,
				fmt.Sprintf("%s: rate limit wait for %s aborted", b.Name, entity), err)
		}
	}
	desc := entity
	if suffix != "" {
		desc += " " + suffix
	}
	log.Debugf(b.logger(), "%s: fetching %s", b.Name, desc)

	cctx, cancel := b.callCtx(ctx)
	defer cancel()

	summary, err := op(cctx)
	if err != nil {
		return NewError(kind,
			fmt.Sprintf("%s: fetching %s failed", b.Name, desc), err)
	}
	if summary != "" {
		log.Debugf(b.logger(), "%s: fetched %s: %s", b.Name, desc, summary)
	}
	return nil
}

// fetchLimit is fetch annotated with the requested collection bound
func (b *Base) fetchLimit(ctx context.Context, entity string, limit int, kind error, op func(ctx context.Context) (string, error)) error {
	suffix := "(all)"
	if limit > 0 {
		suffix = fmt.Sprintf("(limit=%d)", limit)
	}
	return b.fetch(ctx, entity, suffix, kind, op)
}

// fetchSince is fetch annotated with the lower timestamp bound
func (b *Base) fetchSince(ctx context.Context, entity string, since time.Time, kind error, op func(ctx context.Context) (string, error)) error {
	suffix := fmt.Sprintf("since %s (%s)",
		since.Format(time.RFC1123Z), relativeTime(since))
	return b.fetch(ctx, entity, suffix, kind, op)
}

// relativeTime renders how far in the past t lies, rounded to a readable
// unit
func relativeTime(t time.Time) string {
	d := time.Since(t)
	if d < 0 {
		return "in the future"
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%.1fh ago", d.Hours())
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// countSummary renders the collection size logged after a successful fetch
func countSummary(n int) string {
	return fmt.Sprintf("%d item(s)", n)
}

type timestamped interface {
	when() time.Time
}

// sortByTimestamp orders items by their timestamp, oldest first unless
// descending is set. Sorting is stable so exchange-reported ordering breaks
// ties.
func sortByTimestamp[T timestamped](items []T, descending bool) {
	sort.SliceStable(items, func(i, j int) bool {
		if descending {
			return items[i].when().After(items[j].when())
		}
		return items[i].when().Before(items[j].when())
	})
}

// filterSince keeps items stamped at or after since
func filterSince[T timestamped](items []T, since time.Time) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if !it.when().Before(since) {
			out = append(out, it)
		}
	}
	return out
}

// filterLimit keeps at most limit leading items. A non-positive limit keeps
// everything.
func filterLimit[T any](items []T, limit int) []T {
	if limit <= 0 || limit >= len(items) {
		return items
	}
	return items[:limit]
}
