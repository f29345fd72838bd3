package exchanges

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rob-Hitchens/trading-bots/currency"
	"github.com/rob-Hitchens/trading-bots/log"
	"github.com/rob-Hitchens/trading-bots/money"
)

// WalletClient exposes the funding operations of a single currency wallet on
// one exchange
type WalletClient struct {
	Base
	Currency currency.Code

	svc WalletService
	// withdrawalFees holds the static network fee charged per withdrawal.
	// Currencies absent from the map either charge nothing or let the
	// exchange deduct the fee natively.
	withdrawalFees map[currency.Code]decimal.Decimal
}

// NewWalletClient binds a wallet service to a currency
func NewWalletClient(base Base, code currency.Code, svc WalletService, fees map[currency.Code]decimal.Decimal) (*WalletClient, error) {
	if code.IsEmpty() {
		return nil, fmt.Errorf("%s: %w: empty wallet currency", base.Name, ErrNotSupported)
	}
	if svc == nil {
		return nil, fmt.Errorf("%s: %w: nil wallet service", base.Name, ErrNotSupported)
	}
	return &WalletClient{Base: base, Currency: code, svc: svc, withdrawalFees: fees}, nil
}

// WithdrawalFee returns the static network fee applied when the caller asks
// for fee subtraction, zero when none is configured
func (c *WalletClient) WithdrawalFee() money.Money {
	return money.New(c.withdrawalFees[c.Currency], c.Currency)
}

// FetchBalance returns the wallet funds, checked for internal consistency
func (c *WalletClient) FetchBalance(ctx context.Context) (*Balance, error) {
	var balance *Balance
	err := c.fetch(ctx, "balance "+c.Currency.String(), "", ErrBadResponse,
		func(ctx context.Context) (string, error) {
			var err error
			balance, err = c.svc.Balance(ctx)
			if err != nil {
				return "", err
			}
			if balance == nil {
				return "", ErrNullResponse
			}
			if err := balance.Validate(); err != nil {
				return "", err
			}
			return "total " + balance.Total.String(), nil
		})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// FetchDeposits returns the wallet's most recent deposits, newest first,
// capped at limit
func (c *WalletClient) FetchDeposits(ctx context.Context, limit int) ([]Transaction, error) {
	return c.fetchTxs(ctx, "deposits", limit, c.svc.Deposits)
}

// FetchAllDeposits returns every known deposit of the wallet, newest first
func (c *WalletClient) FetchAllDeposits(ctx context.Context) ([]Transaction, error) {
	return c.FetchDeposits(ctx, 0)
}

// FetchDepositsSince returns deposits stamped at or after since, oldest
// first
func (c *WalletClient) FetchDepositsSince(ctx context.Context, since time.Time) ([]Transaction, error) {
	return c.fetchTxsSince(ctx, "deposits", since, c.svc.Deposits)
}

// FetchWithdrawals returns the wallet's most recent withdrawals, newest
// first, capped at limit
func (c *WalletClient) FetchWithdrawals(ctx context.Context, limit int) ([]Transaction, error) {
	return c.fetchTxs(ctx, "withdrawals", limit, c.svc.Withdrawals)
}

// FetchAllWithdrawals returns every known withdrawal of the wallet, newest
// first
func (c *WalletClient) FetchAllWithdrawals(ctx context.Context) ([]Transaction, error) {
	return c.FetchWithdrawals(ctx, 0)
}

// FetchWithdrawalsSince returns withdrawals stamped at or after since,
// oldest first
func (c *WalletClient) FetchWithdrawalsSince(ctx context.Context, since time.Time) ([]Transaction, error) {
	return c.fetchTxsSince(ctx, "withdrawals", since, c.svc.Withdrawals)
}

// RequestWithdrawal submits a withdrawal of amount to address. With
// subtractFee the configured network fee is deducted from amount so the
// wallet is not overdrawn by the fee; exchanges that deduct natively are
// passed the full amount with the includes-fee flag instead. Dry run
// short-circuits before any remote call.
func (c *WalletClient) RequestWithdrawal(ctx context.Context, amount money.Money, address string, subtractFee bool) (*Transaction, error) {
	if amount.Currency() != c.Currency {
		return nil, NewError(ErrInvalidWithdrawal,
			fmt.Sprintf("%s: withdrawing %s from a %s wallet", c.Name, amount, c.Currency),
			money.ErrCurrencyMismatch)
	}
	if !amount.IsPositive() {
		return nil, NewError(ErrInvalidWithdrawal,
			fmt.Sprintf("%s: non-positive withdrawal amount %s", c.Name, amount), nil)
	}
	if address == "" {
		return nil, NewError(ErrInvalidAddress,
			fmt.Sprintf("%s: empty withdrawal address", c.Name), nil)
	}

	includesFee := false
	if subtractFee {
		if fee, ok := c.withdrawalFees[c.Currency]; ok {
			amount = amount.SubScalar(fee)
			if !amount.IsPositive() {
				return nil, NewError(ErrInvalidWithdrawal,
					fmt.Sprintf("%s: amount does not cover the %s withdrawal fee",
						c.Name, fee), nil)
			}
		} else {
			includesFee = true
		}
	}

	if c.DryRun {
		tx := NewDryRunWithdrawal(amount, address)
		log.Warnf(c.logger(), "%s: dry run, withdrawal %s of %s to %s not submitted",
			c.Name, tx.ID, amount, address)
		return &tx, nil
	}

	var tx *Transaction
	err := c.fetch(ctx, fmt.Sprintf("withdrawal of %s to %s", amount, address),
		"", ErrInvalidWithdrawal,
		func(ctx context.Context) (string, error) {
			var err error
			tx, err = c.svc.Withdraw(ctx, amount, address, includesFee)
			if err != nil {
				return "", err
			}
			if tx == nil {
				return "", ErrNullResponse
			}
			return "id " + tx.ID, nil
		})
	if err != nil {
		return nil, err
	}
	return tx, nil
}

type txFetcher func(ctx context.Context) ([]Transaction, error)

func (c *WalletClient) fetchTxs(ctx context.Context, entity string, limit int, f txFetcher) ([]Transaction, error) {
	var txs []Transaction
	err := c.fetchLimit(ctx, entity+" "+c.Currency.String(), limit, ErrBadResponse,
		func(ctx context.Context) (string, error) {
			var err error
			txs, err = f(ctx)
			if err != nil {
				return "", err
			}
			txs = c.ownCurrency(txs)
			sortByTimestamp(txs, true)
			txs = filterLimit(txs, limit)
			return countSummary(len(txs)), nil
		})
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (c *WalletClient) fetchTxsSince(ctx context.Context, entity string, since time.Time, f txFetcher) ([]Transaction, error) {
	var txs []Transaction
	err := c.fetchSince(ctx, entity+" "+c.Currency.String(), since, ErrBadResponse,
		func(ctx context.Context) (string, error) {
			var err error
			txs, err = f(ctx)
			if err != nil {
				return "", err
			}
			txs = filterSince(c.ownCurrency(txs), since)
			sortByTimestamp(txs, false)
			return countSummary(len(txs)), nil
		})
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// ownCurrency drops transactions of other currencies for services reporting
// account-wide movements
func (c *WalletClient) ownCurrency(txs []Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Currency == c.Currency {
			out = append(out, tx)
		}
	}
	return out
}
