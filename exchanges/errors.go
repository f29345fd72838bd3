package exchanges

import (
	"errors"
	"fmt"
)

// Exchange error kinds. Child kinds wrap their parent so errors.Is matches
// anywhere along the chain, e.g. an ErrOrderNotFound also matches
// ErrInvalidOrder and ErrExchange.
var (
	// ErrExchange is the generic remote failure kind, raised when an exchange
	// replies with an error
	ErrExchange = errors.New("exchange error")
	// ErrNotSupported is returned when the exchange does not offer the
	// endpoint
	ErrNotSupported = fmt.Errorf("%w: endpoint not supported", ErrExchange)
	// ErrBadResponse is returned on a malformed payload from the exchange
	ErrBadResponse = fmt.Errorf("%w: bad response", ErrExchange)
	// ErrNullResponse is returned on a null payload from the exchange
	ErrNullResponse = fmt.Errorf("%w: null response", ErrBadResponse)
	// ErrAuthentication is returned when credentials are required but missing
	// or wrong
	ErrAuthentication = fmt.Errorf("%w: authentication failure", ErrExchange)
	// ErrPermissionDenied is returned when the credentials lack permission
	ErrPermissionDenied = fmt.Errorf("%w: permission denied", ErrAuthentication)
	// ErrAccountSuspended is returned when the account has been suspended by
	// the exchange
	ErrAccountSuspended = fmt.Errorf("%w: account suspended", ErrAuthentication)
	// ErrInsufficientFunds is returned when the balance cannot cover an order
	ErrInsufficientFunds = fmt.Errorf("%w: insufficient funds", ErrExchange)
	// ErrInvalidOrder is the parent kind for all order related failures
	ErrInvalidOrder = fmt.Errorf("%w: invalid order", ErrExchange)
	// ErrOrderNotFound is returned fetching or cancelling a non-existent order
	ErrOrderNotFound = fmt.Errorf("%w: order not found", ErrInvalidOrder)
	// ErrCancelPending is returned cancelling an order already pending cancel
	ErrCancelPending = fmt.Errorf("%w: cancel pending", ErrInvalidOrder)
	// ErrOrderNotPlaced is returned when order placement fails
	ErrOrderNotPlaced = fmt.Errorf("%w: order not placed", ErrInvalidOrder)
	// ErrOrderTooSmall is returned when the amount is below the market minimum
	ErrOrderTooSmall = fmt.Errorf("%w: amount below market minimum", ErrInvalidOrder)
	// ErrInvalidAddress is returned on an invalid funding address
	ErrInvalidAddress = fmt.Errorf("%w: invalid address", ErrExchange)
	// ErrAddressPending is returned when the requested address is not ready
	ErrAddressPending = fmt.Errorf("%w: address pending", ErrInvalidAddress)
	// ErrInvalidWithdrawal is returned when a withdrawal request fails
	ErrInvalidWithdrawal = fmt.Errorf("%w: invalid withdrawal", ErrExchange)

	// ErrNetwork is the parent kind for transport level failures, distinct
	// from application level exchange errors
	ErrNetwork = errors.New("network error")
	// ErrDDoSProtection is returned when DDoS protection restrictions trip
	ErrDDoSProtection = fmt.Errorf("%w: ddos protection", ErrNetwork)
	// ErrRequestTimeout is returned when the exchange fails to reply in time
	ErrRequestTimeout = fmt.Errorf("%w: request timed out", ErrNetwork)
	// ErrExchangeNotAvailable is returned on maintenance or downtime replies
	ErrExchangeNotAvailable = fmt.Errorf("%w: exchange not available", ErrNetwork)
	// ErrInvalidNonce is returned on a wrong or conflicting request nonce
	ErrInvalidNonce = fmt.Errorf("%w: invalid nonce", ErrNetwork)
)

// Error binds a taxonomy kind to a descriptive message and the originating
// cause. errors.Is matches the kind chain; errors.Unwrap exposes the cause.
type Error struct {
	kind  error
	msg   string
	cause error
}

// NewError re-types an underlying failure into the taxonomy. A nil kind
// defaults to ErrExchange. Causes already typed by the taxonomy pass through
// unchanged so kinds assigned close to the failure are preserved.
func NewError(kind error, msg string, cause error) error {
	if cause != nil &&
		(errors.Is(cause, ErrExchange) || errors.Is(cause, ErrNetwork)) {
		return cause
	}
	if kind == nil {
		kind = ErrExchange
	}
	return &Error{kind: kind, msg: msg, cause: cause}
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.msg
	if msg == "" {
		msg = e.kind.Error()
	}
	if e.cause != nil {
		return msg + ": " + e.cause.Error()
	}
	return msg
}

// Is matches the error against its taxonomy kind chain
func (e *Error) Is(target error) bool {
	return errors.Is(e.kind, target)
}

// Unwrap returns the originating cause
func (e *Error) Unwrap() error {
	return e.cause
}

// Kind returns the taxonomy kind the error was typed with
func (e *Error) Kind() error {
	return e.kind
}
