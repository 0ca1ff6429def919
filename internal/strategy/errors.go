package strategy

import (
	"errors"
	"fmt"
)

// Error taxonomy for the Strategy Engine. Callers use errors.Is to decide
// whether a failure is worth retrying on the next tick, should be surfaced
// to the operator, or is a programming mistake that must never write
// partial state.
var (
	// ErrTransientExchange wraps network timeouts, 5xx responses, and empty
	// responses from the Exchange Client. Retried implicitly by the next
	// tick; never causes state mutation on its own.
	ErrTransientExchange = errors.New("transient exchange error")

	// ErrSemanticExchange wraps an order rejected for min-notional, balance,
	// or unknown token. Non-retriable for sells below minimum (dropped as
	// dust); retriable for balance after a reconciliation.
	ErrSemanticExchange = errors.New("semantic exchange error")

	// ErrNotPreMarket is returned by InitializeEvent when called on an event
	// not in PRE_MARKET — a fatal logic error that never writes state.
	ErrNotPreMarket = errors.New("initialize_event called on non-PRE_MARKET event")

	// ErrNotAccumulating is returned by TransitionToLive when the event's
	// state is not ACCUMULATING.
	ErrNotAccumulating = errors.New("transition_to_live called on event not ACCUMULATING")

	// ErrNotExiting is returned by CheckCompletion when the event's state
	// is not EXITING.
	ErrNotExiting = errors.New("check_completion called on event not EXITING")
)

// transientf wraps a formatted message with ErrTransientExchange so callers
// can errors.Is it.
func transientf(format string, args ...any) error {
	return wrapf(ErrTransientExchange, format, args...)
}

// semanticf wraps a formatted message with ErrSemanticExchange.
func semanticf(format string, args ...any) error {
	return wrapf(ErrSemanticExchange, format, args...)
}

func wrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}
