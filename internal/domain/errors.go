package domain

import "errors"

var (
	// ErrNameTooLong is returned when a house name is empty or 32 bytes or longer.
	ErrNameTooLong = errors.New("the given name is too long")

	// ErrArithmeticOverflow is returned when checked fund math would wrap,
	// including narrowing failures out of the widened payment computation.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrPriceTooLow is returned when a bid does not strictly beat the highest price.
	ErrPriceTooLow = errors.New("price too low")

	// ErrInvalidAmount is returned when an auction is created with a zero deposit.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNotEligibleToWithdraw is returned for any disallowed terminal transition:
	// the current winner trying to pull their escrow, finalizing before the
	// deadline or for the wrong bidder, or cancelling an auction that has a bid.
	ErrNotEligibleToWithdraw = errors.New("not eligible to withdraw")

	// ErrInvalidFormat is returned when a decimal string cannot be scaled exactly.
	ErrInvalidFormat = errors.New("invalid decimal format")

	// ErrAuctionEnded is returned when a bid arrives after the deadline under
	// the hard-cutoff policy.
	ErrAuctionEnded = errors.New("auction ended")
)

// OpError wraps a failed engine operation with its name.
type OpError struct {
	Op  string // Operation that failed (e.g., "bid", "finalize")
	Err error  // Underlying error
}

func (e *OpError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// NewOpError wraps err with the operation name.
func NewOpError(op string, err error) *OpError {
	return &OpError{Op: op, Err: err}
}
