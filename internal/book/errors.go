package book

import (
	"errors"
	"fmt"
)

// Sentinel error kinds returned from OrderBook operations. None of these are
// ever thrown through a panic; process() always returns them as values.
var (
	ErrOrderNotFoundInMap   = errors.New("order not found in order id map")
	ErrOrderNotFoundInDeque = errors.New("order not found in deque despite map entry")
	ErrMissingOrderDeque    = errors.New("no order deque at mapped price")
	ErrNanFloat             = errors.New("order price is NaN")
	ErrOutlier              = errors.New("order price rejected by outlier filter")
	ErrBuilderIncomplete    = errors.New("orderbook builder missing required field")
)

// OutOfSequenceError reports that an event's sequence number did not exceed
// the book's last applied sequence. The rejected sequence is carried for
// diagnostics; the book itself is left untouched.
type OutOfSequenceError struct {
	Sequence     uint64
	LastSequence uint64
}

func (e *OutOfSequenceError) Error() string {
	return fmt.Sprintf("event sequence %d out of sequence (last applied %d)", e.Sequence, e.LastSequence)
}

func newOutOfSequence(sequence, last uint64) error {
	return &OutOfSequenceError{Sequence: sequence, LastSequence: last}
}

// IsOutOfSequence reports whether err is (or wraps) an OutOfSequenceError.
func IsOutOfSequence(err error) bool {
	var seqErr *OutOfSequenceError
	return errors.As(err, &seqErr)
}
