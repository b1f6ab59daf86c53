package lob

import "errors"

var (
	ErrInvalidOrder       = errors.New("order is invalid")
	ErrDuplicateID        = errors.New("order id already resting in the book")
	ErrInvariant          = errors.New("order book invariant violated")
	ErrTooManySubscribers = errors.New("subscriber limit reached")
	ErrShutdown           = errors.New("shutting down")
)
