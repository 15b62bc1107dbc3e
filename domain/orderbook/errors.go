package orderbook

import "errors"

var (
	// ErrInvalidQuantity rejects a submission with quantity <= 0.
	ErrInvalidQuantity = errors.New("orderbook: invalid quantity")
	// ErrInvalidPrice rejects a limit submission with price <= 0.
	ErrInvalidPrice = errors.New("orderbook: invalid price")
	// ErrInvalidOrder rejects an unknown side or order type.
	ErrInvalidOrder = errors.New("orderbook: invalid order")

	ErrNotFound = errors.New("orderbook: order not found")

	// ErrDuplicateIdentifier means the id allocator handed out a value twice.
	// It is never a user error.
	ErrDuplicateIdentifier = errors.New("orderbook: duplicate order identifier")
)
