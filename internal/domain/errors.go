package domain

import "errors"

// Sentinel errors for every rule the core enforces. Callers wrap them with
// %w and context; the CLI and HTTP layers match with errors.Is.
var (
	// ErrCapacity rejects a party that does not fit the table.
	ErrCapacity = errors.New("party does not fit table capacity")
	// ErrTableState rejects an operation the table's current state forbids.
	ErrTableState = errors.New("operation invalid for table state")
	// ErrConflict rejects a second open order for the same table.
	ErrConflict = errors.New("table already has an open order")
	// ErrNotFound covers unknown tables, orders, and dish line indexes.
	ErrNotFound = errors.New("not found")
	// ErrUnknownDish rejects an order line that is not on the menu.
	ErrUnknownDish = errors.New("dish not on the menu")
	// ErrInvalidTransition rejects an illegal dish status change.
	ErrInvalidTransition = errors.New("invalid dish status transition")
)
