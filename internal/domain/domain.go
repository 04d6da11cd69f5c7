package domain

import (
	"fmt"
	"time"
)

// TableStatus is the stored state of a floor table. A reservation whose time
// has elapsed still carries TableReserved on disk; EffectiveStatus resolves it.
type TableStatus string

const (
	TableEmpty    TableStatus = "empty"
	TableTaken    TableStatus = "taken"
	TableReserved TableStatus = "reserved"
)

// DishStatus tracks one ordered dish through the kitchen.
type DishStatus string

const (
	DishToBePrepared     DishStatus = "ToBePrepared"
	DishCompleted        DishStatus = "Completed"
	DishCannotBePrepared DishStatus = "CannotBePrepared"
)

// ParseDishStatus validates an externally supplied status string.
func ParseDishStatus(s string) (DishStatus, error) {
	switch DishStatus(s) {
	case DishToBePrepared, DishCompleted, DishCannotBePrepared:
		return DishStatus(s), nil
	}
	return "", fmt.Errorf("unknown dish status %q", s)
}

// Terminal reports whether a dish line can never change again.
func (s DishStatus) Terminal() bool {
	return s == DishCompleted || s == DishCannotBePrepared
}

// EnsureDishTransition enforces the kitchen state machine: a pending line may
// be completed or abandoned, terminal lines are immutable.
func EnsureDishTransition(oldStatus, newStatus DishStatus) error {
	switch oldStatus {
	case DishToBePrepared:
		switch newStatus {
		case DishCompleted, DishCannotBePrepared:
			return nil
		}
	case DishCompleted, DishCannotBePrepared:
		return fmt.Errorf("%w: line is already %s", ErrInvalidTransition, oldStatus)
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, oldStatus, newStatus)
}

// Table is one seat group on the floor. Timestamps are RFC3339 strings, like
// every other persisted timestamp in the module.
type Table struct {
	ID         int         `json:"id"`
	Capacity   int         `json:"capacity"`
	Occupancy  int         `json:"occupancy"`
	Status     TableStatus `json:"status"`
	ReservedAt string      `json:"reserved_at,omitempty"`
}

// ReservedTime parses the reservation timestamp, if any.
func (t Table) ReservedTime() (time.Time, bool) {
	if t.ReservedAt == "" {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339, t.ReservedAt)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

// EffectiveStatus resolves lazy reservation expiry: a reservation whose time
// has passed counts as Empty without touching the stored row.
func (t Table) EffectiveStatus(now time.Time) TableStatus {
	if t.Status == TableReserved {
		if at, ok := t.ReservedTime(); ok && now.After(at) {
			return TableEmpty
		}
	}
	return t.Status
}

// Normalize folds an elapsed reservation back into the stored state. It
// reports whether the table changed and must be persisted.
func (t *Table) Normalize(now time.Time) bool {
	if t.Status == TableReserved && t.EffectiveStatus(now) == TableEmpty {
		t.Status = TableEmpty
		t.ReservedAt = ""
		return true
	}
	return false
}

// ReservationImminent reports whether the table should render as reserved:
// now is inside [reserved_at - window, reserved_at].
func (t Table) ReservationImminent(now time.Time, window time.Duration) bool {
	if t.Status != TableReserved {
		return false
	}
	at, ok := t.ReservedTime()
	if !ok {
		return false
	}
	return !now.Before(at.Add(-window)) && !now.After(at)
}

// Seat puts a party at the table. The occupancy bounds 0 <= n <= capacity are
// enforced here and nowhere else.
func (t *Table) Seat(now time.Time, guests int) error {
	if guests < 1 || guests > t.Capacity {
		return fmt.Errorf("%w: %d guests at a table for %d", ErrCapacity, guests, t.Capacity)
	}
	if st := t.EffectiveStatus(now); st != TableEmpty {
		return fmt.Errorf("%w: table %d is %s", ErrTableState, t.ID, st)
	}
	t.Status = TableTaken
	t.Occupancy = guests
	t.ReservedAt = ""
	return nil
}

// Clear releases a taken table. The caller is responsible for checking that
// no open order remains.
func (t *Table) Clear(now time.Time) error {
	if st := t.EffectiveStatus(now); st != TableTaken {
		return fmt.Errorf("%w: table %d is %s, not taken", ErrTableState, t.ID, st)
	}
	t.Status = TableEmpty
	t.Occupancy = 0
	t.ReservedAt = ""
	return nil
}

// Reserve books the table for a future time.
func (t *Table) Reserve(now, at time.Time) error {
	if st := t.EffectiveStatus(now); st != TableEmpty {
		return fmt.Errorf("%w: table %d is %s", ErrTableState, t.ID, st)
	}
	if !at.After(now) {
		return fmt.Errorf("%w: reservation time %s is not in the future", ErrTableState, at.Format(time.RFC3339))
	}
	t.Status = TableReserved
	t.ReservedAt = at.UTC().Format(time.RFC3339)
	return nil
}

// CancelReservation releases a reserved table back to empty.
func (t *Table) CancelReservation(now time.Time) error {
	if st := t.EffectiveStatus(now); st != TableReserved {
		return fmt.Errorf("%w: table %d is %s, not reserved", ErrTableState, t.ID, st)
	}
	t.Status = TableEmpty
	t.ReservedAt = ""
	return nil
}

// DishLine is one dish on an order. A replaced dish is a fresh appended line;
// lines are never removed.
type DishLine struct {
	Dish   string     `json:"dish"`
	Status DishStatus `json:"status"`
}

// Order is the open ticket for one table.
type Order struct {
	ID       int64      `json:"id"`
	TableID  int        `json:"table_id"`
	Lines    []DishLine `json:"lines"`
	OpenedAt string     `json:"opened_at"`
}

// IsClosed reports whether every line reached a terminal status.
func (o Order) IsClosed() bool {
	for _, l := range o.Lines {
		if !l.Status.Terminal() {
			return false
		}
	}
	return true
}

// UpdateLine applies a status change to one dish line.
func (o *Order) UpdateLine(index int, status DishStatus) error {
	if index < 0 || index >= len(o.Lines) {
		return fmt.Errorf("%w: order %d has no dish line %d", ErrNotFound, o.ID, index)
	}
	if err := EnsureDishTransition(o.Lines[index].Status, status); err != nil {
		return err
	}
	o.Lines[index].Status = status
	return nil
}

// HistoryRecord is the archived form of a closed order.
type HistoryRecord struct {
	ID       string     `json:"id"`
	Seq      int64      `json:"seq"`
	OrderID  int64      `json:"order_id"`
	TableID  int        `json:"table_id"`
	Lines    []DishLine `json:"lines"`
	ClosedAt string     `json:"closed_at"`
}

// StaffKey is a hashed API credential for a waiter, kitchen display, or
// manager device.
type StaffKey struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"created_at"`
}
