package domain

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

func TestSeatBounds(t *testing.T) {
	tbl := Table{ID: 1, Capacity: 4, Status: TableEmpty}
	if err := tbl.Seat(testNow, 5); !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected ErrCapacity for 5 guests, got %v", err)
	}
	if err := tbl.Seat(testNow, 0); !errors.Is(err, ErrCapacity) {
		t.Fatalf("expected ErrCapacity for 0 guests, got %v", err)
	}
	if err := tbl.Seat(testNow, 4); err != nil {
		t.Fatalf("seat full party: %v", err)
	}
	if tbl.Occupancy != 4 || tbl.Status != TableTaken {
		t.Fatalf("unexpected table after seat: %+v", tbl)
	}
	if err := tbl.Seat(testNow, 2); !errors.Is(err, ErrTableState) {
		t.Fatalf("expected ErrTableState on double seat, got %v", err)
	}
}

func TestClearRequiresTaken(t *testing.T) {
	tbl := Table{ID: 2, Capacity: 2, Status: TableEmpty}
	if err := tbl.Clear(testNow); !errors.Is(err, ErrTableState) {
		t.Fatalf("expected ErrTableState clearing an empty table, got %v", err)
	}
	if err := tbl.Seat(testNow, 2); err != nil {
		t.Fatalf("seat: %v", err)
	}
	if err := tbl.Clear(testNow); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if tbl.Occupancy != 0 || tbl.Status != TableEmpty {
		t.Fatalf("unexpected table after clear: %+v", tbl)
	}
}

func TestReserveAndExpiry(t *testing.T) {
	tbl := Table{ID: 3, Capacity: 4, Status: TableEmpty}
	if err := tbl.Reserve(testNow, testNow.Add(-time.Minute)); !errors.Is(err, ErrTableState) {
		t.Fatalf("expected rejection of past reservation, got %v", err)
	}
	at := testNow.Add(2 * time.Hour)
	if err := tbl.Reserve(testNow, at); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := tbl.Seat(testNow, 2); !errors.Is(err, ErrTableState) {
		t.Fatalf("expected ErrTableState seating a reserved table, got %v", err)
	}

	// Elapsed reservations count as empty without a write.
	later := at.Add(time.Minute)
	if got := tbl.EffectiveStatus(later); got != TableEmpty {
		t.Fatalf("expected effective empty after expiry, got %s", got)
	}
	if tbl.Status != TableReserved {
		t.Fatalf("stored status should be untouched, got %s", tbl.Status)
	}
	if !tbl.Normalize(later) {
		t.Fatal("normalize should report a change after expiry")
	}
	if tbl.Status != TableEmpty || tbl.ReservedAt != "" {
		t.Fatalf("unexpected table after normalize: %+v", tbl)
	}
}

func TestReservationImminent(t *testing.T) {
	at := testNow.Add(30 * time.Minute)
	tbl := Table{ID: 4, Capacity: 4, Status: TableEmpty}
	if err := tbl.Reserve(testNow, at); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	window := time.Hour
	if !tbl.ReservationImminent(testNow, window) {
		t.Fatal("reservation 30m out should be imminent with a 1h window")
	}
	if tbl.ReservationImminent(at.Add(-2*time.Hour), window) {
		t.Fatal("reservation 2h out should not be imminent")
	}
	if tbl.ReservationImminent(at.Add(time.Second), window) {
		t.Fatal("elapsed reservation should not be imminent")
	}
}

func TestCancelReservation(t *testing.T) {
	tbl := Table{ID: 5, Capacity: 4, Status: TableEmpty}
	if err := tbl.CancelReservation(testNow); !errors.Is(err, ErrTableState) {
		t.Fatalf("expected ErrTableState cancelling on empty table, got %v", err)
	}
	if err := tbl.Reserve(testNow, testNow.Add(time.Hour)); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := tbl.CancelReservation(testNow); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if tbl.Status != TableEmpty || tbl.ReservedAt != "" {
		t.Fatalf("unexpected table after cancel: %+v", tbl)
	}
}

func TestDishTransitions(t *testing.T) {
	if err := EnsureDishTransition(DishToBePrepared, DishCompleted); err != nil {
		t.Fatalf("pending -> completed: %v", err)
	}
	if err := EnsureDishTransition(DishToBePrepared, DishCannotBePrepared); err != nil {
		t.Fatalf("pending -> cannot: %v", err)
	}
	for _, terminal := range []DishStatus{DishCompleted, DishCannotBePrepared} {
		for _, next := range []DishStatus{DishToBePrepared, DishCompleted, DishCannotBePrepared} {
			if err := EnsureDishTransition(terminal, next); !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("%s -> %s should be invalid, got %v", terminal, next, err)
			}
		}
	}
	if err := EnsureDishTransition(DishToBePrepared, DishToBePrepared); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending -> pending should be invalid, got %v", err)
	}
}

func TestOrderIsClosedAndUpdateLine(t *testing.T) {
	o := Order{ID: 1, TableID: 1, Lines: []DishLine{
		{Dish: "Tomato Soup", Status: DishToBePrepared},
		{Dish: "Spaghetti Bolognese", Status: DishToBePrepared},
	}}
	if o.IsClosed() {
		t.Fatal("order with pending lines must not be closed")
	}
	if err := o.UpdateLine(5, DishCompleted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for bad index, got %v", err)
	}
	if err := o.UpdateLine(0, DishCompleted); err != nil {
		t.Fatalf("update line 0: %v", err)
	}
	if o.IsClosed() {
		t.Fatal("one pending line left, must not be closed")
	}
	if err := o.UpdateLine(1, DishCannotBePrepared); err != nil {
		t.Fatalf("update line 1: %v", err)
	}
	if !o.IsClosed() {
		t.Fatal("all lines terminal, order must be closed")
	}
	if err := o.UpdateLine(0, DishCannotBePrepared); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("terminal line must be immutable, got %v", err)
	}
}

func TestParseDishStatus(t *testing.T) {
	if _, err := ParseDishStatus("Preparing"); err == nil {
		t.Fatal("expected error for unknown status")
	}
	got, err := ParseDishStatus("Completed")
	if err != nil || got != DishCompleted {
		t.Fatalf("parse Completed: %v %v", got, err)
	}
}

func TestEmptyOrderIsClosed(t *testing.T) {
	// Vacuously closed; the registry never stores an order without lines.
	o := Order{ID: 2, TableID: 2}
	if !o.IsClosed() {
		t.Fatal("order without lines is vacuously closed")
	}
}
