package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"tableside/internal/app"
	"tableside/internal/config"
	"tableside/internal/db"
	"tableside/internal/domain"
	"tableside/internal/menu"
	"tableside/internal/migrate"
)

var testNow = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg, err := config.FromYAML([]byte(`floor:
  columns: 2
  tables:
    - {id: 1, capacity: 4}
    - {id: 2, capacity: 2}
    - {id: 3, capacity: 6}
reservations:
  window_minutes: 60
`))
	if err != nil {
		panic(err)
	}
	return cfg
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := testConfig()
	e := New(conn, cfg, menu.Default())
	e.Now = func() time.Time { return testNow }
	e.History.Now = e.Now
	if err := app.SeedFloor(context.Background(), e.Repo, cfg); err != nil {
		t.Fatalf("seed floor: %v", err)
	}
	return e
}

func TestSeatAndLookup(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	tbl, err := e.Seat(ctx, 1, 3)
	if err != nil {
		t.Fatalf("seat: %v", err)
	}
	if tbl.Status != domain.TableTaken || tbl.Occupancy != 3 {
		t.Fatalf("unexpected table: %+v", tbl)
	}

	got, err := e.Lookup(ctx, 1)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Occupancy != 3 {
		t.Fatalf("occupancy not persisted: %+v", got)
	}

	if _, err := e.Seat(ctx, 1, 2); !errors.Is(err, domain.ErrTableState) {
		t.Fatalf("double seat should fail with ErrTableState, got %v", err)
	}
	if _, err := e.Seat(ctx, 2, 5); !errors.Is(err, domain.ErrCapacity) {
		t.Fatalf("oversize party should fail with ErrCapacity, got %v", err)
	}
	if _, err := e.Lookup(ctx, 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown table should be ErrNotFound, got %v", err)
	}
}

func TestPlaceOrderRules(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	// Table 1 is empty: no order allowed.
	if _, err := e.PlaceOrder(ctx, 1, []string{"Tomato Soup"}); !errors.Is(err, domain.ErrTableState) {
		t.Fatalf("order on empty table should fail with ErrTableState, got %v", err)
	}

	if _, err := e.Seat(ctx, 1, 2); err != nil {
		t.Fatalf("seat: %v", err)
	}

	// Unknown dish leaves no partial order behind.
	if _, err := e.PlaceOrder(ctx, 1, []string{"Tomato Soup", "Unicorn Steak"}); !errors.Is(err, domain.ErrUnknownDish) {
		t.Fatalf("expected ErrUnknownDish, got %v", err)
	}
	if _, err := e.OrderForTable(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("partial order must not exist, got %v", err)
	}

	o, err := e.PlaceOrder(ctx, 1, []string{"Tomato Soup", "Tiramisu"})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if len(o.Lines) != 2 || o.Lines[0].Status != domain.DishToBePrepared {
		t.Fatalf("unexpected order: %+v", o)
	}

	if _, err := e.PlaceOrder(ctx, 1, []string{"Tiramisu"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second open order should fail with ErrConflict, got %v", err)
	}
}

func TestOrderLifecycleAndHistory(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, err := e.Seat(ctx, 1, 4); err != nil {
		t.Fatalf("seat: %v", err)
	}
	o, err := e.PlaceOrder(ctx, 1, []string{"Tomato Soup", "Chicken Curry"})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	// Close refuses while lines are pending.
	if _, err := e.CloseOrder(ctx, 1); !errors.Is(err, domain.ErrTableState) {
		t.Fatalf("close with pending lines should fail, got %v", err)
	}
	// Clear refuses while the order is open.
	if _, err := e.Clear(ctx, 1); !errors.Is(err, domain.ErrTableState) {
		t.Fatalf("clear with open order should fail, got %v", err)
	}

	if _, err := e.UpdateDishStatus(ctx, o.ID, 0, domain.DishCompleted); err != nil {
		t.Fatalf("update line 0: %v", err)
	}
	if _, err := e.UpdateDishStatus(ctx, o.ID, 1, domain.DishCannotBePrepared); err != nil {
		t.Fatalf("update line 1: %v", err)
	}
	// Terminal lines are immutable.
	if _, err := e.UpdateDishStatus(ctx, o.ID, 0, domain.DishCannotBePrepared); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("terminal line update should fail, got %v", err)
	}
	if _, err := e.UpdateDishStatus(ctx, o.ID, 7, domain.DishCompleted); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("bad index should be ErrNotFound, got %v", err)
	}
	if _, err := e.UpdateDishStatus(ctx, 999, 0, domain.DishCompleted); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("unknown order should be ErrNotFound, got %v", err)
	}

	closed, err := e.CloseOrder(ctx, 1)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.ID != o.ID {
		t.Fatalf("closed wrong order: %+v", closed)
	}
	// Double close: the order left the registry.
	if _, err := e.CloseOrder(ctx, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("double close should be ErrNotFound, got %v", err)
	}

	recs, err := e.HistoryTail(ctx, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(recs) != 1 || recs[0].OrderID != o.ID || recs[0].TableID != 1 {
		t.Fatalf("unexpected history: %+v", recs)
	}
	if len(recs[0].Lines) != 2 {
		t.Fatalf("history lines lost: %+v", recs[0])
	}

	// Now the table can be cleared.
	tbl, err := e.Clear(ctx, 1)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if tbl.Status != domain.TableEmpty || tbl.Occupancy != 0 {
		t.Fatalf("unexpected table after clear: %+v", tbl)
	}
}

func TestOrderIDsMonotone(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 3; i++ {
		if _, err := e.Seat(ctx, 2, 2); err != nil {
			t.Fatalf("seat round %d: %v", i, err)
		}
		o, err := e.PlaceOrder(ctx, 2, []string{"Garden Salad"})
		if err != nil {
			t.Fatalf("place round %d: %v", i, err)
		}
		if o.ID <= last {
			t.Fatalf("order id %d not greater than %d", o.ID, last)
		}
		last = o.ID
		if _, err := e.UpdateDishStatus(ctx, o.ID, 0, domain.DishCompleted); err != nil {
			t.Fatalf("update round %d: %v", i, err)
		}
		if _, err := e.CloseOrder(ctx, 2); err != nil {
			t.Fatalf("close round %d: %v", i, err)
		}
		if _, err := e.Clear(ctx, 2); err != nil {
			t.Fatalf("clear round %d: %v", i, err)
		}
	}
}

func TestAddDishes(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, err := e.AddDishes(ctx, 1, []string{"Tiramisu"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("add without open order should be ErrNotFound, got %v", err)
	}
	if _, err := e.Seat(ctx, 1, 2); err != nil {
		t.Fatalf("seat: %v", err)
	}
	o, err := e.PlaceOrder(ctx, 1, []string{"Tomato Soup"})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := e.UpdateDishStatus(ctx, o.ID, 0, domain.DishCannotBePrepared); err != nil {
		t.Fatalf("mark line failed: %v", err)
	}
	// The replacement is a fresh line; the failed one stays terminal.
	updated, err := e.AddDishes(ctx, 1, []string{"Garden Salad"})
	if err != nil {
		t.Fatalf("add dishes: %v", err)
	}
	if len(updated.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %+v", updated.Lines)
	}
	if updated.Lines[0].Status != domain.DishCannotBePrepared {
		t.Fatalf("original line mutated: %+v", updated.Lines[0])
	}
	if updated.Lines[1].Dish != "Garden Salad" || updated.Lines[1].Status != domain.DishToBePrepared {
		t.Fatalf("unexpected appended line: %+v", updated.Lines[1])
	}
}

func TestReservationFlow(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	at := testNow.Add(30 * time.Minute)
	if _, err := e.Reserve(ctx, 3, at); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := e.Seat(ctx, 3, 2); !errors.Is(err, domain.ErrTableState) {
		t.Fatalf("seat on reserved should fail, got %v", err)
	}
	if _, err := e.Seat(ctx, 1, 2); err != nil {
		t.Fatalf("seat table 1: %v", err)
	}
	if _, err := e.Reserve(ctx, 1, at); !errors.Is(err, domain.ErrTableState) {
		t.Fatalf("reserve taken table should fail, got %v", err)
	}

	// After the reservation time passes, the table behaves as empty again.
	e.Now = func() time.Time { return at.Add(time.Minute) }
	tbl, err := e.Seat(ctx, 3, 4)
	if err != nil {
		t.Fatalf("seat after expiry: %v", err)
	}
	if tbl.Status != domain.TableTaken {
		t.Fatalf("unexpected table: %+v", tbl)
	}

	// Cancel releases a live reservation.
	e.Now = func() time.Time { return testNow }
	if _, err := e.Reserve(ctx, 2, at); err != nil {
		t.Fatalf("reserve table 2: %v", err)
	}
	if _, err := e.CancelReservation(ctx, 2); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	free, err := e.FreeTables(ctx)
	if err != nil {
		t.Fatalf("free tables: %v", err)
	}
	if len(free) != 1 || free[0].ID != 2 {
		t.Fatalf("expected only table 2 free, got %+v", free)
	}
}

func TestOpenOrdersListing(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, err := e.Seat(ctx, 1, 2); err != nil {
		t.Fatalf("seat 1: %v", err)
	}
	if _, err := e.Seat(ctx, 2, 2); err != nil {
		t.Fatalf("seat 2: %v", err)
	}
	if _, err := e.PlaceOrder(ctx, 1, []string{"Tomato Soup"}); err != nil {
		t.Fatalf("place 1: %v", err)
	}
	if _, err := e.PlaceOrder(ctx, 2, []string{"Tiramisu", "Garden Salad"}); err != nil {
		t.Fatalf("place 2: %v", err)
	}
	orders, err := e.OpenOrders(ctx)
	if err != nil {
		t.Fatalf("open orders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 open orders, got %d", len(orders))
	}
	if len(orders[1].Lines) != 2 {
		t.Fatalf("lines missing from listing: %+v", orders[1])
	}
}
