package render

import (
	"strings"
	"testing"
	"time"

	"tableside/internal/domain"
)

var now = time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)

func TestCellMarker(t *testing.T) {
	window := time.Hour
	taken := domain.Table{ID: 1, Capacity: 4, Occupancy: 4, Status: domain.TableTaken}
	if got := CellMarker(taken, now, window); got != "4/4" {
		t.Fatalf("taken marker: %q", got)
	}
	empty := domain.Table{ID: 2, Capacity: 4, Status: domain.TableEmpty}
	if got := CellMarker(empty, now, window); got != "-----" {
		t.Fatalf("empty marker: %q", got)
	}
	imminent := domain.Table{ID: 3, Capacity: 4, Status: domain.TableReserved,
		ReservedAt: now.Add(30 * time.Minute).Format(time.RFC3339)}
	if got := CellMarker(imminent, now, window); got != "--R--" {
		t.Fatalf("imminent marker: %q", got)
	}
	distant := domain.Table{ID: 4, Capacity: 4, Status: domain.TableReserved,
		ReservedAt: now.Add(3 * time.Hour).Format(time.RFC3339)}
	if got := CellMarker(distant, now, window); got != "-----" {
		t.Fatalf("distant reservation marker: %q", got)
	}
	elapsed := domain.Table{ID: 5, Capacity: 4, Status: domain.TableReserved,
		ReservedAt: now.Add(-time.Minute).Format(time.RFC3339)}
	if got := CellMarker(elapsed, now, window); got != "-----" {
		t.Fatalf("elapsed reservation marker: %q", got)
	}
}

func TestLayoutGridTwoColumns(t *testing.T) {
	tables := []domain.Table{
		{ID: 1, Capacity: 4, Occupancy: 4, Status: domain.TableTaken},
		{ID: 2, Capacity: 4, Status: domain.TableEmpty},
		{ID: 3, Capacity: 2, Status: domain.TableReserved,
			ReservedAt: now.Add(15 * time.Minute).Format(time.RFC3339)},
	}
	got := LayoutGrid(tables, 2, now, time.Hour)
	want := "------- Tables --------\n" +
		"|#01 4/4   |#02 ----- |\n" +
		"|#03 --R-- |\n" +
		"-----------------------\n"
	if got != want {
		t.Fatalf("grid mismatch:\n got:\n%s\nwant:\n%s", got, want)
	}
}

func TestKitchenBoard(t *testing.T) {
	orders := []domain.Order{
		{ID: 3, TableID: 1, Lines: []domain.DishLine{
			{Dish: "Tomato Soup", Status: domain.DishToBePrepared},
			{Dish: "Tiramisu", Status: domain.DishCompleted},
		}},
	}
	got := KitchenBoard(orders)
	if !strings.Contains(got, "Order #3 (table 1)") {
		t.Fatalf("missing order header:\n%s", got)
	}
	if !strings.Contains(got, "  - Tomato Soup: ToBePrepared") {
		t.Fatalf("missing dish line:\n%s", got)
	}
}

func TestKitchenBoardEmpty(t *testing.T) {
	if got := KitchenBoard(nil); got != "No open orders.\n" {
		t.Fatalf("empty board: %q", got)
	}
}

func TestFilterByDishStatus(t *testing.T) {
	orders := []domain.Order{
		{ID: 1, Lines: []domain.DishLine{{Dish: "A", Status: domain.DishCompleted}}},
		{ID: 2, Lines: []domain.DishLine{
			{Dish: "B", Status: domain.DishToBePrepared},
			{Dish: "C", Status: domain.DishCompleted},
		}},
	}
	got := FilterByDishStatus(orders, domain.DishToBePrepared)
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("unexpected filter result: %+v", got)
	}
	if got := FilterByDishStatus(orders, domain.DishCannotBePrepared); got != nil {
		t.Fatalf("expected empty result, got %+v", got)
	}
}
