// Package render produces the two floor views (waiter grid, kitchen board)
// and the tabular list output of the CLI.
package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"tableside/internal/domain"
	"tableside/internal/menu"
)

const cellWidth = 11 // "|#01 4/4   "

// CellMarker renders the status field of one grid cell: "n/cap" for a taken
// table, "--R--" for an imminent reservation, "-----" otherwise.
func CellMarker(t domain.Table, now time.Time, window time.Duration) string {
	switch {
	case t.EffectiveStatus(now) == domain.TableTaken:
		return fmt.Sprintf("%d/%d", t.Occupancy, t.Capacity)
	case t.ReservationImminent(now, window):
		return "--R--"
	default:
		return "-----"
	}
}

// LayoutGrid renders the waiter's floor view in a fixed number of columns.
func LayoutGrid(tables []domain.Table, columns int, now time.Time, window time.Duration) string {
	if columns < 1 {
		columns = 1
	}
	width := columns*cellWidth + 1
	var b strings.Builder
	b.WriteString(dashTitle(" Tables ", width))
	b.WriteByte('\n')
	for i, t := range tables {
		fmt.Fprintf(&b, "|#%02d %-6s", t.ID, CellMarker(t, now, window))
		if (i+1)%columns == 0 || i == len(tables)-1 {
			b.WriteString("|\n")
		}
	}
	b.WriteString(strings.Repeat("-", width))
	b.WriteByte('\n')
	return b.String()
}

func dashTitle(label string, width int) string {
	if width <= len(label) {
		return label
	}
	left := (width - len(label)) / 2
	right := width - len(label) - left
	return strings.Repeat("-", left) + label + strings.Repeat("-", right)
}

// KitchenBoard lists open orders with their dish lines.
func KitchenBoard(orders []domain.Order) string {
	if len(orders) == 0 {
		return "No open orders.\n"
	}
	var b strings.Builder
	for _, o := range orders {
		fmt.Fprintf(&b, "Order #%d (table %d)\n", o.ID, o.TableID)
		for _, l := range o.Lines {
			fmt.Fprintf(&b, "  - %s: %s\n", l.Dish, l.Status)
		}
	}
	return b.String()
}

// FilterByDishStatus keeps orders that contain at least one line in the
// given status.
func FilterByDishStatus(orders []domain.Order, status domain.DishStatus) []domain.Order {
	var res []domain.Order
	for _, o := range orders {
		for _, l := range o.Lines {
			if l.Status == status {
				res = append(res, o)
				break
			}
		}
	}
	return res
}

// TablesTable writes the floor as a list view.
func TablesTable(w io.Writer, tables []domain.Table, now time.Time, window time.Duration) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Status", "Occupancy", "Capacity", "Reserved At"})
	for _, t := range tables {
		status := string(t.EffectiveStatus(now))
		if t.ReservationImminent(now, window) {
			status += " (imminent)"
		}
		tw.AppendRow(table.Row{t.ID, status, t.Occupancy, t.Capacity, t.ReservedAt})
	}
	tw.Render()
}

// OrdersTable writes open orders as a list view, one row per dish line.
func OrdersTable(w io.Writer, orders []domain.Order) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Order", "Table", "Line", "Dish", "Status"})
	for _, o := range orders {
		for i, l := range o.Lines {
			tw.AppendRow(table.Row{o.ID, o.TableID, i, l.Dish, l.Status})
		}
	}
	tw.Render()
}

// MenuTable writes the catalog.
func MenuTable(w io.Writer, c *menu.Catalog) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Dish", "Price", "Spice", "Vegan", "Vegetarian", "Gluten Free"})
	for _, name := range c.Names() {
		d, err := c.Lookup(name)
		if err != nil {
			continue
		}
		tw.AppendRow(table.Row{name, fmt.Sprintf("%.2f", d.Price), d.SpiceLevel, d.Vegan, d.Vegetarian, d.GlutenFree})
	}
	tw.Render()
}

// HistoryTable writes archived orders, one row per dish line.
func HistoryTable(w io.Writer, records []domain.HistoryRecord) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Seq", "Order", "Table", "Dish", "Status", "Closed At"})
	for _, rec := range records {
		for _, l := range rec.Lines {
			tw.AppendRow(table.Row{rec.Seq, rec.OrderID, rec.TableID, l.Dish, l.Status, rec.ClosedAt})
		}
	}
	tw.Render()
}

// StaffKeysTable writes registered staff credentials (hashes stay hidden).
func StaffKeysTable(w io.Writer, keys []domain.StaffKey) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Name", "Role", "Created At"})
	for _, k := range keys {
		tw.AppendRow(table.Row{k.ID, k.Name, k.Role, k.CreatedAt})
	}
	tw.Render()
}
