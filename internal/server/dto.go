package server

import (
	"tableside/internal/domain"
	"tableside/internal/menu"
)

type TableResponse struct {
	ID         int    `json:"id"`
	Capacity   int    `json:"capacity"`
	Occupancy  int    `json:"occupancy"`
	Status     string `json:"status"`
	ReservedAt string `json:"reserved_at,omitempty"`
	Imminent   bool   `json:"reservation_imminent,omitempty"`
}

type SeatRequest struct {
	Guests int `json:"guests" minimum:"1"`
}

type ReserveRequest struct {
	At string `json:"at" format:"date-time"`
}

type LineResponse struct {
	Index  int    `json:"index"`
	Dish   string `json:"dish"`
	Status string `json:"status"`
}

type OrderResponse struct {
	ID       int64          `json:"id"`
	TableID  int            `json:"table_id"`
	Lines    []LineResponse `json:"lines"`
	Closed   bool           `json:"closed"`
	OpenedAt string         `json:"opened_at"`
}

type PlaceOrderRequest struct {
	Dishes []string `json:"dishes" minItems:"1"`
}

type AddDishesRequest struct {
	Dishes []string `json:"dishes" minItems:"1"`
}

type UpdateLineRequest struct {
	Status string `json:"status" enum:"Completed,CannotBePrepared"`
}

type LayoutCell struct {
	TableID int    `json:"table_id"`
	Marker  string `json:"marker"`
}

type LayoutResponse struct {
	Columns int          `json:"columns"`
	Cells   []LayoutCell `json:"cells"`
	Text    string       `json:"text"`
}

type MenuItemResponse struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	GlutenFree bool    `json:"gluten_free"`
	Vegan      bool    `json:"vegan"`
	Vegetarian bool    `json:"vegetarian"`
	SpiceLevel int     `json:"spice_level"`
}

type HistoryRecordResponse struct {
	Seq      int64          `json:"seq"`
	ID       string         `json:"id"`
	OrderID  int64          `json:"order_id"`
	TableID  int            `json:"table_id"`
	Lines    []LineResponse `json:"lines"`
	ClosedAt string         `json:"closed_at"`
}

func tableResponse(t domain.Table, imminent bool) TableResponse {
	return TableResponse{
		ID:         t.ID,
		Capacity:   t.Capacity,
		Occupancy:  t.Occupancy,
		Status:     string(t.Status),
		ReservedAt: t.ReservedAt,
		Imminent:   imminent,
	}
}

func mapLines(lines []domain.DishLine) []LineResponse {
	res := make([]LineResponse, 0, len(lines))
	for i, l := range lines {
		res = append(res, LineResponse{Index: i, Dish: l.Dish, Status: string(l.Status)})
	}
	return res
}

func orderResponse(o domain.Order) OrderResponse {
	return OrderResponse{
		ID:       o.ID,
		TableID:  o.TableID,
		Lines:    mapLines(o.Lines),
		Closed:   o.IsClosed(),
		OpenedAt: o.OpenedAt,
	}
}

func mapOrders(orders []domain.Order) []OrderResponse {
	res := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		res = append(res, orderResponse(o))
	}
	return res
}

func historyResponse(rec domain.HistoryRecord) HistoryRecordResponse {
	return HistoryRecordResponse{
		Seq:      rec.Seq,
		ID:       rec.ID,
		OrderID:  rec.OrderID,
		TableID:  rec.TableID,
		Lines:    mapLines(rec.Lines),
		ClosedAt: rec.ClosedAt,
	}
}

func menuResponse(c *menu.Catalog) []MenuItemResponse {
	res := make([]MenuItemResponse, 0, c.Len())
	for _, name := range c.Names() {
		d, err := c.Lookup(name)
		if err != nil {
			continue
		}
		res = append(res, MenuItemResponse{
			Name:       name,
			Price:      d.Price,
			GlutenFree: d.GlutenFree,
			Vegan:      d.Vegan,
			Vegetarian: d.Vegetarian,
			SpiceLevel: d.SpiceLevel,
		})
	}
	return res
}
