package tablesidesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal Tableside HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Table represents a floor table.
type Table struct {
	ID         int    `json:"id"`
	Capacity   int    `json:"capacity"`
	Occupancy  int    `json:"occupancy"`
	Status     string `json:"status"`
	ReservedAt string `json:"reserved_at,omitempty"`
	Imminent   bool   `json:"reservation_imminent,omitempty"`
}

// DishLine is one dish on an order.
type DishLine struct {
	Index  int    `json:"index"`
	Dish   string `json:"dish"`
	Status string `json:"status"`
}

// Order represents the API order model.
type Order struct {
	ID       int64      `json:"id"`
	TableID  int        `json:"table_id"`
	Lines    []DishLine `json:"lines"`
	Closed   bool       `json:"closed"`
	OpenedAt string     `json:"opened_at"`
}

// HistoryRecord is an archived order.
type HistoryRecord struct {
	Seq      int64      `json:"seq"`
	ID       string     `json:"id"`
	OrderID  int64      `json:"order_id"`
	TableID  int        `json:"table_id"`
	Lines    []DishLine `json:"lines"`
	ClosedAt string     `json:"closed_at"`
}

// MenuItem is one catalog entry.
type MenuItem struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	GlutenFree bool    `json:"gluten_free"`
	Vegan      bool    `json:"vegan"`
	Vegetarian bool    `json:"vegetarian"`
	SpiceLevel int     `json:"spice_level"`
}

// Layout is the waiter grid view.
type Layout struct {
	Columns int `json:"columns"`
	Cells   []struct {
		TableID int    `json:"table_id"`
		Marker  string `json:"marker"`
	} `json:"cells"`
	Text string `json:"text"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Tables lists the floor. With free=true only takeable tables are returned.
func (c *Client) Tables(ctx context.Context, free bool) ([]Table, error) {
	endpoint := "v0/tables"
	if free {
		endpoint += "?free=true"
	}
	var resp []Table
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Seat puts a party at a table.
func (c *Client) Seat(ctx context.Context, tableID, guests int) (Table, error) {
	var resp Table
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/tables/%d/seat", tableID),
		map[string]any{"guests": guests}, &resp)
	return resp, err
}

// Clear releases a table after its order is settled.
func (c *Client) Clear(ctx context.Context, tableID int) (Table, error) {
	var resp Table
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/tables/%d/clear", tableID), nil, &resp)
	return resp, err
}

// Reserve books a table for a future time.
func (c *Client) Reserve(ctx context.Context, tableID int, at time.Time) (Table, error) {
	var resp Table
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/tables/%d/reserve", tableID),
		map[string]any{"at": at.UTC().Format(time.RFC3339)}, &resp)
	return resp, err
}

// CancelReservation releases a reserved table.
func (c *Client) CancelReservation(ctx context.Context, tableID int) (Table, error) {
	var resp Table
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("v0/tables/%d/reservation", tableID), nil, &resp)
	return resp, err
}

// PlaceOrder opens an order for a table.
func (c *Client) PlaceOrder(ctx context.Context, tableID int, dishes []string) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/tables/%d/order", tableID),
		map[string]any{"dishes": dishes}, &resp)
	return resp, err
}

// AddDishes appends dishes to a table's open order.
func (c *Client) AddDishes(ctx context.Context, tableID int, dishes []string) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/tables/%d/order/dishes", tableID),
		map[string]any{"dishes": dishes}, &resp)
	return resp, err
}

// OrderForTable fetches a table's open order.
func (c *Client) OrderForTable(ctx context.Context, tableID int) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/tables/%d/order", tableID), nil, &resp)
	return resp, err
}

// OpenOrders lists the kitchen's working set, optionally filtered by a dish status.
func (c *Client) OpenOrders(ctx context.Context, status string) ([]Order, error) {
	endpoint := "v0/orders"
	if status != "" {
		endpoint += "?status=" + status
	}
	var resp []Order
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// UpdateDishStatus moves one dish line to a terminal status.
func (c *Client) UpdateDishStatus(ctx context.Context, orderID int64, index int, status string) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("v0/orders/%d/lines/%d", orderID, index),
		map[string]any{"status": status}, &resp)
	return resp, err
}

// CloseOrder settles and archives a table's order.
func (c *Client) CloseOrder(ctx context.Context, tableID int) (Order, error) {
	var resp Order
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/tables/%d/order/close", tableID), nil, &resp)
	return resp, err
}

// Layout fetches the waiter grid.
func (c *Client) Layout(ctx context.Context) (Layout, error) {
	var resp Layout
	err := c.do(ctx, http.MethodGet, "v0/layout", nil, &resp)
	return resp, err
}

// Menu fetches the catalog.
func (c *Client) Menu(ctx context.Context) ([]MenuItem, error) {
	var resp []MenuItem
	err := c.do(ctx, http.MethodGet, "v0/menu", nil, &resp)
	return resp, err
}

// History returns the newest archived orders.
func (c *Client) History(ctx context.Context, limit int) ([]HistoryRecord, error) {
	endpoint := "v0/history"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []HistoryRecord
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
