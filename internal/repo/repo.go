package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"tableside/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

// ErrNotFound mirrors the domain sentinel so callers can match either.
var ErrNotFound = domain.ErrNotFound

func scanTable(row *sql.Row) (domain.Table, error) {
	var t domain.Table
	var reservedAt sql.NullString
	err := row.Scan(&t.ID, &t.Capacity, &t.Occupancy, &t.Status, &reservedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if reservedAt.Valid {
		t.ReservedAt = reservedAt.String
	}
	return t, err
}

func (r Repo) GetTable(ctx context.Context, id int) (domain.Table, error) {
	return scanTable(r.DB.QueryRowContext(ctx,
		`SELECT id,capacity,occupancy,status,reserved_at FROM floor_tables WHERE id=?`, id))
}

func (r Repo) GetTableTx(ctx context.Context, tx *sql.Tx, id int) (domain.Table, error) {
	return scanTable(tx.QueryRowContext(ctx,
		`SELECT id,capacity,occupancy,status,reserved_at FROM floor_tables WHERE id=?`, id))
}

func (r Repo) ListTables(ctx context.Context) ([]domain.Table, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,capacity,occupancy,status,reserved_at FROM floor_tables ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Table
	for rows.Next() {
		var t domain.Table
		var reservedAt sql.NullString
		if err := rows.Scan(&t.ID, &t.Capacity, &t.Occupancy, &t.Status, &reservedAt); err != nil {
			return nil, err
		}
		if reservedAt.Valid {
			t.ReservedAt = reservedAt.String
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) InsertTableTx(ctx context.Context, tx *sql.Tx, t domain.Table) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO floor_tables(id,capacity,occupancy,status,reserved_at) VALUES (?,?,?,?,?)`,
		t.ID, t.Capacity, t.Occupancy, t.Status, nullable(t.ReservedAt))
	return err
}

func (r Repo) UpdateTableTx(ctx context.Context, tx *sql.Tx, t domain.Table) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE floor_tables SET capacity=?,occupancy=?,status=?,reserved_at=? WHERE id=?`,
		t.Capacity, t.Occupancy, t.Status, nullable(t.ReservedAt), t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountTables(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM floor_tables`).Scan(&n)
	return n, err
}

func (r Repo) loadLines(ctx context.Context, q interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}, orderID int64) ([]domain.DishLine, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT dish,status FROM order_lines WHERE order_id=? ORDER BY line_index`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []domain.DishLine
	for rows.Next() {
		var l domain.DishLine
		if err := rows.Scan(&l.Dish, &l.Status); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r Repo) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	var o domain.Order
	err := r.DB.QueryRowContext(ctx,
		`SELECT id,table_id,opened_at FROM orders WHERE id=?`, id).
		Scan(&o.ID, &o.TableID, &o.OpenedAt)
	if err == sql.ErrNoRows {
		return o, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	if err != nil {
		return o, err
	}
	o.Lines, err = r.loadLines(ctx, r.DB, o.ID)
	return o, err
}

func (r Repo) GetOrderTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Order, error) {
	var o domain.Order
	err := tx.QueryRowContext(ctx,
		`SELECT id,table_id,opened_at FROM orders WHERE id=?`, id).
		Scan(&o.ID, &o.TableID, &o.OpenedAt)
	if err == sql.ErrNoRows {
		return o, fmt.Errorf("%w: order %d", ErrNotFound, id)
	}
	if err != nil {
		return o, err
	}
	o.Lines, err = r.loadLines(ctx, tx, o.ID)
	return o, err
}

// OpenOrderForTableTx returns the open order of a table, ErrNotFound if none.
func (r Repo) OpenOrderForTableTx(ctx context.Context, tx *sql.Tx, tableID int) (domain.Order, error) {
	var o domain.Order
	err := tx.QueryRowContext(ctx,
		`SELECT id,table_id,opened_at FROM orders WHERE table_id=?`, tableID).
		Scan(&o.ID, &o.TableID, &o.OpenedAt)
	if err == sql.ErrNoRows {
		return o, fmt.Errorf("%w: no open order for table %d", ErrNotFound, tableID)
	}
	if err != nil {
		return o, err
	}
	o.Lines, err = r.loadLines(ctx, tx, o.ID)
	return o, err
}

func (r Repo) ListOpenOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,table_id,opened_at FROM orders ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.TableID, &o.OpenedAt); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		res[i].Lines, err = r.loadLines(ctx, r.DB, res[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// InsertOrderTx creates an order with its initial lines and returns the new id.
func (r Repo) InsertOrderTx(ctx context.Context, tx *sql.Tx, tableID int, openedAt string, lines []domain.DishLine) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders(table_id,opened_at) VALUES (?,?)`, tableID, openedAt)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := r.AppendLinesTx(ctx, tx, id, 0, lines); err != nil {
		return 0, err
	}
	return id, nil
}

func (r Repo) AppendLinesTx(ctx context.Context, tx *sql.Tx, orderID int64, startIndex int, lines []domain.DishLine) error {
	for i, l := range lines {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_lines(order_id,line_index,dish,status) VALUES (?,?,?,?)`,
			orderID, startIndex+i, l.Dish, l.Status); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) UpdateLineTx(ctx context.Context, tx *sql.Tx, orderID int64, index int, status domain.DishStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE order_lines SET status=? WHERE order_id=? AND line_index=?`,
		status, orderID, index)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: order %d line %d", ErrNotFound, orderID, index)
	}
	return nil
}

// DeleteOrderTx removes a closed order from the open registry; lines cascade.
func (r Repo) DeleteOrderTx(ctx context.Context, tx *sql.Tx, orderID int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id=?`, orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: order %d", ErrNotFound, orderID)
	}
	return nil
}

// LatestHistory returns the newest archive records, newest first.
func (r Repo) LatestHistory(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT seq,id,order_id,table_id,lines_json,closed_at FROM history ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	return collectHistory(rows)
}

// HistoryAfter returns archive records with seq greater than the cursor,
// oldest first. Webhook dispatch pages through the feed with it.
func (r Repo) HistoryAfter(ctx context.Context, afterSeq int64, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT seq,id,order_id,table_id,lines_json,closed_at FROM history WHERE seq>? ORDER BY seq ASC LIMIT ?`,
		afterSeq, limit)
	if err != nil {
		return nil, err
	}
	return collectHistory(rows)
}

func (r Repo) LatestHistorySeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := r.DB.QueryRowContext(ctx, `SELECT MAX(seq) FROM history`).Scan(&seq); err != nil {
		return 0, err
	}
	return seq.Int64, nil
}

func collectHistory(rows *sql.Rows) ([]domain.HistoryRecord, error) {
	defer rows.Close()
	var res []domain.HistoryRecord
	for rows.Next() {
		var rec domain.HistoryRecord
		var linesJSON string
		if err := rows.Scan(&rec.Seq, &rec.ID, &rec.OrderID, &rec.TableID, &linesJSON, &rec.ClosedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(linesJSON), &rec.Lines); err != nil {
			return nil, fmt.Errorf("decode history lines: %w", err)
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
