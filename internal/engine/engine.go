// Package engine owns every state transition of the floor: the table layout
// and the order book mutate together, one transaction per operation, under a
// single mutex. Reads normalize elapsed reservations without writing.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tableside/internal/config"
	"tableside/internal/domain"
	"tableside/internal/history"
	"tableside/internal/menu"
	"tableside/internal/repo"
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	History history.Writer
	Menu    *menu.Catalog
	Config  *config.Config
	Log     *logrus.Logger
	Now     func() time.Time

	mu sync.Mutex
}

func New(conn *sql.DB, cfg *config.Config, catalog *menu.Catalog) *Engine {
	log := logrus.New()
	return &Engine{
		DB:      conn,
		Repo:    repo.Repo{DB: conn},
		History: history.Writer{DB: conn},
		Menu:    catalog,
		Config:  cfg,
		Log:     log,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// loadTableTx reads a table and folds an elapsed reservation back to empty,
// persisting the normalization inside the caller's transaction.
func (e *Engine) loadTableTx(ctx context.Context, tx *sql.Tx, id int) (domain.Table, error) {
	t, err := e.Repo.GetTableTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return t, fmt.Errorf("%w: table %d", domain.ErrNotFound, id)
		}
		return t, err
	}
	if t.Normalize(e.now()) {
		if err := e.Repo.UpdateTableTx(ctx, tx, t); err != nil {
			return t, err
		}
	}
	return t, nil
}

// Seat puts a party of guests at a table.
func (e *Engine) Seat(ctx context.Context, tableID, guests int) (domain.Table, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out domain.Table
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		t, err := e.loadTableTx(ctx, tx, tableID)
		if err != nil {
			return err
		}
		if err := t.Seat(e.now(), guests); err != nil {
			return err
		}
		if err := e.Repo.UpdateTableTx(ctx, tx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// Clear releases a taken table. It refuses while an open order remains.
func (e *Engine) Clear(ctx context.Context, tableID int) (domain.Table, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out domain.Table
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		t, err := e.loadTableTx(ctx, tx, tableID)
		if err != nil {
			return err
		}
		if _, err := e.Repo.OpenOrderForTableTx(ctx, tx, tableID); err == nil {
			return fmt.Errorf("%w: table %d still has an open order", domain.ErrTableState, tableID)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if err := t.Clear(e.now()); err != nil {
			return err
		}
		if err := e.Repo.UpdateTableTx(ctx, tx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// Reserve books a table for a future time.
func (e *Engine) Reserve(ctx context.Context, tableID int, at time.Time) (domain.Table, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out domain.Table
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		t, err := e.loadTableTx(ctx, tx, tableID)
		if err != nil {
			return err
		}
		if err := t.Reserve(e.now(), at); err != nil {
			return err
		}
		if err := e.Repo.UpdateTableTx(ctx, tx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// CancelReservation releases a reserved table back to empty.
func (e *Engine) CancelReservation(ctx context.Context, tableID int) (domain.Table, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out domain.Table
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		t, err := e.loadTableTx(ctx, tx, tableID)
		if err != nil {
			return err
		}
		if err := t.CancelReservation(e.now()); err != nil {
			return err
		}
		if err := e.Repo.UpdateTableTx(ctx, tx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	return out, err
}

// Lookup returns one table with its effective state resolved.
func (e *Engine) Lookup(ctx context.Context, tableID int) (domain.Table, error) {
	t, err := e.Repo.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return t, fmt.Errorf("%w: table %d", domain.ErrNotFound, tableID)
		}
		return t, err
	}
	t.Normalize(e.now())
	return t, nil
}

// Tables returns the whole floor with effective states resolved.
func (e *Engine) Tables(ctx context.Context) ([]domain.Table, error) {
	tables, err := e.Repo.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now()
	for i := range tables {
		tables[i].Normalize(now)
	}
	return tables, nil
}

// FreeTables returns tables a walk-in party could take right now.
func (e *Engine) FreeTables(ctx context.Context) ([]domain.Table, error) {
	tables, err := e.Tables(ctx)
	if err != nil {
		return nil, err
	}
	var free []domain.Table
	for _, t := range tables {
		if t.Status == domain.TableEmpty {
			free = append(free, t)
		}
	}
	return free, nil
}

func (e *Engine) resolveDishes(refs []string) ([]domain.DishLine, error) {
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one dish", domain.ErrUnknownDish)
	}
	lines := make([]domain.DishLine, 0, len(refs))
	for _, ref := range refs {
		if _, err := e.Menu.Lookup(ref); err != nil {
			return nil, err
		}
		lines = append(lines, domain.DishLine{Dish: ref, Status: domain.DishToBePrepared})
	}
	return lines, nil
}

// PlaceOrder opens the order for a taken table. All dish refs are validated
// before anything is written, so a bad ref leaves no partial order.
func (e *Engine) PlaceOrder(ctx context.Context, tableID int, dishRefs []string) (domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out domain.Order
	lines, err := e.resolveDishes(dishRefs)
	if err != nil {
		return out, err
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		t, err := e.loadTableTx(ctx, tx, tableID)
		if err != nil {
			return err
		}
		if st := t.EffectiveStatus(e.now()); st != domain.TableTaken {
			return fmt.Errorf("%w: table %d is %s, not taken", domain.ErrTableState, tableID, st)
		}
		if existing, err := e.Repo.OpenOrderForTableTx(ctx, tx, tableID); err == nil {
			return fmt.Errorf("%w: order %d is open for table %d", domain.ErrConflict, existing.ID, tableID)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		openedAt := e.now().Format(time.RFC3339)
		id, err := e.Repo.InsertOrderTx(ctx, tx, tableID, openedAt, lines)
		if err != nil {
			return err
		}
		out = domain.Order{ID: id, TableID: tableID, Lines: lines, OpenedAt: openedAt}
		return nil
	})
	return out, err
}

// AddDishes appends lines to a table's open order. A replacement for a failed
// dish is an appended line, never a reopened one.
func (e *Engine) AddDishes(ctx context.Context, tableID int, dishRefs []string) (domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out domain.Order
	lines, err := e.resolveDishes(dishRefs)
	if err != nil {
		return out, err
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		o, err := e.Repo.OpenOrderForTableTx(ctx, tx, tableID)
		if err != nil {
			return err
		}
		if err := e.Repo.AppendLinesTx(ctx, tx, o.ID, len(o.Lines), lines); err != nil {
			return err
		}
		o.Lines = append(o.Lines, lines...)
		out = o
		return nil
	})
	return out, err
}

// UpdateDishStatus moves one dish line of an open order through the kitchen
// state machine.
func (e *Engine) UpdateDishStatus(ctx context.Context, orderID int64, index int, status domain.DishStatus) (domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out domain.Order
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		o, err := e.Repo.GetOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := o.UpdateLine(index, status); err != nil {
			return err
		}
		if err := e.Repo.UpdateLineTx(ctx, tx, orderID, index, status); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

// OrderForTable returns the open order of a table.
func (e *Engine) OrderForTable(ctx context.Context, tableID int) (domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out domain.Order
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		o, err := e.Repo.OpenOrderForTableTx(ctx, tx, tableID)
		if err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

// OpenOrders returns every open order, the kitchen's working set.
func (e *Engine) OpenOrders(ctx context.Context) ([]domain.Order, error) {
	return e.Repo.ListOpenOrders(ctx)
}

// CloseOrder settles a table's order: every line must be terminal. The order
// leaves the open registry and is archived; its id is never reused. The
// archive append happens after the commit and a failure there is only logged.
func (e *Engine) CloseOrder(ctx context.Context, tableID int) (domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out domain.Order
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		o, err := e.Repo.OpenOrderForTableTx(ctx, tx, tableID)
		if err != nil {
			return err
		}
		if !o.IsClosed() {
			return fmt.Errorf("%w: order %d has unfinished dishes", domain.ErrTableState, o.ID)
		}
		if err := e.Repo.DeleteOrderTx(ctx, tx, o.ID); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return out, err
	}
	if _, err := e.History.Append(ctx, out); err != nil {
		e.Log.WithError(err).WithFields(logrus.Fields{
			"order_id": out.ID,
			"table_id": out.TableID,
		}).Warn("history append failed; order closed anyway")
	}
	return out, nil
}

// HistoryTail returns the newest archive records.
func (e *Engine) HistoryTail(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	return e.Repo.LatestHistory(ctx, limit)
}

func (e *Engine) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
