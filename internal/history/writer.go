// Package history appends closed orders to the permanent archive. The archive
// is written after the closing transaction commits; a failed append is
// reported to the caller to log, never to roll back the closure.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tableside/internal/domain"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

func (w Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now().UTC()
}

// Append archives one closed order and returns the stored record.
func (w Writer) Append(ctx context.Context, o domain.Order) (domain.HistoryRecord, error) {
	rec := domain.HistoryRecord{
		ID:       uuid.NewString(),
		OrderID:  o.ID,
		TableID:  o.TableID,
		Lines:    o.Lines,
		ClosedAt: w.now().Format(time.RFC3339),
	}
	linesJSON, err := json.Marshal(rec.Lines)
	if err != nil {
		return rec, fmt.Errorf("encode history lines: %w", err)
	}
	res, err := w.DB.ExecContext(ctx,
		`INSERT INTO history(id,order_id,table_id,lines_json,closed_at) VALUES (?,?,?,?,?)`,
		rec.ID, rec.OrderID, rec.TableID, string(linesJSON), rec.ClosedAt)
	if err != nil {
		return rec, fmt.Errorf("append history: %w", err)
	}
	rec.Seq, _ = res.LastInsertId()
	return rec, nil
}
