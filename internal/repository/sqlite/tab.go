package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/vibecoding/internal/apperror"
	"github.com/sakif/vibecoding/internal/model"
	"github.com/sakif/vibecoding/internal/repository"
)

var _ repository.TabRepository = (*DB)(nil)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// MsgLastTab is the conflict message returned when deleting the only tab.
const MsgLastTab = "at least one tab must remain open"

// Create inserts tab, filling in a fresh xid and both timestamps.
func (db *DB) Create(ctx context.Context, tab *model.Tab) error {
	tab.ID = xid.New().String()
	now := time.Now().UTC()
	tab.CreatedAt = now
	tab.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO tabs (id, title, code, output, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tab.ID, tab.Title, tab.Code, tab.Output, tab.CreatedAt, tab.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating tab: %w", err)
	}
	return nil
}

// GetByID returns the tab or an apperror.NotFound.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Tab, error) {
	var tab model.Tab
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, title, code, output, created_at, updated_at
		 FROM tabs
		 WHERE id = ?`,
		id,
	).Scan(&tab.ID, &tab.Title, &tab.Code, &tab.Output, &tab.CreatedAt, &tab.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("tab", id)
		}
		return nil, fmt.Errorf("sqlite: getting tab %s: %w", id, err)
	}
	return &tab, nil
}

// List returns tabs in the order they were opened. rowid breaks timestamp ties.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Tab, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	offset := max(opts.Offset, 0)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, title, code, output, created_at, updated_at
		 FROM tabs
		 ORDER BY created_at ASC, rowid ASC
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tabs: %w", err)
	}
	defer rows.Close()

	tabs := make([]model.Tab, 0)
	for rows.Next() {
		var t model.Tab
		if err := rows.Scan(&t.ID, &t.Title, &t.Code, &t.Output, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tab row: %w", err)
		}
		tabs = append(tabs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tabs: %w", err)
	}
	return tabs, nil
}

// Update overwrites the mutable fields of tab.
func (db *DB) Update(ctx context.Context, tab *model.Tab) error {
	tab.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE tabs
		 SET title = ?, code = ?, output = ?, updated_at = ?
		 WHERE id = ?`,
		tab.Title, tab.Code, tab.Output, tab.UpdatedAt, tab.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating tab %s: %w", tab.ID, err)
	}
	return requireRow(result, tab.ID)
}

// Delete removes the tab unless it is the only one left. The count check and the
// delete are one statement, so two concurrent deletes cannot empty the table.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM tabs
		 WHERE id = ? AND (SELECT COUNT(*) FROM tabs) > 1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting tab %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	// Nothing deleted: either the tab does not exist or it is the last one.
	if _, err := db.GetByID(ctx, id); err != nil {
		return err
	}
	return apperror.Conflict(MsgLastTab)
}

// Count returns the number of stored tabs.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM tabs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting tabs: %w", err)
	}
	return n, nil
}

func requireRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("tab", id)
	}
	return nil
}
