package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Nomadcxx/jellyrename/internal/executor"
	"github.com/Nomadcxx/jellyrename/internal/planner"
)

// Batch is one row of the history listing.
type Batch struct {
	ID         int64      `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	Mode       string     `json:"mode"`
	EntryCount int        `json:"entry_count"`
	UndoneAt   *time.Time `json:"undone_at,omitempty"`
}

// Undone reports whether the batch was reverted.
func (b Batch) Undone() bool {
	return b.UndoneAt != nil
}

// SaveBatch records an executed batch with its moves and created
// directories.
func (h *HistoryDB) SaveBatch(ctx context.Context, record *executor.UndoRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO batches (id, created_at, mode, entry_count)
		VALUES (?, ?, ?, ?)
	`, record.BatchID, createdAt.UTC(), record.Mode.String(), len(record.Moves))
	if err != nil {
		return fmt.Errorf("inserting batch %d: %w", record.BatchID, err)
	}

	for i, mv := range record.Moves {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO batch_moves (batch_id, seq, entry_id, source_path, target_path)
			VALUES (?, ?, ?, ?, ?)
		`, record.BatchID, i, mv.EntryID, mv.Source, mv.Target)
		if err != nil {
			return fmt.Errorf("inserting move %d of batch %d: %w", i, record.BatchID, err)
		}
	}

	for i, dir := range record.CreatedDirs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO batch_dirs (batch_id, seq, path) VALUES (?, ?, ?)
		`, record.BatchID, i, dir)
		if err != nil {
			return fmt.Errorf("inserting directory of batch %d: %w", record.BatchID, err)
		}
	}

	return tx.Commit()
}

// MarkUndone stamps a batch as reverted. Marking twice keeps the first
// time.
func (h *HistoryDB) MarkUndone(ctx context.Context, batchID int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.db.ExecContext(ctx, `
		UPDATE batches SET undone_at = ? WHERE id = ? AND undone_at IS NULL
	`, time.Now().UTC(), batchID)
	return err
}

// LastUndoable returns the most recent batch if it has not been undone.
// Only the latest batch is ever reversible, so an undone latest batch means
// there is nothing to undo. Returns nil, nil in that case.
func (h *HistoryDB) LastUndoable(ctx context.Context) (*executor.UndoRecord, error) {
	h.mu.RLock()
	var id int64
	var undone sql.NullTime
	err := h.db.QueryRowContext(ctx, `
		SELECT id, undone_at FROM batches ORDER BY id DESC LIMIT 1
	`).Scan(&id, &undone)
	h.mu.RUnlock()

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if undone.Valid {
		return nil, nil
	}
	return h.Batch(ctx, id)
}

// Batch loads the full record of one batch.
func (h *HistoryDB) Batch(ctx context.Context, id int64) (*executor.UndoRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	record := &executor.UndoRecord{BatchID: id}
	var mode string
	err := h.db.QueryRowContext(ctx, `
		SELECT created_at, mode FROM batches WHERE id = ?
	`, id).Scan(&record.CreatedAt, &mode)
	if err != nil {
		return nil, fmt.Errorf("loading batch %d: %w", id, err)
	}
	record.Mode, _ = planner.ParseMode(mode)

	rows, err := h.db.QueryContext(ctx, `
		SELECT entry_id, source_path, target_path
		FROM batch_moves
		WHERE batch_id = ?
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var mv executor.Move
		if err := rows.Scan(&mv.EntryID, &mv.Source, &mv.Target); err != nil {
			rows.Close()
			return nil, err
		}
		record.Moves = append(record.Moves, mv)
	}
	// release the connection before the next query
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dirRows, err := h.db.QueryContext(ctx, `
		SELECT path FROM batch_dirs WHERE batch_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, err
	}
	defer dirRows.Close()

	for dirRows.Next() {
		var dir string
		if err := dirRows.Scan(&dir); err != nil {
			return nil, err
		}
		record.CreatedDirs = append(record.CreatedDirs, dir)
	}

	return record, dirRows.Err()
}

// RecentBatches returns the newest batches first.
func (h *HistoryDB) RecentBatches(ctx context.Context, limit int) ([]Batch, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, created_at, mode, entry_count, undone_at
		FROM batches
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		var undone sql.NullTime
		if err := rows.Scan(&b.ID, &b.CreatedAt, &b.Mode, &b.EntryCount, &undone); err != nil {
			return nil, err
		}
		if undone.Valid {
			t := undone.Time
			b.UndoneAt = &t
		}
		batches = append(batches, b)
	}

	return batches, rows.Err()
}

// NextBatchID returns the id the next batch should use.
func (h *HistoryDB) NextBatchID(ctx context.Context) (int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var last int64
	err := h.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM batches`).Scan(&last)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// Prune deletes all but the newest keep batches and returns how many were
// removed. The newest batch stays undoable.
func (h *HistoryDB) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM batches
		WHERE id NOT IN (SELECT id FROM batches ORDER BY id DESC LIMIT ?)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning batches: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	for _, table := range []string{"batch_moves", "batch_dirs"} {
		_, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE batch_id NOT IN (SELECT id FROM batches)`)
		if err != nil {
			return 0, fmt.Errorf("pruning %s: %w", table, err)
		}
	}

	return removed, tx.Commit()
}
