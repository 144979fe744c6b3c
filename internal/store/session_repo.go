package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"
)

const currentSlot = "current"

// sessionRepo implements SessionRepo on top of SQLite.
type sessionRepo struct {
	db  *sqlx.DB
	seq *sequenceCounter
}

type historyRow struct {
	SessionID string `db:"session_id"`
	Sequence  int64  `db:"sequence"`
	Status    string `db:"status"`
	Data      string `db:"data"`
	UpdatedAt int64  `db:"updated_at"`
}

func (r *sessionRepo) LoadCurrent(ctx context.Context) ([]byte, error) {
	b := builder()
	query, args := b.Select("data").
		From(b.Table("session_slot")).
		Where(entsql.EQ("slot", currentSlot)).
		Query()

	var data string
	if err := r.db.GetContext(ctx, &data, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load current session: %w", err)
	}
	return []byte(data), nil
}

func (r *sessionRepo) SaveCurrent(ctx context.Context, rec SessionRecord, keep int) error {
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		b := builder()
		query, args := b.Insert("session_slot").
			Columns("slot", "session_id", "data", "updated_at").
			Values(currentSlot, rec.SessionID, string(rec.Data), rec.UpdatedAt.UnixMilli()).
			OnConflict(entsql.ConflictColumns("slot"), entsql.ResolveWithNewValues()).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("write current slot: %w", err)
		}
		return r.upsertHistory(ctx, tx, rec, keep)
	})
}

func (r *sessionRepo) Finalize(ctx context.Context, rec SessionRecord, keep int) error {
	return inTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := r.upsertHistory(ctx, tx, rec, keep); err != nil {
			return err
		}
		return clearSlot(ctx, tx)
	})
}

func (r *sessionRepo) ClearCurrent(ctx context.Context) error {
	return clearSlot(ctx, r.db)
}

func (r *sessionRepo) ListHistory(ctx context.Context, limit int) ([]SessionRecord, error) {
	b := builder()
	sel := b.Select("session_id", "sequence", "status", "data", "updated_at").
		From(b.Table("session_history")).
		OrderBy(entsql.Desc("sequence"))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	query, args := sel.Query()

	var rows []historyRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	out := make([]SessionRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, SessionRecord{
			SessionID: row.SessionID,
			Sequence:  row.Sequence,
			Status:    row.Status,
			Data:      []byte(row.Data),
			UpdatedAt: time.UnixMilli(row.UpdatedAt),
		})
	}
	slices.Reverse(out)
	return out, nil
}

func (r *sessionRepo) upsertHistory(ctx context.Context, tx *sqlx.Tx, rec SessionRecord, keep int) error {
	seqNum, err := r.seq.Next(ctx, tx)
	if err != nil {
		return err
	}

	b := builder()
	query, args := b.Insert("session_history").
		Columns("session_id", "sequence", "status", "data", "updated_at").
		Values(rec.SessionID, seqNum, rec.Status, string(rec.Data), rec.UpdatedAt.UnixMilli()).
		OnConflict(entsql.ConflictColumns("session_id"), entsql.ResolveWithNewValues()).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert history: %w", err)
	}

	if keep > 0 {
		return pruneHistory(ctx, tx, keep)
	}
	return nil
}

// pruneHistory deletes all but the keep most recent history entries.
func pruneHistory(ctx context.Context, tx *sqlx.Tx, keep int) error {
	b := builder()
	query, args := b.Select("sequence").
		From(b.Table("session_history")).
		OrderBy(entsql.Desc("sequence")).
		Limit(1).
		Offset(keep).
		Query()

	var threshold int64
	if err := tx.GetContext(ctx, &threshold, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil // fewer than keep entries exist
		}
		return fmt.Errorf("query history for prune: %w", err)
	}

	query, args = b.Delete("session_history").
		Where(entsql.LTE("sequence", threshold)).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

func clearSlot(ctx context.Context, ex sqlx.ExecerContext) error {
	query, args := builder().Delete("session_slot").
		Where(entsql.EQ("slot", currentSlot)).
		Query()
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear current slot: %w", err)
	}
	return nil
}

// inTx runs fn inside a transaction, rolling back on error.
func inTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
