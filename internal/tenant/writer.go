package tenant

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ritikbhatt20/Helius-Dexer/internal/domain"
	"github.com/ritikbhatt20/Helius-Dexer/internal/schema"
)

// Row is a record keyed by a natural dedup key.
type Row interface {
	// Columns and Values are parallel.
	Columns() []string
	Values() []any
	// ConflictKey is the unique column set the upsert targets.
	ConflictKey() []string
	// UpdateColumns are overwritten on conflict. updated_at is always refreshed.
	UpdateColumns() []string
}

// UpsertSQL renders INSERT ... ON CONFLICT DO UPDATE for row into table.
// Values are always bound; only the table and the fixed column names are interpolated.
func UpsertSQL(table string, row Row) (string, error) {
	if err := schema.ValidateIdentifier(table); err != nil {
		return "", err
	}

	cols := row.Columns()
	if len(cols) != len(row.Values()) {
		return "", fmt.Errorf("row has %d columns and %d values", len(cols), len(row.Values()))
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	sets := make([]string, 0, len(row.UpdateColumns())+1)
	for _, c := range row.UpdateColumns() {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	sets = append(sets, "updated_at = NOW()")

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(row.ConflictKey(), ", "),
		strings.Join(sets, ", "),
	), nil
}

// Writer applies rows to one target table.
type Writer struct {
	db    schema.Execer
	table string
}

// NewWriter binds a writer to a pool and table.
func NewWriter(db schema.Execer, table string) *Writer {
	return &Writer{db: db, table: table}
}

// Upsert inserts row or updates the existing row with the same natural key.
func (w *Writer) Upsert(ctx context.Context, row Row) error {
	query, err := UpsertSQL(w.table, row)
	if err != nil {
		return err
	}
	if _, err := w.db.ExecContext(ctx, query, row.Values()...); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", w.table, err)
	}
	return nil
}

// DeleteByTokenMint removes every row for a mint. Deleting nothing is not an error.
func (w *Writer) DeleteByTokenMint(ctx context.Context, mint string) (int64, error) {
	if err := schema.ValidateIdentifier(w.table); err != nil {
		return 0, err
	}
	res, err := w.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE token_mint = $1", w.table), mint)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", w.table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Target is a writer bound to an ensured table.
type Target interface {
	Upsert(ctx context.Context, row Row) error
	DeleteByTokenMint(ctx context.Context, mint string) (int64, error)
}

// WithTarget opens a pool, ensures the job type's table exists and hands fn a writer for it.
// The pool is closed before WithTarget returns.
func (o *Opener) WithTarget(ctx context.Context, p domain.ConnectionParams, jobType domain.JobType, table string, fn func(ctx context.Context, t Target) error) error {
	return o.WithPool(ctx, p, func(ctx context.Context, db *sqlx.DB) error {
		if err := schema.EnsureTable(ctx, db, jobType, table); err != nil {
			return err
		}
		return fn(ctx, NewWriter(db, table))
	})
}
