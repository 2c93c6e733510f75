package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/radiology-api/internal/model"
)

// table implements batch inserts and reads for one entity table.
type table[T any] struct {
	BaseRepository
	name    string
	columns []string
	selects string
	// onConflict is appended verbatim to every insert.
	onConflict string
	// returning renders the dedup key of each inserted row so callers can
	// tell written rows from skipped ones. Empty means every row is written.
	returning string
	values    func(T) []any
	key       func(T) string
	// search is a predicate on $1 used when a list query carries q.
	search string
	// maxParams overrides maxBindParams.
	maxParams int
}

// maxBindParams is the most parameters Postgres accepts in one statement.
const maxBindParams = 65535

// rowsPerStatement is how many items fit in one INSERT.
func (t *table[T]) rowsPerStatement() int {
	limit := t.maxParams
	if limit <= 0 {
		limit = maxBindParams
	}
	return max(1, limit/len(t.columns))
}

func (t *table[T]) insertSQL(items []T) (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(items)*len(t.columns))

	b.WriteString("INSERT INTO ")
	b.WriteString(t.name)
	b.WriteString(" (")
	b.WriteString(strings.Join(t.columns, ", "))
	b.WriteString(") VALUES ")

	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, v := range t.values(item) {
			if j > 0 {
				b.WriteString(", ")
			}
			args = append(args, v)
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(len(args)))
		}
		b.WriteByte(')')
	}

	if t.onConflict != "" {
		b.WriteByte(' ')
		b.WriteString(t.onConflict)
	}
	if t.returning != "" {
		b.WriteString(" RETURNING ")
		b.WriteString(t.returning)
	}
	return b.String(), args
}

// InsertBatch writes items in one transaction, split into as many
// statements as the bind parameter limit requires.
func (t *table[T]) InsertBatch(ctx context.Context, items []T) ([]bool, error) {
	written := make([]bool, len(items))
	if len(items) == 0 {
		return written, nil
	}

	step := t.rowsPerStatement()
	err := t.WithTx(ctx, func(tx *sqlx.Tx) error {
		for start := 0; start < len(items); start += step {
			end := min(start+step, len(items))
			if err := t.insertChunk(ctx, tx, items[start:end], written[start:end]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert %s batch: %w", t.name, err)
	}
	return written, nil
}

func (t *table[T]) insertChunk(ctx context.Context, tx *sqlx.Tx, items []T, written []bool) error {
	query, args := t.insertSQL(items)
	if t.returning == "" {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if int(n) != len(items) {
			return fmt.Errorf("affected %d rows for %d items", n, len(items))
		}
		for i := range written {
			written[i] = true
		}
		return nil
	}

	var keys []string
	if err := tx.SelectContext(ctx, &keys, query, args...); err != nil {
		return err
	}
	stored := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		stored[k] = struct{}{}
	}
	for i, item := range items {
		_, written[i] = stored[t.key(item)]
	}
	return nil
}

func (t *table[T]) where(q model.ListQuery) (string, []any) {
	if q.Search == "" || t.search == "" {
		return "", nil
	}
	return " WHERE " + t.search, []any{strings.TrimSpace(q.Search)}
}

func (t *table[T]) List(ctx context.Context, q model.ListQuery) ([]T, int, error) {
	q = q.Normalize()
	where, args := t.where(q)

	var total int
	if err := t.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM "+t.name+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s: %w", t.name, err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY id LIMIT $%d OFFSET $%d",
		t.selects, t.name, where, len(args)+1, len(args)+2)
	items := []T{}
	if err := t.db.SelectContext(ctx, &items, query, append(args, q.Limit, q.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("failed to list %s: %w", t.name, err)
	}
	return items, total, nil
}

func (t *table[T]) Get(ctx context.Context, id int64) (*T, error) {
	var item T
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", t.selects, t.name)
	if err := t.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (t *table[T]) Each(ctx context.Context, fn func(T) error) error {
	rows, err := t.db.QueryxContext(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY id", t.selects, t.name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", t.name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item T
		if err := rows.StructScan(&item); err != nil {
			return fmt.Errorf("failed to scan %s row: %w", t.name, err)
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return rows.Err()
}

// dateArg binds a DATE column as text so the session time zone cannot
// shift the stored day.
func dateArg(t time.Time) string {
	return model.DateKey(t)
}

func nullableDateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return model.DateKey(*t)
}
