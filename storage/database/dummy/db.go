// Package dummydb is an in-memory implementation of the repositories, used by tests and local runs.
// Transactions are serialized; a failed transaction restores the tables as they were when it began.
package dummydb

import (
	"context"
	"database/sql"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kinerja/core"
	"github.com/trezcool/kinerja/core/aspect"
	"github.com/trezcool/kinerja/core/evaluation"
	"github.com/trezcool/kinerja/core/organization"
	"github.com/trezcool/kinerja/core/period"
	"github.com/trezcool/kinerja/core/rpp"
	"github.com/trezcool/kinerja/core/user"
)

var errNoSQL = errors.New("dummydb: raw SQL is not supported")

// table keeps rows in insertion order. Soft deleted rows are hidden from get, set and all.
type table[T any] struct {
	rows    map[string]T
	order   []string
	deleted map[string]bool
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T), deleted: make(map[string]bool)}
}

func (t *table[T]) insert(id string, v T) {
	t.rows[id] = v
	t.order = append(t.order, id)
}

func (t *table[T]) get(id string) (T, bool) {
	if t.deleted[id] {
		var zero T
		return zero, false
	}
	v, ok := t.rows[id]
	return v, ok
}

func (t *table[T]) set(id string, v T) bool {
	if _, ok := t.get(id); !ok {
		return false
	}
	t.rows[id] = v
	return true
}

// softDelete hides the row but keeps it for unscoped reads.
func (t *table[T]) softDelete(id string) bool {
	if _, ok := t.get(id); !ok {
		return false
	}
	t.deleted[id] = true
	return true
}

func (t *table[T]) delete(id string) bool {
	if _, ok := t.rows[id]; !ok {
		return false
	}
	delete(t.rows, id)
	return true
}

func (t *table[T]) all() []T {
	return t.rowsOf(false)
}

// unscoped returns the rows, soft deleted ones included.
func (t *table[T]) unscoped() []T {
	return t.rowsOf(true)
}

func (t *table[T]) rowsOf(withDeleted bool) []T {
	vals := make([]T, 0, len(t.rows))
	for _, id := range t.order {
		if t.deleted[id] && !withDeleted {
			continue
		}
		if v, ok := t.rows[id]; ok {
			vals = append(vals, v)
		}
	}
	return vals
}

func (t *table[T]) clone() *table[T] {
	c := &table[T]{
		rows:    make(map[string]T, len(t.rows)),
		order:   slices.Clone(t.order),
		deleted: make(map[string]bool, len(t.deleted)),
	}
	for k, v := range t.rows {
		c.rows[k] = v
	}
	for k := range t.deleted {
		c.deleted[k] = true
	}
	return c
}

type tables struct {
	users           *table[user.User]
	orgs            *table[organization.Organization]
	periods         *table[period.Period]
	aspects         *table[aspect.Aspect]
	submissions     *table[rpp.Submission]
	submissionItems *table[rpp.Item]
	evaluations     *table[evaluation.Evaluation]
	evaluationItems *table[evaluation.Item]
}

func newTables() tables {
	return tables{
		users:           newTable[user.User](),
		orgs:            newTable[organization.Organization](),
		periods:         newTable[period.Period](),
		aspects:         newTable[aspect.Aspect](),
		submissions:     newTable[rpp.Submission](),
		submissionItems: newTable[rpp.Item](),
		evaluations:     newTable[evaluation.Evaluation](),
		evaluationItems: newTable[evaluation.Item](),
	}
}

func (ts tables) clone() tables {
	return tables{
		users:           ts.users.clone(),
		orgs:            ts.orgs.clone(),
		periods:         ts.periods.clone(),
		aspects:         ts.aspects.clone(),
		submissions:     ts.submissions.clone(),
		submissionItems: ts.submissionItems.clone(),
		evaluations:     ts.evaluations.clone(),
		evaluationItems: ts.evaluationItems.clone(),
	}
}

type DB struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	tables
}

func Open() (*DB, error) {
	return &DB{tables: newTables()}, nil
}

// Flush empties every table.
func (db *DB) Flush() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables = newTables()
}

// executor stands in for a transaction. The repositories never run SQL on it.
type executor struct{}

func (executor) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}

func (executor) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (executor) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }

type transactor struct {
	db *DB
}

var _ core.Transactor = (*transactor)(nil) // interface compliance check

func NewTransactor(db *DB) core.Transactor {
	return &transactor{db: db}
}

func (t *transactor) WithinTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()

	t.db.mu.RLock()
	snapshot := t.db.tables.clone()
	t.db.mu.RUnlock()

	rollback := func() {
		t.db.mu.Lock()
		t.db.tables = snapshot
		t.db.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = ctx.Err(); err != nil {
		return err
	}
	if err = fn(executor{}); err != nil {
		rollback()
	}
	return err
}

// comparators compare two rows on an ordering field.
type comparators[T any] map[string]func(a, b T) int

func sortRows[T any](rows []T, ordering []core.DBOrdering, cmps comparators[T]) {
	if len(ordering) == 0 {
		return
	}
	slices.SortStableFunc(rows, func(a, b T) int {
		for _, ord := range ordering {
			cmp, ok := cmps[ord.Field]
			if !ok {
				continue
			}
			if c := cmp(a, b); c != 0 {
				if !ord.Ascending {
					c = -c
				}
				return c
			}
		}
		return 0
	})
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

func compareTime(a, b time.Time) int { return a.Compare(b) }

func filterRows[T any](rows []T, keep func(T) bool) []T {
	filtered := rows[:0]
	for _, r := range rows {
		if keep(r) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func contains(vals []string, s string) bool { return slices.Contains(vals, s) }
