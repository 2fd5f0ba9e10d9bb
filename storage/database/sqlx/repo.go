package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/kinerja/core"
)

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// repo is embedded by every repository. Methods run on the given executor (a transaction)
// or on the database.
type repo struct {
	db *sqlx.DB
}

func (r repo) getExec(exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return r.db
}

// live excludes the soft deleted rows of table.
func live(b sq.SelectBuilder, table string) sq.SelectBuilder {
	return b.Where(sq.Eq{table + ".deleted_at": nil})
}

func orderBy(b sq.SelectBuilder, ordering []core.DBOrdering, table string) sq.SelectBuilder {
	for _, ord := range ordering {
		b = b.OrderBy(table + "." + ord.String())
	}
	return b
}

// selectAll scans every row of the query into dest, a pointer to a slice of db-tagged structs.
func selectAll(ctx context.Context, exec core.DBExecutor, b sq.Sqlizer, dest interface{}) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	//goland:noinspection GoUnhandledErrorResult
	defer rows.Close()
	return sqlx.StructScan(rows, dest)
}

// selectOne returns the first row of the query, or notFound.
func selectOne[T any](ctx context.Context, exec core.DBExecutor, b sq.Sqlizer, notFound error) (T, error) {
	var rows []T
	if err := selectAll(ctx, exec, b, &rows); err != nil {
		var zero T
		return zero, err
	}
	if len(rows) == 0 {
		var zero T
		return zero, notFound
	}
	return rows[0], nil
}

// execute runs the statement and returns the number of affected rows.
func execute(ctx context.Context, exec core.DBExecutor, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building statement")
	}
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func exists(ctx context.Context, exec core.DBExecutor, b sq.SelectBuilder) (bool, error) {
	query, args, err := b.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building query")
	}
	var ok bool
	if err = exec.QueryRowContext(ctx, query, args...).Scan(&ok); err != nil && err != sql.ErrNoRows {
		return false, err
	}
	return ok, nil
}

// uniqueConstraint returns the name of the violated unique index, if err is a unique violation.
func uniqueConstraint(err error) (string, bool) {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok || pqErr.Code != uniqueViolation {
		return "", false
	}
	return pqErr.Constraint, true
}

// trapUniqueErr maps unique violations to a core.ConflictError.
func trapUniqueErr(err error, msg string) error {
	if _, ok := uniqueConstraint(err); ok {
		return core.NewConflictError(msg)
	}
	return err
}
