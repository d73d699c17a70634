// Package sqlxrepos implements the domain repositories on PostgreSQL with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/jarida/core"
)

// uniqueViolation is the postgres "unique_violation" error code.
const uniqueViolation = "23505"

// trapNoRowsErr maps psql "no rows" err to `notFound`
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// validIDs drops the ids that are not UUIDs (they cannot match any row).
func validIDs(ids []string) pq.StringArray {
	valid := make(pq.StringArray, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

func textArray(ss []string) pq.StringArray {
	if ss == nil {
		return pq.StringArray{}
	}
	return ss
}

func nullID(id string) null.String {
	return null.NewString(id, id != "")
}

func nullTime(t time.Time) null.Time {
	return null.NewTime(t.UTC(), !t.IsZero())
}

// whereClause accumulates AND-ed conditions using "?" bind vars.
type whereClause struct {
	conds []string
	args  []interface{}
}

func (w *whereClause) and(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy renders the ORDER BY clause, with the id as tiebreaker so that pages are stable.
func orderBy(ordering []core.DBOrdering, fallback string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + fallback + ", id ASC"
	}
	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	orderList = append(orderList, "id ASC")
	return " ORDER BY " + strings.Join(orderList, ", ")
}

// paginate renders the LIMIT/OFFSET clause. A zero limit means no limit.
func paginate(page core.Page) (string, []interface{}) {
	var (
		clause string
		args   []interface{}
	)
	if page.Limit > 0 {
		clause += " LIMIT ?"
		args = append(args, page.Limit)
	}
	if page.Offset > 0 {
		clause += " OFFSET ?"
		args = append(args, page.Offset)
	}
	return clause, args
}

func selectRows(ctx context.Context, exec sqlx.ExtContext, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, exec, dest, exec.Rebind(query), args...)
}

func getRow(ctx context.Context, exec sqlx.ExtContext, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, exec, dest, exec.Rebind(query), args...)
}

// execAffected runs a statement and returns the number of affected rows.
func execAffected(ctx context.Context, exec sqlx.ExtContext, query string, args ...interface{}) (int, error) {
	res, err := exec.ExecContext(ctx, exec.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	cnt, err := res.RowsAffected()
	return int(cnt), err
}

// namedExecAffected runs a named statement (":field" bind vars) and returns the number of affected rows.
func namedExecAffected(ctx context.Context, exec sqlx.ExtContext, query string, arg interface{}) (int, error) {
	res, err := sqlx.NamedExecContext(ctx, exec, query, arg)
	if err != nil {
		return 0, err
	}
	cnt, err := res.RowsAffected()
	return int(cnt), err
}
