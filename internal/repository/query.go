package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"buildtrack/pkg/apperr"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// where 拼接 AND 条件，? 按追加顺序替换为 $n
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.clauses = append(w.clauses, clause)
}

// arg 追加一个不属于 WHERE 的参数（LIMIT / OFFSET），返回占位符
func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// notFound 把 pgx.ErrNoRows 和非法 UUID 转成业务 NotFound
func notFound(err error, resource string) error {
	if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
		return apperr.NotFound(resource)
	}
	return fmt.Errorf("query %s: %w", resource, err)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func isInvalidID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}

func affectedOrNotFound(tag pgconn.CommandTag, resource string) error {
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(resource)
	}
	return nil
}
