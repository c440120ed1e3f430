// Copyright 2026 the objectiv-analytics authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlmodel

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Select describes a single select statement to be compiled into a Model.
// Column, condition and ordering fragments must already be rendered and
// format-escaped; References must name every model placeholder appearing in
// any fragment, including From.
type Select struct {
	// Columns holds the rendered select-list expressions.
	Columns []string
	// ColumnNames holds the result column names, matching Columns in order.
	ColumnNames []string
	// From is the source: a quoted table name or a model placeholder.
	From string
	// Where holds rendered conditions, joined with AND.
	Where []string
	// GroupBy holds rendered group-key expressions.
	GroupBy []string
	// OrderBy holds rendered ordering clauses.
	OrderBy []string
	// Limit caps the row count when non-zero.
	Limit uint64
	// References maps placeholder names to the models they stand for.
	References map[string]*Model
}

// Model compiles the select statement into a compiled query unit.
func (s Select) Model() (*Model, error) {
	if len(s.Columns) == 0 {
		return nil, fmt.Errorf("sqlmodel: select needs at least one column")
	}
	if len(s.Columns) != len(s.ColumnNames) {
		return nil, fmt.Errorf("sqlmodel: %d columns but %d column names", len(s.Columns), len(s.ColumnNames))
	}
	qb := sq.Select(s.Columns...).From(s.From)
	for _, cond := range s.Where {
		qb = qb.Where(sq.Expr(cond))
	}
	if len(s.GroupBy) > 0 {
		qb = qb.GroupBy(s.GroupBy...)
	}
	if len(s.OrderBy) > 0 {
		qb = qb.OrderBy(s.OrderBy...)
	}
	if s.Limit > 0 {
		qb = qb.Limit(s.Limit)
	}
	sqlFormat, args, err := qb.ToSql()
	if err != nil {
		return nil, err
	}
	if len(args) > 0 {
		return nil, fmt.Errorf("sqlmodel: select fragments must not bind arguments")
	}
	return New(sqlFormat, s.References, s.ColumnNames), nil
}
