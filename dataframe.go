// Copyright 2026 the objectiv-analytics authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package bach

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/miike/objectiv-analytics/internal/expression"
	"github.com/miike/objectiv-analytics/internal/sqlmodel"
)

// ColumnDef names a column and its dtype when binding a table.
type ColumnDef struct {
	Name  string
	Dtype string
}

// DataFrame is an ordered collection of Series over one base node, split
// into index columns (the row key) and data columns. Like Series it is
// lazy and immutable: operations return new frames, and SQL only runs when
// the frame is materialized or queried.
type DataFrame struct {
	db       *DB
	baseNode *sqlmodel.Model
	index    []*Series
	series   []*Series
	groupBy  *GroupBy
	orderBy  []SortColumn
}

// FromTable binds a DataFrame to an existing database table. cols declares
// every column of the table in order, with its dtype; indexNames selects
// which of them form the row key. The table is not inspected; the caller's
// declaration is trusted until a query runs.
func FromTable(db *DB, tableName string, cols []ColumnDef, indexNames []string) (*DataFrame, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q binding needs at least one column", tableName)
	}
	byName := make(map[string]ColumnDef, len(cols))
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		if _, err := getSeriesType(c.Dtype); err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		if _, ok := byName[c.Name]; ok {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		byName[c.Name] = c
		names = append(names, c.Name)
	}
	isIndex := make(map[string]bool, len(indexNames))
	for _, name := range indexNames {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("index column %q is not among the declared columns", name)
		}
		isIndex[name] = true
	}

	model := sqlmodel.NewTable(tableName, names)
	index := make([]*Series, 0, len(indexNames))
	for _, name := range indexNames {
		c := byName[name]
		index = append(index, newSeries(db, model, nil, c.Name,
			expression.ColumnReference(c.Name), mustSeriesType(c.Dtype).Dtype(), nil, nil))
	}
	var data []*Series
	for _, c := range cols {
		if isIndex[c.Name] {
			continue
		}
		data = append(data, newSeries(db, model, index, c.Name,
			expression.ColumnReference(c.Name), mustSeriesType(c.Dtype).Dtype(), nil, nil))
	}
	return &DataFrame{db: db, baseNode: model, index: index, series: data}, nil
}

// DB returns the database handle this frame is bound to.
func (df *DataFrame) DB() *DB { return df.db }

// BaseNode returns the compiled query unit the frame's columns are valid
// against.
func (df *DataFrame) BaseNode() *sqlmodel.Model { return df.baseNode }

// Index returns the index series.
func (df *DataFrame) Index() []*Series { return append([]*Series(nil), df.index...) }

// DataColumns returns the data series in column order.
func (df *DataFrame) DataColumns() []*Series { return append([]*Series(nil), df.series...) }

// ColumnNames returns the data column names in order.
func (df *DataFrame) ColumnNames() []string {
	names := make([]string, len(df.series))
	for i, s := range df.series {
		names[i] = s.name
	}
	return names
}

// Column returns the named column, searching data columns first and then
// the index.
func (df *DataFrame) Column(name string) (*Series, error) {
	for _, s := range df.series {
		if s.name == name {
			return s, nil
		}
	}
	for _, s := range df.index {
		if s.name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("frame has no column %q", name)
}

func (df *DataFrame) copy() *DataFrame {
	return &DataFrame{
		db:       df.db,
		baseNode: df.baseNode,
		index:    append([]*Series(nil), df.index...),
		series:   append([]*Series(nil), df.series...),
		groupBy:  df.groupBy,
		orderBy:  append([]SortColumn(nil), df.orderBy...),
	}
}

// SetColumn returns a frame with s added as a data column under the given
// name, replacing an existing column of that name. A series from another
// base node is only accepted when it is constant or an independent
// subquery; anything else cannot be expressed in this frame's query.
func (df *DataFrame) SetColumn(name string, s *Series) (*DataFrame, error) {
	for _, is := range df.index {
		if is.name == name {
			return nil, fmt.Errorf("cannot replace index column %q", name)
		}
	}
	if !(s.expr.IsConstant() || s.expr.IsIndependentSubquery()) {
		if !s.baseNode.Equals(df.baseNode) {
			return nil, fmt.Errorf("%w: series is bound to a different base node", ErrIncompatibleContext)
		}
		if !s.groupBy.Equals(df.groupBy) {
			return nil, fmt.Errorf("%w: series grouping does not match the frame", ErrIncompatibleContext)
		}
	}
	bound := s.copyOverride(seriesOverride{name: &name, index: indexOverride(df.index)})
	out := df.copy()
	for i, existing := range out.series {
		if existing.name == name {
			out.series[i] = bound
			return out, nil
		}
	}
	out.series = append(out.series, bound)
	return out, nil
}

// Filter returns a frame holding the rows where mask is true. The mask must
// be a boolean series over the same base node, without aggregate or window
// functions. The result is a new base node; all columns are rebound.
func (df *DataFrame) Filter(mask *Series) (*DataFrame, error) {
	if mask.dtype != "bool" {
		return nil, fmt.Errorf("%w: filter mask must be boolean, got %s", ErrTypeMismatch, mask.dtype)
	}
	if !mask.baseNode.Equals(df.baseNode) {
		return nil, fmt.Errorf("%w: filter mask is bound to a different base node", ErrIncompatibleContext)
	}
	if mask.expr.HasAggregateFunction() || mask.expr.HasWindowedAggregateFunction() {
		return nil, fmt.Errorf("filter mask must not contain aggregate or window functions; " +
			"materialize the aggregated frame first")
	}
	if df.groupBy != nil {
		return nil, fmt.Errorf("%w: cannot filter a frame with a pending group-by; "+
			"aggregate or materialize first", ErrIncompatibleContext)
	}
	where := mask.expr.ResolveColumnReferences("").ToSQL("")
	whereRefs := make(map[string]*sqlmodel.Model)
	if err := mergeRefs(whereRefs, mask.expr.GetReferences()); err != nil {
		return nil, err
	}
	m, err := df.compile([]string{where}, whereRefs, 0)
	if err != nil {
		return nil, err
	}
	return df.rebind(m), nil
}

// GroupBy returns a frame grouped on the named columns. The keys become the
// index; every remaining column carries the grouping and can only leave it
// through an aggregation. With no names the whole frame aggregates into a
// single row.
func (df *DataFrame) GroupBy(names ...string) (*DataFrame, error) {
	if df.groupBy != nil {
		return nil, fmt.Errorf("%w: frame already has a pending group-by; "+
			"aggregate or materialize first", ErrIncompatibleContext)
	}
	isKey := make(map[string]bool, len(names))
	keys := make([]*Series, 0, len(names))
	for _, name := range names {
		s, err := df.Column(name)
		if err != nil {
			return nil, err
		}
		isKey[name] = true
		keys = append(keys, s.copyOverride(seriesOverride{
			index:   indexOverride(nil),
			groupBy: groupByOverride(nil),
		}))
	}
	g := NewGroupBy(keys...)
	var data []*Series
	for _, s := range append(append([]*Series(nil), df.index...), df.series...) {
		if isKey[s.name] {
			continue
		}
		data = append(data, s.copyOverride(seriesOverride{
			index:   indexOverride(keys),
			groupBy: groupByOverride(g),
		}))
	}
	return &DataFrame{db: df.db, baseNode: df.baseNode, index: keys, series: data, groupBy: g}, nil
}

func (df *DataFrame) resolvePartition() (Partition, error) {
	if df.groupBy == nil {
		return nil, fmt.Errorf("%w: frame has no pending group-by", ErrIncompatibleContext)
	}
	return df.groupBy, nil
}

func mergeRefs(dst map[string]*sqlmodel.Model, src map[string]expression.Model) error {
	for name, m := range src {
		model, ok := m.(*sqlmodel.Model)
		if !ok {
			return fmt.Errorf("unsupported model reference type %T", m)
		}
		dst[name] = model
	}
	return nil
}

// compile renders the frame's current state into a single select model.
// With a pending group-by every data column must be aggregated; the keys
// form the GROUP BY clause.
func (df *DataFrame) compile(where []string, whereRefs map[string]*sqlmodel.Model, limit uint64) (*sqlmodel.Model, error) {
	cols := append(append([]*Series(nil), df.index...), df.series...)
	if len(cols) == 0 {
		return nil, fmt.Errorf("frame has no columns")
	}
	refs := map[string]*sqlmodel.Model{df.baseNode.RefName(): df.baseNode}
	colSQL := make([]string, len(cols))
	colNames := make([]string, len(cols))
	for i, s := range cols {
		ce := s.getColumnExpression("")
		colSQL[i] = ce.ToSQL("")
		colNames[i] = s.name
		if err := mergeRefs(refs, ce.GetReferences()); err != nil {
			return nil, err
		}
	}

	var groupBy []string
	if df.groupBy != nil {
		for _, k := range df.groupBy.index {
			groupBy = append(groupBy, k.expr.ResolveColumnReferences("").ToSQL(""))
			if err := mergeRefs(refs, k.expr.GetReferences()); err != nil {
				return nil, err
			}
		}
		for _, s := range df.series {
			if !s.expr.HasAggregateFunction() {
				return nil, fmt.Errorf("cannot compile frame with pending group-by: "+
					"column %q is not aggregated", s.name)
			}
		}
	}

	for name, m := range whereRefs {
		refs[name] = m
	}

	var orderBy []string
	for _, sc := range df.orderBy {
		direction := " desc"
		if sc.ascending {
			direction = " asc"
		}
		orderBy = append(orderBy, sc.expr.ResolveColumnReferences("").ToSQL("")+direction)
		if err := mergeRefs(refs, sc.expr.GetReferences()); err != nil {
			return nil, err
		}
	}

	return sqlmodel.Select{
		Columns:     colSQL,
		ColumnNames: colNames,
		From:        "{" + df.baseNode.RefName() + "}",
		Where:       where,
		GroupBy:     groupBy,
		OrderBy:     orderBy,
		Limit:       limit,
		References:  refs,
	}.Model()
}

// rebind returns a frame over m with every column reduced to a plain
// reference to its own name. Pending grouping and ordering are spent: they
// are part of m now.
func (df *DataFrame) rebind(m *sqlmodel.Model) *DataFrame {
	index := make([]*Series, len(df.index))
	for i, s := range df.index {
		index[i] = newSeries(df.db, m, nil, s.name, expression.ColumnReference(s.name), s.dtype, nil, nil)
	}
	data := make([]*Series, len(df.series))
	for i, s := range df.series {
		data[i] = newSeries(df.db, m, index, s.name, expression.ColumnReference(s.name), s.dtype, nil, nil)
	}
	return &DataFrame{db: df.db, baseNode: m, index: index, series: data}
}

// Materialize compiles the frame's current state, pending group-by and
// ordering included, into a new base node and rebinds every column against
// it. The frame's semantics are unchanged, but complex expressions become
// plain column references and can be aggregated or filtered again.
func (df *DataFrame) Materialize() (*DataFrame, error) {
	m, err := df.compile(nil, nil, 0)
	if err != nil {
		return nil, err
	}
	return df.rebind(m), nil
}

// ToSQL renders the single query the frame's current state represents.
func (df *DataFrame) ToSQL() (string, error) {
	m, err := df.compile(nil, nil, 0)
	if err != nil {
		return "", err
	}
	return m.ToSQL()
}

// Query compiles and runs the frame's query. The caller owns the returned
// rows.
func (df *DataFrame) Query(ctx context.Context) (*sql.Rows, error) {
	query, err := df.ToSQL()
	if err != nil {
		return nil, err
	}
	return df.db.sqldb.QueryContext(ctx, query)
}

// Head runs the frame's query limited to n rows and renders the result as a
// text table, index columns first.
func (df *DataFrame) Head(ctx context.Context, n int) (string, error) {
	if n < 0 {
		return "", fmt.Errorf("negative row count %d", n)
	}
	if n == 0 {
		// A limit of zero never reaches the query builder, which reads
		// zero as "no limit". Render the header without querying.
		names := make([]string, 0, len(df.index)+len(df.series))
		for _, s := range df.index {
			names = append(names, s.name)
		}
		for _, s := range df.series {
			names = append(names, s.name)
		}
		var sb strings.Builder
		table := tablewriter.NewWriter(&sb)
		table.SetHeader(names)
		table.Render()
		return sb.String(), nil
	}
	m, err := df.compile(nil, nil, uint64(n))
	if err != nil {
		return "", err
	}
	query, err := m.ToSQL()
	if err != nil {
		return "", err
	}
	rows, err := df.db.sqldb.QueryContext(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetHeader(colNames)
	for rows.Next() {
		dest := make([]any, len(colNames))
		for i := range dest {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return "", err
		}
		cells := make([]string, len(dest))
		for i, d := range dest {
			v := *(d.(*any))
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			if v == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = fmt.Sprintf("%v", v)
			}
		}
		table.Append(cells)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	table.Render()
	return sb.String(), nil
}

// ConstSeries returns a constant series usable in operations on this
// frame's columns. The dtype is inferred from the value.
func (df *DataFrame) ConstSeries(value any, name string) (*Series, error) {
	dtype, err := valueToDtype(value)
	if err != nil {
		return nil, err
	}
	st, err := getSeriesType(dtype)
	if err != nil {
		return nil, err
	}
	return newConstSeries(df.db, df.baseNode, df.index, st, value, name)
}
