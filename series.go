// Copyright 2026 the objectiv-analytics authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package bach

import (
	"context"
	"fmt"
	"strconv"

	"github.com/miike/objectiv-analytics/internal/expression"
	"github.com/miike/objectiv-analytics/internal/sqlmodel"
)

// Series is a typed, lazily evaluated representation of a single column of
// data. It is defined by an expression and a name, and exists within the
// scope of its base node: the compiled query the expression is valid
// against. Operations never run SQL; they return a new Series carrying a
// bigger expression, and the database is only involved once the owning
// frame materializes or is queried.
//
// When groupBy is set the series is part of an aggregation that still has to
// take place: its index is the future index, and it can only be combined
// with frames that share the same grouping.
//
// Series values are immutable. Every operation returns a new instance; the
// only shared mutable state is the database handle, which this layer never
// dereferences.
type Series struct {
	db              *DB
	baseNode        *sqlmodel.Model
	index           []*Series
	name            string
	expr            *expression.Expression
	groupBy         *GroupBy
	sortedAscending *bool
	dtype           string
}

func newSeries(db *DB, baseNode *sqlmodel.Model, index []*Series, name string,
	expr *expression.Expression, dtype string, groupBy *GroupBy, sortedAscending *bool) *Series {
	mustSeriesType(dtype)
	return &Series{
		db:              db,
		baseNode:        baseNode,
		index:           append([]*Series(nil), index...),
		name:            name,
		expr:            expr,
		groupBy:         groupBy,
		sortedAscending: sortedAscending,
		dtype:           dtype,
	}
}

// Name returns the name this series is known by.
func (s *Series) Name() string { return s.name }

// Dtype returns the name of this series' data type.
func (s *Series) Dtype() string { return s.dtype }

// DB returns the database handle this series is bound to.
func (s *Series) DB() *DB { return s.db }

// BaseNode returns the compiled query unit this series' expression is valid
// against.
func (s *Series) BaseNode() *sqlmodel.Model { return s.baseNode }

// Index returns the series forming this series' row key.
func (s *Series) Index() []*Series { return append([]*Series(nil), s.index...) }

// GroupBy returns the pending aggregation partition, if any.
func (s *Series) GroupBy() *GroupBy { return s.groupBy }

// Expression returns the expression this series represents.
func (s *Series) Expression() *expression.Expression { return s.expr }

// SortedAscending returns the sort direction, and whether one is set at all.
func (s *Series) SortedAscending() (ascending, sorted bool) {
	if s.sortedAscending == nil {
		return false, false
	}
	return *s.sortedAscending, true
}

// seriesOverride carries the copy-with-overrides fields. The zero value of
// every field means "leave the attribute unchanged"; pointer indirection
// distinguishes that from "explicitly set to empty". groupBy is a double
// pointer so that clearing the group-by is distinct from leaving it alone.
type seriesOverride struct {
	dtype           string
	baseNode        *sqlmodel.Model
	index           *[]*Series
	name            *string
	expr            *expression.Expression
	groupBy         **GroupBy
	sortedAscending **bool
}

func groupByOverride(g *GroupBy) **GroupBy { return &g }

func indexOverride(index []*Series) *[]*Series { return &index }

// copyOverride clones the series, replacing only the attributes set in o.
func (s *Series) copyOverride(o seriesOverride) *Series {
	out := &Series{
		db:              s.db,
		baseNode:        s.baseNode,
		index:           s.index,
		name:            s.name,
		expr:            s.expr,
		groupBy:         s.groupBy,
		sortedAscending: s.sortedAscending,
		dtype:           s.dtype,
	}
	if o.dtype != "" {
		mustSeriesType(o.dtype)
		out.dtype = o.dtype
	}
	if o.baseNode != nil {
		out.baseNode = o.baseNode
	}
	if o.index != nil {
		out.index = append([]*Series(nil), (*o.index)...)
	}
	if o.name != nil {
		out.name = *o.name
	}
	if o.expr != nil {
		out.expr = o.expr
	}
	if o.groupBy != nil {
		out.groupBy = *o.groupBy
	}
	if o.sortedAscending != nil {
		out.sortedAscending = *o.sortedAscending
	}
	return out
}

// constToSeries returns value itself when it already is a Series, else a
// constant series of the inferred matching dtype, bound to base's context.
func constToSeries(base *Series, value any, name string) (*Series, error) {
	if s, ok := value.(*Series); ok {
		return s, nil
	}
	if name == "" {
		name = "__const__"
	}
	dtype, err := valueToDtype(value)
	if err != nil {
		return nil, err
	}
	st, err := getSeriesType(dtype)
	if err != nil {
		return nil, err
	}
	return newConstSeries(base.db, base.baseNode, base.index, st, value, name)
}

func newConstSeries(db *DB, baseNode *sqlmodel.Model, index []*Series,
	st SeriesType, value any, name string) (*Series, error) {
	valExpr, err := valueToExpression(st, value)
	if err != nil {
		return nil, err
	}
	expr := expression.WithKind(expression.Const, valExpr)
	return newSeries(db, baseNode, index, name, expr, st.Dtype(), nil, nil), nil
}

// getColumnExpression renders this series as a select-list column, aliased
// unless the expression already is the bare quoted column name.
func (s *Series) getColumnExpression(tableAlias string) *expression.Expression {
	expr := s.expr.ResolveColumnReferences(tableAlias)
	quoted := sqlmodel.QuoteIdentifier(s.name)
	if expr.ToSQL("") == quoted {
		return expr
	}
	return expression.Construct(expression.Plain, "{} as {}", expr, expression.Raw(quoted))
}

// supportedOther checks whether other can participate in the operation. A
// right-hand side from another query context is narrowed to an independent
// subquery when it is guaranteed to be a single value; otherwise the
// operands cannot be correlated and the operation fails.
func (s *Series) supportedOther(operation string, otherDtypes []string, other *Series) (*Series, error) {
	if !(other.expr.IsConstant() || other.expr.IsIndependentSubquery()) {
		if !s.baseNode.Equals(other.baseNode) || !s.groupBy.Equals(other.groupBy) {
			if !other.expr.IsSingleValue() {
				return nil, fmt.Errorf("%w: %s: right-hand side has a different base node or group-by "+
					"and holds more than one value", ErrIncompatibleContext, operation)
			}
			var err error
			other, err = asIndependentSubquery(other, "", "")
			if err != nil {
				return nil, err
			}
		}
	}
	for _, dt := range otherDtypes {
		if other.dtype == dt {
			return other, nil
		}
	}
	return nil, fmt.Errorf("%w: %s not supported between %s and %s",
		ErrTypeMismatch, operation, s.dtype, other.dtype)
}

// binaryOperation is the standard way to perform a binary operation. other
// may be a plain Go value, auto-wrapped as a constant of the matching dtype,
// or a Series. The result expression is tagged non-atomic, since infix
// results need parentheses when nested further. The result dtype is
// resultDtype when set, else resultDtypeMap[rhs dtype] when present, else
// the left-hand dtype.
func (s *Series) binaryOperation(other any, operation, format string,
	otherDtypes []string, resultDtype string, resultDtypeMap map[string]string) (*Series, error) {
	if len(otherDtypes) == 0 {
		return nil, fmt.Errorf("%w: binary operation %q for dtype %s", ErrNotImplemented, operation, s.dtype)
	}
	rhs, err := constToSeries(s, other, "")
	if err != nil {
		return nil, err
	}
	rhs, err = s.supportedOther(operation, otherDtypes, rhs)
	if err != nil {
		return nil, err
	}
	expr := expression.Construct(expression.NonAtomic, format, s.expr, rhs.expr)
	dtype := resultDtype
	if resultDtypeMap != nil {
		dtype = resultDtypeMap[rhs.dtype]
	}
	return s.copyOverride(seriesOverride{dtype: dtype, expr: expr}), nil
}

func (s *Series) arithmeticOperation(other any, operation, defaultFormat, fixedDtype string) (*Series, error) {
	st := mustSeriesType(s.dtype)
	rule, ok := st.arithmetic(operation)
	if !ok {
		return nil, fmt.Errorf("%w: arithmetic operation %q for dtype %s", ErrNotImplemented, operation, s.dtype)
	}
	format := defaultFormat
	if rule.format != "" {
		format = rule.format
	}
	resultDtype, resultMap := rule.resultDtype, rule.resultDtypeMap
	if fixedDtype != "" {
		resultDtype, resultMap = fixedDtype, nil
	}
	return s.binaryOperation(other, operation, format, rule.otherDtypes, resultDtype, resultMap)
}

// Add adds other to this series; for string series it concatenates.
func (s *Series) Add(other any) (*Series, error) {
	return s.arithmeticOperation(other, "add", "{} + {}", "")
}

// Sub subtracts other from this series.
func (s *Series) Sub(other any) (*Series, error) {
	return s.arithmeticOperation(other, "sub", "{} - {}", "")
}

// Mul multiplies this series by other.
func (s *Series) Mul(other any) (*Series, error) {
	return s.arithmeticOperation(other, "mul", "{} * {}", "")
}

// Div divides this series by other, yielding a fractional result even for
// integer operands.
func (s *Series) Div(other any) (*Series, error) {
	return s.arithmeticOperation(other, "div", "{} / {}", "")
}

// FloorDiv divides and rounds down. The result is always int64.
func (s *Series) FloorDiv(other any) (*Series, error) {
	return s.arithmeticOperation(other, "floordiv", "floor({} / {})", "int64")
}

// Mod computes l - floor(l/r)*r. The algebraic form keeps the result
// consistent across numeric types where the native modulo operator is picky.
func (s *Series) Mod(other any) (*Series, error) {
	fd, err := s.FloorDiv(other)
	if err != nil {
		return nil, err
	}
	prod, err := fd.Mul(other)
	if err != nil {
		return nil, err
	}
	return s.Sub(prod)
}

// Pow raises this series to the power other.
func (s *Series) Pow(other any) (*Series, error) {
	return s.arithmeticOperation(other, "pow", "POWER({}, {})", "")
}

// Lshift is deliberately unimplemented.
func (s *Series) Lshift(other any) (*Series, error) {
	return nil, fmt.Errorf("%w: lshift", ErrNotImplemented)
}

// Rshift is deliberately unimplemented.
func (s *Series) Rshift(other any) (*Series, error) {
	return nil, fmt.Errorf("%w: rshift", ErrNotImplemented)
}

func (s *Series) booleanOperation(other any, operation, format string) (*Series, error) {
	if s.dtype != "bool" {
		return nil, fmt.Errorf("%w: boolean operation %q for dtype %s", ErrNotImplemented, operation, s.dtype)
	}
	return s.binaryOperation(other, operation, format, []string{"bool"}, "bool", nil)
}

// And combines two boolean series. Any other dtype is a hard failure.
func (s *Series) And(other any) (*Series, error) {
	return s.booleanOperation(other, "and", "{} and {}")
}

// Or combines two boolean series.
func (s *Series) Or(other any) (*Series, error) {
	return s.booleanOperation(other, "or", "{} or {}")
}

// Xor is true when exactly one of the two boolean series is true.
func (s *Series) Xor(other any) (*Series, error) {
	return s.booleanOperation(other, "xor", "{} != {}")
}

// Invert negates a boolean series. Any other dtype is a hard failure.
func (s *Series) Invert() (*Series, error) {
	if s.dtype != "bool" {
		return nil, fmt.Errorf("%w: invert for dtype %s", ErrNotImplemented, s.dtype)
	}
	expr := expression.Construct(expression.NonAtomic, "not {}", s.expr)
	return s.copyOverride(seriesOverride{expr: expr}), nil
}

func (s *Series) comparatorOperation(other any, comparator string) (*Series, error) {
	st := mustSeriesType(s.dtype)
	rule, ok := st.comparison()
	if !ok {
		return nil, fmt.Errorf("%w: comparator %q for dtype %s", ErrNotImplemented, comparator, s.dtype)
	}
	operation := "comparator '" + comparator + "'"
	return s.binaryOperation(other, operation, "{} "+comparator+" {}", rule.otherDtypes, "bool", nil)
}

// Eq compares for equality per row, yielding a boolean series. For
// structural equality of two Series values see Equals.
func (s *Series) Eq(other any) (*Series, error) { return s.comparatorOperation(other, "=") }

// Ne compares for inequality per row.
func (s *Series) Ne(other any) (*Series, error) { return s.comparatorOperation(other, "<>") }

// Lt compares less-than per row.
func (s *Series) Lt(other any) (*Series, error) { return s.comparatorOperation(other, "<") }

// Le compares less-or-equal per row.
func (s *Series) Le(other any) (*Series, error) { return s.comparatorOperation(other, "<=") }

// Ge compares greater-or-equal per row.
func (s *Series) Ge(other any) (*Series, error) { return s.comparatorOperation(other, ">=") }

// Gt compares greater-than per row.
func (s *Series) Gt(other any) (*Series, error) { return s.comparatorOperation(other, ">") }

// IsNull evaluates for every row whether the value is NULL.
//
// Only SQL NULL matches. A float NaN stored in the column is a value, not a
// missing row, and does not match.
func (s *Series) IsNull() *Series {
	expr := expression.Construct(expression.NonAtomic, "{} is null", s.expr)
	return s.copyOverride(seriesOverride{dtype: "bool", expr: expr})
}

// NotNull evaluates for every row whether the value is not NULL.
//
// Only SQL NULL is considered missing, see IsNull.
func (s *Series) NotNull() *Series {
	expr := expression.Construct(expression.NonAtomic, "{} is not null", s.expr)
	return s.copyOverride(seriesOverride{dtype: "bool", expr: expr})
}

// FillNA replaces NULL values with the given constant or the same-row value
// of a series of the same dtype.
func (s *Series) FillNA(other any) (*Series, error) {
	return s.binaryOperation(other, "fillna", "COALESCE({}, {})", []string{s.dtype}, "", nil)
}

// AsType converts the series to another dtype. Converting to the current
// dtype or one of its aliases is a no-op returning the series unchanged.
func (s *Series) AsType(dtype string) (*Series, error) {
	st, err := getSeriesType(dtype)
	if err != nil {
		return nil, err
	}
	if st.Dtype() == s.dtype {
		return s, nil
	}
	expr, err := st.DtypeToExpression(s.dtype, s.expr)
	if err != nil {
		return nil, err
	}
	return s.copyOverride(seriesOverride{dtype: st.Dtype(), expr: expr}), nil
}

// SortValues sets the sort direction applied when this series is turned
// into a frame.
func (s *Series) SortValues(ascending bool) *Series {
	if s.sortedAscending != nil && *s.sortedAscending == ascending {
		return s
	}
	asc := ascending
	ptr := &asc
	return s.copyOverride(seriesOverride{sortedAscending: &ptr})
}

const recursionGroupBy = "GroupBy"

// Equals reports whether other is structurally the same series: same dtype,
// connection, base node, index, name, expression, grouping and sort state.
func (s *Series) Equals(other *Series) bool {
	return s.equals(other, "")
}

// equals carries a recursion guard: when comparing the key series of a
// GroupBy, the keys' own pending group-by is not compared, which would
// otherwise recurse between a series and its grouping context forever.
func (s *Series) equals(other *Series, recursion string) bool {
	if other == nil {
		return false
	}
	if s.dtype != other.dtype ||
		s.db != other.db ||
		!s.baseNode.Equals(other.baseNode) ||
		s.name != other.name ||
		!s.expr.Equals(other.expr) {
		return false
	}
	if len(s.index) != len(other.index) {
		return false
	}
	for i, is := range s.index {
		if !is.equals(other.index[i], recursion) {
			return false
		}
	}
	if recursion != recursionGroupBy && !s.groupBy.Equals(other.groupBy) {
		return false
	}
	if (s.sortedAscending == nil) != (other.sortedAscending == nil) {
		return false
	}
	return s.sortedAscending == nil || *s.sortedAscending == *other.sortedAscending
}

// asIndependentSubquery materializes the series' owning query context into a
// standalone compiled unit and wraps a select over it, optionally prefixed
// with an operator such as "exists", "any", "all" or "in". The result is a
// free-standing value: its index is empty and it carries no pending
// group-by. A single-value guarantee on the original expression is
// reinstated on the result; materialization changes the context but not the
// cardinality.
func asIndependentSubquery(s *Series, operation string, dtype string) (*Series, error) {
	df, err := s.ToFrame().Materialize()
	if err != nil {
		return nil, err
	}
	format := "(SELECT {} FROM {})"
	if operation != "" {
		format = operation + " " + format
	}
	expr := expression.Construct(expression.IndependentSubquery, format,
		expression.ColumnReference(s.name), expression.ModelReference(df.baseNode))
	if s.expr.IsSingleValue() {
		expr = expression.WithKind(expression.SingleValue, expr)
	}
	return s.copyOverride(seriesOverride{
		dtype:   dtype,
		expr:    expr,
		index:   indexOverride(nil),
		groupBy: groupByOverride(nil),
	}), nil
}

// Exists returns a boolean series that is true when this series holds one
// or more values.
func (s *Series) Exists() (*Series, error) {
	sub, err := asIndependentSubquery(s, "exists", "bool")
	if err != nil {
		return nil, err
	}
	expr := expression.WithKind(expression.SingleValue, sub.expr)
	return sub.copyOverride(seriesOverride{expr: expr}), nil
}

// AnyValue makes this series usable as the right-hand side of a comparison
// meaning "true for any of the values".
func (s *Series) AnyValue() (*Series, error) {
	return asIndependentSubquery(s, "any", "")
}

// AllValues makes this series usable as the right-hand side of a comparison
// meaning "true for all of the values".
func (s *Series) AllValues() (*Series, error) {
	return asIndependentSubquery(s, "all", "")
}

// IsIn evaluates for every row whether the value is contained in other.
func (s *Series) IsIn(other *Series) (*Series, error) {
	sub, err := asIndependentSubquery(other, "in", "")
	if err != nil {
		return nil, err
	}
	expr := expression.Construct(expression.Plain, "{} {}", s.expr, sub.expr)
	return s.copyOverride(seriesOverride{dtype: "bool", expr: expr}), nil
}

// derivedAggFunc is the gate every reducing or windowed computation passes
// through. It refuses to aggregate a series that already is aggregated or
// windowed, resolves the effective partition, applies the minimum-count
// guard, and returns the derived series: bound to the partition's index
// with the partition pending for a group-by, or keeping the original
// per-row index for a true window.
func (s *Series) derivedAggFunc(partition Partition, aggExpr *expression.Expression,
	dtype string, minCount int) (*Series, error) {
	if s.expr.HasWindowedAggregateFunction() {
		return nil, fmt.Errorf("%w: cannot aggregate already windowed column %q; "+
			"materialize the owning frame first", ErrIllegalReaggregation, s.name)
	}
	if s.expr.HasAggregateFunction() {
		return nil, fmt.Errorf("%w: cannot aggregate already aggregated column %q; "+
			"materialize the owning frame first", ErrIllegalReaggregation, s.name)
	}

	var resolved Partition
	if partition == nil {
		if s.groupBy != nil {
			resolved = s.groupBy
		} else {
			// aggregate the entire input
			resolved = NewGroupBy()
		}
	} else {
		var err error
		resolved, err = partition.resolvePartition()
		if err != nil {
			return nil, err
		}
	}

	expr := aggExpr
	if minCount > 0 {
		if w, ok := resolved.(*Window); ok {
			if w.minValues != minCount {
				return nil, fmt.Errorf("%w: min count %d conflicts with window min values %d",
					ErrConfigurationConflict, minCount, w.minValues)
			}
		} else {
			count, err := s.Count(resolved)
			if err != nil {
				return nil, err
			}
			expr = expression.Construct(expression.Plain,
				"CASE WHEN {} >= "+strconv.Itoa(minCount)+" THEN {} ELSE NULL END",
				count.expr, expr)
		}
	}

	derivedDtype := dtype
	if derivedDtype == "" {
		derivedDtype = s.dtype
	}

	if w, ok := resolved.(*Window); ok {
		return s.copyOverride(seriesOverride{dtype: derivedDtype, expr: w.GetWindowExpression(expr)}), nil
	}

	g, ok := resolved.(*GroupBy)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported partition type %T", ErrIncompatibleContext, resolved)
	}
	if s.groupBy != nil && !s.groupBy.Equals(g) {
		return nil, fmt.Errorf("%w: passed partition does not match the series' pending group-by",
			ErrIncompatibleContext)
	}
	// The min-count guard may have wrapped the aggregate, so check the tree,
	// not the outermost node.
	if !expr.HasAggregateFunction() {
		return nil, fmt.Errorf("aggregation expression for column %q must contain an aggregate function", s.name)
	}
	if len(g.index) == 0 {
		// aggregating everything always yields exactly one row
		expr = expression.WithKind(expression.SingleValue, expr)
	}
	idx := g.Index()
	return s.copyOverride(seriesOverride{
		dtype:   derivedDtype,
		index:   &idx,
		groupBy: groupByOverride(g),
		expr:    expr,
	}), nil
}

func (s *Series) namedAggFunc(partition Partition, function, dtype string) (*Series, error) {
	expr := expression.Construct(expression.AggregateFunction, function+"({})", s.expr)
	return s.derivedAggFunc(partition, expr, dtype, 0)
}

// Count counts the non-null values per partition. The result is never
// constant, even over a constant series: it depends on the number of rows
// selected.
func (s *Series) Count(partition Partition) (*Series, error) {
	return s.namedAggFunc(partition, "count", "int64")
}

// Max returns the largest value per partition.
func (s *Series) Max(partition Partition) (*Series, error) {
	return s.namedAggFunc(partition, "max", "")
}

// Min returns the smallest value per partition.
func (s *Series) Min(partition Partition) (*Series, error) {
	return s.namedAggFunc(partition, "min", "")
}

// Median returns the discrete 50th percentile per partition.
func (s *Series) Median(partition Partition) (*Series, error) {
	expr := expression.Construct(expression.AggregateFunction,
		"percentile_disc(0.5) WITHIN GROUP (ORDER BY {})", s.expr)
	return s.derivedAggFunc(partition, expr, "", 0)
}

// Mode returns the most frequent value per partition.
func (s *Series) Mode(partition Partition) (*Series, error) {
	expr := expression.Construct(expression.AggregateFunction,
		"mode() within group (order by {})", s.expr)
	return s.derivedAggFunc(partition, expr, "", 0)
}

// Nunique counts the distinct values per partition. Windows are not
// supported.
func (s *Series) Nunique(partition Partition) (*Series, error) {
	if partition != nil {
		resolved, err := partition.resolvePartition()
		if err != nil {
			return nil, err
		}
		if _, ok := resolved.(*Window); ok {
			return nil, fmt.Errorf("%w: nunique over a window", ErrNotImplemented)
		}
		partition = resolved
	}
	expr := expression.Construct(expression.AggregateFunction, "count(distinct {})", s.expr)
	return s.derivedAggFunc(partition, expr, "int64", 0)
}

func (s *Series) requireNumeric(operation string) error {
	if s.dtype != "int64" && s.dtype != "float64" {
		return fmt.Errorf("%w: %s for dtype %s", ErrNotImplemented, operation, s.dtype)
	}
	return nil
}

// Sum adds the values per partition; numeric dtypes only. When minCount is
// positive the result is NULL unless at least that many non-null values
// participate. For a true window the guard must instead be expressed as the
// window's own min-values setting; a mismatch between the two is a
// configuration error.
func (s *Series) Sum(partition Partition, minCount int) (*Series, error) {
	if err := s.requireNumeric("sum"); err != nil {
		return nil, err
	}
	expr := expression.Construct(expression.AggregateFunction, "sum({})", s.expr)
	return s.derivedAggFunc(partition, expr, "", minCount)
}

// Mean averages the values per partition; numeric dtypes only.
func (s *Series) Mean(partition Partition) (*Series, error) {
	if err := s.requireNumeric("mean"); err != nil {
		return nil, err
	}
	expr := expression.Construct(expression.AggregateFunction, "avg({})", s.expr)
	return s.derivedAggFunc(partition, expr, "float64", 0)
}

// checkWindow validates that the given partition is a true window.
func (s *Series) checkWindow(window Partition) (*Window, error) {
	if window == nil {
		return nil, fmt.Errorf("%w: window functions need a window partition", ErrIncompatibleContext)
	}
	resolved, err := window.resolvePartition()
	if err != nil {
		return nil, err
	}
	w, ok := resolved.(*Window)
	if !ok {
		return nil, fmt.Errorf("%w: window functions need a window partition, got %T",
			ErrIncompatibleContext, resolved)
	}
	return w, nil
}

// WindowRowNumber numbers the rows within their window, counting from 1.
func (s *Series) WindowRowNumber(window Partition) (*Series, error) {
	w, err := s.checkWindow(window)
	if err != nil {
		return nil, err
	}
	return s.derivedAggFunc(w, expression.Construct(expression.Plain, "row_number()"), "int64", 0)
}

// WindowRank returns the rank of the current row with gaps: the row number
// of the first row in its peer group.
func (s *Series) WindowRank(window Partition) (*Series, error) {
	w, err := s.checkWindow(window)
	if err != nil {
		return nil, err
	}
	return s.derivedAggFunc(w, expression.Construct(expression.Plain, "rank()"), "int64", 0)
}

// WindowDenseRank returns the rank of the current row without gaps; it
// effectively counts peer groups.
func (s *Series) WindowDenseRank(window Partition) (*Series, error) {
	w, err := s.checkWindow(window)
	if err != nil {
		return nil, err
	}
	return s.derivedAggFunc(w, expression.Construct(expression.Plain, "dense_rank()"), "int64", 0)
}

// WindowPercentRank returns (rank - 1) / (total partition rows - 1), ranging
// from 0 to 1 inclusive.
func (s *Series) WindowPercentRank(window Partition) (*Series, error) {
	w, err := s.checkWindow(window)
	if err != nil {
		return nil, err
	}
	return s.derivedAggFunc(w, expression.Construct(expression.Plain, "percent_rank()"), "float64", 0)
}

// WindowCumeDist returns the cumulative distribution: rows preceding or
// peers with the current row over total partition rows, ranging from 1/N
// to 1.
func (s *Series) WindowCumeDist(window Partition) (*Series, error) {
	w, err := s.checkWindow(window)
	if err != nil {
		return nil, err
	}
	return s.derivedAggFunc(w, expression.Construct(expression.Plain, "cume_dist()"), "float64", 0)
}

// WindowNtile divides the partition into numBuckets as equally as possible
// and returns the bucket number, from 1 to numBuckets.
func (s *Series) WindowNtile(window Partition, numBuckets int) (*Series, error) {
	w, err := s.checkWindow(window)
	if err != nil {
		return nil, err
	}
	expr := expression.Construct(expression.Plain, "ntile("+strconv.Itoa(numBuckets)+")")
	return s.derivedAggFunc(w, expr, "int64", 0)
}

// WindowLag returns the value offset rows before the current row within the
// window, or defaultValue (which must encode in this series' dtype) when
// there is no such row.
func (s *Series) WindowLag(window Partition, offset int, defaultValue any) (*Series, error) {
	return s.windowShift(window, "lag", offset, defaultValue)
}

// WindowLead returns the value offset rows after the current row within the
// window, or defaultValue when there is no such row.
func (s *Series) WindowLead(window Partition, offset int, defaultValue any) (*Series, error) {
	return s.windowShift(window, "lead", offset, defaultValue)
}

func (s *Series) windowShift(window Partition, function string, offset int, defaultValue any) (*Series, error) {
	w, err := s.checkWindow(window)
	if err != nil {
		return nil, err
	}
	defaultExpr, err := valueToExpression(mustSeriesType(s.dtype), defaultValue)
	if err != nil {
		return nil, err
	}
	expr := expression.Construct(expression.Plain,
		function+"({}, "+strconv.Itoa(offset)+", {})", s.expr, defaultExpr)
	return s.derivedAggFunc(w, expr, s.dtype, 0)
}

// WindowFirstValue returns the value of the first row of the window frame.
func (s *Series) WindowFirstValue(window Partition) (*Series, error) {
	w, err := s.checkWindow(window)
	if err != nil {
		return nil, err
	}
	expr := expression.Construct(expression.Plain, "first_value({})", s.expr)
	return s.derivedAggFunc(w, expr, s.dtype, 0)
}

// WindowLastValue returns the value of the last row of the window frame.
func (s *Series) WindowLastValue(window Partition) (*Series, error) {
	w, err := s.checkWindow(window)
	if err != nil {
		return nil, err
	}
	expr := expression.Construct(expression.Plain, "last_value({})", s.expr)
	return s.derivedAggFunc(w, expr, s.dtype, 0)
}

// WindowNthValue returns the value of the n'th row of the window frame,
// counting from 1, or NULL if there is no such row.
func (s *Series) WindowNthValue(window Partition, n int) (*Series, error) {
	w, err := s.checkWindow(window)
	if err != nil {
		return nil, err
	}
	expr := expression.Construct(expression.Plain, "nth_value({}, "+strconv.Itoa(n)+")", s.expr)
	return s.derivedAggFunc(w, expr, s.dtype, 0)
}

// ToFrame creates a single-column DataFrame carrying this series' index,
// pending group-by and sorting.
func (s *Series) ToFrame() *DataFrame {
	var orderBy []SortColumn
	if s.sortedAscending != nil {
		orderBy = []SortColumn{{expr: s.expr, ascending: *s.sortedAscending}}
	}
	return &DataFrame{
		db:       s.db,
		baseNode: s.baseNode,
		index:    s.Index(),
		series:   []*Series{s},
		groupBy:  s.groupBy,
		orderBy:  orderBy,
	}
}

// Value queries the database for the single value this series represents.
// It fails without touching the database when the expression is not
// guaranteed to yield exactly one value.
func (s *Series) Value(ctx context.Context) (any, error) {
	if !s.expr.IsSingleValue() {
		return nil, fmt.Errorf("value accessor is only supported for single-value expressions")
	}
	df := s.ToFrame()
	m, err := df.compile(nil, nil, 1)
	if err != nil {
		return nil, err
	}
	query, err := m.ToSQL()
	if err != nil {
		return nil, err
	}
	dest := make([]any, len(df.index)+1)
	for i := range dest {
		dest[i] = new(any)
	}
	if err := s.db.sqldb.QueryRowContext(ctx, query).Scan(dest...); err != nil {
		return nil, err
	}
	return *(dest[len(dest)-1].(*any)), nil
}
