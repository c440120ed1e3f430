// Copyright 2026 the objectiv-analytics authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package bach

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/miike/objectiv-analytics/internal/expression"
)

// Partition is accepted wherever an aggregation or window context is
// expected. It is implemented by GroupBy, Window and DataFrame; a DataFrame
// resolves to its pending group-by.
type Partition interface {
	resolvePartition() (Partition, error)
}

// GroupBy describes a pending aggregation partition: rows sharing the
// group-key values will aggregate into one output row, and the keys become
// the index of the aggregated result.
type GroupBy struct {
	index []*Series
}

// NewGroupBy returns a partition grouping on the given key series. With no
// keys it describes aggregating the entire input into a single row.
func NewGroupBy(keys ...*Series) *GroupBy {
	return &GroupBy{index: append([]*Series(nil), keys...)}
}

// Index returns the group-key series forming the future row key.
func (g *GroupBy) Index() []*Series {
	return append([]*Series(nil), g.index...)
}

func (g *GroupBy) resolvePartition() (Partition, error) {
	return g, nil
}

// Equals reports structural equality of the group keys. The keys' own
// grouping context is not recursed into, see Series.equals.
func (g *GroupBy) Equals(other *GroupBy) bool {
	if g == nil || other == nil {
		return g == other
	}
	if len(g.index) != len(other.index) {
		return false
	}
	for i, s := range g.index {
		if !s.equals(other.index[i], recursionGroupBy) {
			return false
		}
	}
	return true
}

// SortColumn pairs an expression with a sort direction.
type SortColumn struct {
	expr      *expression.Expression
	ascending bool
}

// NewSortColumn returns a sort on the given series' expression.
func NewSortColumn(s *Series, ascending bool) SortColumn {
	return SortColumn{expr: s.expr, ascending: ascending}
}

// WindowFrameMode selects between ROWS and RANGE framing. In RANGE mode
// peer rows of the current row are always included in the frame.
type WindowFrameMode int

const (
	FrameModeRange WindowFrameMode = iota
	FrameModeRows
)

func (m WindowFrameMode) String() string {
	if m == FrameModeRows {
		return "ROWS"
	}
	return "RANGE"
}

type boundaryKind int

const (
	boundaryUnboundedPreceding boundaryKind = iota
	boundaryPreceding
	boundaryCurrentRow
	boundaryFollowing
	boundaryUnboundedFollowing
)

// WindowFrameBoundary is one end of a window frame. The zero value is
// UNBOUNDED PRECEDING.
type WindowFrameBoundary struct {
	kind   boundaryKind
	offset int
}

// UnboundedPreceding bounds the frame at the start of the partition.
func UnboundedPreceding() WindowFrameBoundary {
	return WindowFrameBoundary{kind: boundaryUnboundedPreceding}
}

// Preceding bounds the frame offset rows before the current row.
func Preceding(offset int) WindowFrameBoundary {
	return WindowFrameBoundary{kind: boundaryPreceding, offset: offset}
}

// CurrentRow bounds the frame at the current row.
func CurrentRow() WindowFrameBoundary {
	return WindowFrameBoundary{kind: boundaryCurrentRow}
}

// Following bounds the frame offset rows after the current row.
func Following(offset int) WindowFrameBoundary {
	return WindowFrameBoundary{kind: boundaryFollowing, offset: offset}
}

// UnboundedFollowing bounds the frame at the end of the partition.
func UnboundedFollowing() WindowFrameBoundary {
	return WindowFrameBoundary{kind: boundaryUnboundedFollowing}
}

func (b WindowFrameBoundary) clause() string {
	switch b.kind {
	case boundaryUnboundedPreceding:
		return "UNBOUNDED PRECEDING"
	case boundaryPreceding:
		return strconv.Itoa(b.offset) + " PRECEDING"
	case boundaryCurrentRow:
		return "CURRENT ROW"
	case boundaryFollowing:
		return strconv.Itoa(b.offset) + " FOLLOWING"
	default:
		return "UNBOUNDED FOLLOWING"
	}
}

// WindowFrame describes the set of rows a window function sees relative to
// the current row. The zero value means the default frame:
// RANGE BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW.
type WindowFrame struct {
	Mode  WindowFrameMode
	Start WindowFrameBoundary
	End   WindowFrameBoundary
}

// DefaultFrame returns the default window frame.
func DefaultFrame() WindowFrame {
	return WindowFrame{Mode: FrameModeRange, Start: UnboundedPreceding(), End: CurrentRow()}
}

func (f WindowFrame) validate() error {
	if f.Start.kind > f.End.kind {
		return fmt.Errorf("%w: frame start boundary must not come after the end boundary",
			ErrConfigurationConflict)
	}
	if f.Start.kind == boundaryUnboundedFollowing {
		return fmt.Errorf("%w: frame cannot start at unbounded following", ErrConfigurationConflict)
	}
	if f.End.kind == boundaryUnboundedPreceding {
		return fmt.Errorf("%w: frame cannot end at unbounded preceding", ErrConfigurationConflict)
	}
	for _, b := range []WindowFrameBoundary{f.Start, f.End} {
		switch b.kind {
		case boundaryPreceding, boundaryFollowing:
			if b.offset <= 0 {
				return fmt.Errorf("%w: frame offsets must be positive", ErrConfigurationConflict)
			}
			if f.Mode == FrameModeRange {
				return fmt.Errorf("%w: RANGE framing only supports unbounded and current-row boundaries",
					ErrConfigurationConflict)
			}
		}
	}
	return nil
}

func (f WindowFrame) clause() string {
	return f.Mode.String() + " BETWEEN " + f.Start.clause() + " AND " + f.End.clause()
}

// Window describes a window-function partition: functions evaluate per row
// over a frame of related rows, as opposed to a GroupBy which reduces the
// rows. A windowed series therefore keeps its original per-row index.
type Window struct {
	GroupBy
	orderBy   []SortColumn
	frame     WindowFrame
	minValues int
}

// NewWindow returns a window partitioned on the given key series, with rows
// within a partition ordered by orderBy. A zero frame means the default
// frame. When minValues is positive, window aggregates yield NULL unless
// the frame holds at least that many rows.
func NewWindow(keys []*Series, orderBy []SortColumn, frame WindowFrame, minValues int) (*Window, error) {
	if frame == (WindowFrame{}) {
		frame = DefaultFrame()
	}
	if err := frame.validate(); err != nil {
		return nil, err
	}
	if minValues < 0 {
		return nil, fmt.Errorf("%w: negative window min values", ErrConfigurationConflict)
	}
	return &Window{
		GroupBy:   GroupBy{index: append([]*Series(nil), keys...)},
		orderBy:   append([]SortColumn(nil), orderBy...),
		frame:     frame,
		minValues: minValues,
	}, nil
}

func (w *Window) resolvePartition() (Partition, error) {
	return w, nil
}

// MinValues returns the minimum frame size before aggregates yield a value.
func (w *Window) MinValues() int {
	return w.minValues
}

// Frame returns the window's frame specification.
func (w *Window) Frame() WindowFrame {
	return w.frame
}

// GetWindowExpression wraps a window-function expression in its OVER
// clause. With min values set, the result is guarded to NULL unless the
// frame holds enough rows.
func (w *Window) GetWindowExpression(fn *expression.Expression) *expression.Expression {
	over := w.overExpression()
	if w.minValues <= 0 {
		return expression.Construct(expression.Windowed, "{} over ({})", fn, over)
	}
	format := "case when (count(*) over ({})) >= " + strconv.Itoa(w.minValues) +
		" then {} over ({}) else NULL end"
	return expression.Construct(expression.Windowed, format, over, fn, over)
}

func (w *Window) overExpression() *expression.Expression {
	var parts []string
	var args []*expression.Expression
	if len(w.index) > 0 {
		exprs := make([]*expression.Expression, len(w.index))
		for i, s := range w.index {
			exprs[i] = s.expr
		}
		parts = append(parts, "partition by {}")
		args = append(args, joinExpressions(exprs, ", "))
	}
	if len(w.orderBy) > 0 {
		parts = append(parts, "order by {}")
		args = append(args, orderByExpression(w.orderBy))
	}
	parts = append(parts, w.frame.clause())
	return expression.Construct(expression.Plain, strings.Join(parts, " "), args...)
}

// joinExpressions combines expressions into one, separated by sep.
func joinExpressions(exprs []*expression.Expression, sep string) *expression.Expression {
	format := strings.TrimSuffix(strings.Repeat("{}"+sep, len(exprs)), sep)
	return expression.Construct(expression.Plain, format, exprs...)
}

func orderByExpression(orderBy []SortColumn) *expression.Expression {
	exprs := make([]*expression.Expression, len(orderBy))
	for i, sc := range orderBy {
		direction := "desc"
		if sc.ascending {
			direction = "asc"
		}
		exprs[i] = expression.Construct(expression.Plain, "{} "+direction, sc.expr)
	}
	return joinExpressions(exprs, ", ")
}
