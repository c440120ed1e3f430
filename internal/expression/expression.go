// Copyright 2026 the objectiv-analytics authors.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package expression models fragments of SQL as immutable trees of typed
// tokens.
//
// Storing a SQL fragment as a token tree rather than a string makes it
// possible to rewrite it after construction: column references can be
// resolved to (optionally table-qualified) identifiers, and references to
// other compiled query units render as placeholders that are substituted
// once those units are final. The package does not tokenize SQL; there are
// only the few token kinds the engine needs, and most SQL travels as raw
// text.
package expression

import (
	"fmt"
	"strings"

	"github.com/miike/objectiv-analytics/internal/sqlmodel"
)

// Kind tags an Expression with composition semantics. The tag applies to the
// expression node itself and is not inherited from or propagated to nested
// expressions.
type Kind uint8

const (
	// Plain carries no extra semantics.
	Plain Kind = iota
	// NonAtomic marks an expression that needs parentheses around it when
	// substituted into another expression via Construct.
	NonAtomic
	// IndependentSubquery marks a value computable without correlation to
	// the current row context.
	IndependentSubquery
	// SingleValue marks an expression guaranteed to yield exactly one value.
	SingleValue
	// Const marks a single-value expression that is a literal constant.
	Const
	// AggregateFunction marks an expression whose outermost operation is an
	// aggregate function.
	AggregateFunction
	// Windowed marks an expression wrapped in a window-function OVER clause.
	Windowed
)

// Model is the contract a compiled query unit must satisfy to be referenced
// from an expression. The expression layer never inspects a model beyond its
// content-derived hash.
type Model interface {
	Hash() string
}

// Element is either a Token or a nested *Expression.
type Element interface {
	// String returns a representation of the element for debugging and
	// testing purposes.
	String() string

	// element is a marker method.
	element()
}

// Token is a leaf element of an Expression.
type Token interface {
	Element

	// token is a marker method.
	token()
}

// RawToken holds opaque SQL text that is emitted verbatim.
type RawToken struct {
	Raw string
}

func (t RawToken) String() string { return "Raw[" + t.Raw + "]" }
func (t RawToken) element()       {}
func (t RawToken) token()         {}

// AggFunctionRawToken holds raw SQL text that contains an aggregate function
// call. It renders exactly like RawToken; the distinct type only feeds the
// HasAggregateFunction property.
type AggFunctionRawToken struct {
	Raw string
}

func (t AggFunctionRawToken) String() string { return "AggFunctionRaw[" + t.Raw + "]" }
func (t AggFunctionRawToken) element()       {}
func (t AggFunctionRawToken) token()         {}

// ColumnReferenceToken is an unresolved reference to a column. It must be
// replaced through ResolveColumnReferences before the expression renders.
type ColumnReferenceToken struct {
	ColumnName string
}

func (t ColumnReferenceToken) String() string { return "ColumnReference[" + t.ColumnName + "]" }
func (t ColumnReferenceToken) element()       {}
func (t ColumnReferenceToken) token()         {}

// ModelReferenceToken references another compiled query unit. It renders as a
// placeholder keyed by the unit's hash, substituted later by the model layer.
type ModelReferenceToken struct {
	Model Model
}

// RefName returns the placeholder name under which the referenced model is
// substituted.
func (t ModelReferenceToken) RefName() string { return "reference" + t.Model.Hash() }

func (t ModelReferenceToken) String() string { return "ModelReference[" + t.RefName() + "]" }
func (t ModelReferenceToken) element()       {}
func (t ModelReferenceToken) token()         {}

// StringValueToken holds a string literal. The value is unescaped and
// unquoted; quoting happens at render time.
type StringValueToken struct {
	Value string
}

func (t StringValueToken) String() string { return "StringValue[" + t.Value + "]" }
func (t StringValueToken) element()       {}
func (t StringValueToken) token()         {}

// Expression is an immutable ordered sequence of tokens and nested
// expressions representing a SQL fragment.
type Expression struct {
	kind  Kind
	elems []Element
}

// New returns an Expression of the given kind over the given elements.
// Child expressions stay nested; splicing them in place would hide their
// tags and their token structure from the derived properties.
func New(kind Kind, elems ...Element) *Expression {
	return &Expression{kind: kind, elems: append([]Element(nil), elems...)}
}

// WithKind returns e wrapped in a new node tagged with the given kind. The
// original node keeps its own tag, so properties derived from it survive
// retagging.
func WithKind(kind Kind, e *Expression) *Expression {
	return New(kind, e)
}

// Raw returns a plain expression holding a single RawToken.
func Raw(raw string) *Expression {
	return New(Plain, RawToken{Raw: raw})
}

// AggFunctionRaw returns a plain expression holding a single
// AggFunctionRawToken.
func AggFunctionRaw(raw string) *Expression {
	return New(Plain, AggFunctionRawToken{Raw: raw})
}

// StringValue returns a plain expression holding a single string literal.
// value is the unquoted, unescaped string.
func StringValue(value string) *Expression {
	return New(Plain, StringValueToken{Value: value})
}

// ColumnReference returns a plain expression referencing the named column.
func ColumnReference(columnName string) *Expression {
	return New(Plain, ColumnReferenceToken{ColumnName: columnName})
}

// ModelReference returns a plain expression referencing the given compiled
// query unit.
func ModelReference(m Model) *Expression {
	return New(Plain, ModelReferenceToken{Model: m})
}

// Construct builds an expression from a format string. Every "{}" in format
// is replaced with the corresponding operand, in order; the text between
// markers becomes raw tokens. NonAtomic operands are wrapped in literal
// parentheses so that operator precedence survives substitution.
//
// Construct panics if the number of markers does not match the number of
// operands; templates are compile-time constants and a mismatch is a
// programming error.
func Construct(kind Kind, format string, args ...*Expression) *Expression {
	subs := strings.Split(format, "{}")
	if len(args) != len(subs)-1 {
		panic(fmt.Sprintf("expression: format %q expects %d operands, got %d", format, len(subs)-1, len(args)))
	}
	var elems []Element
	for i, sub := range subs {
		if i > 0 {
			arg := args[i-1]
			if arg.kind == NonAtomic {
				elems = append(elems, RawToken{Raw: "("}, arg, RawToken{Raw: ")"})
			} else {
				elems = append(elems, arg)
			}
		}
		if sub != "" {
			elems = append(elems, RawToken{Raw: sub})
		}
	}
	return New(kind, elems...)
}

// Kind returns the tag of this expression node.
func (e *Expression) Kind() Kind { return e.kind }

// Elements returns a copy of the element sequence.
func (e *Expression) Elements() []Element {
	return append([]Element(nil), e.elems...)
}

func (e *Expression) element() {}

// String returns the debug form of the expression.
func (e *Expression) String() string {
	parts := make([]string, len(e.elems))
	for i, el := range e.elems {
		parts[i] = el.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// ResolveColumnReferences returns a copy of the expression in which every
// column reference is replaced by a quoted identifier, table-qualified when
// tableName is not empty. The result contains no ColumnReferenceTokens, so
// resolving again is a no-op.
func (e *Expression) ResolveColumnReferences(tableName string) *Expression {
	resolved := make([]Element, 0, len(e.elems))
	for _, el := range e.elems {
		switch v := el.(type) {
		case *Expression:
			resolved = append(resolved, v.ResolveColumnReferences(tableName))
		case ColumnReferenceToken:
			qualified := sqlmodel.QuoteIdentifier(v.ColumnName)
			if tableName != "" {
				qualified = sqlmodel.QuoteIdentifier(tableName) + "." + qualified
			}
			resolved = append(resolved, RawToken{Raw: qualified})
		default:
			resolved = append(resolved, el)
		}
	}
	return &Expression{kind: e.kind, elems: resolved}
}

// IsConstant reports whether the fragment is a literal constant with no
// column dependency: either tagged Const, or composed purely of constant
// subexpressions. Aggregates are never constant; they depend on the number
// of input rows.
func (e *Expression) IsConstant() bool {
	switch e.kind {
	case Const:
		return true
	case AggregateFunction, Windowed:
		return false
	}
	children := 0
	for _, el := range e.elems {
		if child, ok := el.(*Expression); ok {
			if !child.IsConstant() {
				return false
			}
			children++
		}
	}
	return children > 0
}

// IsSingleValue reports whether the fragment is guaranteed to yield exactly
// one value: either tagged SingleValue (or Const), or composed purely of
// single-value subexpressions.
func (e *Expression) IsSingleValue() bool {
	switch e.kind {
	case SingleValue, Const:
		return true
	}
	children := 0
	for _, el := range e.elems {
		if child, ok := el.(*Expression); ok {
			if !child.IsSingleValue() {
				return false
			}
			children++
		}
	}
	return children > 0
}

// IsIndependentSubquery reports whether this node itself is tagged as an
// independent subquery. The tag is not propagated from nested expressions.
func (e *Expression) IsIndependentSubquery() bool {
	return e.kind == IndependentSubquery
}

// HasAggregateFunction reports whether the fragment contains an aggregate
// function that still needs a GROUP BY to evaluate. A Windowed node hides
// the aggregates it wraps: they are evaluated by the window, not by a group.
func (e *Expression) HasAggregateFunction() bool {
	switch e.kind {
	case AggregateFunction:
		return true
	case Windowed:
		return false
	}
	for _, el := range e.elems {
		switch v := el.(type) {
		case *Expression:
			if v.HasAggregateFunction() {
				return true
			}
		case AggFunctionRawToken:
			return true
		}
	}
	return false
}

// HasWindowedAggregateFunction reports whether the fragment contains a
// window function application anywhere.
func (e *Expression) HasWindowedAggregateFunction() bool {
	if e.kind == Windowed {
		return true
	}
	for _, el := range e.elems {
		if child, ok := el.(*Expression); ok && child.HasWindowedAggregateFunction() {
			return true
		}
	}
	return false
}

// GetReferences collects all referenced compiled query units, keyed by their
// placeholder name. Multiple references to the same unit deduplicate.
func (e *Expression) GetReferences() map[string]Model {
	refs := make(map[string]Model)
	for _, el := range e.elems {
		switch v := el.(type) {
		case *Expression:
			for name, m := range v.GetReferences() {
				refs[name] = m
			}
		case ModelReferenceToken:
			refs[v.RefName()] = v.Model
		}
	}
	return refs
}

// ToSQL renders the fragment to SQL text, table-qualifying column references
// when tableName is not empty. Raw text and string literals are format
// escaped, so literal braces never collide with the {name} placeholders
// emitted for model references; the model layer substitutes those once all
// referenced units are final.
//
// ToSQL panics on an unresolved column reference or an unknown element kind;
// both indicate a bug, not a user error.
func (e *Expression) ToSQL(tableName string) string {
	var sb strings.Builder
	for _, el := range e.ResolveColumnReferences(tableName).elems {
		switch v := el.(type) {
		case *Expression:
			sb.WriteString(v.ToSQL(""))
		case ColumnReferenceToken:
			panic("expression: unresolved column reference at render time")
		case ModelReferenceToken:
			sb.WriteString("{" + v.RefName() + "}")
		case RawToken:
			sb.WriteString(sqlmodel.EscapeFormatString(v.Raw))
		case AggFunctionRawToken:
			sb.WriteString(sqlmodel.EscapeFormatString(v.Raw))
		case StringValueToken:
			sb.WriteString(sqlmodel.EscapeFormatString(sqlmodel.QuoteString(v.Value)))
		default:
			panic(fmt.Sprintf("expression: unknown element type %T at render time", el))
		}
	}
	return sb.String()
}

// Equals reports equality over the flattened token sequence. Neither tags nor
// nesting participate: an expression wrapped by WithKind compares equal to the
// expression it wraps.
func (e *Expression) Equals(other *Expression) bool {
	if other == nil {
		return false
	}
	a := e.leafTokens(nil)
	b := other.leafTokens(nil)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !tokenEquals(a[i], b[i]) {
			return false
		}
	}
	return true
}

// leafTokens appends the expression's tokens to out in render order,
// descending through nested expressions.
func (e *Expression) leafTokens(out []Token) []Token {
	for _, el := range e.elems {
		if child, ok := el.(*Expression); ok {
			out = child.leafTokens(out)
			continue
		}
		out = append(out, el.(Token))
	}
	return out
}

func tokenEquals(a, b Token) bool {
	switch at := a.(type) {
	case RawToken:
		bt, ok := b.(RawToken)
		return ok && at == bt
	case AggFunctionRawToken:
		bt, ok := b.(AggFunctionRawToken)
		return ok && at == bt
	case ColumnReferenceToken:
		bt, ok := b.(ColumnReferenceToken)
		return ok && at == bt
	case StringValueToken:
		bt, ok := b.(StringValueToken)
		return ok && at == bt
	case ModelReferenceToken:
		bt, ok := b.(ModelReferenceToken)
		return ok && at.Model.Hash() == bt.Model.Hash()
	}
	return false
}
