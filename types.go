// Copyright 2026 the objectiv-analytics authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package bach

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/miike/objectiv-analytics/internal/expression"
)

// SeriesType describes the per-dtype behavior of a Series: how Go values
// become SQL literals, how casts between dtypes are expressed, and which
// operations the dtype supports against which right-hand dtypes.
type SeriesType interface {
	// Dtype uniquely identifies the type among all registered types.
	Dtype() string

	// Aliases lists the alternative names accepted wherever a dtype name is
	// expected.
	Aliases() []string

	// SupportedValueToExpression returns the literal expression for value.
	// Implementations are responsible for quoting and escaping, and only
	// need to support the Go types that map to this dtype.
	SupportedValueToExpression(value any) (*expression.Expression, error)

	// DtypeToExpression returns the expression converting expr from
	// sourceDtype to this type.
	DtypeToExpression(sourceDtype string, expr *expression.Expression) (*expression.Expression, error)

	// arithmetic returns the rule for the named arithmetic operation, or
	// false when the dtype does not support it.
	arithmetic(operation string) (operationRule, bool)

	// comparison returns the rule shared by all comparison operations, or
	// false when the dtype cannot be compared.
	comparison() (operationRule, bool)
}

// operationRule declares which right-hand dtypes an operation accepts and
// what it produces.
type operationRule struct {
	// format overrides the operation's default template when set.
	format string
	// otherDtypes lists the accepted right-hand dtypes.
	otherDtypes []string
	// resultDtype fixes the result dtype; empty keeps the left-hand dtype.
	resultDtype string
	// resultDtypeMap maps right-hand dtype to result dtype; dtypes not in
	// the map keep the left-hand dtype. Takes precedence over resultDtype.
	resultDtypeMap map[string]string
}

// seriesTypes is the closed set of supported types.
var seriesTypes = []SeriesType{
	boolSeriesType{},
	int64SeriesType{},
	float64SeriesType{},
	stringSeriesType{},
	timestampSeriesType{},
	uuidSeriesType{},
}

var seriesTypeByName = func() map[string]SeriesType {
	byName := make(map[string]SeriesType)
	for _, st := range seriesTypes {
		byName[st.Dtype()] = st
		for _, alias := range st.Aliases() {
			byName[alias] = st
		}
	}
	return byName
}()

// getSeriesType resolves a dtype name or alias, case-insensitively.
func getSeriesType(dtype string) (SeriesType, error) {
	st, ok := seriesTypeByName[strings.ToLower(dtype)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown dtype %q", ErrTypeMismatch, dtype)
	}
	return st, nil
}

// mustSeriesType is getSeriesType for dtypes that have been validated
// before; an unknown dtype here is a bug in this package.
func mustSeriesType(dtype string) SeriesType {
	st, err := getSeriesType(dtype)
	if err != nil {
		panic(err)
	}
	return st
}

// valueToDtype infers the dtype representing a Go value.
func valueToDtype(value any) (string, error) {
	switch value.(type) {
	case bool:
		return "bool", nil
	case int, int32, int64:
		return "int64", nil
	case float32, float64:
		return "float64", nil
	case string:
		return "string", nil
	case time.Time:
		return "timestamp", nil
	case uuid.UUID:
		return "uuid", nil
	}
	return "", fmt.Errorf("%w: no dtype for value of type %T", ErrTypeMismatch, value)
}

// valueToExpression turns a Go value into a literal expression of the given
// type. A nil value encodes as NULL for every type.
func valueToExpression(st SeriesType, value any) (*expression.Expression, error) {
	if value == nil {
		return expression.Raw("NULL"), nil
	}
	return st.SupportedValueToExpression(value)
}
