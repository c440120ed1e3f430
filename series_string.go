// Copyright 2026 the objectiv-analytics authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package bach

import (
	"fmt"

	"github.com/miike/objectiv-analytics/internal/expression"
)

// stringSeriesType implements SeriesType for text data.
type stringSeriesType struct{}

func (stringSeriesType) Dtype() string { return "string" }

func (stringSeriesType) Aliases() []string { return []string{"str", "text"} }

func (stringSeriesType) SupportedValueToExpression(value any) (*expression.Expression, error) {
	v, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%w: string series cannot hold a value of type %T", ErrTypeMismatch, value)
	}
	return expression.StringValue(v), nil
}

// DtypeToExpression casts from any dtype; every type renders as text.
func (stringSeriesType) DtypeToExpression(sourceDtype string, expr *expression.Expression) (*expression.Expression, error) {
	if sourceDtype == "string" {
		return expr, nil
	}
	return expression.Construct(expression.Plain, "cast({} as text)", expr), nil
}

func (stringSeriesType) arithmetic(operation string) (operationRule, bool) {
	if operation == "add" {
		// concatenation
		return operationRule{format: "{} || {}", otherDtypes: []string{"string"}}, true
	}
	return operationRule{}, false
}

func (stringSeriesType) comparison() (operationRule, bool) {
	return operationRule{otherDtypes: []string{"string"}}, true
}
