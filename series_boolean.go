// Copyright 2026 the objectiv-analytics authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package bach

import (
	"fmt"

	"github.com/miike/objectiv-analytics/internal/expression"
)

// boolSeriesType implements SeriesType for boolean data.
type boolSeriesType struct{}

func (boolSeriesType) Dtype() string { return "bool" }

func (boolSeriesType) Aliases() []string { return []string{"boolean"} }

func (boolSeriesType) SupportedValueToExpression(value any) (*expression.Expression, error) {
	v, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: bool series cannot hold a value of type %T", ErrTypeMismatch, value)
	}
	if v {
		return expression.Raw("true"), nil
	}
	return expression.Raw("false"), nil
}

func (boolSeriesType) DtypeToExpression(sourceDtype string, expr *expression.Expression) (*expression.Expression, error) {
	switch sourceDtype {
	case "bool":
		return expr, nil
	case "int64", "string":
		return expression.Construct(expression.Plain, "cast({} as boolean)", expr), nil
	}
	return nil, fmt.Errorf("%w: cannot cast %s to bool", ErrTypeMismatch, sourceDtype)
}

func (boolSeriesType) arithmetic(string) (operationRule, bool) {
	return operationRule{}, false
}

func (boolSeriesType) comparison() (operationRule, bool) {
	return operationRule{otherDtypes: []string{"bool"}}, true
}
