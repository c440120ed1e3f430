// Copyright 2026 the objectiv-analytics authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package bach

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/miike/objectiv-analytics/internal/expression"
)

// int64SeriesType implements SeriesType for integer data. All integers are
// treated as 64-bit; smaller Go values widen on the way in.
type int64SeriesType struct{}

func (int64SeriesType) Dtype() string { return "int64" }

func (int64SeriesType) Aliases() []string { return []string{"int", "integer", "bigint"} }

func (int64SeriesType) SupportedValueToExpression(value any) (*expression.Expression, error) {
	var v int64
	switch value := value.(type) {
	case int:
		v = int64(value)
	case int32:
		v = int64(value)
	case int64:
		v = value
	default:
		return nil, fmt.Errorf("%w: int64 series cannot hold a value of type %T", ErrTypeMismatch, value)
	}
	return expression.Raw(strconv.FormatInt(v, 10)), nil
}

func (int64SeriesType) DtypeToExpression(sourceDtype string, expr *expression.Expression) (*expression.Expression, error) {
	switch sourceDtype {
	case "int64":
		return expr, nil
	case "float64", "bool", "string":
		return expression.Construct(expression.Plain, "cast({} as bigint)", expr), nil
	}
	return nil, fmt.Errorf("%w: cannot cast %s to int64", ErrTypeMismatch, sourceDtype)
}

func (int64SeriesType) arithmetic(operation string) (operationRule, bool) {
	switch operation {
	case "add", "sub", "mul", "pow", "floordiv":
		return operationRule{
			otherDtypes:    []string{"int64", "float64"},
			resultDtypeMap: map[string]string{"float64": "float64"},
		}, true
	case "div":
		// force a fractional result even for two integers
		return operationRule{
			format:      "cast({} as float) / ({})",
			otherDtypes: []string{"int64", "float64"},
			resultDtype: "float64",
		}, true
	}
	return operationRule{}, false
}

func (int64SeriesType) comparison() (operationRule, bool) {
	return operationRule{otherDtypes: []string{"int64", "float64"}}, true
}

// float64SeriesType implements SeriesType for double-precision data.
type float64SeriesType struct{}

func (float64SeriesType) Dtype() string { return "float64" }

func (float64SeriesType) Aliases() []string { return []string{"float", "double", "double precision"} }

func (float64SeriesType) SupportedValueToExpression(value any) (*expression.Expression, error) {
	var v float64
	switch value := value.(type) {
	case float32:
		v = float64(value)
	case float64:
		v = value
	case int:
		v = float64(value)
	case int64:
		v = float64(value)
	default:
		return nil, fmt.Errorf("%w: float64 series cannot hold a value of type %T", ErrTypeMismatch, value)
	}
	literal := strconv.FormatFloat(v, 'g', -1, 64)
	// whole numbers still need to read as floats in SQL
	if !strings.ContainsAny(literal, ".eE") {
		literal += ".0"
	}
	return expression.Raw(literal), nil
}

func (float64SeriesType) DtypeToExpression(sourceDtype string, expr *expression.Expression) (*expression.Expression, error) {
	switch sourceDtype {
	case "float64":
		return expr, nil
	case "int64", "bool", "string":
		return expression.Construct(expression.Plain, "cast({} as double precision)", expr), nil
	}
	return nil, fmt.Errorf("%w: cannot cast %s to float64", ErrTypeMismatch, sourceDtype)
}

func (float64SeriesType) arithmetic(operation string) (operationRule, bool) {
	switch operation {
	case "add", "sub", "mul", "div", "pow", "floordiv":
		return operationRule{otherDtypes: []string{"int64", "float64"}}, true
	}
	return operationRule{}, false
}

func (float64SeriesType) comparison() (operationRule, bool) {
	return operationRule{otherDtypes: []string{"int64", "float64"}}, true
}
