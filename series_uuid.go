// Copyright 2026 the objectiv-analytics authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package bach

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/miike/objectiv-analytics/internal/expression"
)

// uuidSeriesType implements SeriesType for UUID data. String values are
// validated before they are encoded.
type uuidSeriesType struct{}

func (uuidSeriesType) Dtype() string { return "uuid" }

func (uuidSeriesType) Aliases() []string { return nil }

func (uuidSeriesType) SupportedValueToExpression(value any) (*expression.Expression, error) {
	var u uuid.UUID
	switch value := value.(type) {
	case uuid.UUID:
		u = value
	case string:
		parsed, err := uuid.Parse(value)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot parse %q as a uuid: %v", ErrTypeMismatch, value, err)
		}
		u = parsed
	default:
		return nil, fmt.Errorf("%w: uuid series cannot hold a value of type %T", ErrTypeMismatch, value)
	}
	return expression.Construct(expression.Plain,
		"cast({} as uuid)", expression.StringValue(u.String())), nil
}

func (uuidSeriesType) DtypeToExpression(sourceDtype string, expr *expression.Expression) (*expression.Expression, error) {
	switch sourceDtype {
	case "uuid":
		return expr, nil
	case "string":
		return expression.Construct(expression.Plain, "cast({} as uuid)", expr), nil
	}
	return nil, fmt.Errorf("%w: cannot cast %s to uuid", ErrTypeMismatch, sourceDtype)
}

func (uuidSeriesType) arithmetic(string) (operationRule, bool) {
	return operationRule{}, false
}

func (uuidSeriesType) comparison() (operationRule, bool) {
	return operationRule{otherDtypes: []string{"uuid"}}, true
}
