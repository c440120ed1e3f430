// Copyright 2026 the objectiv-analytics authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package bach

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"

	"github.com/miike/objectiv-analytics/internal/expression"
)

const timestampLiteralFormat = "2006-01-02 15:04:05.999999"

// timestampSeriesType implements SeriesType for timestamps without a time
// zone. time.Time values are encoded in UTC; strings are parsed leniently,
// accepting most common date and datetime notations.
type timestampSeriesType struct{}

func (timestampSeriesType) Dtype() string { return "timestamp" }

func (timestampSeriesType) Aliases() []string { return []string{"datetime"} }

func (timestampSeriesType) SupportedValueToExpression(value any) (*expression.Expression, error) {
	var t time.Time
	switch value := value.(type) {
	case time.Time:
		t = value
	case string:
		parsed, err := dateparse.ParseAny(value)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot parse %q as a timestamp: %v", ErrTypeMismatch, value, err)
		}
		t = parsed
	default:
		return nil, fmt.Errorf("%w: timestamp series cannot hold a value of type %T", ErrTypeMismatch, value)
	}
	literal := t.UTC().Format(timestampLiteralFormat)
	return expression.Construct(expression.Plain,
		"cast({} as timestamp without time zone)", expression.StringValue(literal)), nil
}

func (timestampSeriesType) DtypeToExpression(sourceDtype string, expr *expression.Expression) (*expression.Expression, error) {
	switch sourceDtype {
	case "timestamp":
		return expr, nil
	case "string":
		return expression.Construct(expression.Plain, "cast({} as timestamp without time zone)", expr), nil
	}
	return nil, fmt.Errorf("%w: cannot cast %s to timestamp", ErrTypeMismatch, sourceDtype)
}

func (timestampSeriesType) arithmetic(string) (operationRule, bool) {
	return operationRule{}, false
}

func (timestampSeriesType) comparison() (operationRule, bool) {
	return operationRule{otherDtypes: []string{"timestamp", "string"}}, true
}
