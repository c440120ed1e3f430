// Copyright 2026 the objectiv-analytics authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package bach_test

import (
	"errors"

	. "gopkg.in/check.v1"

	bach "github.com/miike/objectiv-analytics"
)

type partitioningSuite struct{}

var _ = Suite(&partitioningSuite{})

func (s *partitioningSuite) TestGroupByEquals(c *C) {
	df := ordersFrame(c)
	city := column(c, df, "city")
	flag := column(c, df, "flag")

	c.Assert(bach.NewGroupBy(city).Equals(bach.NewGroupBy(city)), Equals, true)
	c.Assert(bach.NewGroupBy(city).Equals(bach.NewGroupBy(flag)), Equals, false)
	c.Assert(bach.NewGroupBy(city).Equals(bach.NewGroupBy(city, flag)), Equals, false)
	c.Assert(bach.NewGroupBy().Equals(bach.NewGroupBy()), Equals, true)

	var unset *bach.GroupBy
	c.Assert(unset.Equals(nil), Equals, true)
	c.Assert(unset.Equals(bach.NewGroupBy()), Equals, false)
}

func (s *partitioningSuite) TestWindowFrameValidation(c *C) {
	df := ordersFrame(c)
	city := column(c, df, "city")
	keys := []*bach.Series{city}

	// the zero frame means the default frame
	w, err := bach.NewWindow(keys, nil, bach.WindowFrame{}, 0)
	c.Assert(err, IsNil)
	c.Assert(w.Frame(), Equals, bach.DefaultFrame())

	rows := func(start, end bach.WindowFrameBoundary) bach.WindowFrame {
		return bach.WindowFrame{Mode: bach.FrameModeRows, Start: start, End: end}
	}

	_, err = bach.NewWindow(keys, nil, rows(bach.Preceding(2), bach.Following(2)), 0)
	c.Assert(err, IsNil)

	_, err = bach.NewWindow(keys, nil, rows(bach.CurrentRow(), bach.Preceding(1)), 0)
	c.Assert(err, ErrorMatches, ".*frame start boundary must not come after the end boundary")

	_, err = bach.NewWindow(keys, nil, rows(bach.UnboundedFollowing(), bach.UnboundedFollowing()), 0)
	c.Assert(err, ErrorMatches, ".*frame cannot start at unbounded following")

	_, err = bach.NewWindow(keys, nil, rows(bach.UnboundedPreceding(), bach.UnboundedPreceding()), 0)
	c.Assert(err, ErrorMatches, ".*frame cannot end at unbounded preceding")

	_, err = bach.NewWindow(keys, nil, rows(bach.Preceding(0), bach.CurrentRow()), 0)
	c.Assert(err, ErrorMatches, ".*frame offsets must be positive")

	_, err = bach.NewWindow(keys, nil,
		bach.WindowFrame{Mode: bach.FrameModeRange, Start: bach.Preceding(1), End: bach.CurrentRow()}, 0)
	c.Assert(err, ErrorMatches, ".*RANGE framing only supports unbounded and current-row boundaries")

	_, err = bach.NewWindow(keys, nil, bach.WindowFrame{}, -1)
	c.Assert(err, ErrorMatches, ".*negative window min values")
	c.Assert(errors.Is(err, bach.ErrConfigurationConflict), Equals, true)
}

func (s *partitioningSuite) TestWindowFunctions(c *C) {
	df := ordersFrame(c)
	city := column(c, df, "city")
	amount := column(c, df, "amount")

	w, err := bach.NewWindow([]*bach.Series{city},
		[]bach.SortColumn{bach.NewSortColumn(amount, true)}, bach.WindowFrame{}, 0)
	c.Assert(err, IsNil)

	over := `partition by "city" order by "amount" asc ` +
		`RANGE BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW`

	rn, err := amount.WindowRowNumber(w)
	c.Assert(err, IsNil)
	c.Assert(seriesSQL(rn), Equals, `row_number() over (`+over+`)`)
	c.Assert(rn.Dtype(), Equals, "int64")
	c.Assert(rn.Expression().HasWindowedAggregateFunction(), Equals, true)
	c.Assert(rn.Expression().HasAggregateFunction(), Equals, false)

	// the per-row index survives windowing
	c.Assert(rn.Index(), HasLen, 1)
	c.Assert(rn.Index()[0].Name(), Equals, "id")

	rank, err := amount.WindowRank(w)
	c.Assert(err, IsNil)
	c.Assert(seriesSQL(rank), Equals, `rank() over (`+over+`)`)

	dense, err := amount.WindowDenseRank(w)
	c.Assert(err, IsNil)
	c.Assert(seriesSQL(dense), Equals, `dense_rank() over (`+over+`)`)

	pct, err := amount.WindowPercentRank(w)
	c.Assert(err, IsNil)
	c.Assert(seriesSQL(pct), Equals, `percent_rank() over (`+over+`)`)
	c.Assert(pct.Dtype(), Equals, "float64")

	cume, err := amount.WindowCumeDist(w)
	c.Assert(err, IsNil)
	c.Assert(seriesSQL(cume), Equals, `cume_dist() over (`+over+`)`)

	ntile, err := amount.WindowNtile(w, 4)
	c.Assert(err, IsNil)
	c.Assert(seriesSQL(ntile), Equals, `ntile(4) over (`+over+`)`)

	lag, err := amount.WindowLag(w, 1, nil)
	c.Assert(err, IsNil)
	c.Assert(seriesSQL(lag), Equals, `lag("amount", 1, NULL) over (`+over+`)`)
	c.Assert(lag.Dtype(), Equals, "float64")

	lead, err := amount.WindowLead(w, 2, 0.0)
	c.Assert(err, IsNil)
	c.Assert(seriesSQL(lead), Equals, `lead("amount", 2, 0.0) over (`+over+`)`)

	first, err := amount.WindowFirstValue(w)
	c.Assert(err, IsNil)
	c.Assert(seriesSQL(first), Equals, `first_value("amount") over (`+over+`)`)

	last, err := amount.WindowLastValue(w)
	c.Assert(err, IsNil)
	c.Assert(seriesSQL(last), Equals, `last_value("amount") over (`+over+`)`)

	nth, err := amount.WindowNthValue(w, 3)
	c.Assert(err, IsNil)
	c.Assert(seriesSQL(nth), Equals, `nth_value("amount", 3) over (`+over+`)`)
}

func (s *partitioningSuite) TestWindowAggregates(c *C) {
	df := ordersFrame(c)
	city := column(c, df, "city")
	amount := column(c, df, "amount")

	w, err := bach.NewWindow([]*bach.Series{city}, nil, bach.WindowFrame{}, 0)
	c.Assert(err, IsNil)

	over := `partition by "city" RANGE BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW`

	sum, err := amount.Sum(w, 0)
	c.Assert(err, IsNil)
	c.Assert(seriesSQL(sum), Equals, `sum("amount") over (`+over+`)`)
	c.Assert(sum.Expression().HasAggregateFunction(), Equals, false)
	c.Assert(sum.Expression().HasWindowedAggregateFunction(), Equals, true)

	// a windowed result cannot be aggregated again
	_, err = sum.Sum(nil, 0)
	c.Assert(errors.Is(err, bach.ErrIllegalReaggregation), Equals, true)
	_, err = sum.WindowRowNumber(w)
	c.Assert(errors.Is(err, bach.ErrIllegalReaggregation), Equals, true)
}

func (s *partitioningSuite) TestWindowMinValues(c *C) {
	df := ordersFrame(c)
	city := column(c, df, "city")
	amount := column(c, df, "amount")

	w, err := bach.NewWindow([]*bach.Series{city}, nil, bach.WindowFrame{}, 2)
	c.Assert(err, IsNil)
	c.Assert(w.MinValues(), Equals, 2)

	over := `partition by "city" RANGE BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW`

	sum, err := amount.Sum(w, 2)
	c.Assert(err, IsNil)
	c.Assert(seriesSQL(sum), Equals,
		`case when (count(*) over (`+over+`)) >= 2 then sum("amount") over (`+over+`) else NULL end`)

	// the guard lives on the window; a conflicting min count is refused
	_, err = amount.Sum(w, 3)
	c.Assert(errors.Is(err, bach.ErrConfigurationConflict), Equals, true)

	// min values apply without a per-call min count too
	mean, err := amount.Mean(w)
	c.Assert(err, IsNil)
	c.Assert(seriesSQL(mean), Matches, `case when \(count\(\*\) over \(.*`)
}

func (s *partitioningSuite) TestWindowFunctionsNeedWindows(c *C) {
	df := ordersFrame(c)
	city := column(c, df, "city")
	amount := column(c, df, "amount")

	_, err := amount.WindowRowNumber(nil)
	c.Assert(errors.Is(err, bach.ErrIncompatibleContext), Equals, true)

	_, err = amount.WindowRank(bach.NewGroupBy(city))
	c.Assert(errors.Is(err, bach.ErrIncompatibleContext), Equals, true)

	w, err := bach.NewWindow([]*bach.Series{city}, nil, bach.WindowFrame{}, 0)
	c.Assert(err, IsNil)
	_, err = amount.Nunique(w)
	c.Assert(errors.Is(err, bach.ErrNotImplemented), Equals, true)
}
