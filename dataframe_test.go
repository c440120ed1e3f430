// Copyright 2026 the objectiv-analytics authors.
// Licensed under Apache 2.0, see LICENCE file for details.

package bach_test

import (
	"errors"

	. "gopkg.in/check.v1"

	bach "github.com/miike/objectiv-analytics"
)

type dataFrameSuite struct{}

var _ = Suite(&dataFrameSuite{})

func (s *dataFrameSuite) TestFromTableValidation(c *C) {
	db := bach.NewDB(nil)

	_, err := bach.FromTable(db, "t", nil, nil)
	c.Assert(err, ErrorMatches, `table "t" binding needs at least one column`)

	_, err = bach.FromTable(db, "t", []bach.ColumnDef{
		{Name: "a", Dtype: "int64"}, {Name: "a", Dtype: "string"},
	}, nil)
	c.Assert(err, ErrorMatches, `duplicate column "a"`)

	_, err = bach.FromTable(db, "t", []bach.ColumnDef{{Name: "a", Dtype: "nope"}}, nil)
	c.Assert(errors.Is(err, bach.ErrTypeMismatch), Equals, true)

	_, err = bach.FromTable(db, "t", []bach.ColumnDef{{Name: "a", Dtype: "int64"}}, []string{"b"})
	c.Assert(err, ErrorMatches, `index column "b" is not among the declared columns`)

	// dtype aliases are accepted and normalized
	df, err := bach.FromTable(db, "t", []bach.ColumnDef{{Name: "a", Dtype: "bigint"}}, nil)
	c.Assert(err, IsNil)
	c.Assert(column(c, df, "a").Dtype(), Equals, "int64")
}

func (s *dataFrameSuite) TestToSQL(c *C) {
	df := ordersFrame(c)
	ref := `"` + df.BaseNode().RefName() + `"`

	sql, err := df.ToSQL()
	c.Assert(err, IsNil)
	c.Assert(sql, Equals,
		`with `+ref+` as (select * from "orders") `+
			`SELECT "id", "city", "amount", "flag", "created", "ref" FROM `+ref)
}

func (s *dataFrameSuite) TestSetColumn(c *C) {
	df := ordersFrame(c)
	amount := column(c, df, "amount")

	doubled, err := amount.Mul(2)
	c.Assert(err, IsNil)
	df2, err := df.SetColumn("doubled", doubled)
	c.Assert(err, IsNil)
	c.Assert(df2.ColumnNames(), DeepEquals,
		[]string{"city", "amount", "flag", "created", "ref", "doubled"})
	c.Assert(column(c, df2, "doubled").Name(), Equals, "doubled")

	// the original frame is untouched
	_, err = df.Column("doubled")
	c.Assert(err, ErrorMatches, `frame has no column "doubled"`)

	// replacing keeps the column position
	halved, err := amount.Div(2)
	c.Assert(err, IsNil)
	df3, err := df2.SetColumn("doubled", halved)
	c.Assert(err, IsNil)
	c.Assert(df3.ColumnNames(), DeepEquals, df2.ColumnNames())

	_, err = df.SetColumn("id", amount)
	c.Assert(err, ErrorMatches, `cannot replace index column "id"`)

	other, err := bach.FromTable(bach.NewDB(nil), "archive",
		[]bach.ColumnDef{{Name: "x", Dtype: "int64"}}, nil)
	c.Assert(err, IsNil)
	_, err = df.SetColumn("x", column(c, other, "x"))
	c.Assert(errors.Is(err, bach.ErrIncompatibleContext), Equals, true)

	// constants cross frames freely
	five, err := other.ConstSeries(5, "five")
	c.Assert(err, IsNil)
	_, err = df.SetColumn("five", five)
	c.Assert(err, IsNil)
}

func (s *dataFrameSuite) TestFilter(c *C) {
	df := ordersFrame(c)
	amount := column(c, df, "amount")
	ref := `"` + df.BaseNode().RefName() + `"`

	mask, err := amount.Gt(10.0)
	c.Assert(err, IsNil)
	filtered, err := df.Filter(mask)
	c.Assert(err, IsNil)

	// the filtered frame is a new base node over the old one
	c.Assert(filtered.BaseNode().Equals(df.BaseNode()), Equals, false)
	sql, err := filtered.ToSQL()
	c.Assert(err, IsNil)
	inner := `SELECT "id", "city", "amount", "flag", "created", "ref" FROM ` + ref +
		` WHERE "amount" > 10.0`
	c.Assert(sql, Equals,
		`with `+ref+` as (select * from "orders"), `+
			`"`+filtered.BaseNode().RefName()+`" as (`+inner+`) `+
			`SELECT "id", "city", "amount", "flag", "created", "ref" FROM "`+
			filtered.BaseNode().RefName()+`"`)

	// filtered columns are plain references again
	c.Assert(seriesSQL(column(c, filtered, "amount")), Equals, `"amount"`)

	_, err = df.Filter(amount)
	c.Assert(errors.Is(err, bach.ErrTypeMismatch), Equals, true)

	otherDf, err := bach.FromTable(bach.NewDB(nil), "archive",
		[]bach.ColumnDef{{Name: "ok", Dtype: "bool"}}, nil)
	c.Assert(err, IsNil)
	_, err = df.Filter(column(c, otherDf, "ok"))
	c.Assert(errors.Is(err, bach.ErrIncompatibleContext), Equals, true)

	sum, err := amount.Sum(nil, 0)
	c.Assert(err, IsNil)
	aggMask, err := sum.Gt(100.0)
	c.Assert(err, IsNil)
	_, err = df.Filter(aggMask)
	c.Assert(err, ErrorMatches, "filter mask must not contain aggregate or window functions.*")
}

func (s *dataFrameSuite) TestGroupBy(c *C) {
	df := ordersFrame(c)
	grouped, err := df.GroupBy("city")
	c.Assert(err, IsNil)

	c.Assert(grouped.Index(), HasLen, 1)
	c.Assert(grouped.Index()[0].Name(), Equals, "city")
	// the previous index is an ordinary column now
	c.Assert(grouped.ColumnNames(), DeepEquals,
		[]string{"id", "amount", "flag", "created", "ref"})
	c.Assert(column(c, grouped, "amount").GroupBy(), NotNil)

	// unaggregated columns cannot compile
	_, err = grouped.ToSQL()
	c.Assert(err, ErrorMatches, `cannot compile frame with pending group-by: column "id" is not aggregated`)

	// grouping twice needs an aggregation or materialization in between
	_, err = grouped.GroupBy("flag")
	c.Assert(errors.Is(err, bach.ErrIncompatibleContext), Equals, true)

	_, err = df.GroupBy("nope")
	c.Assert(err, ErrorMatches, `frame has no column "nope"`)
}

func (s *dataFrameSuite) TestGroupByAggregateToSQL(c *C) {
	df := ordersFrame(c)
	ref := `"` + df.BaseNode().RefName() + `"`

	grouped, err := df.GroupBy("city")
	c.Assert(err, IsNil)
	sum, err := column(c, grouped, "amount").Sum(nil, 0)
	c.Assert(err, IsNil)

	totals := sum.ToFrame()
	sql, err := totals.ToSQL()
	c.Assert(err, IsNil)
	c.Assert(sql, Equals,
		`with `+ref+` as (select * from "orders") `+
			`SELECT "city", sum("amount") as "amount" FROM `+ref+` GROUP BY "city"`)
}

func (s *dataFrameSuite) TestMaterialize(c *C) {
	df := ordersFrame(c)
	grouped, err := df.GroupBy("city")
	c.Assert(err, IsNil)
	sum, err := column(c, grouped, "amount").Sum(nil, 0)
	c.Assert(err, IsNil)

	materialized, err := sum.ToFrame().Materialize()
	c.Assert(err, IsNil)

	// the aggregate is spent: plain references over a new base node
	total := column(c, materialized, "amount")
	c.Assert(seriesSQL(total), Equals, `"amount"`)
	c.Assert(total.GroupBy(), IsNil)
	c.Assert(total.Expression().HasAggregateFunction(), Equals, false)

	// which makes aggregating again legal
	maxTotal, err := total.Max(nil)
	c.Assert(err, IsNil)
	c.Assert(seriesSQL(maxTotal), Equals, `max("amount")`)
}

func (s *dataFrameSuite) TestWholeFrameGroupBy(c *C) {
	df := ordersFrame(c)
	grouped, err := df.GroupBy()
	c.Assert(err, IsNil)
	c.Assert(grouped.Index(), HasLen, 0)

	cnt, err := column(c, grouped, "id").Count(nil)
	c.Assert(err, IsNil)
	c.Assert(cnt.Expression().IsSingleValue(), Equals, true)

	sql, err := cnt.ToFrame().ToSQL()
	c.Assert(err, IsNil)
	ref := `"` + df.BaseNode().RefName() + `"`
	c.Assert(sql, Equals,
		`with `+ref+` as (select * from "orders") `+
			`SELECT count("id") as "id" FROM `+ref)
}

func (s *dataFrameSuite) TestSortedSeriesToFrame(c *C) {
	df := ordersFrame(c)
	amount := column(c, df, "amount").SortValues(false)

	sql, err := amount.ToFrame().ToSQL()
	c.Assert(err, IsNil)
	ref := `"` + df.BaseNode().RefName() + `"`
	c.Assert(sql, Equals,
		`with `+ref+` as (select * from "orders") `+
			`SELECT "id", "amount" FROM `+ref+` ORDER BY "amount" desc`)
}
