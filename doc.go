// Copyright 2026 the objectiv-analytics authors.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package bach implements a DataFrame and Series layer over SQL databases.
//
// A DataFrame is bound to a table (or to the result of earlier operations)
// and holds typed Series: index columns forming the row key, and data
// columns. Operations on frames and series do not move data; they build up
// expressions, and the whole chain of operations compiles into one SQL
// query when the frame is materialized, rendered with ToSQL, or queried.
//
//	df, err := bach.FromTable(db, "orders", []bach.ColumnDef{
//		{Name: "id", Dtype: "int64"},
//		{Name: "city", Dtype: "string"},
//		{Name: "amount", Dtype: "float64"},
//	}, []string{"id"})
//	...
//	amount, err := df.Column("amount")
//	doubled, err := amount.Mul(2)
//	df, err = df.SetColumn("doubled", doubled)
//	sql, err := df.ToSQL()
//
// Aggregation follows the same model: GroupBy marks the frame as pending
// aggregation, per-series aggregates such as Sum or Count resolve it, and
// window functions evaluate over a Window partition without reducing the
// rows. Aggregating a result that already contains an aggregate is refused
// until the frame is materialized, since a single query cannot nest them.
//
// Series are typed. Each dtype (bool, int64, float64, string, timestamp,
// uuid) defines which operations it supports and against which operand
// types; violations fail with ErrTypeMismatch before any SQL is produced.
package bach
