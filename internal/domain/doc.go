// Package domain models climate and tree-ring tables and the analyses run on
// them.
//
// # Tables
//
// A [Frame] is an ordered set of typed columns. Float columns use NaN as the
// null value; integer and string columns are never null. Frames are validated
// against a [Schema], which reports every broken rule at once in a
// [SchemaViolation].
//
// Validated wrappers give the frames their meaning:
//
//	DailySeries    Year, Month, Day, Temperature?, Precipitation?
//	MonthlySeries  Year, Month, Temperature?, Precipitation?
//	Reference      Year plus one or more numeric targets (tree-ring widths)
//	Tracheids      Tree, Year, №, TRW plus D* and CWT* cell measurements
//
// Temperature must lie within [-100, 100]. Daily precipitation must lie within
// [0, 1000] and monthly precipitation within [0, 10000]. Feb 29 is accepted for
// every year because wide daily workbooks carry 366 rows per year.
//
// # Calendar keys
//
// Series of different years are aligned by [CalendarKey]: (Month, Day) for
// daily series and Month alone for monthly series. Grouping always keeps keys
// in the order they first appear and rows in series order.
//
// # Smoothing
//
// [Smooth] computes centered rolling means and sums. A window of w rows at
// position i covers rows i+off+1-w through i+off with off = (w-1)/2, so even
// windows take their extra point from the earlier side. The shrink policy uses
// whatever points are available; the strict policy needs a complete window of
// non-null points. Sums always shrink.
//
// # Comparisons
//
// [Compare] pairs the values of one calendar key across years with a
// reference target joined on Year, optionally lagged by one year, and hands
// the pairs to a pluggable [Comparator]. Keys with fewer than two pairs, and
// keys the comparator rejects with [ErrComparisonFailure], produce null rows.
// [FullCompare] merges the four runs of two fields with and without lag.
//
// # Growth seasons
//
// [ExtractGrowthSeasons] scans each year for the first day whose 10-day
// centered temperature sum exceeds 108 and the first day from there on that is
// colder than 6 degrees. Years missing either day have no season; a season
// that has not ended by the last row is dropped, not clipped.
//
// # Jobs
//
// The worker receives [AnalysisJob] messages, runs them with [RunAnalysis] and
// publishes an [AnalysisResult]. Result IDs are deterministic SHA-256 hashes
// of job id and kind, so replayed jobs upsert the same result downstream.
package domain
