package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/dendroclim/internal/adapter/tabular"
	"github.com/couchcryptid/dendroclim/internal/domain"
	"github.com/couchcryptid/dendroclim/internal/stats"
)

// dailySource locates a daily climate table: a long table on one sheet, or
// wide temperature and precipitation sheets of a workbook.
type dailySource struct {
	sheet     string
	tempSheet string
	precSheet string
	monthly   bool
}

func (s *dailySource) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.sheet, "sheet", "", "sheet of a long daily table (default: first sheet)")
	cmd.Flags().StringVar(&s.tempSheet, "temp-sheet", "", "wide daily temperature sheet (Month, Day, one column per year)")
	cmd.Flags().StringVar(&s.precSheet, "prec-sheet", "", "wide daily precipitation sheet, used with --temp-sheet")
}

func (s *dailySource) bindMonthly(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&s.monthly, "monthly", false, "aggregate the daily table to months before comparing")
}

func (s *dailySource) load(path string) (*domain.DailySeries, error) {
	if s.tempSheet != "" {
		return tabular.LoadDailyWorkbook(path, s.tempSheet, s.precSheet)
	}
	f, err := tabular.Load(path, tabular.Selector{Sheet: s.sheet})
	if err != nil {
		return nil, err
	}
	return domain.NewDailySeries(f)
}

// loadSeries loads the daily table and, with --monthly, aggregates it.
func (s *dailySource) loadSeries(path string) (domain.ClimateSeries, error) {
	daily, err := s.load(path)
	if err != nil {
		return nil, err
	}
	if !s.monthly {
		return daily, nil
	}
	return domain.AggregateMonthly(daily, nil)
}

func loadReference(path, sheet string) (*domain.Reference, error) {
	f, err := tabular.Load(path, tabular.Selector{Sheet: sheet})
	if err != nil {
		return nil, err
	}
	return domain.NewReference(f)
}

func newCompareCmd(o *options) *cobra.Command {
	var (
		src        dailySource
		refSheet   string
		field      string
		target     string
		lag        string
		comparator string
	)
	cmd := &cobra.Command{
		Use:   "compare DAILY REFERENCE",
		Short: "Correlate one climate field with a reference series per calendar day or month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := domain.ParseLag(lag)
			if err != nil {
				return err
			}
			cmp, err := stats.Lookup(comparator)
			if err != nil {
				return err
			}
			series, err := src.loadSeries(args[0])
			if err != nil {
				return err
			}
			ref, err := loadReference(args[1], refSheet)
			if err != nil {
				return err
			}
			table, err := domain.Compare(series, ref, cmp, domain.CompareOptions{Field: field, Target: target, Lag: l})
			if err != nil {
				return err
			}
			o.logger.Info("comparison done", "rows", len(table.Rows), "null_rows", table.NullRows())
			return o.write(cmd, func(w io.Writer) error { return tabular.WriteComparison(w, table) })
		},
	}
	src.bind(cmd)
	src.bindMonthly(cmd)
	cmd.Flags().StringVar(&refSheet, "ref-sheet", "", "reference sheet (default: first sheet)")
	cmd.Flags().StringVar(&field, "field", domain.ColTemperature, "climate column to compare")
	cmd.Flags().StringVar(&target, "target", "", "reference column (default: the only numeric one)")
	cmd.Flags().StringVar(&lag, "lag", string(domain.LagNone), "none or previous_year")
	cmd.Flags().StringVar(&comparator, "comparator", "pearson", fmt.Sprintf("one of %v", stats.Names()))
	return cmd
}

func newFullCmd(o *options) *cobra.Command {
	var (
		src        dailySource
		refSheet   string
		opts       domain.FullCompareOptions
		comparator string
	)
	cmd := &cobra.Command{
		Use:   "full DAILY REFERENCE",
		Short: "Compare two climate fields, with and without the previous-year lag, in one table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmp, err := stats.Lookup(comparator)
			if err != nil {
				return err
			}
			series, err := src.loadSeries(args[0])
			if err != nil {
				return err
			}
			ref, err := loadReference(args[1], refSheet)
			if err != nil {
				return err
			}
			table, err := domain.FullCompare(series, ref, cmp, opts)
			if err != nil {
				return err
			}
			o.logger.Info("full comparison done", "rows", len(table.Rows), "null_cells", table.NullCells())
			return o.write(cmd, func(w io.Writer) error { return tabular.WriteFullComparison(w, table) })
		},
	}
	src.bind(cmd)
	src.bindMonthly(cmd)
	cmd.Flags().StringVar(&refSheet, "ref-sheet", "", "reference sheet (default: first sheet)")
	cmd.Flags().StringVar(&opts.Primary, "primary", domain.ColTemperature, "first climate column")
	cmd.Flags().StringVar(&opts.Secondary, "secondary", domain.ColPrecipitation, "second climate column")
	cmd.Flags().StringVar(&opts.Target, "target", "", "reference column (default: the only numeric one)")
	cmd.Flags().IntVar(&opts.SmoothingWindow, "smoothing-window", 0, "pre-smooth both fields with a centered mean; 0 disables")
	cmd.Flags().StringVar(&comparator, "comparator", "pearson", fmt.Sprintf("one of %v", stats.Names()))
	return cmd
}

func newSeasonCmd(o *options) *cobra.Command {
	var src dailySource
	opts := domain.DefaultSeasonOptions()
	cmd := &cobra.Command{
		Use:   "season DAILY",
		Short: "Extract the growth season of every year",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			daily, err := src.load(args[0])
			if err != nil {
				return err
			}
			table, err := domain.ExtractGrowthSeasons(daily, opts)
			if err != nil {
				return err
			}
			o.logger.Info("seasons extracted", "seasons", len(table.Seasons))
			return o.write(cmd, func(w io.Writer) error { return tabular.WriteSeasons(w, table) })
		},
	}
	src.bind(cmd)
	cmd.Flags().StringVar(&opts.Field, "field", opts.Field, "climate column to scan")
	cmd.Flags().IntVar(&opts.SmoothingWindow, "smoothing-window", opts.SmoothingWindow, "pre-smoothing window; 0 disables")
	cmd.Flags().IntVar(&opts.StartWindow, "start-window", opts.StartWindow, "rolling sum window for the season start")
	cmd.Flags().Float64Var(&opts.StartThreshold, "start-threshold", opts.StartThreshold, "rolling sum that starts the season")
	cmd.Flags().Float64Var(&opts.EndThreshold, "end-threshold", opts.EndThreshold, "value below which the season ends")
	return cmd
}

func newMonthlyCmd(o *options) *cobra.Command {
	var (
		src         dailySource
		climatology bool
	)
	cmd := &cobra.Command{
		Use:   "monthly DAILY",
		Short: "Aggregate a daily table to months",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			daily, err := src.load(args[0])
			if err != nil {
				return err
			}
			var out *domain.Frame
			if climatology {
				out, err = domain.MonthlyClimatology(daily)
			} else {
				var monthly *domain.MonthlySeries
				if monthly, err = domain.AggregateMonthly(daily, nil); err == nil {
					out = monthly.Frame()
				}
			}
			if err != nil {
				return err
			}
			return o.write(cmd, func(w io.Writer) error { return tabular.WriteFrame(w, out) })
		},
	}
	src.bind(cmd)
	cmd.Flags().BoolVar(&climatology, "climatology", false, "average each month over all years")
	return cmd
}

func newOverlapCmd(o *options) *cobra.Command {
	var (
		sheet   string
		columns []string
	)
	cmd := &cobra.Command{
		Use:   "overlap TABLE",
		Short: "Count the rows where each pair of numeric columns both have values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := tabular.Load(args[0], tabular.Selector{Sheet: sheet})
			if err != nil {
				return err
			}
			m, err := domain.PairwiseOverlap(f, columns...)
			if err != nil {
				return err
			}
			return o.write(cmd, func(w io.Writer) error { return tabular.WriteMatrix(w, m) })
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet to read (default: first sheet)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to include (default: all numeric)")
	return cmd
}

func newCorrCmd(o *options) *cobra.Command {
	var (
		sheet      string
		columns    []string
		comparator string
		pvalues    bool
	)
	cmd := &cobra.Command{
		Use:   "corr TABLE",
		Short: "Correlate every pair of numeric columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmp, err := stats.Lookup(comparator)
			if err != nil {
				return err
			}
			f, err := tabular.Load(args[0], tabular.Selector{Sheet: sheet})
			if err != nil {
				return err
			}
			stat, p, err := domain.CorrelationMatrix(f, cmp, columns...)
			if err != nil {
				return err
			}
			m := stat
			if pvalues {
				m = p
			}
			return o.write(cmd, func(w io.Writer) error { return tabular.WriteMatrix(w, m) })
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet to read (default: first sheet)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to include (default: all numeric)")
	cmd.Flags().StringVar(&comparator, "comparator", "pearson", fmt.Sprintf("one of %v", stats.Names()))
	cmd.Flags().BoolVar(&pvalues, "pvalues", false, "write p-values instead of statistics")
	return cmd
}

func newNormalizeCmd(o *options) *cobra.Command {
	var (
		trees []string
		norm  int
	)
	cmd := &cobra.Command{
		Use:   "normalize WORKBOOK",
		Short: "Resample every ring of a tracheid workbook to the same number of cells",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tabular.LoadTracheidWorkbook(args[0], trees)
			if err != nil {
				return err
			}
			out, err := domain.NormalizeTracheids(t, norm)
			if err != nil {
				return err
			}
			return o.write(cmd, func(w io.Writer) error { return tabular.WriteFrame(w, out.Frame()) })
		},
	}
	cmd.Flags().StringSliceVar(&trees, "trees", nil, "tree sheets to read (default: all sheets)")
	cmd.Flags().IntVar(&norm, "norm", 15, "cells per ring after resampling")
	return cmd
}

var schemas = map[string]domain.Schema{
	"daily":     domain.DailySchema,
	"monthly":   domain.MonthlySchema,
	"reference": domain.ReferenceSchema,
	"tracheids": domain.TracheidSchema,
}

func newValidateCmd(o *options) *cobra.Command {
	var (
		sheet  string
		schema string
	)
	cmd := &cobra.Command{
		Use:   "validate TABLE",
		Short: "Check a table against the daily, monthly, reference or tracheids schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ok := schemas[schema]
			if !ok {
				return &domain.ConfigurationError{Parameter: "schema", Reason: fmt.Sprintf("unknown schema %q", schema)}
			}
			f, err := tabular.Load(args[0], tabular.Selector{Sheet: sheet})
			if err != nil {
				return err
			}
			if err := s.Validate(f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows match the %s schema\n", args[0], f.Len(), schema)
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet to read (default: first sheet)")
	cmd.Flags().StringVar(&schema, "schema", "daily", "daily, monthly, reference or tracheids")
	return cmd
}
