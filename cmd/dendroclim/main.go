// Command dendroclim runs climate and tree-ring analyses on xlsx and csv tables
// and writes the results as csv.
//
// Usage:
//
//	dendroclim compare daily.xlsx trw.csv --field Temperature --lag previous_year
//	dendroclim full daily.xlsx trw.csv --smoothing-window 7 -o full.csv
//	dendroclim season daily.csv --start-threshold 108
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type options struct {
	output   string
	logLevel string
	logger   *slog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "dendroclim",
		Short:        "Compare daily and monthly climate with tree-ring series",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			_ = level.UnmarshalText([]byte(strings.ToUpper(opts.logLevel)))
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
		},
	}
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "", "output csv file (default: stdout)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(
		newCompareCmd(opts),
		newFullCmd(opts),
		newSeasonCmd(opts),
		newMonthlyCmd(opts),
		newOverlapCmd(opts),
		newCorrCmd(opts),
		newNormalizeCmd(opts),
		newValidateCmd(opts),
	)
	return root
}

// write runs fn against the output file, or stdout when none is set.
func (o *options) write(cmd *cobra.Command, fn func(w io.Writer) error) error {
	if o.output == "" {
		return fn(cmd.OutOrStdout())
	}
	f, err := os.Create(o.output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	o.logger.Info("output written", "path", o.output)
	return nil
}
